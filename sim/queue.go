package sim

import (
	"time"

	"github.com/encodeous/ripple/state"
)

type eventKind int

const (
	linkEvent eventKind = iota
	deliverEvent
)

type event struct {
	at   time.Duration
	seq  uint64
	kind eventKind

	// link changes
	a, b    state.NodeId
	cost    state.Cost
	latency time.Duration

	// deliveries
	from, to state.NodeId
	pkt      []byte
	gen      uint64
}

// eventQueue orders events by time, then by the order they were scheduled in.
type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return ev
}
