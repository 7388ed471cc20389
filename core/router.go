package core

import (
	"fmt"

	"github.com/encodeous/ripple/protocol"
	"github.com/encodeous/ripple/state"
)

type RouterEvent int

// trace events

const (
	LinkUpdated RouterEvent = iota
	VectorUpdated
	StaleMessageDropped
	AdvertAccepted
	AdvertHeld
	GapSkipped
	SnapshotMerged
	RetransmitServed
)

// warn events

const (
	InconsistentState RouterEvent = iota + 1000
	MalformedMessage
	UnknownNeighbour
	NegativeCycle
)

func (e RouterEvent) String() string {
	switch e {
	case LinkUpdated:
		return "LINK_UPDATED"
	case VectorUpdated:
		return "VECTOR_UPDATED"
	case StaleMessageDropped:
		return "STALE_MESSAGE_DROPPED"
	case AdvertAccepted:
		return "ADVERT_ACCEPTED"
	case AdvertHeld:
		return "ADVERT_HELD"
	case GapSkipped:
		return "GAP_SKIPPED"
	case SnapshotMerged:
		return "SNAPSHOT_MERGED"
	case RetransmitServed:
		return "RETRANSMIT_SERVED"
	case InconsistentState:
		return "INCONSISTENT_STATE"
	case MalformedMessage:
		return "MALFORMED_MESSAGE"
	case UnknownNeighbour:
		return "UNKNOWN_NEIGHBOUR"
	case NegativeCycle:
		return "NEGATIVE_CYCLE"
	default:
		return fmt.Sprintf("EVENT_%d", int(e))
	}
}

func (e RouterEvent) IsWarning() bool {
	return e >= InconsistentState
}

// Router is an interface that defines the underlying router operations
type Router interface {
	SendToNeighbour(neigh state.NodeId, msg *protocol.Message)
	BroadcastToNeighbours(msg *protocol.Message)
	// RequestRetransmit asks neigh for src's adverts first..last. Repeated requests may be suppressed.
	RequestRetransmit(neigh state.NodeId, src state.NodeId, first, last uint64)
	Log(event RouterEvent, desc string, args ...any)
}
