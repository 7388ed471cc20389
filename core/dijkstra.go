package core

import (
	"container/heap"
	"slices"

	"github.com/encodeous/ripple/state"
)

type queued struct {
	node  state.NodeId
	dist  state.Cost
	order uint64
}

// distQueue is a min-heap on tentative distance. Entries are never updated in place; a stale entry is
// skipped when popped.
type distQueue []queued

func (q distQueue) Len() int { return len(q) }

func (q distQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].order < q[j].order
}

func (q distQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *distQueue) Push(x any) { *q = append(*q, x.(queued)) }

func (q *distQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// ShortestPaths runs Dijkstra over g from src. Vertices missing from dist are unreachable, and prev
// has no entry for src or for unreachable vertices.
func ShortestPaths(g state.Topology, src state.NodeId) (dist map[state.NodeId]state.Cost, prev map[state.NodeId]state.NodeId) {
	dist = map[state.NodeId]state.Cost{src: 0}
	prev = make(map[state.NodeId]state.NodeId)

	var order uint64
	q := &distQueue{{node: src}}
	for q.Len() > 0 {
		it := heap.Pop(q).(queued)
		if it.dist > dist[it.node] {
			continue
		}
		neighs := make([]state.NodeId, 0, len(g[it.node]))
		for v := range g[it.node] {
			neighs = append(neighs, v)
		}
		slices.Sort(neighs)
		for _, v := range neighs {
			alt := it.dist + g[it.node][v]
			if best, ok := dist[v]; ok && alt >= best {
				continue
			}
			dist[v] = alt
			prev[v] = it.node
			order++
			heap.Push(q, queued{node: v, dist: alt, order: order})
		}
	}
	return dist, prev
}

// PathTo walks predecessors back from dst. It fails if the walk does not end at src.
func PathTo(prev map[state.NodeId]state.NodeId, src, dst state.NodeId) (state.Path, bool) {
	path := state.Path{dst}
	for cur := dst; cur != src; {
		p, ok := prev[cur]
		if !ok || len(path) > len(prev) {
			return nil, false
		}
		path = append(path, p)
		cur = p
	}
	slices.Reverse(path)
	return path, true
}
