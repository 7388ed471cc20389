package state

import (
	"fmt"
	"strings"
)

// Topology is an undirected weighted graph. Every edge is stored in both directions,
// and a vertex without edges is not stored at all.
type Topology map[NodeId]map[NodeId]Cost

type Edge struct {
	A, B NodeId
	Cost Cost
}

func (t Topology) SetEdge(a, b NodeId, cost Cost) {
	if a == b {
		return
	}
	t.set(a, b, cost)
	t.set(b, a, cost)
}

func (t Topology) set(a, b NodeId, cost Cost) {
	adj, ok := t[a]
	if !ok {
		adj = make(map[NodeId]Cost)
		t[a] = adj
	}
	adj[b] = cost
}

// RemoveEdge deletes a-b in both directions and drops endpoints left isolated.
// It reports whether the edge existed.
func (t Topology) RemoveEdge(a, b NodeId) bool {
	_, existed := t.Edge(a, b)
	t.unset(a, b)
	t.unset(b, a)
	return existed
}

func (t Topology) unset(a, b NodeId) {
	adj, ok := t[a]
	if !ok {
		return
	}
	delete(adj, b)
	if len(adj) == 0 {
		delete(t, a)
	}
}

func (t Topology) Edge(a, b NodeId) (Cost, bool) {
	c, ok := t[a][b]
	return c, ok
}

func (t Topology) HasVertex(n NodeId) bool {
	_, ok := t[n]
	return ok
}

// Edges lists every edge once, with A < B, in a stable order.
func (t Topology) Edges() []Edge {
	edges := make([]Edge, 0)
	for _, a := range SortedKeys(t) {
		for _, b := range SortedKeys(t[a]) {
			if a < b {
				edges = append(edges, Edge{A: a, B: b, Cost: t[a][b]})
			}
		}
	}
	return edges
}

// Symmetric checks the undirected invariant; it is used by tests and debug dumps.
func (t Topology) Symmetric() bool {
	for a, adj := range t {
		if len(adj) == 0 {
			return false
		}
		for b, c := range adj {
			if back, ok := t[b][a]; !ok || back != c {
				return false
			}
		}
	}
	return true
}

func (t Topology) Clone() Topology {
	c := make(Topology, len(t))
	for a, adj := range t {
		m := make(map[NodeId]Cost, len(adj))
		for b, cost := range adj {
			m[b] = cost
		}
		c[a] = m
	}
	return c
}

func (t Topology) String() string {
	sb := strings.Builder{}
	for _, e := range t.Edges() {
		sb.WriteString(fmt.Sprintf("%s <-%s-> %s\n", e.A, e.Cost, e.B))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
