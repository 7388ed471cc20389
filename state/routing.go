package state

import (
	"fmt"
	"slices"
	"strings"
)

// DVRoute is one entry of a distance vector.
type DVRoute struct {
	Cost    Cost
	NextHop NodeId
	Path    Path
}

func (r DVRoute) Equal(o DVRoute) bool {
	return r.Cost == o.Cost && r.NextHop == o.NextHop && slices.Equal(r.Path, o.Path)
}

func (r DVRoute) String() string {
	return fmt.Sprintf("(nh: %s, cost: %s, path: %s)", r.NextHop, r.Cost, r.Path)
}

// DistanceVector maps a destination to the route selected for it.
type DistanceVector map[NodeId]DVRoute

func (v DistanceVector) Equal(o DistanceVector) bool {
	if len(v) != len(o) {
		return false
	}
	for dst, r := range v {
		or, ok := o[dst]
		if !ok || !r.Equal(or) {
			return false
		}
	}
	return true
}

func (v DistanceVector) Clone() DistanceVector {
	c := make(DistanceVector, len(v))
	for dst, r := range v {
		r.Path = r.Path.Clone()
		c[dst] = r
	}
	return c
}

func (v DistanceVector) String() string {
	lines := make([]string, 0, len(v))
	for _, dst := range SortedKeys(v) {
		lines = append(lines, fmt.Sprintf("%s via %s", dst, v[dst]))
	}
	return strings.Join(lines, "\n")
}

// DVState is the state of a distance-vector node. It is owned by a single goroutine.
type DVState struct {
	Id    NodeId
	Seqno uint64
	// Neighbours holds the direct link cost to every current neighbour
	Neighbours map[NodeId]Cost
	Vector     DistanceVector
	// NeighVectors holds the last vector accepted from each neighbour
	NeighVectors map[NodeId]DistanceVector
	Seen         SequenceTracker
	// LoopFilter drops advertised routes whose path already passes through this node
	LoopFilter bool
	MaxCost    Cost
}

func NewDVState(id NodeId, loopFilter bool, maxCost Cost) *DVState {
	if maxCost <= 0 {
		maxCost = DefaultMaxCost
	}
	return &DVState{
		Id:           id,
		Neighbours:   make(map[NodeId]Cost),
		Vector:       DistanceVector{id: SelfRoute(id)},
		NeighVectors: make(map[NodeId]DistanceVector),
		Seen:         NewSequenceTracker(),
		LoopFilter:   loopFilter,
		MaxCost:      maxCost,
	}
}

func SelfRoute(id NodeId) DVRoute {
	return DVRoute{Cost: 0, NextHop: id, Path: Path{id}}
}

func (s *DVState) IsNeighbour(id NodeId) bool {
	_, ok := s.Neighbours[id]
	return ok
}
