package core

import (
	"errors"
	"fmt"
	"maps"

	"github.com/encodeous/ripple/state"
)

var ErrNegativeCycle = errors.New("negative cost cycle, no shortest path exists")

// dvEdge is one candidate route: the direct link to a neighbour, plus that neighbour's advertised
// route to a destination.
type dvEdge struct {
	via  state.NodeId
	to   state.NodeId
	cost state.Cost
	// tail is the path after self, starting at via and ending at to
	tail state.Path
}

// HandleDVLinkChanged applies a link change. If the resulting vector would be refused, nothing is
// applied.
func HandleDVLinkChanged(s *state.DVState, r Router, neigh state.NodeId, cost state.Cost) error {
	if err := state.CheckCost(cost); err != nil {
		return err
	}
	if neigh == s.Id {
		return fmt.Errorf("%w: link from %s to itself", state.ErrInvalidCost, s.Id)
	}
	_, known := s.Neighbours[neigh]
	if cost.IsDeleted() && !known {
		r.Log(InconsistentState, "removal of a link that does not exist", "neigh", neigh)
		return nil
	}

	next := pendingDV(s)
	if cost.IsDeleted() {
		delete(next.Neighbours, neigh)
		delete(next.NeighVectors, neigh)
	} else {
		next.Neighbours[neigh] = cost
	}
	vec, err := computeOrRefuse(next, r)
	if err != nil {
		return err
	}
	s.Neighbours, s.NeighVectors = next.Neighbours, next.NeighVectors
	r.Log(LinkUpdated, "link changed", "neigh", neigh, "cost", cost)

	if !publishVector(s, r, vec) && !known && !cost.IsDeleted() {
		// the new neighbour has never seen our vector
		s.Seqno++
		r.SendToNeighbour(neigh, vectorMessage(s, nil))
	}
	return nil
}

// HandleDVVector applies a neighbour's vector. A vector that would be refused is not stored, and its
// seqno is not accepted.
func HandleDVVector(s *state.DVState, r Router, sender state.NodeId, vec state.DistanceVector, seq uint64) error {
	if !s.Seen.Newer(sender, seq) {
		last, _ := s.Seen.Get(sender)
		r.Log(StaleMessageDropped, "vector is not newer than the last one accepted", "from", sender, "seqno", seq, "last", last)
		return nil
	}
	if !s.IsNeighbour(sender) {
		r.Log(UnknownNeighbour, "vector from a node that is not a neighbour", "from", sender)
		return nil
	}
	next := pendingDV(s)
	next.NeighVectors[sender] = vec
	computed, err := computeOrRefuse(next, r)
	if err != nil {
		return err
	}
	s.Seen.Accept(sender, seq)
	s.NeighVectors = next.NeighVectors
	publishVector(s, r, computed)
	return nil
}

// pendingDV returns a copy of s whose neighbour tables can be changed without touching s.
func pendingDV(s *state.DVState) *state.DVState {
	next := *s
	next.Neighbours = maps.Clone(s.Neighbours)
	next.NeighVectors = maps.Clone(s.NeighVectors)
	return &next
}

func computeOrRefuse(s *state.DVState, r Router) (state.DistanceVector, error) {
	vec, err := ComputeVector(s)
	if err != nil {
		r.Log(NegativeCycle, "refusing to replace the distance vector", "err", err)
		return nil, err
	}
	return vec, nil
}

// publishVector installs vec and broadcasts it if anything changed.
func publishVector(s *state.DVState, r Router, vec state.DistanceVector) bool {
	if vec.Equal(s.Vector) {
		return false
	}
	prev := s.Vector
	s.Vector = vec
	s.Seqno++
	r.Log(VectorUpdated, "distance vector changed", "seqno", s.Seqno, "routes", len(vec))
	r.BroadcastToNeighbours(vectorMessage(s, prev))
	return true
}

func dvEdges(s *state.DVState) []dvEdge {
	var edges []dvEdge
	for _, n := range state.SortedKeys(s.Neighbours) {
		direct := s.Neighbours[n]
		edges = append(edges, dvEdge{via: n, to: n, cost: direct, tail: state.Path{n}})
		vec := s.NeighVectors[n]
		for _, dst := range state.SortedKeys(vec) {
			rt := vec[dst]
			if dst == n || rt.Cost.IsDeleted() {
				continue
			}
			if s.LoopFilter && rt.Path.Contains(s.Id) {
				continue
			}
			cost := AddCost(direct, rt.Cost, state.Infinity)
			if cost == state.Infinity {
				continue
			}
			tail := rt.Path
			if len(tail) == 0 || tail[0] != n {
				tail = state.Path{n, dst}
			}
			edges = append(edges, dvEdge{via: n, to: dst, cost: cost, tail: tail})
		}
	}
	return edges
}

// ComputeVector runs Bellman-Ford from scratch. The candidate cost toward a destination through
// neighbour n is the direct cost to n plus the cost n advertises. It does not modify s.
func ComputeVector(s *state.DVState) (state.DistanceVector, error) {
	edges := dvEdges(s)
	dests := map[state.NodeId]struct{}{s.Id: {}}
	for _, e := range edges {
		dests[e.to] = struct{}{}
	}

	vec := state.DistanceVector{s.Id: state.SelfRoute(s.Id)}
	via := make(map[state.NodeId]state.NodeId)
	for pass := 0; pass < len(dests)-1; pass++ {
		changed := false
		for _, e := range edges {
			if relaxDV(s, vec, via, e) {
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	// a route back to ourselves below zero keeps improving every route built on it
	base := vec[s.Id].Cost
	for _, e := range edges {
		cur, ok := vec[e.to]
		if ok && base+e.cost < cur.Cost {
			return nil, fmt.Errorf("%w: %s via %s still improves", ErrNegativeCycle, e.to, e.via)
		}
	}

	for dst, rt := range vec {
		if rt.Cost >= s.MaxCost {
			delete(vec, dst)
		}
	}
	return vec, nil
}

func relaxDV(s *state.DVState, vec state.DistanceVector, via map[state.NodeId]state.NodeId, e dvEdge) bool {
	self := vec[s.Id]
	cost := self.Cost + e.cost
	cand := state.DVRoute{
		Cost:    cost,
		NextHop: e.via,
		Path:    append(state.Path{s.Id}, e.tail...),
	}

	cur, ok := vec[e.to]
	switch {
	case !ok, cand.Cost < cur.Cost:
	case cand.Cost > cur.Cost:
		return false
	case via[e.to] == e.via:
		if cand.Equal(cur) {
			return false
		}
	default:
		// equal cost through another neighbour: only move back to the next hop we used before
		prev, had := s.Vector[e.to]
		if !had || cand.NextHop != prev.NextHop || cur.NextHop == prev.NextHop {
			return false
		}
	}
	vec[e.to] = cand
	via[e.to] = e.via
	return true
}

// DVNextHop returns the next hop toward dst, or NoRoute. The next hop toward self is self.
func DVNextHop(s *state.DVState, dst state.NodeId) state.NodeId {
	rt, ok := s.Vector[dst]
	if !ok {
		return state.NoRoute
	}
	return rt.NextHop
}

func DVRoute(s *state.DVState, dst state.NodeId) (state.Path, state.Cost, bool) {
	rt, ok := s.Vector[dst]
	if !ok {
		return nil, state.Infinity, false
	}
	return rt.Path.Clone(), rt.Cost, true
}
