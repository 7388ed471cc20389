package core

import (
	"github.com/encodeous/ripple/protocol"
	"github.com/encodeous/ripple/state"
)

// AddCost adds two costs, saturating at limit. Any sum at or above limit is Infinity.
func AddCost(a, b, limit state.Cost) state.Cost {
	sum := a + b
	if sum >= limit {
		return state.Infinity
	}
	return sum
}

func vectorMessage(s *state.DVState, prev state.DistanceVector) *protocol.Message {
	entries := make([]protocol.VectorEntry, 0, len(s.Vector))
	for _, dst := range state.SortedKeys(s.Vector) {
		rt := s.Vector[dst]
		entries = append(entries, protocol.VectorEntry{Destination: dst, Cost: rt.Cost, Path: rt.Path.Clone()})
	}
	for _, dst := range state.SortedKeys(prev) {
		if _, ok := s.Vector[dst]; !ok {
			entries = append(entries, protocol.VectorEntry{Destination: dst, Cost: state.LinkDeleted})
		}
	}
	return &protocol.Message{
		Kind:   protocol.KindVector,
		Origin: s.Id,
		Seqno:  s.Seqno,
		Vector: entries,
	}
}

// vectorFromMessage rebuilds the sender's vector, leaving out retractions.
func vectorFromMessage(m *protocol.Message) state.DistanceVector {
	vec := make(state.DistanceVector, len(m.Vector))
	for _, e := range m.Vector {
		if e.Cost.IsDeleted() {
			continue
		}
		nh := e.Destination
		if len(e.Path) > 1 {
			nh = e.Path[1]
		}
		vec[e.Destination] = state.DVRoute{Cost: e.Cost, NextHop: nh, Path: state.Path(e.Path).Clone()}
	}
	return vec
}

func advertMessage(adv state.Advert, forwarder state.NodeId) *protocol.Message {
	return &protocol.Message{
		Kind:        protocol.KindAdvert,
		Origin:      adv.Source,
		Seqno:       adv.Seqno,
		Destination: adv.Destination,
		Cost:        adv.Cost,
		Forwarder:   forwarder,
	}
}

func advertFromMessage(m *protocol.Message) state.Advert {
	return state.Advert{
		Source:      m.Origin,
		Destination: m.Destination,
		Cost:        m.Cost,
		Seqno:       m.Seqno,
	}
}

func snapshotMessage(s *state.LSState) *protocol.Message {
	m := &protocol.Message{Kind: protocol.KindSnapshot, Origin: s.Id}
	for _, e := range s.Graph.Edges() {
		m.Edges = append(m.Edges, protocol.Edge{A: e.A, B: e.B, Cost: e.Cost})
	}
	for _, src := range state.SortedKeys(s.Sources) {
		m.Seqnos = append(m.Seqnos, protocol.SourceSeqno{Source: src, Seqno: s.Sources[src]})
	}
	return m
}
