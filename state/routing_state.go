package state

import (
	"fmt"
	"strings"
)

// Advert is a link-state advertisement: Source announces its link to Destination.
type Advert struct {
	Source      NodeId
	Destination NodeId
	Cost        Cost
	Seqno       uint64
}

func (a Advert) String() string {
	return fmt.Sprintf("(src: %s, dst: %s, cost: %s, seqno: %d)", a.Source, a.Destination, a.Cost, a.Seqno)
}

// HeldAdvert is an advert received ahead of its predecessors, waiting for the gap to fill.
// A waived entry stands for an advert no neighbour could supply; it is skipped in order.
type HeldAdvert struct {
	Advert
	From   NodeId
	Waived bool
}

// LSState is the state of a link-state node. It is owned by a single goroutine.
type LSState struct {
	Id    NodeId
	Seqno uint64
	// Neighbours holds the direct link cost to every current neighbour, it is authoritative for edges touching Id
	Neighbours map[NodeId]Cost
	Graph      Topology
	Sources    SequenceTracker
	// History keeps accepted adverts per source so gaps elsewhere can be refilled. An advert replaced by a
	// newer one for the same link is dropped once it is HistoryWindow seqnos old.
	History map[NodeId]map[uint64]Advert
	// Latest holds the seqno of the newest accepted advert per source and destination
	Latest  map[NodeId]map[NodeId]uint64
	Pending map[NodeId]map[uint64]HeldAdvert
	// Wanted holds the highest seqno requested per source, gap replies past it are ignored
	Wanted  map[NodeId]uint64
	CatchUp bool
}

func NewLSState(id NodeId, catchUp bool) *LSState {
	return &LSState{
		Id:         id,
		Neighbours: make(map[NodeId]Cost),
		Graph:      make(Topology),
		Sources:    NewSequenceTracker(),
		History:    make(map[NodeId]map[uint64]Advert),
		Latest:     make(map[NodeId]map[NodeId]uint64),
		Pending:    make(map[NodeId]map[uint64]HeldAdvert),
		Wanted:     make(map[NodeId]uint64),
		CatchUp:    catchUp,
	}
}

func (s *LSState) IsNeighbour(id NodeId) bool {
	_, ok := s.Neighbours[id]
	return ok
}

func (s *LSState) Remember(adv Advert) {
	h, ok := s.History[adv.Source]
	if !ok {
		h = make(map[uint64]Advert)
		s.History[adv.Source] = h
	}
	latest, ok := s.Latest[adv.Source]
	if !ok {
		latest = make(map[NodeId]uint64)
		s.Latest[adv.Source] = latest
	}
	h[adv.Seqno] = adv
	if latest[adv.Destination] < adv.Seqno {
		latest[adv.Destination] = adv.Seqno
	}
	if uint64(len(h)) > 2*HistoryWindow {
		s.compact(adv.Source, adv.Seqno)
	}
}

func (s *LSState) compact(src NodeId, newest uint64) {
	latest := s.Latest[src]
	for seq, adv := range s.History[src] {
		if seq+HistoryWindow <= newest && latest[adv.Destination] != seq {
			delete(s.History[src], seq)
		}
	}
}

// Knows reports whether an advert about the link between a and b was accepted from either end.
func (s *LSState) Knows(a, b NodeId) bool {
	if _, ok := s.Latest[a][b]; ok {
		return true
	}
	_, ok := s.Latest[b][a]
	return ok
}

// Want records that adverts from src up to seq have been asked for.
func (s *LSState) Want(src NodeId, seq uint64) {
	s.Wanted[src] = max(s.Wanted[src], seq)
}

func (s *LSState) Hold(adv Advert, from NodeId) {
	s.pending(adv.Source)[adv.Seqno] = HeldAdvert{Advert: adv, From: from}
}

// Waive marks seq from src as unobtainable, unless a real advert is already held for it.
func (s *LSState) Waive(src NodeId, seq uint64, from NodeId) {
	p := s.pending(src)
	if _, ok := p[seq]; ok {
		return
	}
	p[seq] = HeldAdvert{Advert: Advert{Source: src, Seqno: seq}, From: from, Waived: true}
}

func (s *LSState) pending(src NodeId) map[uint64]HeldAdvert {
	p, ok := s.Pending[src]
	if !ok {
		p = make(map[uint64]HeldAdvert)
		s.Pending[src] = p
	}
	return p
}

func (s *LSState) StringSources() string {
	parts := make([]string, 0, len(s.Sources))
	for _, src := range SortedKeys(s.Sources) {
		parts = append(parts, fmt.Sprintf("%s:%d", src, s.Sources[src]))
	}
	return strings.Join(parts, " ")
}
