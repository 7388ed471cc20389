package core

import (
	"fmt"
	"maps"
	"slices"

	"github.com/encodeous/ripple/protocol"
	"github.com/encodeous/ripple/state"
)

// MaxRetransmitRange bounds how many adverts a single retransmit request can ask for.
var MaxRetransmitRange uint64 = 1024

func HandleLSLinkChanged(s *state.LSState, r Router, neigh state.NodeId, cost state.Cost) error {
	if err := state.CheckCost(cost); err != nil {
		return err
	}
	if neigh == s.Id {
		return fmt.Errorf("%w: link from %s to itself", state.ErrInvalidCost, s.Id)
	}
	_, known := s.Neighbours[neigh]
	if cost.IsDeleted() {
		if !known {
			r.Log(InconsistentState, "removal of a link that does not exist", "neigh", neigh)
		}
		delete(s.Neighbours, neigh)
		s.Graph.RemoveEdge(s.Id, neigh)
	} else {
		s.Neighbours[neigh] = cost
		s.Graph.SetEdge(s.Id, neigh, cost)
	}
	r.Log(LinkUpdated, "link changed", "neigh", neigh, "cost", cost)

	s.Seqno++
	adv := state.Advert{Source: s.Id, Destination: neigh, Cost: cost, Seqno: s.Seqno}
	s.Remember(adv)
	s.Sources.Accept(s.Id, s.Seqno)
	r.BroadcastToNeighbours(advertMessage(adv, s.Id))

	if !known && !cost.IsDeleted() {
		r.SendToNeighbour(neigh, snapshotMessage(s))
	}
	return nil
}

func HandleAdvert(s *state.LSState, r Router, adv state.Advert, from state.NodeId) {
	if adv.Source == s.Id {
		r.Log(StaleMessageDropped, "own advert came back", "from", from, "seqno", adv.Seqno)
		return
	}
	if !s.Sources.Newer(adv.Source, adv.Seqno) {
		r.Log(StaleMessageDropped, "advert is not newer than the last one accepted", "advert", adv, "from", from)
		return
	}
	if held, ok := s.Pending[adv.Source][adv.Seqno]; ok && !held.Waived {
		r.Log(StaleMessageDropped, "advert is already held", "advert", adv, "from", from)
		return
	}

	if s.CatchUp && s.Sources.Gap(adv.Source, adv.Seqno) > 0 {
		mark, _ := s.Sources.Get(adv.Source)
		s.Hold(adv, from)
		r.Log(AdvertHeld, "advert arrived ahead of its predecessors", "advert", adv, "from", from, "last", mark)
		if len(s.Pending[adv.Source]) > state.MaxPending {
			skipGap(s, r, adv.Source)
			return
		}
		s.Want(adv.Source, adv.Seqno-1)
		r.RequestRetransmit(from, adv.Source, mark+1, adv.Seqno-1)
		return
	}

	applyAdvert(s, r, adv, from)
	drainPending(s, r, adv.Source)
}

// applyAdvert accepts adv and floods it on, except back to the neighbour it came from.
func applyAdvert(s *state.LSState, r Router, adv state.Advert, from state.NodeId) {
	s.Sources.Accept(adv.Source, adv.Seqno)
	s.Remember(adv)
	// edges touching us are owned by the neighbour table
	if adv.Destination != s.Id {
		if adv.Cost.IsDeleted() {
			s.Graph.RemoveEdge(adv.Source, adv.Destination)
		} else {
			s.Graph.SetEdge(adv.Source, adv.Destination, adv.Cost)
		}
	}
	r.Log(AdvertAccepted, "advert accepted", "advert", adv, "from", from)

	msg := advertMessage(adv, s.Id)
	for _, neigh := range state.SortedKeys(s.Neighbours) {
		if neigh != from {
			r.SendToNeighbour(neigh, msg)
		}
	}
}

// drainPending applies held adverts from src for as long as they continue the sequence.
func drainPending(s *state.LSState, r Router, src state.NodeId) {
	for {
		mark, _ := s.Sources.Get(src)
		held, ok := s.Pending[src][mark+1]
		if !ok {
			break
		}
		delete(s.Pending[src], mark+1)
		if held.Waived {
			s.Sources.Accept(src, mark+1)
			r.Log(GapSkipped, "advert could not be recovered", "src", src, "seqno", mark+1, "from", held.From)
			continue
		}
		applyAdvert(s, r, held.Advert, held.From)
	}
	if len(s.Pending[src]) == 0 {
		delete(s.Pending, src)
	}
}

// skipGap gives up on the missing adverts from src and applies everything held, in order.
func skipGap(s *state.LSState, r Router, src state.NodeId) {
	held := s.Pending[src]
	delete(s.Pending, src)
	seqs := make([]uint64, 0, len(held))
	for seq := range held {
		seqs = append(seqs, seq)
	}
	slices.Sort(seqs)
	mark, _ := s.Sources.Get(src)
	r.Log(GapSkipped, "too many adverts held, skipping the gap", "src", src, "last", mark, "held", len(seqs))
	for _, seq := range seqs {
		h := held[seq]
		if !s.Sources.Newer(src, seq) {
			continue
		}
		if h.Waived {
			s.Sources.Accept(src, seq)
			continue
		}
		applyAdvert(s, r, h.Advert, h.From)
	}
}

// HandleRetransmit answers a catch-up request from history. Ranges this node has passed over without
// the adverts, or has since forgotten, are reported back so the requester stops waiting for them.
// Anything past our own mark is left unanswered, it will be flooded once it arrives here. A request
// cut short by MaxRetransmitRange is followed by our newest advert, which makes the requester ask
// for the rest.
func HandleRetransmit(s *state.LSState, r Router, from, src state.NodeId, first, last uint64) {
	truncated := false
	if last-first >= MaxRetransmitRange {
		last = first + MaxRetransmitRange - 1
		truncated = true
	}
	mark, _ := s.Sources.Get(src)
	if last > mark {
		last = mark
		truncated = false
	}
	if first == 0 || first > last {
		r.Log(RetransmitServed, "nothing to answer", "from", from, "src", src, "first", first, "last", last)
		return
	}
	var missing uint64
	flush := func(end uint64) {
		if missing == 0 {
			return
		}
		r.SendToNeighbour(from, &protocol.Message{
			Kind:    protocol.KindGap,
			Origin:  s.Id,
			Subject: src,
			Seqno:   missing,
			Until:   end,
		})
		missing = 0
	}
	served := 0
	for seq := first; ; seq++ {
		if adv, ok := s.History[src][seq]; ok {
			flush(seq - 1)
			r.SendToNeighbour(from, advertMessage(adv, s.Id))
			served++
		} else if missing == 0 {
			missing = seq
		}
		if seq == last {
			break
		}
	}
	flush(last)
	if truncated {
		if newest, ok := s.Latest[src]; ok {
			top := slices.Max(slices.Collect(maps.Values(newest)))
			if top > last {
				r.SendToNeighbour(from, advertMessage(s.History[src][top], s.Id))
			}
		}
	}
	r.Log(RetransmitServed, "answered catch-up request", "from", from, "src", src, "first", first, "last", last, "served", served)
}

// RetryPending asks every neighbour again for the adverts missing in front of held ones. Requests
// already sent may have been lost with a link.
func RetryPending(s *state.LSState, r Router) {
	for _, src := range state.SortedKeys(s.Pending) {
		if len(s.Pending[src]) == 0 {
			continue
		}
		mark, _ := s.Sources.Get(src)
		first := slices.Min(slices.Collect(maps.Keys(s.Pending[src])))
		if first <= mark+1 {
			continue
		}
		for _, neigh := range state.SortedKeys(s.Neighbours) {
			r.RequestRetransmit(neigh, src, mark+1, first-1)
		}
	}
}

// HandleGap records adverts from src that from could not supply, then resumes applying held adverts.
// Only seqnos this node asked for are waived.
func HandleGap(s *state.LSState, r Router, from, src state.NodeId, first, last uint64) {
	if src == s.Id {
		return
	}
	if last-first >= MaxRetransmitRange {
		last = first + MaxRetransmitRange - 1
	}
	last = min(last, s.Wanted[src])
	if first == 0 || first > last {
		r.Log(StaleMessageDropped, "gap covers nothing we asked for", "from", from, "src", src, "first", first, "last", last)
		return
	}
	for seq := first; ; seq++ {
		if s.Sources.Newer(src, seq) {
			s.Waive(src, seq, from)
		}
		if seq == last {
			break
		}
	}
	if len(s.Pending[src]) > state.MaxPending {
		skipGap(s, r, src)
		return
	}
	drainPending(s, r, src)
}

// HandleSnapshot merges a neighbour's topology. With catch-up, no edge is taken from the snapshot:
// every source the neighbour has heard more from is replayed from its history instead, so the adverts
// are applied in order and flooded on to the rest of our side of the network. Without it, an edge is
// adopted only if this node has never accepted an advert about that link, and sequence numbers are
// adopted for sources never heard from.
func HandleSnapshot(s *state.LSState, r Router, from state.NodeId, edges []state.Edge, seqnos map[state.NodeId]uint64) {
	adopted := 0
	if !s.CatchUp {
		for _, e := range edges {
			if e.A == s.Id || e.B == s.Id {
				continue
			}
			if _, ok := s.Graph.Edge(e.A, e.B); ok || s.Knows(e.A, e.B) {
				continue
			}
			s.Graph.SetEdge(e.A, e.B, e.Cost)
			adopted++
		}
	}
	behind := 0
	for _, src := range state.SortedKeys(seqnos) {
		if src == s.Id {
			continue
		}
		mark, seen := s.Sources.Get(src)
		switch {
		case s.CatchUp && seqnos[src] > mark:
			s.Want(src, seqnos[src])
			r.RequestRetransmit(from, src, mark+1, seqnos[src])
			behind++
		case !s.CatchUp && !seen:
			s.Sources.Accept(src, seqnos[src])
		}
	}
	r.Log(SnapshotMerged, "merged topology snapshot", "from", from, "edges", adopted, "behind", behind)
}

// LSNextHop returns the first hop of the shortest path toward dst, or NoRoute. There is no next hop
// toward self.
func LSNextHop(s *state.LSState, dst state.NodeId) state.NodeId {
	path, _, ok := LSRoute(s, dst)
	if !ok || len(path) < 2 {
		return state.NoRoute
	}
	return path[1]
}

func LSRoute(s *state.LSState, dst state.NodeId) (state.Path, state.Cost, bool) {
	if dst == s.Id {
		return state.Path{s.Id}, 0, true
	}
	if !s.Graph.HasVertex(dst) {
		return nil, state.Infinity, false
	}
	dist, prev := ShortestPaths(s.Graph, s.Id)
	path, ok := PathTo(prev, s.Id, dst)
	if !ok {
		return nil, state.Infinity, false
	}
	return path, dist[dst], true
}
