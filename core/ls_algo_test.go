package core

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encodeous/ripple/state"
)

func adv(src, dst state.NodeId, cost state.Cost, seqno uint64) state.Advert {
	return state.Advert{Source: src, Destination: dst, Cost: cost, Seqno: seqno}
}

func TestLSLinkChangedFloodsAndSnapshots(t *testing.T) {
	h := &RouterHarness{}
	s := state.NewLSState("a", true)

	require.NoError(t, HandleLSLinkChanged(s, h, "b", 2))
	assert.Equal(t, `BROADCAST advert (src: a, dst: b, cost: 2, seqno: 1, fwd: a)
SEND b snapshot (from: a, edges: 1, sources: 1)`, h.GetActions().String())

	require.NoError(t, HandleLSLinkChanged(s, h, "c", 3))
	assert.Equal(t, `BROADCAST advert (src: a, dst: c, cost: 3, seqno: 2, fwd: a)
SEND c snapshot (from: a, edges: 2, sources: 1)`, h.GetActions().String())

	// known neighbours get no snapshot
	require.NoError(t, HandleLSLinkChanged(s, h, "b", 4))
	assert.Equal(t, `BROADCAST advert (src: a, dst: b, cost: 4, seqno: 3, fwd: a)`, h.GetActions().String())

	cost, ok := s.Graph.Edge("b", "a")
	assert.True(t, ok)
	assert.Equal(t, state.Cost(4), cost)
	assert.True(t, s.Graph.Symmetric())
	assert.Equal(t, uint64(3), s.History["a"][3].Seqno)
}

func TestLSLinkRemovalPrunes(t *testing.T) {
	h := &RouterHarness{}
	s := state.NewLSState("a", true)
	require.NoError(t, HandleLSLinkChanged(s, h, "b", 2))
	require.NoError(t, HandleLSLinkChanged(s, h, "c", 3))
	h.GetActions()

	require.NoError(t, HandleLSLinkChanged(s, h, "c", state.LinkDeleted))
	assert.Equal(t, `BROADCAST advert (src: a, dst: c, cost: -1, seqno: 3, fwd: a)`, h.GetActions().String())
	assert.False(t, s.Graph.HasVertex("c"))
	assert.False(t, s.IsNeighbour("c"))
	assert.Equal(t, state.NoRoute, LSNextHop(s, "c"))

	require.NoError(t, HandleLSLinkChanged(s, h, "b", state.LinkDeleted))
	assert.Empty(t, s.Graph)
}

func TestLSRejectsInvalidCost(t *testing.T) {
	h := &RouterHarness{}
	s := state.NewLSState("a", true)
	assert.ErrorIs(t, HandleLSLinkChanged(s, h, "b", -3), state.ErrInvalidCost)
	assert.ErrorIs(t, HandleLSLinkChanged(s, h, "a", 1), state.ErrInvalidCost)
	assert.Equal(t, uint64(0), s.Seqno)
	assert.Empty(t, h.GetActions())
}

func lsWithNeighbours(t *testing.T, catchUp bool, neighs ...state.NodeId) (*state.LSState, *RouterHarness) {
	h := &RouterHarness{}
	s := state.NewLSState("a", catchUp)
	for _, n := range neighs {
		require.NoError(t, HandleLSLinkChanged(s, h, n, 1))
	}
	h.GetActions()
	return s, h
}

func TestLSAdvertFloodsExceptSender(t *testing.T) {
	s, h := lsWithNeighbours(t, true, "b", "c")

	HandleAdvert(s, h, adv("x", "y", 3, 1), "b")
	a := h.GetActions()
	assert.Equal(t, `SEND c advert (src: x, dst: y, cost: 3, seqno: 1, fwd: a)`, a.String())
	a.AssertNotContains(t, "SEND", state.NodeId("b"))

	cost, ok := s.Graph.Edge("y", "x")
	assert.True(t, ok)
	assert.Equal(t, state.Cost(3), cost)
	assert.Equal(t, uint64(1), s.Sources["x"])
}

func TestLSDuplicateAdvertIsIdempotent(t *testing.T) {
	s, h := lsWithNeighbours(t, true, "b", "c")
	HandleAdvert(s, h, adv("x", "y", 3, 1), "b")
	h.GetActions()
	graph := s.Graph.Clone()
	sources := s.Sources.Clone()

	HandleAdvert(s, h, adv("x", "y", 3, 1), "c")
	assert.Equal(t, []RouterEvent{StaleMessageDropped}, h.GetEvents())
	if diff := cmp.Diff(graph, s.Graph); diff != "" {
		t.Fatalf("duplicate changed the topology (-want +got):\n%s", diff)
	}
	assert.Equal(t, sources, s.Sources)
}

func TestLSOlderAdvertHasNoEffect(t *testing.T) {
	s, h := lsWithNeighbours(t, false, "b")
	HandleAdvert(s, h, adv("x", "y", 3, 5), "b")
	graph := s.Graph.Clone()

	HandleAdvert(s, h, adv("x", "y", 9, 3), "b")
	assert.Equal(t, graph, s.Graph)
	assert.Equal(t, uint64(5), s.Sources["x"])
}

func TestLSDeletionAdvertPrunes(t *testing.T) {
	s, h := lsWithNeighbours(t, true, "b")
	HandleAdvert(s, h, adv("x", "y", 3, 1), "b")
	HandleAdvert(s, h, adv("x", "y", state.LinkDeleted, 2), "b")
	assert.False(t, s.Graph.HasVertex("x"))
	assert.False(t, s.Graph.HasVertex("y"))
}

func TestLSDropsOwnAdverts(t *testing.T) {
	s, h := lsWithNeighbours(t, true, "b")
	HandleAdvert(s, h, adv("a", "z", 3, 9), "b")
	assert.Equal(t, []RouterEvent{StaleMessageDropped}, h.GetEvents())
	assert.Equal(t, uint64(1), s.Sources["a"])
	assert.False(t, s.Graph.HasVertex("z"))
}

func TestLSOwnsIncidentEdges(t *testing.T) {
	s, h := lsWithNeighbours(t, true, "b")
	HandleAdvert(s, h, adv("b", "a", 7, 1), "b")
	cost, _ := s.Graph.Edge("a", "b")
	assert.Equal(t, state.Cost(1), cost)
	assert.Equal(t, uint64(1), s.Sources["b"])
}

func TestLSCatchUpHoldsAndDrains(t *testing.T) {
	s, h := lsWithNeighbours(t, true, "b")
	HandleAdvert(s, h, adv("x", "y", 1, 1), "b")
	h.GetActions()

	HandleAdvert(s, h, adv("x", "y", 3, 3), "b")
	assert.Equal(t, `REQUEST_RETRANSMIT b x 2 2`, h.GetActions().String())
	cost, _ := s.Graph.Edge("x", "y")
	assert.Equal(t, state.Cost(1), cost, "held advert must not be applied yet")
	assert.Equal(t, uint64(1), s.Sources["x"])

	HandleAdvert(s, h, adv("x", "z", 2, 2), "b")
	assert.Equal(t, uint64(3), s.Sources["x"])
	cost, _ = s.Graph.Edge("x", "y")
	assert.Equal(t, state.Cost(3), cost)
	_, ok := s.Graph.Edge("z", "x")
	assert.True(t, ok)
	assert.Empty(t, s.Pending)
}

func TestLSWithoutCatchUpSkipsGaps(t *testing.T) {
	s, h := lsWithNeighbours(t, false, "b")
	HandleAdvert(s, h, adv("x", "y", 1, 1), "b")
	HandleAdvert(s, h, adv("x", "y", 3, 3), "b")
	assert.Empty(t, h.GetActions())
	assert.Equal(t, uint64(3), s.Sources["x"])
	assert.Empty(t, s.Pending)
}

func TestLSGapReplyUnblocks(t *testing.T) {
	s, h := lsWithNeighbours(t, true, "b")
	HandleAdvert(s, h, adv("x", "y", 1, 1), "b")
	HandleAdvert(s, h, adv("x", "y", 3, 3), "b")
	h.GetActions()

	HandleGap(s, h, "b", "x", 2, 2)
	events := h.GetEvents()
	assert.Contains(t, events, GapSkipped)
	assert.Contains(t, events, AdvertAccepted)
	assert.Equal(t, uint64(3), s.Sources["x"])
	assert.Empty(t, s.Pending)
}

func TestLSGapSkippedAfterMaxPending(t *testing.T) {
	s, h := lsWithNeighbours(t, true, "b")
	HandleAdvert(s, h, adv("x", "y", 1, 1), "b")

	last := uint64(3 + state.MaxPending)
	for seq := uint64(3); seq <= last; seq++ {
		HandleAdvert(s, h, adv("x", "y", state.Cost(seq), seq), "b")
	}
	assert.Contains(t, h.GetEvents(), GapSkipped)
	assert.Equal(t, last, s.Sources["x"])
	assert.Empty(t, s.Pending)
	cost, _ := s.Graph.Edge("x", "y")
	assert.Equal(t, state.Cost(last), cost)
}

func TestLSServesRetransmit(t *testing.T) {
	s, h := lsWithNeighbours(t, false, "b", "c")
	HandleAdvert(s, h, adv("x", "y", 1, 1), "b")
	HandleAdvert(s, h, adv("x", "y", 3, 3), "b")
	h.GetActions()

	HandleRetransmit(s, h, "c", "x", 1, 4)
	assert.Equal(t, `SEND c advert (src: x, dst: y, cost: 1, seqno: 1, fwd: a)
SEND c advert (src: x, dst: y, cost: 3, seqno: 3, fwd: a)
SEND c gap (from: a, src: x, seqno: 2..2)`, h.GetActions().String())
}

func TestLSRetransmitPastMarkIsNotAnswered(t *testing.T) {
	s, h := lsWithNeighbours(t, true, "b", "c")
	HandleAdvert(s, h, adv("x", "y", 1, 1), "b")
	h.GetActions()

	HandleRetransmit(s, h, "c", "x", 2, 5)
	assert.Equal(t, []RouterEvent{RetransmitServed}, h.GetEvents())
	HandleRetransmit(s, h, "c", "x", 2, 5)
	assert.Empty(t, h.GetActions())
}

func TestLSRetryPendingAsksEveryNeighbour(t *testing.T) {
	s, h := lsWithNeighbours(t, true, "b", "c")
	HandleAdvert(s, h, adv("x", "y", 1, 1), "b")
	HandleAdvert(s, h, adv("x", "y", 4, 4), "b")
	HandleAdvert(s, h, adv("x", "y", 5, 5), "b")
	h.GetActions()

	RetryPending(s, h)
	assert.Equal(t, `REQUEST_RETRANSMIT b x 2 3
REQUEST_RETRANSMIT c x 2 3`, h.GetActions().String())
}

func TestLSSnapshotIsReplayedWithCatchUp(t *testing.T) {
	s, h := lsWithNeighbours(t, true, "b")
	HandleAdvert(s, h, adv("x", "y", 1, 1), "b")
	h.GetActions()

	HandleSnapshot(s, h, "b", []state.Edge{
		{A: "x", B: "y", Cost: 9},
		{A: "y", B: "z", Cost: 2},
		{A: "a", B: "q", Cost: 5},
	}, map[state.NodeId]uint64{"x": 7, "z": 3, "a": 9})

	// edges only arrive through the replayed adverts
	cost, _ := s.Graph.Edge("x", "y")
	assert.Equal(t, state.Cost(1), cost)
	assert.False(t, s.Graph.HasVertex("z"))
	assert.False(t, s.Graph.HasVertex("q"))

	assert.Equal(t, `REQUEST_RETRANSMIT b x 2 7
REQUEST_RETRANSMIT b z 1 3`, h.GetActions().String())
	assert.Equal(t, uint64(1), s.Sources["x"])
	assert.NotContains(t, s.Sources, state.NodeId("z"))
	assert.Equal(t, uint64(1), s.Sources["a"])
	assert.Equal(t, uint64(7), s.Wanted["x"])
	assert.Equal(t, uint64(3), s.Wanted["z"])
}

func TestLSSnapshotFillsGapsOnlyWithoutCatchUp(t *testing.T) {
	s, h := lsWithNeighbours(t, false, "b", "e")
	HandleAdvert(s, h, adv("x", "y", 1, 1), "b")
	HandleAdvert(s, h, adv("c", "d", 1, 1), "b")
	HandleAdvert(s, h, adv("c", "d", state.LinkDeleted, 2), "b")
	h.GetActions()

	HandleSnapshot(s, h, "e", []state.Edge{
		{A: "x", B: "y", Cost: 9},
		{A: "y", B: "z", Cost: 2},
		{A: "c", B: "d", Cost: 1},
		{A: "a", B: "q", Cost: 5},
	}, nil)

	cost, _ := s.Graph.Edge("x", "y")
	assert.Equal(t, state.Cost(1), cost, "local knowledge wins")
	cost, ok := s.Graph.Edge("z", "y")
	assert.True(t, ok)
	assert.Equal(t, state.Cost(2), cost)
	_, ok = s.Graph.Edge("c", "d")
	assert.False(t, ok, "a link we saw go down must stay down")
	assert.False(t, s.Graph.HasVertex("q"))
	assert.True(t, s.Graph.Symmetric())
}

func TestLSSnapshotAfterDeletionKeepsLinkDown(t *testing.T) {
	s, h := lsWithNeighbours(t, true, "b", "e")
	HandleAdvert(s, h, adv("c", "d", 1, 1), "b")
	HandleAdvert(s, h, adv("c", "d", state.LinkDeleted, 2), "b")
	h.GetActions()

	// e has not heard of the deletion yet
	HandleSnapshot(s, h, "e", []state.Edge{{A: "c", B: "d", Cost: 1}}, map[state.NodeId]uint64{"c": 1})
	assert.Empty(t, h.GetActions())
	HandleAdvert(s, h, adv("c", "d", state.LinkDeleted, 2), "e")

	_, ok := s.Graph.Edge("c", "d")
	assert.False(t, ok)
	assert.Equal(t, state.NoRoute, LSNextHop(s, "d"))
}

func TestLSSnapshotAdoptsSourcesWithoutCatchUp(t *testing.T) {
	s, h := lsWithNeighbours(t, false, "b")
	HandleAdvert(s, h, adv("x", "y", 1, 1), "b")
	h.GetActions()

	HandleSnapshot(s, h, "b", []state.Edge{{A: "y", B: "z", Cost: 2}}, map[state.NodeId]uint64{"x": 7, "z": 3})
	assert.Empty(t, h.GetActions())
	assert.Equal(t, uint64(1), s.Sources["x"])
	assert.Equal(t, uint64(3), s.Sources["z"])
}

func TestLSGapOnlyWaivesWhatWasAsked(t *testing.T) {
	s, h := lsWithNeighbours(t, true, "b")
	HandleAdvert(s, h, adv("x", "y", 1, 1), "b")
	HandleAdvert(s, h, adv("x", "y", 5, 5), "b")
	h.GetActions()

	HandleGap(s, h, "b", "x", 2, 900)
	assert.Equal(t, uint64(5), s.Sources["x"])
	assert.Empty(t, s.Pending)

	// nothing past 5 was asked for
	HandleGap(s, h, "b", "x", 6, 8)
	assert.Empty(t, s.Pending)
	assert.Equal(t, uint64(5), s.Sources["x"])
	HandleAdvert(s, h, adv("x", "z", 2, 6), "b")
	_, ok := s.Graph.Edge("x", "z")
	assert.True(t, ok)
}

func TestLSRangesAtTheTopOfSeqnoSpace(t *testing.T) {
	s, h := lsWithNeighbours(t, true, "b", "c")
	top := uint64(math.MaxUint64)

	HandleGap(s, h, "b", "x", top-2, top)
	assert.Equal(t, []RouterEvent{StaleMessageDropped}, h.GetEvents())
	assert.Empty(t, s.Pending)

	s.Sources.Accept("x", top)
	s.Remember(adv("x", "y", 1, top))
	HandleRetransmit(s, h, "c", "x", top-2, top)
	assert.Equal(t, fmt.Sprintf(`SEND c advert (src: x, dst: y, cost: 1, seqno: %d, fwd: a)
SEND c gap (from: a, src: x, seqno: %d..%d)`, top, top-2, top-1), h.GetActions().String())
}

func TestLSLongReplayIsChunked(t *testing.T) {
	s, h := lsWithNeighbours(t, false, "b", "c")
	last := MaxRetransmitRange + 100
	for seq := uint64(1); seq <= last; seq++ {
		HandleAdvert(s, h, adv("x", state.NodeId(fmt.Sprint("y", seq%7)), 1, seq), "b")
	}
	h.GetActions()

	HandleRetransmit(s, h, "c", "x", 1, last)
	out := h.GetActions().String()
	// the first chunk, then the newest advert so c asks for the rest
	assert.Equal(t, int(MaxRetransmitRange)+1, strings.Count(out, "SEND c advert"))
	assert.Contains(t, out, fmt.Sprintf("seqno: %d, fwd: a)", last))
	assert.NotContains(t, out, fmt.Sprintf("seqno: %d, fwd: a)", MaxRetransmitRange+1))
}

func TestLSForgottenAdvertsAreReportedAsGaps(t *testing.T) {
	defer func(w uint64) { state.HistoryWindow = w }(state.HistoryWindow)
	state.HistoryWindow = 4

	s, h := lsWithNeighbours(t, false, "b", "c")
	for seq := uint64(1); seq <= 10; seq++ {
		HandleAdvert(s, h, adv("x", "y", state.Cost(seq), seq), "b")
	}
	h.GetActions()

	HandleRetransmit(s, h, "c", "x", 1, 10)
	out := h.GetActions().String()
	assert.Equal(t, 5, strings.Count(out, "SEND c advert"))
	assert.Contains(t, out, "SEND c gap (from: a, src: x, seqno: 1..5)")
}

func TestLSHoldsFirstAdvertsOutOfOrder(t *testing.T) {
	s, h := lsWithNeighbours(t, true, "b")
	HandleAdvert(s, h, adv("x", "w", 4, 2), "b")
	assert.Equal(t, `REQUEST_RETRANSMIT b x 1 1`, h.GetActions().String())
	assert.False(t, s.Graph.HasVertex("x"))

	HandleAdvert(s, h, adv("x", "y", 1, 1), "b")
	assert.Equal(t, uint64(2), s.Sources["x"])
	assert.True(t, s.Graph.HasVertex("w"))
	assert.True(t, s.Graph.HasVertex("y"))
}

func TestLSNextHopFourNodes(t *testing.T) {
	build := func(self state.NodeId) *state.LSState {
		s := state.NewLSState(self, true)
		for _, e := range []state.Edge{{A: "0", B: "1", Cost: 2}, {A: "1", B: "2", Cost: 2}, {A: "2", B: "0", Cost: 2}, {A: "0", B: "3", Cost: 100}} {
			s.Graph.SetEdge(e.A, e.B, e.Cost)
		}
		return s
	}

	s0 := build("0")
	assert.Equal(t, state.NodeId("3"), LSNextHop(s0, "3"))
	assert.Equal(t, state.NoRoute, LSNextHop(s0, "0"))
	s1 := build("1")
	assert.Equal(t, state.NodeId("0"), LSNextHop(s1, "3"))
	path, cost, ok := LSRoute(s1, "3")
	assert.True(t, ok)
	assert.Equal(t, state.Path{"1", "0", "3"}, path)
	assert.Equal(t, state.Cost(102), cost)

	s2 := build("2")
	s2.Graph.SetEdge("0", "3", 5)
	s2.Graph.RemoveEdge("0", "2")
	path, cost, ok = LSRoute(s2, "3")
	assert.True(t, ok)
	assert.Equal(t, state.Path{"2", "1", "0", "3"}, path)
	assert.Equal(t, state.Cost(9), cost)
	assert.Equal(t, state.NodeId("1"), LSNextHop(s2, "3"))
	assert.Equal(t, state.NoRoute, LSNextHop(s2, "9"))
}

func TestLSTopologyStaysSymmetric(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	ids := []state.NodeId{"b", "c", "x", "y", "z"}
	s, h := lsWithNeighbours(t, false, "b")
	seqs := make(map[state.NodeId]uint64)

	for range 500 {
		src := ids[rng.IntN(len(ids))]
		dst := ids[rng.IntN(len(ids))]
		if src == dst {
			continue
		}
		cost := state.Cost(rng.IntN(10))
		if rng.IntN(4) == 0 {
			cost = state.LinkDeleted
		}
		if rng.IntN(10) == 0 {
			require.NoError(t, HandleLSLinkChanged(s, h, src, cost))
		} else {
			seqs[src]++
			HandleAdvert(s, h, adv(src, dst, cost, seqs[src]), "b")
		}
		require.True(t, s.Graph.Symmetric(), "asymmetric topology:\n%s", s.Graph)
	}
}
