package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/encodeous/ripple/core"
	"github.com/encodeous/ripple/state"
)

var ErrRouteMismatch = errors.New("route disagrees with the network")

// Mismatch is one (from, to) pair where a node's answer differs from the ground truth.
type Mismatch struct {
	From, To state.NodeId
	Want     state.Cost
	Got      state.Cost
	Reason   string
}

func (m Mismatch) Error() string {
	return fmt.Sprintf("%s -> %s: %s (want cost %s, got %s)", m.From, m.To, m.Reason, m.Want, m.Got)
}

func (m Mismatch) Unwrap() error {
	return ErrRouteMismatch
}

// Network is a set of running nodes together with the links between them.
type Network interface {
	Nodes() []state.NodeId
	NextHop(from, to state.NodeId) state.NodeId
	Route(from, to state.NodeId) (state.Path, state.Cost, bool)
	// Topology returns the links that are currently up.
	Topology() state.Topology
}

// GroundTruth runs Dijkstra from every node over the links that are currently up. Unreachable pairs
// are absent.
func GroundTruth(n Network) map[state.NodeId]map[state.NodeId]state.Cost {
	g := n.Topology()
	truth := make(map[state.NodeId]map[state.NodeId]state.Cost)
	for _, id := range n.Nodes() {
		dist, _ := core.ShortestPaths(g, id)
		truth[id] = dist
	}
	return truth
}

// Mismatches compares every node's routes with the ground truth. It checks the cost of every route,
// that unreachable destinations have no next hop, and that following next hops hop by hop over live
// links reaches the destination.
func Mismatches(n Network, cfg state.EngineCfg) []Mismatch {
	truth := GroundTruth(n)
	g := n.Topology()
	nodes := n.Nodes()
	limit := state.Infinity
	if cfg.Engine == state.DistanceVectorEngine && cfg.MaxCost > 0 {
		limit = cfg.MaxCost
	}

	var out []Mismatch
	for _, from := range nodes {
		for _, to := range nodes {
			if from == to {
				continue
			}
			want, reachable := truth[from][to]
			if reachable && want >= limit {
				reachable = false
			}
			_, got, ok := n.Route(from, to)
			nh := n.NextHop(from, to)
			switch {
			case !reachable && (ok || nh != state.NoRoute):
				out = append(out, Mismatch{From: from, To: to, Want: state.Infinity, Got: got, Reason: "route to an unreachable node"})
			case !reachable:
			case !ok || nh == state.NoRoute:
				out = append(out, Mismatch{From: from, To: to, Want: want, Got: state.Infinity, Reason: "no route"})
			case !sameCost(got, want):
				out = append(out, Mismatch{From: from, To: to, Want: want, Got: got, Reason: "cost differs"})
			default:
				if reason := walk(n, g, len(nodes), from, to); reason != "" {
					out = append(out, Mismatch{From: from, To: to, Want: want, Got: got, Reason: reason})
				}
			}
		}
	}
	return out
}

// sameCost compares costs summed in a different order, so they may differ in the last bits.
func sameCost(a, b state.Cost) bool {
	return math.Abs(float64(a-b)) <= 1e-9*math.Max(1, math.Abs(float64(b)))
}

// walk follows next hops from from toward to, as a packet would.
func walk(n Network, g state.Topology, size int, from, to state.NodeId) string {
	cur := from
	for hops := 0; cur != to; hops++ {
		if hops > size {
			return "forwarding loop"
		}
		nh := n.NextHop(cur, to)
		if nh == state.NoRoute {
			return fmt.Sprintf("black hole at %s", cur)
		}
		if _, ok := g.Edge(cur, nh); !ok {
			return fmt.Sprintf("%s forwards over a missing link to %s", cur, nh)
		}
		cur = nh
	}
	return ""
}

func (s *Sim) Mismatches() []Mismatch {
	return Mismatches(s, s.Scenario.EngineCfg)
}

// Verify returns every mismatch joined into one error, or nil when all nodes agree with the network.
func (s *Sim) Verify() error {
	if !s.Quiescent() {
		return fmt.Errorf("%w: %d events still queued", ErrNotQuiescent, s.queue.Len())
	}
	var errs []error
	for _, m := range s.Mismatches() {
		errs = append(errs, m)
	}
	return errors.Join(errs...)
}
