package sim

import (
	"container/heap"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/encodeous/ripple/core"
	"github.com/encodeous/ripple/protocol"
	"github.com/encodeous/ripple/state"
)

var (
	ErrNotQuiescent = errors.New("simulation did not quiesce")
	ErrUnknownNode  = errors.New("unknown node")
)

type link struct {
	cost    state.Cost
	latency time.Duration
	up      bool
	// gen changes every time the link goes down or comes back up; packets from an older generation are lost
	gen uint64
}

type Stats struct {
	Sent        int
	Delivered   int
	Dropped     int
	Rejected    int
	LinkChanges int
}

func (s Stats) String() string {
	return fmt.Sprintf("sent %d, delivered %d, dropped %d, rejected %d, link changes %d",
		s.Sent, s.Delivered, s.Dropped, s.Rejected, s.LinkChanges)
}

// Sim is a single threaded discrete event simulation of a network of routing nodes.
// Nodes only ever see link changes and packets, in simulated time order.
type Sim struct {
	RunId    uuid.UUID
	Scenario state.Scenario
	Now      time.Duration
	Stats    Stats

	nodes     map[state.NodeId]core.Engine
	links     map[state.Pair[state.NodeId, state.NodeId]]*link
	queue     eventQueue
	seq       uint64
	processed int
	rng       *rand.Rand
	log       *slog.Logger
	metrics   *Metrics
}

type simTransport struct {
	sim  *Sim
	from state.NodeId
}

func (t simTransport) Send(neigh state.NodeId, pkt []byte) {
	t.sim.send(t.from, neigh, pkt)
}

// New builds the nodes of sc and schedules its links at time zero, followed by its events.
// metrics may be nil.
func New(sc state.Scenario, log *slog.Logger, metrics *Metrics) (*Sim, error) {
	if err := state.ExpandScenario(&sc); err != nil {
		return nil, err
	}
	if err := state.ScenarioValidator(&sc); err != nil {
		return nil, err
	}
	reg, err := protocol.NewRegistry()
	if err != nil {
		return nil, err
	}
	codec, err := reg.Get(sc.Codec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", state.ErrInvalidConfig, err)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	s := &Sim{
		RunId:    uuid.New(),
		Scenario: sc,
		nodes:    make(map[state.NodeId]core.Engine),
		links:    make(map[state.Pair[state.NodeId, state.NodeId]]*link),
		rng:      rand.New(rand.NewPCG(sc.Seed, sc.Seed^0x9e3779b97f4a7c15)),
		metrics:  metrics,
	}
	s.log = log.With("run", s.RunId.String())

	for _, id := range sc.Nodes {
		n, err := core.NewNode(id, sc.EngineCfg, core.NodeOptions{
			Codec:     codec,
			Transport: simTransport{sim: s, from: id},
			Log:       s.log,
			Observer:  metrics.observe,
		})
		if err != nil {
			return nil, err
		}
		s.nodes[id] = n
	}
	for _, l := range sc.Links {
		s.schedule(&event{at: 0, kind: linkEvent, a: l.A, b: l.B, cost: l.Cost, latency: l.Latency})
	}
	for _, e := range sc.Events {
		s.schedule(&event{at: e.At, kind: linkEvent, a: e.A, b: e.B, cost: e.Cost, latency: e.Latency})
	}
	s.log.Info("simulation ready", "scenario", sc.String())
	return s, nil
}

func (s *Sim) schedule(ev *event) {
	s.seq++
	ev.seq = s.seq
	heap.Push(&s.queue, ev)
}

func (s *Sim) send(from, to state.NodeId, pkt []byte) {
	s.Stats.Sent++
	s.metrics.sent(from)
	l, ok := s.links[state.MakeSortedPair(from, to)]
	if !ok || !l.up {
		s.drop(from, to, "no link")
		return
	}
	delay := l.latency
	if s.Scenario.Jitter > 0 {
		delay += time.Duration(s.rng.Int64N(int64(s.Scenario.Jitter)))
	}
	s.schedule(&event{at: s.Now + delay, kind: deliverEvent, from: from, to: to, pkt: pkt, gen: l.gen})
}

func (s *Sim) drop(from, to state.NodeId, reason string) {
	s.Stats.Dropped++
	s.metrics.dropped(from)
	s.log.Debug("message dropped", "from", from, "to", to, "reason", reason)
}

// Inject schedules a link change at simulated time at, which must not be in the past.
func (s *Sim) Inject(at time.Duration, a, b state.NodeId, cost state.Cost) error {
	if err := state.CheckCost(cost); err != nil {
		return err
	}
	if a == b {
		return fmt.Errorf("%w: link %s-%s is a self loop", state.ErrInvalidConfig, a, b)
	}
	for _, n := range []state.NodeId{a, b} {
		if _, ok := s.nodes[n]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownNode, n)
		}
	}
	if at < s.Now {
		return fmt.Errorf("%w: link change at %s is before the current time %s", state.ErrInvalidConfig, at, s.Now)
	}
	s.schedule(&event{at: at, kind: linkEvent, a: a, b: b, cost: cost})
	return nil
}

// Deliver hands pkt to a node immediately, bypassing the links.
func (s *Sim) Deliver(to state.NodeId, pkt []byte) error {
	n, ok := s.nodes[to]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, to)
	}
	return n.MessageReceived(pkt)
}

// Run processes events until none are left. It fails with ErrNotQuiescent if the scenario's event
// budget runs out first.
func (s *Sim) Run() error {
	return s.run(func(*event) bool { return true })
}

// RunUntil processes every event scheduled at or before t, then advances the clock to t.
func (s *Sim) RunUntil(t time.Duration) error {
	if err := s.run(func(ev *event) bool { return ev.at <= t }); err != nil {
		return err
	}
	s.Now = max(s.Now, t)
	return nil
}

func (s *Sim) run(cond func(*event) bool) error {
	for s.queue.Len() > 0 && cond(s.queue[0]) {
		if s.processed >= s.Scenario.MaxEvents {
			return fmt.Errorf("%w: %d events processed, %d still queued at %s",
				ErrNotQuiescent, s.processed, s.queue.Len(), s.Now)
		}
		ev := heap.Pop(&s.queue).(*event)
		s.processed++
		s.Now = ev.at
		if err := s.process(ev); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.ConvergenceSeconds.Set(s.Now.Seconds())
		}
	}
	return nil
}

func (s *Sim) process(ev *event) error {
	switch ev.kind {
	case linkEvent:
		return s.changeLink(ev)
	case deliverEvent:
		l, ok := s.links[state.MakeSortedPair(ev.from, ev.to)]
		if !ok || !l.up || l.gen != ev.gen {
			s.drop(ev.from, ev.to, "link went down in flight")
			return nil
		}
		s.Stats.Delivered++
		s.metrics.delivered(ev.to)
		if err := s.nodes[ev.to].MessageReceived(ev.pkt); err != nil {
			s.Stats.Rejected++
			s.metrics.rejected(ev.to)
			s.log.Warn("node rejected message", "node", ev.to, "from", ev.from, "err", err)
		}
	}
	return nil
}

// changeLink updates the link, then tells both endpoints in the same instant.
func (s *Sim) changeLink(ev *event) error {
	key := state.MakeSortedPair(ev.a, ev.b)
	l, ok := s.links[key]
	if !ok {
		l = &link{latency: state.DefaultLinkLatency}
		s.links[key] = l
	}
	if ev.latency > 0 {
		l.latency = ev.latency
	}
	if ev.cost.IsDeleted() {
		if l.up {
			l.up = false
			l.gen++
		}
	} else {
		if !l.up {
			l.up = true
			l.gen++
		}
		l.cost = ev.cost
	}

	s.Stats.LinkChanges++
	s.metrics.linkChanged()
	s.log.Debug("link changed", "a", ev.a, "b", ev.b, "cost", ev.cost, "at", s.Now)
	if err := s.nodes[ev.a].LinkChanged(ev.b, ev.cost); err != nil {
		return fmt.Errorf("node %s: %w", ev.a, err)
	}
	if err := s.nodes[ev.b].LinkChanged(ev.a, ev.cost); err != nil {
		return fmt.Errorf("node %s: %w", ev.b, err)
	}
	return nil
}

// Quiescent reports whether nothing is left to process.
func (s *Sim) Quiescent() bool {
	return s.queue.Len() == 0
}

func (s *Sim) Nodes() []state.NodeId {
	return state.SortedKeys(s.nodes)
}

func (s *Sim) Node(id state.NodeId) (core.Engine, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

func (s *Sim) NextHop(from, to state.NodeId) state.NodeId {
	n, ok := s.nodes[from]
	if !ok {
		return state.NoRoute
	}
	return n.NextHop(to)
}

func (s *Sim) Route(from, to state.NodeId) (state.Path, state.Cost, bool) {
	n, ok := s.nodes[from]
	if !ok {
		return nil, state.Infinity, false
	}
	return n.Route(to)
}

func (s *Sim) Dump(id state.NodeId) (string, error) {
	n, ok := s.nodes[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	return n.Dump(), nil
}

// Topology returns the links that are currently up.
func (s *Sim) Topology() state.Topology {
	g := make(state.Topology)
	for key, l := range s.links {
		if l.up {
			g.SetEdge(key.V1, key.V2, l.cost)
		}
	}
	return g
}
