package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/encodeous/ripple/core"
	"github.com/encodeous/ripple/perf"
	"github.com/encodeous/ripple/protocol"
	"github.com/encodeous/ripple/state"
)

var ErrStopped = errors.New("live network stopped")

type liveNode struct {
	env      state.Env[core.Engine]
	engine   core.Engine
	dispatch chan func(core.Engine) error
}

// Live runs every node on its own goroutine, with real timers standing in for link latency.
// Unlike Sim, message interleaving is up to the scheduler.
type Live struct {
	RunId    uuid.UUID
	Scenario state.Scenario

	nodes   map[state.NodeId]*liveNode
	mu      sync.Mutex // guards links
	links   map[state.Pair[state.NodeId, state.NodeId]]*link
	log     *slog.Logger
	metrics *Metrics

	// inflight counts link changes and messages that have been scheduled but not yet handled
	inflight     atomic.Int64
	lastActivity atomic.Int64

	ctx    context.Context
	cancel context.CancelCauseFunc
	group  *errgroup.Group
}

type liveTransport struct {
	live *Live
	from state.NodeId
}

func (t liveTransport) Send(neigh state.NodeId, pkt []byte) {
	t.live.send(t.from, neigh, pkt)
}

// NewLive builds the nodes of sc. Nothing runs until Start.
func NewLive(sc state.Scenario, log *slog.Logger, metrics *Metrics) (*Live, error) {
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

	l := &Live{
		RunId:    uuid.New(),
		Scenario: sc,
		nodes:    make(map[state.NodeId]*liveNode),
		links:    make(map[state.Pair[state.NodeId, state.NodeId]]*link),
		metrics:  metrics,
	}
	l.log = log.With("run", l.RunId.String())
	for _, id := range sc.Nodes {
		e, err := core.NewNode(id, sc.EngineCfg, core.NodeOptions{
			Codec:     codec,
			Transport: liveTransport{live: l, from: id},
			Log:       l.log,
			Observer:  metrics.observe,
		})
		if err != nil {
			return nil, err
		}
		l.nodes[id] = &liveNode{engine: e, dispatch: make(chan func(core.Engine) error, state.LiveDispatchBuffer)}
	}
	return l, nil
}

// Start launches one loop per node and schedules the scenario's links and events relative to now.
func (l *Live) Start(ctx context.Context) {
	ctx, cancel := context.WithCancelCause(ctx)
	g, gctx := errgroup.WithContext(ctx)
	l.ctx, l.cancel, l.group = gctx, cancel, g
	l.touch()

	for _, id := range state.SortedKeys(l.nodes) {
		n := l.nodes[id]
		n.env = state.Env[core.Engine]{
			DispatchChannel: n.dispatch,
			Context:         gctx,
			Cancel:          cancel,
			Log:             l.log.With("node", id),
		}
		g.Go(func() error {
			return l.loop(gctx, id, n)
		})
	}

	for _, lc := range l.Scenario.Links {
		l.changeLink(lc.A, lc.B, lc.Cost, lc.Latency)
	}
	for _, e := range l.Scenario.Events {
		l.inflight.Add(1)
		time.AfterFunc(e.At, func() {
			defer l.inflight.Add(-1)
			if gctx.Err() != nil {
				return
			}
			l.changeLink(e.A, e.B, e.Cost, e.Latency)
		})
	}
	l.log.Info("live network started", "scenario", l.Scenario.String())
}

func (l *Live) loop(ctx context.Context, id state.NodeId, n *liveNode) error {
	n.env.Log.Debug("started node loop")
	for {
		select {
		case fun := <-n.dispatch:
			start := time.Now()
			err := fun(n.engine)
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			l.touch()
			if err != nil {
				return fmt.Errorf("node %s: %w", id, err)
			}
		case <-ctx.Done():
			n.env.Log.Debug("stopped node loop", "reason", context.Cause(ctx))
			return nil
		}
	}
}

func (l *Live) touch() {
	l.lastActivity.Store(time.Now().UnixNano())
}

// changeLink updates the link and queues the change on both endpoints.
func (l *Live) changeLink(a, b state.NodeId, cost state.Cost, latency time.Duration) {
	l.mu.Lock()
	key := state.MakeSortedPair(a, b)
	lk, ok := l.links[key]
	if !ok {
		lk = &link{latency: state.DefaultLinkLatency}
		l.links[key] = lk
	}
	if latency > 0 {
		lk.latency = latency
	}
	if cost.IsDeleted() {
		if lk.up {
			lk.up = false
			lk.gen++
		}
	} else {
		if !lk.up {
			lk.up = true
			lk.gen++
		}
		lk.cost = cost
	}
	l.mu.Unlock()

	l.metrics.linkChanged()
	perf.LinkChangesPerSecond.Add(1)
	for _, pair := range [][2]state.NodeId{{a, b}, {b, a}} {
		self, neigh := pair[0], pair[1]
		l.inflight.Add(1)
		l.nodes[self].env.Dispatch(func(e core.Engine) error {
			defer l.inflight.Add(-1)
			return e.LinkChanged(neigh, cost)
		})
	}
}

func (l *Live) send(from, to state.NodeId, pkt []byte) {
	l.metrics.sent(from)
	perf.MessagesPerSecond.Add(1)
	perf.BytesPerSecond.Add(float64(len(pkt)))
	perf.MessageSize.Add(float64(len(pkt)))

	l.mu.Lock()
	lk, ok := l.links[state.MakeSortedPair(from, to)]
	up := ok && lk.up
	var latency time.Duration
	var gen uint64
	if up {
		latency, gen = lk.latency, lk.gen
	}
	l.mu.Unlock()
	if !up {
		l.drop(from, to, "no link")
		return
	}

	l.inflight.Add(1)
	l.nodes[to].env.ScheduleTask(func(e core.Engine) error {
		defer l.inflight.Add(-1)
		l.mu.Lock()
		lk := l.links[state.MakeSortedPair(from, to)]
		alive := lk.up && lk.gen == gen
		l.mu.Unlock()
		if !alive {
			l.drop(from, to, "link went down in flight")
			return nil
		}
		l.metrics.delivered(to)
		if err := e.MessageReceived(pkt); err != nil {
			l.metrics.rejected(to)
			l.log.Warn("node rejected message", "node", to, "from", from, "err", err)
		}
		return nil
	}, latency)
}

func (l *Live) drop(from, to state.NodeId, reason string) {
	l.metrics.dropped(from)
	perf.DropsPerSecond.Add(1)
	l.log.Debug("message dropped", "from", from, "to", to, "reason", reason)
}

// Quiescent reports whether nothing is scheduled and no node has done any work for the quiescent period.
func (l *Live) Quiescent() bool {
	idle := time.Since(time.Unix(0, l.lastActivity.Load()))
	return l.inflight.Load() == 0 && idle >= state.LiveQuiescentPeriod
}

// WaitQuiescent blocks until the network is quiescent, a node fails, or ctx is done.
func (l *Live) WaitQuiescent(ctx context.Context) error {
	t := time.NewTicker(state.LiveQuiescentPeriod / 4)
	defer t.Stop()
	for {
		if l.Quiescent() {
			return nil
		}
		select {
		case <-t.C:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w, %d still in flight", ErrNotQuiescent, context.Cause(ctx), l.inflight.Load())
		case <-l.ctx.Done():
			return fmt.Errorf("%w: %w", ErrStopped, context.Cause(l.ctx))
		}
	}
}

// Stop cancels every node loop and returns the first error any of them failed with.
func (l *Live) Stop() error {
	l.cancel(ErrStopped)
	return l.group.Wait()
}

// Inject changes a link now.
func (l *Live) Inject(a, b state.NodeId, cost state.Cost) error {
	if err := state.CheckCost(cost); err != nil {
		return err
	}
	if a == b {
		return fmt.Errorf("%w: link %s-%s is a self loop", state.ErrInvalidConfig, a, b)
	}
	for _, n := range []state.NodeId{a, b} {
		if _, ok := l.nodes[n]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownNode, n)
		}
	}
	l.changeLink(a, b, cost, 0)
	return nil
}

func (l *Live) query(id state.NodeId, fun func(core.Engine) any) (any, error) {
	n, ok := l.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	perf.RouteQueriesPerSecond.Add(1)
	return n.env.DispatchWait(func(e core.Engine) (any, error) {
		return fun(e), nil
	})
}

func (l *Live) Nodes() []state.NodeId {
	return state.SortedKeys(l.nodes)
}

func (l *Live) NextHop(from, to state.NodeId) state.NodeId {
	res, err := l.query(from, func(e core.Engine) any {
		return e.NextHop(to)
	})
	if err != nil {
		return state.NoRoute
	}
	return res.(state.NodeId)
}

type liveRoute struct {
	path state.Path
	cost state.Cost
	ok   bool
}

func (l *Live) Route(from, to state.NodeId) (state.Path, state.Cost, bool) {
	res, err := l.query(from, func(e core.Engine) any {
		path, cost, ok := e.Route(to)
		return liveRoute{path, cost, ok}
	})
	if err != nil {
		return nil, state.Infinity, false
	}
	r := res.(liveRoute)
	return r.path, r.cost, r.ok
}

func (l *Live) Dump(id state.NodeId) (string, error) {
	res, err := l.query(id, func(e core.Engine) any {
		return e.Dump()
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (l *Live) Topology() state.Topology {
	l.mu.Lock()
	defer l.mu.Unlock()
	g := make(state.Topology)
	for key, lk := range l.links {
		if lk.up {
			g.SetEdge(key.V1, key.V2, lk.cost)
		}
	}
	return g
}

// Verify compares every node with the network. The network should be quiescent.
func (l *Live) Verify() error {
	var errs []error
	for _, m := range Mismatches(l, l.Scenario.EngineCfg) {
		errs = append(errs, m)
	}
	return errors.Join(errs...)
}
