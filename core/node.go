package core

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jellydator/ttlcache/v3"

	"github.com/encodeous/ripple/protocol"
	"github.com/encodeous/ripple/state"
)

// Transport carries encoded messages to a neighbour. It is supplied by whatever hosts the node.
type Transport interface {
	Send(neigh state.NodeId, pkt []byte)
}

// Engine is a routing node, driven by link changes and inbound messages.
// NextHop, Route and Dump never mutate state or send anything.
type Engine interface {
	Id() state.NodeId
	LinkChanged(neigh state.NodeId, cost state.Cost) error
	MessageReceived(pkt []byte) error
	NextHop(dst state.NodeId) state.NodeId
	Route(dst state.NodeId) (state.Path, state.Cost, bool)
	Dump() string
}

type NodeOptions struct {
	Codec     protocol.Codec
	Transport Transport
	Log       *slog.Logger
	// Observer, if set, sees every router event before it is logged
	Observer func(id state.NodeId, event RouterEvent)
}

func NewNode(id state.NodeId, cfg state.EngineCfg, opts NodeOptions) (Engine, error) {
	switch cfg.Engine {
	case state.DistanceVectorEngine:
		return NewDVNode(id, cfg, opts), nil
	case state.LinkStateEngine, "":
		return NewLSNode(id, cfg, opts), nil
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", state.ErrInvalidConfig, cfg.Engine)
	}
}

// node implements Router on top of a Transport.
type node struct {
	id         state.NodeId
	opts       NodeOptions
	neighbours func() map[state.NodeId]state.Cost
	// RetransmitDedup holds the last range requested per (neighbour, source)
	RetransmitDedup *ttlcache.Cache[state.Pair[state.NodeId, state.NodeId], state.Pair[uint64, uint64]]
}

func newNode(id state.NodeId, opts NodeOptions, neighbours func() map[state.NodeId]state.Cost) node {
	if opts.Codec == nil {
		opts.Codec = protocol.Proto()
	}
	if opts.Log == nil {
		opts.Log = slog.New(slog.DiscardHandler)
	}
	opts.Log = opts.Log.With("node", id)
	return node{
		id:         id,
		opts:       opts,
		neighbours: neighbours,
		RetransmitDedup: ttlcache.New[state.Pair[state.NodeId, state.NodeId], state.Pair[uint64, uint64]](
			ttlcache.WithTTL[state.Pair[state.NodeId, state.NodeId], state.Pair[uint64, uint64]](state.RetransmitDedupTTL),
			ttlcache.WithDisableTouchOnHit[state.Pair[state.NodeId, state.NodeId], state.Pair[uint64, uint64]](),
		),
	}
}

func (n *node) Id() state.NodeId {
	return n.id
}

func (n *node) SendToNeighbour(neigh state.NodeId, msg *protocol.Message) {
	pkt, err := protocol.Encode(n.opts.Codec, msg)
	if err != nil {
		n.Log(InconsistentState, "failed to encode message", "kind", msg.Kind, "err", err)
		return
	}
	if n.opts.Transport != nil {
		n.opts.Transport.Send(neigh, pkt)
	}
}

func (n *node) BroadcastToNeighbours(msg *protocol.Message) {
	for _, neigh := range state.SortedKeys(n.neighbours()) {
		n.SendToNeighbour(neigh, msg)
	}
}

func (n *node) RequestRetransmit(neigh state.NodeId, src state.NodeId, first, last uint64) {
	key := state.Pair[state.NodeId, state.NodeId]{V1: neigh, V2: src}
	old := n.RetransmitDedup.Get(key)
	if old != nil && old.Value().V1 <= first && last <= old.Value().V2 {
		return // we have already sent such a request before
	}
	// a responder answers at most MaxRetransmitRange seqnos, asking for the rest again must not be suppressed
	answered := last
	if last-first >= MaxRetransmitRange {
		answered = first + MaxRetransmitRange - 1
	}
	n.RetransmitDedup.Set(key, state.Pair[uint64, uint64]{V1: first, V2: answered}, ttlcache.DefaultTTL)
	n.SendToNeighbour(neigh, &protocol.Message{
		Kind:    protocol.KindRetransmit,
		Origin:  n.id,
		Subject: src,
		Seqno:   first,
		Until:   last,
	})
}

// forgetRequests drops dedup entries for neigh, its link changed so earlier requests may be lost.
func (n *node) forgetRequests(neigh state.NodeId) {
	for _, key := range n.RetransmitDedup.Keys() {
		if key.V1 == neigh {
			n.RetransmitDedup.Delete(key)
		}
	}
}

func (n *node) Log(event RouterEvent, desc string, args ...any) {
	if n.opts.Observer != nil {
		n.opts.Observer(n.id, event)
	}
	if event.IsWarning() {
		n.opts.Log.Warn(fmt.Sprintf("%s %s", event.String(), desc), args...)
	} else {
		n.opts.Log.Debug(fmt.Sprintf("%s %s", event.String(), desc), args...)
	}
}

func (n *node) decode(pkt []byte) (*protocol.Message, error) {
	m, err := protocol.Decode(n.opts.Codec, pkt)
	if err != nil {
		n.Log(MalformedMessage, "rejected message", "err", err)
		return nil, err
	}
	return m, nil
}

func (n *node) unexpected(m *protocol.Message, engine state.EngineKind) error {
	err := fmt.Errorf("%w: %s message from %s sent to a %s node", protocol.ErrMalformed, m.Kind, m.Origin, engine)
	n.Log(MalformedMessage, "rejected message", "err", err)
	return err
}

type DVNode struct {
	node
	State *state.DVState
}

func NewDVNode(id state.NodeId, cfg state.EngineCfg, opts NodeOptions) *DVNode {
	n := &DVNode{State: state.NewDVState(id, cfg.LoopFilterEnabled(), cfg.MaxCost)}
	n.node = newNode(id, opts, func() map[state.NodeId]state.Cost { return n.State.Neighbours })
	return n
}

func (n *DVNode) LinkChanged(neigh state.NodeId, cost state.Cost) error {
	return HandleDVLinkChanged(n.State, n, neigh, cost)
}

func (n *DVNode) MessageReceived(pkt []byte) error {
	m, err := n.decode(pkt)
	if err != nil {
		return err
	}
	if m.Kind != protocol.KindVector {
		return n.unexpected(m, state.DistanceVectorEngine)
	}
	return HandleDVVector(n.State, n, m.Origin, vectorFromMessage(m), m.Seqno)
}

func (n *DVNode) NextHop(dst state.NodeId) state.NodeId {
	return DVNextHop(n.State, dst)
}

func (n *DVNode) Route(dst state.NodeId) (state.Path, state.Cost, bool) {
	return DVRoute(n.State, dst)
}

func (n *DVNode) Dump() string {
	s := n.State
	var sb strings.Builder
	fmt.Fprintf(&sb, "node %s (%s, seqno %d)\n", s.Id, state.DistanceVectorEngine, s.Seqno)
	fmt.Fprintf(&sb, "neighbours: %s\n", stringNeighbours(s.Neighbours))
	sb.WriteString(s.Vector.String())
	return sb.String()
}

type LSNode struct {
	node
	State *state.LSState
}

func NewLSNode(id state.NodeId, cfg state.EngineCfg, opts NodeOptions) *LSNode {
	n := &LSNode{State: state.NewLSState(id, cfg.CatchUpEnabled())}
	n.node = newNode(id, opts, func() map[state.NodeId]state.Cost { return n.State.Neighbours })
	return n
}

func (n *LSNode) LinkChanged(neigh state.NodeId, cost state.Cost) error {
	if err := HandleLSLinkChanged(n.State, n, neigh, cost); err != nil {
		return err
	}
	n.forgetRequests(neigh)
	RetryPending(n.State, n)
	return nil
}

func (n *LSNode) MessageReceived(pkt []byte) error {
	m, err := n.decode(pkt)
	if err != nil {
		return err
	}
	switch m.Kind {
	case protocol.KindAdvert:
		HandleAdvert(n.State, n, advertFromMessage(m), m.Forwarder)
	case protocol.KindSnapshot:
		edges := make([]state.Edge, 0, len(m.Edges))
		for _, e := range m.Edges {
			edges = append(edges, state.Edge{A: e.A, B: e.B, Cost: e.Cost})
		}
		seqnos := make(map[state.NodeId]uint64, len(m.Seqnos))
		for _, sq := range m.Seqnos {
			seqnos[sq.Source] = max(seqnos[sq.Source], sq.Seqno)
		}
		HandleSnapshot(n.State, n, m.Origin, edges, seqnos)
	case protocol.KindRetransmit:
		HandleRetransmit(n.State, n, m.Origin, m.Subject, m.Seqno, m.Until)
	case protocol.KindGap:
		HandleGap(n.State, n, m.Origin, m.Subject, m.Seqno, m.Until)
	default:
		return n.unexpected(m, state.LinkStateEngine)
	}
	return nil
}

func (n *LSNode) NextHop(dst state.NodeId) state.NodeId {
	return LSNextHop(n.State, dst)
}

func (n *LSNode) Route(dst state.NodeId) (state.Path, state.Cost, bool) {
	return LSRoute(n.State, dst)
}

func (n *LSNode) Dump() string {
	s := n.State
	var sb strings.Builder
	fmt.Fprintf(&sb, "node %s (%s, seqno %d)\n", s.Id, state.LinkStateEngine, s.Seqno)
	fmt.Fprintf(&sb, "neighbours: %s\n", stringNeighbours(s.Neighbours))
	fmt.Fprintf(&sb, "sources: %s\n", s.StringSources())
	if held := len(s.Pending); held > 0 {
		fmt.Fprintf(&sb, "held: %d sources waiting on a gap\n", held)
	}
	sb.WriteString("topology:\n")
	if len(s.Graph) > 0 {
		sb.WriteString(s.Graph.String())
		sb.WriteString("\n")
	}
	sb.WriteString("routes:")
	dist, prev := ShortestPaths(s.Graph, s.Id)
	for _, dst := range state.SortedKeys(dist) {
		if dst == s.Id {
			continue
		}
		path, ok := PathTo(prev, s.Id, dst)
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "\n%s via (nh: %s, cost: %s, path: %s)", dst, path[1], dist[dst], path)
	}
	return sb.String()
}

func stringNeighbours(neighs map[state.NodeId]state.Cost) string {
	parts := make([]string, 0, len(neighs))
	for _, n := range state.SortedKeys(neighs) {
		parts = append(parts, fmt.Sprintf("%s=%s", n, neighs[n]))
	}
	return strings.Join(parts, " ")
}
