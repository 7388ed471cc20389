package state

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var ErrInvalidConfig = errors.New("invalid scenario")

type EngineKind string

const (
	DistanceVectorEngine EngineKind = "distance-vector"
	LinkStateEngine      EngineKind = "link-state"
)

// EngineCfg holds the per-node protocol options shared by every node of a scenario.
type EngineCfg struct {
	Engine EngineKind `yaml:"engine"`
	// Codec is the content type used on the wire, see protocol.Registry
	Codec      string `yaml:"codec,omitempty"`
	CatchUp    *bool  `yaml:"catch_up,omitempty"`    // link-state: request missing adverts instead of skipping them
	LoopFilter *bool  `yaml:"loop_filter,omitempty"` // distance-vector: ignore routes that already pass through us
	MaxCost    Cost   `yaml:"max_cost,omitempty"`    // distance-vector: costs at or above this are unreachable
}

func (c EngineCfg) CatchUpEnabled() bool {
	return c.CatchUp == nil || *c.CatchUp
}

func (c EngineCfg) LoopFilterEnabled() bool {
	return c.LoopFilter == nil || *c.LoopFilter
}

type LinkCfg struct {
	A       NodeId        `yaml:"a"`
	B       NodeId        `yaml:"b"`
	Cost    Cost          `yaml:"cost"`
	Latency time.Duration `yaml:"latency,omitempty"`
}

func (l LinkCfg) Key() Pair[NodeId, NodeId] {
	return MakeSortedPair(l.A, l.B)
}

// EventCfg changes the cost of a link at a point in simulated time. A cost of -1 removes the link.
type EventCfg struct {
	At      time.Duration `yaml:"at"`
	A       NodeId        `yaml:"a"`
	B       NodeId        `yaml:"b"`
	Cost    Cost          `yaml:"cost"`
	Latency time.Duration `yaml:"latency,omitempty"`
}

// Scenario describes a whole simulation: which engine every node runs, the initial links and
// the link changes that follow.
type Scenario struct {
	EngineCfg `yaml:",inline"`
	Nodes     []NodeId      `yaml:"nodes"`
	Links     []LinkCfg     `yaml:"links"`
	Events    []EventCfg    `yaml:"events,omitempty"`
	// Graph adds links in the syntax of ParseGraph, each with GraphCost. Links listed explicitly win.
	Graph     []string      `yaml:"graph,omitempty"`
	GraphCost Cost          `yaml:"graph_cost,omitempty"`
	Jitter    time.Duration `yaml:"jitter,omitempty"` // uniform extra delay per message, allows reordering
	Seed      uint64        `yaml:"seed,omitempty"`
	MaxEvents int           `yaml:"max_events,omitempty"`
	LogPath   string        `yaml:"log_path,omitempty"`
}

// ExpandScenario fills in defaults, turns the graph into links and adds nodes that only appear in links.
func ExpandScenario(s *Scenario) error {
	if s.Engine == "" {
		s.Engine = LinkStateEngine
	}
	if s.MaxEvents == 0 {
		s.MaxEvents = DefaultMaxEvents
	}
	if s.MaxCost == 0 {
		s.MaxCost = DefaultMaxCost
	}
	if len(s.Graph) > 0 {
		pairs, err := ParseGraph(s.Graph)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		cost := s.GraphCost
		if cost == 0 {
			cost = 1
		}
		for _, p := range pairs {
			if !slices.ContainsFunc(s.Links, func(l LinkCfg) bool { return l.Key() == p }) {
				s.Links = append(s.Links, LinkCfg{A: p.V1, B: p.V2, Cost: cost})
			}
		}
	}
	seen := make(map[NodeId]struct{})
	for _, n := range s.Nodes {
		seen[n] = struct{}{}
	}
	add := func(n NodeId) {
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			s.Nodes = append(s.Nodes, n)
		}
	}
	for i := range s.Links {
		if s.Links[i].Latency == 0 {
			s.Links[i].Latency = DefaultLinkLatency
		}
		add(s.Links[i].A)
		add(s.Links[i].B)
	}
	for _, e := range s.Events {
		add(e.A)
		add(e.B)
	}
	return nil
}

func (s *Scenario) String() string {
	return fmt.Sprintf("%s scenario: %d nodes, %d links, %d events", s.Engine, len(s.Nodes), len(s.Links), len(s.Events))
}
