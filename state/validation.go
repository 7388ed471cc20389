package state

import (
	"fmt"
	"regexp"
	"slices"
)

var namePattern, _ = regexp.Compile("^[0-9A-Za-z._-]+$")

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func EngineConfigValidator(cfg *EngineCfg) error {
	switch cfg.Engine {
	case DistanceVectorEngine, LinkStateEngine:
	default:
		return fmt.Errorf("%w: unknown engine %q", ErrInvalidConfig, cfg.Engine)
	}
	if cfg.MaxCost < 0 || !cfg.MaxCost.Valid() {
		return fmt.Errorf("%w: max_cost %v", ErrInvalidConfig, cfg.MaxCost)
	}
	return nil
}

// ScenarioValidator should be called after ExpandScenario.
func ScenarioValidator(s *Scenario) error {
	if err := EngineConfigValidator(&s.EngineCfg); err != nil {
		return err
	}
	for _, n := range s.Nodes {
		if err := NameValidator(string(n)); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if len(slices.Compact(slices.Sorted(slices.Values(s.Nodes)))) != len(s.Nodes) {
		return fmt.Errorf("%w: duplicate node", ErrInvalidConfig)
	}
	links := make([]Pair[NodeId, NodeId], 0, len(s.Links))
	for _, l := range s.Links {
		if l.A == l.B {
			return fmt.Errorf("%w: link %s-%s is a self loop", ErrInvalidConfig, l.A, l.B)
		}
		if !l.Cost.Valid() || l.Cost.IsDeleted() {
			return fmt.Errorf("%w: link %s-%s has invalid cost %v", ErrInvalidConfig, l.A, l.B, l.Cost)
		}
		if l.Latency < 0 {
			return fmt.Errorf("%w: link %s-%s has negative latency", ErrInvalidConfig, l.A, l.B)
		}
		if slices.Contains(links, l.Key()) {
			return fmt.Errorf("%w: duplicate link found: %s, %s", ErrInvalidConfig, l.A, l.B)
		}
		links = append(links, l.Key())
	}
	for _, e := range s.Events {
		if e.A == e.B {
			return fmt.Errorf("%w: event at %s on self loop %s", ErrInvalidConfig, e.At, e.A)
		}
		if !e.Cost.Valid() {
			return fmt.Errorf("%w: event at %s has invalid cost %v", ErrInvalidConfig, e.At, e.Cost)
		}
		if e.At < 0 || e.Latency < 0 {
			return fmt.Errorf("%w: event at %s has a negative duration", ErrInvalidConfig, e.At)
		}
	}
	if s.Jitter < 0 {
		return fmt.Errorf("%w: negative jitter", ErrInvalidConfig)
	}
	return nil
}
