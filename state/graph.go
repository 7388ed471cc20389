package state

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

/*
ParseGraph expands the compact link syntax of Scenario.Graph:

	core = a, b, c      // defines a group, groups may contain groups
	edge = d, e
	core, core          // every node of core is linked to every other
	core, edge, f       // every node is linked to every node of the other members, not within edge
	g, h                // a single link

Any symbol that is not a group is a node. Empty lines and lines starting with # are skipped.
*/
func ParseGraph(lines []string) ([]Pair[NodeId, NodeId], error) {
	groups := make(map[string][]string)
	var lists [][]string

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, members, isGroup := strings.Cut(line, "=")
		if !isGroup {
			syms, err := parseSymbols(line)
			if err != nil {
				return nil, err
			}
			if len(syms) < 2 {
				return nil, fmt.Errorf("invalid pairing %v, needs at least two members", syms)
			}
			lists = append(lists, syms)
			continue
		}
		if strings.Contains(members, "=") {
			return nil, fmt.Errorf("invalid graph line %q, a group definition has exactly one '='", line)
		}
		name = strings.TrimSpace(name)
		if err := NameValidator(name); err != nil {
			return nil, err
		}
		if _, dup := groups[name]; dup {
			return nil, fmt.Errorf("duplicate group name: %s", name)
		}
		syms, err := parseSymbols(members)
		if err != nil {
			return nil, err
		}
		groups[name] = syms
	}

	expanded := make(map[string][]NodeId)
	var expand func(sym string, stack []string) ([]NodeId, error)
	expand = func(sym string, stack []string) ([]NodeId, error) {
		members, ok := groups[sym]
		if !ok {
			return []NodeId{NodeId(sym)}, nil
		}
		if nodes, ok := expanded[sym]; ok {
			return nodes, nil
		}
		if slices.Contains(stack, sym) {
			return nil, fmt.Errorf("cycle detected in graph: %v", stack)
		}
		stack = append(slices.Clone(stack), sym)
		var nodes []NodeId
		for _, m := range members {
			sub, err := expand(m, stack)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, sub...)
		}
		slices.Sort(nodes)
		nodes = slices.Compact(nodes)
		expanded[sym] = nodes
		return nodes, nil
	}

	groupNames := make([]string, 0, len(groups))
	for name := range groups {
		groupNames = append(groupNames, name)
	}
	slices.Sort(groupNames)
	for _, name := range groupNames {
		if _, err := expand(name, nil); err != nil {
			return nil, err
		}
	}

	var pairs []Pair[NodeId, NodeId]
	for _, syms := range lists {
		sets := make([][]NodeId, 0, len(syms))
		for _, sym := range syms {
			nodes, err := expand(sym, nil)
			if err != nil {
				return nil, err
			}
			sets = append(sets, nodes)
		}
		for i := range sets {
			for j := i + 1; j < len(sets); j++ {
				for _, a := range sets[i] {
					for _, b := range sets[j] {
						if a != b {
							pairs = append(pairs, MakeSortedPair(a, b))
						}
					}
				}
			}
		}
	}
	SortPairs(pairs)
	return slices.Compact(pairs), nil
}

func parseSymbols(s string) ([]string, error) {
	var out []string
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if err := NameValidator(f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, errors.New("node/group list must not be empty")
	}
	return out, nil
}
