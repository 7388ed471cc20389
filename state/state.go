package state

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

var ErrInvalidCost = errors.New("invalid link cost")

// NodeId identifies a router. Every table is keyed by it.
type NodeId string

// Cost is a non-negative link or path cost. LinkDeleted is the only negative value with a meaning.
type Cost float64

// Valid reports whether c may appear in a link change or on the wire.
func (c Cost) Valid() bool {
	if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
		return false
	}
	return c >= 0 || c == LinkDeleted
}

func (c Cost) IsDeleted() bool {
	return c == LinkDeleted
}

func (c Cost) String() string {
	if math.IsInf(float64(c), 1) {
		return "inf"
	}
	return fmt.Sprintf("%g", float64(c))
}

// CheckCost returns ErrInvalidCost wrapped with the offending value.
func CheckCost(c Cost) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidCost, float64(c))
	}
	return nil
}

// Path is an ordered list of nodes, from the computing node to the destination.
type Path []NodeId

func (p Path) Last() NodeId {
	if len(p) == 0 {
		return NoRoute
	}
	return p[len(p)-1]
}

func (p Path) Contains(id NodeId) bool {
	return slices.Contains(p, id)
}

func (p Path) Clone() Path {
	return slices.Clone(p)
}

func (p Path) String() string {
	parts := make([]string, 0, len(p))
	for _, n := range p {
		parts = append(parts, string(n))
	}
	return strings.Join(parts, "->")
}

// SortedKeys returns the keys of a NodeId keyed map in a stable order.
func SortedKeys[V any](m map[NodeId]V) []NodeId {
	keys := make([]NodeId, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
