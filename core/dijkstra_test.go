package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/encodeous/ripple/state"
)

func fourNodeGraph() state.Topology {
	g := make(state.Topology)
	g.SetEdge("0", "1", 2)
	g.SetEdge("1", "2", 2)
	g.SetEdge("2", "0", 2)
	g.SetEdge("0", "3", 100)
	return g
}

func TestShortestPaths(t *testing.T) {
	dist, prev := ShortestPaths(fourNodeGraph(), "1")
	assert.Equal(t, map[state.NodeId]state.Cost{"0": 2, "1": 0, "2": 2, "3": 102}, dist)
	assert.Equal(t, state.NodeId("0"), prev["3"])
	assert.NotContains(t, prev, state.NodeId("1"))

	path, ok := PathTo(prev, "1", "3")
	assert.True(t, ok)
	assert.Equal(t, state.Path{"1", "0", "3"}, path)

	path, ok = PathTo(prev, "1", "1")
	assert.True(t, ok)
	assert.Equal(t, state.Path{"1"}, path)
}

func TestShortestPathsUnreachable(t *testing.T) {
	g := fourNodeGraph()
	g.SetEdge("8", "9", 1)
	dist, prev := ShortestPaths(g, "0")
	assert.NotContains(t, dist, state.NodeId("9"))
	_, ok := PathTo(prev, "0", "9")
	assert.False(t, ok)

	// a source outside the graph only reaches itself
	dist, _ = ShortestPaths(g, "q")
	assert.Equal(t, map[state.NodeId]state.Cost{"q": 0}, dist)
}

func TestShortestPathsFirstDiscoveredWinsTies(t *testing.T) {
	g := make(state.Topology)
	g.SetEdge("a", "b", 1)
	g.SetEdge("a", "c", 1)
	g.SetEdge("b", "d", 1)
	g.SetEdge("c", "d", 1)
	dist, prev := ShortestPaths(g, "a")
	assert.Equal(t, state.Cost(2), dist["d"])
	assert.Equal(t, state.NodeId("b"), prev["d"])
}

func TestShortestPathsSkipsStaleEntries(t *testing.T) {
	// c is first queued at 10, then improved to 2 through b
	g := make(state.Topology)
	g.SetEdge("a", "c", 10)
	g.SetEdge("a", "b", 1)
	g.SetEdge("b", "c", 1)
	g.SetEdge("c", "d", 1)
	dist, prev := ShortestPaths(g, "a")
	assert.Equal(t, state.Cost(3), dist["d"])
	path, ok := PathTo(prev, "a", "d")
	assert.True(t, ok)
	assert.Equal(t, state.Path{"a", "b", "c", "d"}, path)
}

func TestPathToRejectsCycles(t *testing.T) {
	prev := map[state.NodeId]state.NodeId{"x": "y", "y": "x"}
	_, ok := PathTo(prev, "a", "x")
	assert.False(t, ok)
}
