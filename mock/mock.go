package mock

import (
	"fmt"
	"time"

	"github.com/encodeous/ripple/state"
)

// Four is the four node network 0-1 (2), 1-2 (2), 2-0 (2), 0-3 (100). After convergence the
// 0-3 link drops to 5, then 0-2 goes away.
func Four(engine state.EngineKind) state.Scenario {
	return state.Scenario{
		EngineCfg: state.EngineCfg{Engine: engine},
		Nodes:     []state.NodeId{"0", "1", "2", "3"},
		Links: []state.LinkCfg{
			{A: "0", B: "1", Cost: 2},
			{A: "1", B: "2", Cost: 2},
			{A: "2", B: "0", Cost: 2},
			{A: "0", B: "3", Cost: 100},
		},
		Events: []state.EventCfg{
			{At: time.Second, A: "0", B: "3", Cost: 5},
			{At: 2 * time.Second, A: "0", B: "2", Cost: state.LinkDeleted},
		},
	}
}

// Mesh is a five node mesh where the direct bob-eve link is never the best path.
func Mesh(engine state.EngineKind) state.Scenario {
	return state.Scenario{
		EngineCfg: state.EngineCfg{Engine: engine},
		Nodes:     []state.NodeId{"bob", "jeb", "kat", "eve", "ada"},
		Links: []state.LinkCfg{
			{A: "bob", B: "jeb", Cost: 1},
			{A: "bob", B: "kat", Cost: 1},
			{A: "bob", B: "eve", Cost: 10},
			{A: "jeb", B: "kat", Cost: 1},
			{A: "kat", B: "ada", Cost: 1},
			{A: "kat", B: "eve", Cost: 1},
			{A: "eve", B: "ada", Cost: 2},
		},
		Events: []state.EventCfg{
			{At: time.Second, A: "kat", B: "eve", Cost: state.LinkDeleted},
			{At: 2 * time.Second, A: "bob", B: "kat", Cost: 4},
			{At: 3 * time.Second, A: "kat", B: "eve", Cost: 1},
		},
		Jitter: 5 * time.Millisecond,
	}
}

// Names lists the sample scenarios by name.
func Names() []string {
	return []string{"four", "mesh"}
}

func Get(name string, engine state.EngineKind) (state.Scenario, error) {
	switch name {
	case "four":
		return Four(engine), nil
	case "mesh":
		return Mesh(engine), nil
	default:
		return state.Scenario{}, fmt.Errorf("%w: no sample scenario %q, have %v", state.ErrInvalidConfig, name, Names())
	}
}
