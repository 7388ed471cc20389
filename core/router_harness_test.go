package core

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/encodeous/ripple/protocol"
	"github.com/encodeous/ripple/state"
)

type HarnessEvent struct {
	Message string
	Args    []any
}

func MakeEvent(msg string, args ...any) HarnessEvent {
	return HarnessEvent{
		Message: msg,
		Args:    args,
	}
}

type RouterHarness struct {
	actions []HarnessEvent
}

func (h *RouterHarness) SendToNeighbour(neigh state.NodeId, msg *protocol.Message) {
	h.actions = append(h.actions, MakeEvent("SEND", neigh, msg.String()))
}

func (h *RouterHarness) BroadcastToNeighbours(msg *protocol.Message) {
	h.actions = append(h.actions, MakeEvent("BROADCAST", msg.String()))
}

func (h *RouterHarness) RequestRetransmit(neigh state.NodeId, src state.NodeId, first, last uint64) {
	h.actions = append(h.actions, MakeEvent("REQUEST_RETRANSMIT", neigh, src, first, last))
}

func (h *RouterHarness) Log(event RouterEvent, desc string, args ...any) {
	x := make([]any, 0)
	x = append(x, event)
	x = append(x, desc)
	x = append(x, args...)
	h.actions = append(h.actions, MakeEvent("LOG", x...))
}

type HarnessEvents []HarnessEvent

func (h HarnessEvents) String() string {
	out := make([]string, 0)
	for _, action := range h {
		cur := action.Message
		for _, arg := range action.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

// GetActions returns everything sent since the last call, without log events.
func (h *RouterHarness) GetActions() HarnessEvents {
	x := make([]HarnessEvent, 0)
	for _, action := range h.actions {
		if action.Message != "LOG" {
			x = append(x, action)
		}
	}

	h.actions = make([]HarnessEvent, 0)
	return x
}

// GetEvents returns the router events logged since the last call, and clears all recorded actions.
func (h *RouterHarness) GetEvents() []RouterEvent {
	x := make([]RouterEvent, 0)
	for _, action := range h.actions {
		if action.Message == "LOG" {
			x = append(x, action.Args[0].(RouterEvent))
		}
	}
	h.actions = make([]HarnessEvent, 0)
	return x
}

func (e HarnessEvents) contains(msg string, args ...any) bool {
	for _, event := range e {
		if event.Message == msg {
			if len(event.Args) >= len(args) {
				match := true
				for i, arg := range args {
					if !cmp.Equal(event.Args[i], arg) {
						match = false
						break
					}
				}
				if match {
					return true
				}
			}
		}
	}
	return false
}

func (e HarnessEvents) AssertContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		return
	}
	t.Fatal("Expected event not found: ", msg, " with args: ", args, " in ", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		t.Fatal("Unexpected event found: ", msg, " with args: ", args, " in ", e)
	}
}

// MakeVector builds a neighbour's vector from paths, each starting at the neighbour.
func MakeVector(costs map[state.NodeId]state.Cost, paths ...state.Path) state.DistanceVector {
	vec := make(state.DistanceVector)
	for _, p := range paths {
		nh := p.Last()
		if len(p) > 1 {
			nh = p[1]
		}
		vec[p.Last()] = state.DVRoute{Cost: costs[p.Last()], NextHop: nh, Path: p}
	}
	return vec
}
