package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/encodeous/ripple/state"
)

var ErrMalformed = errors.New("malformed message")

type Kind uint8

const (
	KindInvalid Kind = iota
	// KindVector carries a full distance vector from Origin
	KindVector
	// KindAdvert carries one link-state advertisement originated by Origin
	KindAdvert
	// KindSnapshot carries a full topology for an authoritative resync, never a delta
	KindSnapshot
	// KindRetransmit asks the receiver for Subject's adverts Seqno..Until
	KindRetransmit
	// KindGap answers a retransmit: the sender holds none of Subject's adverts Seqno..Until
	KindGap
)

func (k Kind) String() string {
	switch k {
	case KindVector:
		return "vector"
	case KindAdvert:
		return "advert"
	case KindSnapshot:
		return "snapshot"
	case KindRetransmit:
		return "retransmit"
	case KindGap:
		return "gap"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

type VectorEntry struct {
	Destination state.NodeId   `cbor:"1,keyasint,omitempty"`
	Cost        state.Cost     `cbor:"2,keyasint"`
	Path        []state.NodeId `cbor:"3,keyasint,omitempty"`
}

type Edge struct {
	A    state.NodeId `cbor:"1,keyasint,omitempty"`
	B    state.NodeId `cbor:"2,keyasint,omitempty"`
	Cost state.Cost   `cbor:"3,keyasint"`
}

type SourceSeqno struct {
	Source state.NodeId `cbor:"1,keyasint,omitempty"`
	Seqno  uint64       `cbor:"2,keyasint,omitempty"`
}

// Message is the only thing nodes exchange. It holds plain values, so a decoded message never
// aliases the sender's tables.
type Message struct {
	Kind        Kind          `cbor:"1,keyasint"`
	Origin      state.NodeId  `cbor:"2,keyasint,omitempty"`
	Seqno       uint64        `cbor:"3,keyasint,omitempty"`
	Destination state.NodeId  `cbor:"4,keyasint,omitempty"`
	Cost        state.Cost    `cbor:"5,keyasint,omitempty"`
	Forwarder   state.NodeId  `cbor:"6,keyasint,omitempty"`
	Subject     state.NodeId  `cbor:"7,keyasint,omitempty"`
	Until       uint64        `cbor:"8,keyasint,omitempty"`
	Vector      []VectorEntry `cbor:"9,keyasint,omitempty"`
	Edges       []Edge        `cbor:"10,keyasint,omitempty"`
	Seqnos      []SourceSeqno `cbor:"11,keyasint,omitempty"`
}

func (m *Message) String() string {
	switch m.Kind {
	case KindVector:
		entries := make([]string, 0, len(m.Vector))
		for _, e := range m.Vector {
			if e.Cost.IsDeleted() {
				entries = append(entries, fmt.Sprintf("%s=retracted", e.Destination))
			} else {
				entries = append(entries, fmt.Sprintf("%s=%s", e.Destination, e.Cost))
			}
		}
		return fmt.Sprintf("vector (from: %s, seqno: %d, [%s])", m.Origin, m.Seqno, strings.Join(entries, " "))
	case KindAdvert:
		return fmt.Sprintf("advert (src: %s, dst: %s, cost: %s, seqno: %d, fwd: %s)", m.Origin, m.Destination, m.Cost, m.Seqno, m.Forwarder)
	case KindSnapshot:
		return fmt.Sprintf("snapshot (from: %s, edges: %d, sources: %d)", m.Origin, len(m.Edges), len(m.Seqnos))
	case KindRetransmit, KindGap:
		return fmt.Sprintf("%s (from: %s, src: %s, seqno: %d..%d)", m.Kind, m.Origin, m.Subject, m.Seqno, m.Until)
	default:
		return m.Kind.String()
	}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// Validate checks that every field required by the message kind is present and sane.
// A message that fails validation must not be applied at all.
func (m *Message) Validate() error {
	if m.Origin == "" {
		return malformed("%s without origin", m.Kind)
	}
	switch m.Kind {
	case KindVector:
		if m.Seqno == 0 {
			return malformed("vector from %s without seqno", m.Origin)
		}
		for _, e := range m.Vector {
			if err := validateEntry(m.Origin, e); err != nil {
				return err
			}
		}
	case KindAdvert:
		if m.Seqno == 0 {
			return malformed("advert from %s without seqno", m.Origin)
		}
		if m.Destination == "" || m.Destination == m.Origin {
			return malformed("advert from %s has invalid destination %q", m.Origin, m.Destination)
		}
		if m.Forwarder == "" {
			return malformed("advert from %s without forwarder", m.Origin)
		}
		if !m.Cost.Valid() {
			return malformed("advert from %s has invalid cost %v", m.Origin, float64(m.Cost))
		}
	case KindSnapshot:
		for _, e := range m.Edges {
			if e.A == "" || e.B == "" || e.A == e.B {
				return malformed("snapshot from %s has invalid edge %s-%s", m.Origin, e.A, e.B)
			}
			if !e.Cost.Valid() || e.Cost.IsDeleted() {
				return malformed("snapshot from %s has invalid cost %v", m.Origin, float64(e.Cost))
			}
		}
		for _, s := range m.Seqnos {
			if s.Source == "" {
				return malformed("snapshot from %s has seqno without source", m.Origin)
			}
		}
	case KindRetransmit, KindGap:
		if m.Subject == "" {
			return malformed("%s from %s without subject", m.Kind, m.Origin)
		}
		if m.Seqno == 0 || m.Until < m.Seqno {
			return malformed("%s from %s has invalid range %d..%d", m.Kind, m.Origin, m.Seqno, m.Until)
		}
	default:
		return malformed("unknown kind %d", uint8(m.Kind))
	}
	return nil
}

func validateEntry(origin state.NodeId, e VectorEntry) error {
	if e.Destination == "" {
		return malformed("vector from %s has entry without destination", origin)
	}
	if !e.Cost.Valid() {
		return malformed("vector from %s has invalid cost %v for %s", origin, float64(e.Cost), e.Destination)
	}
	if e.Cost.IsDeleted() {
		return nil // retraction, path is irrelevant
	}
	if len(e.Path) == 0 || e.Path[0] != origin || e.Path[len(e.Path)-1] != e.Destination {
		return malformed("vector from %s has invalid path %v for %s", origin, e.Path, e.Destination)
	}
	return nil
}
