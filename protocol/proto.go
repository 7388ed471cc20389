package protocol

import (
	"errors"
	"math"

	"github.com/encodeous/ripple/state"
	"google.golang.org/protobuf/encoding/protowire"
)

const ContentTypeProto = "application/x-protobuf"

// field numbers of the protobuf encoding
//
//	message Message {
//	  uint32 kind = 1; string origin = 2; uint64 seqno = 3; string destination = 4;
//	  double cost = 5; string forwarder = 6; string subject = 7; uint64 until = 8;
//	  repeated VectorEntry vector = 9; repeated Edge edges = 10; repeated SourceSeqno seqnos = 11;
//	}
//	message VectorEntry { string destination = 1; double cost = 2; repeated string path = 3; }
//	message Edge { string a = 1; string b = 2; double cost = 3; }
//	message SourceSeqno { string source = 1; uint64 seqno = 2; }
const (
	fieldKind        protowire.Number = 1
	fieldOrigin      protowire.Number = 2
	fieldSeqno       protowire.Number = 3
	fieldDestination protowire.Number = 4
	fieldCost        protowire.Number = 5
	fieldForwarder   protowire.Number = 6
	fieldSubject     protowire.Number = 7
	fieldUntil       protowire.Number = 8
	fieldVector      protowire.Number = 9
	fieldEdges       protowire.Number = 10
	fieldSeqnos      protowire.Number = 11
)

var errWireType = errors.New("unexpected wire type")

type protoCodec struct{}

// Proto returns a codec producing the protobuf wire format described above.
func Proto() Codec { return protoCodec{} }

func (protoCodec) ContentType() string { return ContentTypeProto }

func appendString(b []byte, num protowire.Number, s state.NodeId) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, string(s))
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// costs are always written, zero is a real cost
func appendCost(b []byte, num protowire.Number, c state.Cost) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(float64(c)))
}

func appendMessage(b []byte, num protowire.Number, sub []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, sub)
}

func (protoCodec) Marshal(m *Message) ([]byte, error) {
	b := make([]byte, 0, 64)
	b = appendUint(b, fieldKind, uint64(m.Kind))
	b = appendString(b, fieldOrigin, m.Origin)
	b = appendUint(b, fieldSeqno, m.Seqno)
	b = appendString(b, fieldDestination, m.Destination)
	if m.Kind == KindAdvert {
		b = appendCost(b, fieldCost, m.Cost)
	}
	b = appendString(b, fieldForwarder, m.Forwarder)
	b = appendString(b, fieldSubject, m.Subject)
	b = appendUint(b, fieldUntil, m.Until)
	for _, e := range m.Vector {
		var sub []byte
		sub = appendString(sub, 1, e.Destination)
		sub = appendCost(sub, 2, e.Cost)
		for _, hop := range e.Path {
			sub = protowire.AppendTag(sub, 3, protowire.BytesType)
			sub = protowire.AppendString(sub, string(hop))
		}
		b = appendMessage(b, fieldVector, sub)
	}
	for _, e := range m.Edges {
		var sub []byte
		sub = appendString(sub, 1, e.A)
		sub = appendString(sub, 2, e.B)
		sub = appendCost(sub, 3, e.Cost)
		b = appendMessage(b, fieldEdges, sub)
	}
	for _, s := range m.Seqnos {
		var sub []byte
		sub = appendString(sub, 1, s.Source)
		sub = appendUint(sub, 2, s.Seqno)
		b = appendMessage(b, fieldSeqnos, sub)
	}
	return b, nil
}

// fieldFunc consumes the value of one field and returns the number of bytes read, or a negative
// protowire error code.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func consumeFields(b []byte, f fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n, err := f(num, typ, b)
		if err != nil {
			return err
		}
		if n == 0 {
			// unknown field, skip it
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

func consumeString(typ protowire.Type, b []byte, dst *state.NodeId) (int, error) {
	if typ != protowire.BytesType {
		return 0, errWireType
	}
	v, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = state.NodeId(v)
	}
	return n, nil
}

func consumeUint(typ protowire.Type, b []byte, dst *uint64) (int, error) {
	if typ != protowire.VarintType {
		return 0, errWireType
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = v
	}
	return n, nil
}

func consumeCost(typ protowire.Type, b []byte, dst *state.Cost) (int, error) {
	if typ != protowire.Fixed64Type {
		return 0, errWireType
	}
	v, n := protowire.ConsumeFixed64(b)
	if n >= 0 {
		*dst = state.Cost(math.Float64frombits(v))
	}
	return n, nil
}

func consumeSub(typ protowire.Type, b []byte, f fieldFunc) (int, error) {
	if typ != protowire.BytesType {
		return 0, errWireType
	}
	sub, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, nil
	}
	return n, consumeFields(sub, f)
}

func (protoCodec) Unmarshal(data []byte, m *Message) error {
	*m = Message{}
	return consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldKind:
			var k uint64
			n, err := consumeUint(typ, b, &k)
			if k > math.MaxUint8 {
				return n, errWireType
			}
			m.Kind = Kind(k)
			return n, err
		case fieldOrigin:
			return consumeString(typ, b, &m.Origin)
		case fieldSeqno:
			return consumeUint(typ, b, &m.Seqno)
		case fieldDestination:
			return consumeString(typ, b, &m.Destination)
		case fieldCost:
			return consumeCost(typ, b, &m.Cost)
		case fieldForwarder:
			return consumeString(typ, b, &m.Forwarder)
		case fieldSubject:
			return consumeString(typ, b, &m.Subject)
		case fieldUntil:
			return consumeUint(typ, b, &m.Until)
		case fieldVector:
			e := VectorEntry{}
			n, err := consumeSub(typ, b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch num {
				case 1:
					return consumeString(typ, b, &e.Destination)
				case 2:
					return consumeCost(typ, b, &e.Cost)
				case 3:
					var hop state.NodeId
					n, err := consumeString(typ, b, &hop)
					e.Path = append(e.Path, hop)
					return n, err
				}
				return 0, nil
			})
			m.Vector = append(m.Vector, e)
			return n, err
		case fieldEdges:
			e := Edge{}
			n, err := consumeSub(typ, b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch num {
				case 1:
					return consumeString(typ, b, &e.A)
				case 2:
					return consumeString(typ, b, &e.B)
				case 3:
					return consumeCost(typ, b, &e.Cost)
				}
				return 0, nil
			})
			m.Edges = append(m.Edges, e)
			return n, err
		case fieldSeqnos:
			s := SourceSeqno{}
			n, err := consumeSub(typ, b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch num {
				case 1:
					return consumeString(typ, b, &s.Source)
				case 2:
					return consumeUint(typ, b, &s.Seqno)
				}
				return 0, nil
			})
			m.Seqnos = append(m.Seqnos, s)
			return n, err
		}
		return 0, nil
	})
}
