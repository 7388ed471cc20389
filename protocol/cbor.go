package protocol

import (
	cbor "github.com/fxamacker/cbor/v2"
)

const ContentTypeCBOR = "application/cbor"

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// CBOR returns a deterministic CBOR codec (RFC 8949 core deterministic encoding).
func CBOR() (Codec, error) {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: 1 << 16,
	}.DecMode()
	if err != nil {
		return nil, err
	}
	return cborCodec{enc: em, dec: dm}, nil
}

func (c cborCodec) ContentType() string { return ContentTypeCBOR }

func (c cborCodec) Marshal(m *Message) ([]byte, error) { return c.enc.Marshal(m) }

func (c cborCodec) Unmarshal(data []byte, m *Message) error { return c.dec.Unmarshal(data, m) }
