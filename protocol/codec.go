package protocol

import "fmt"

// Codec turns messages into bytes and back. Implementations must be deterministic.
type Codec interface {
	ContentType() string
	Marshal(m *Message) ([]byte, error)
	Unmarshal(data []byte, m *Message) error
}

// Registry maps content types to codecs.
type Registry struct {
	byType map[string]Codec
}

// NewRegistry returns a registry holding the protobuf wire codec and the canonical CBOR codec.
func NewRegistry() (*Registry, error) {
	r := &Registry{byType: make(map[string]Codec)}
	r.Register(Proto())
	c, err := CBOR()
	if err != nil {
		return nil, err
	}
	r.Register(c)
	return r, nil
}

func (r *Registry) Register(c Codec) {
	r.byType[c.ContentType()] = c
}

// Get returns a codec by content type. The empty content type selects the protobuf codec.
func (r *Registry) Get(contentType string) (Codec, error) {
	if contentType == "" {
		contentType = ContentTypeProto
	}
	c, ok := r.byType[contentType]
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", contentType)
	}
	return c, nil
}

// Decode unmarshals and validates in one step; both failures wrap ErrMalformed.
func Decode(c Codec, data []byte) (*Message, error) {
	m := &Message{}
	if err := c.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Encode validates before marshalling so a node never puts a malformed message on the wire.
func Encode(c Codec, m *Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return c.Marshal(m)
}
