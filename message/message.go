// Package message defines the typed request/response values carried by a call.
//
// The frame layer only moves bytes; a Message knows how to turn itself into those
// bytes and back. Services hand out fresh Message instances per call, the Provider
// parses the argument bytes into one and serializes the other after the handler ran.
package message

import (
	"github.com/HUMBLE6666/rpc/codec"
	"google.golang.org/protobuf/proto"
)

// Message is a value that can be serialized onto and parsed from the wire.
type Message interface {
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
}

// Proto adapts a protobuf message.
func Proto(m proto.Message) Message {
	return &codecMessage{codec: codec.GetCodec(codec.CodecTypeProto), v: m}
}

// JSON adapts any JSON-serializable value. v must be a pointer for Unmarshal to work.
func JSON(v any) Message {
	return &codecMessage{codec: codec.GetCodec(codec.CodecTypeJSON), v: v}
}

// Value returns the value wrapped by Proto or JSON, or m itself otherwise.
func Value(m Message) any {
	if cm, ok := m.(*codecMessage); ok {
		return cm.v
	}
	return m
}

type codecMessage struct {
	codec codec.Codec
	v     any
}

func (m *codecMessage) Marshal() ([]byte, error) {
	return m.codec.Encode(m.v)
}

func (m *codecMessage) Unmarshal(data []byte) error {
	return m.codec.Decode(data, m.v)
}

// Bytes is an opaque payload passed through unchanged.
type Bytes []byte

func (b *Bytes) Marshal() ([]byte, error) {
	return *b, nil
}

func (b *Bytes) Unmarshal(data []byte) error {
	*b = append((*b)[:0], data...)
	return nil
}
