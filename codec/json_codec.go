package codec

import (
	"encoding/json"
	"errors"
)

// JSONCodec carries messages as JSON documents.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	if v == nil {
		return nil, errors.New("json codec: nil value")
	}
	return json.Marshal(v)
}

// Decode leaves v at its current value when data is empty, the same way an empty
// protobuf payload decodes to the default message.
func (c *JSONCodec) Decode(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
