package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type AddArgs struct {
	A int `json:"a"`
	B int `json:"b"`
}

func TestJSONMessage(t *testing.T) {
	req := JSON(&AddArgs{A: 1, B: 2})

	data, err := req.Marshal()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, string(data))

	var out AddArgs
	require.NoError(t, JSON(&out).Unmarshal(data))
	assert.Equal(t, AddArgs{A: 1, B: 2}, out)
}

func TestProtoMessage(t *testing.T) {
	data, err := Proto(wrapperspb.Int64(7)).Marshal()
	require.NoError(t, err)

	out := &wrapperspb.Int64Value{}
	m := Proto(out)
	require.NoError(t, m.Unmarshal(data))
	assert.Equal(t, int64(7), out.GetValue())
	assert.Same(t, out, Value(m))
}

func TestProtoMessageEmptyPayload(t *testing.T) {
	// proto3 encodes an all-default message as zero bytes
	data, err := Proto(wrapperspb.Int64(0)).Marshal()
	require.NoError(t, err)
	assert.Empty(t, data)

	out := &wrapperspb.Int64Value{Value: 42}
	require.NoError(t, Proto(out).Unmarshal(data))
	assert.Equal(t, int64(0), out.GetValue())
}

func TestBytesMessage(t *testing.T) {
	var b Bytes
	require.NoError(t, b.Unmarshal([]byte("raw")))

	data, err := b.Marshal()
	require.NoError(t, err)
	assert.Equal(t, "raw", string(data))
	assert.Same(t, &b, Value(&b))
}
