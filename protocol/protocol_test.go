package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestEncodeDecode(t *testing.T) {
	testCases := []struct {
		name string
		h    Header
		args []byte
	}{
		{name: "normal", h: Header{ServiceName: "Arith", MethodName: "Add"}, args: []byte{0x08, 0x03, 0x10, 0x04}},
		{name: "empty args", h: Header{ServiceName: "UserService", MethodName: "Login"}, args: []byte{}},
		{name: "args with zero bytes", h: Header{ServiceName: "S", MethodName: "M"}, args: []byte{0, 0, 0, 1, 0}},
		{name: "utf8 names", h: Header{ServiceName: "服务", MethodName: "方法"}, args: []byte("hello world")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.h.ArgsSize = uint32(len(tc.args))
			frame, err := Encode(&tc.h, tc.args)
			require.NoError(t, err)

			h, args, err := Decode(frame)
			require.NoError(t, err)
			assert.Equal(t, tc.h, *h)
			assert.True(t, bytes.Equal(tc.args, args))
		})
	}
}

func TestEncodeLengthInvariant(t *testing.T) {
	h := &Header{ServiceName: "Arith", MethodName: "Add", ArgsSize: 11}
	args := []byte("hello world")

	frame, err := Encode(h, args)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	hlen := ByteOrder.Uint32(frame[:PrefixSize])
	header, _ := h.Marshal()
	if int(hlen) != len(header) {
		t.Fatalf("header_length mismatch: got %d, want %d", hlen, len(header))
	}
	if got := len(frame) - PrefixSize - int(hlen); got != int(h.ArgsSize) {
		t.Fatalf("args segment mismatch: got %d, want %d", got, h.ArgsSize)
	}
}

func TestPrefixIsLittleEndian(t *testing.T) {
	h := &Header{ServiceName: "Arith", MethodName: "Add"}
	frame, err := Encode(h, nil)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	header, _ := h.Marshal()
	// header is shorter than 256 bytes, so only the first prefix byte is set
	want := []byte{byte(len(header)), 0, 0, 0}
	if !bytes.Equal(frame[:PrefixSize], want) {
		t.Fatalf("prefix = %x, want %x", frame[:PrefixSize], want)
	}
}

func TestEncodeRejectsInvalidHeader(t *testing.T) {
	cases := map[string]struct {
		h    *Header
		args []byte
	}{
		"nil header":     {nil, nil},
		"empty service":  {&Header{MethodName: "Add"}, nil},
		"empty method":   {&Header{ServiceName: "Arith"}, nil},
		"size mismatch":  {&Header{ServiceName: "Arith", MethodName: "Add", ArgsSize: 3}, []byte{1}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Encode(tc.h, tc.args)
			assert.ErrorIs(t, err, ErrEncode)
		})
	}
}

func TestDecodeFrameTooShort(t *testing.T) {
	if _, _, err := Decode([]byte{1, 0}); !errors.Is(err, ErrFrameTooShort) {
		t.Fatalf("expect ErrFrameTooShort for short prefix, got %v", err)
	}

	// prefix declares 200 header bytes, only 3 follow
	frame := []byte{200, 0, 0, 0, 1, 2, 3}
	if _, _, err := Decode(frame); !errors.Is(err, ErrFrameTooShort) {
		t.Fatalf("expect ErrFrameTooShort for truncated header, got %v", err)
	}
}

func TestDecodeHeaderParseError(t *testing.T) {
	// a tag byte with field number 0 is never valid
	garbage := []byte{0x00, 0xff, 0xff}
	frame := append([]byte{byte(len(garbage)), 0, 0, 0}, garbage...)
	if _, _, err := Decode(frame); !errors.Is(err, ErrHeaderParse) {
		t.Fatalf("expect ErrHeaderParse, got %v", err)
	}

	// well-formed but without method name
	h := Header{ServiceName: "Arith"}
	header, _ := h.Marshal()
	frame = append([]byte{byte(len(header)), 0, 0, 0}, header...)
	if _, _, err := Decode(frame); !errors.Is(err, ErrHeaderParse) {
		t.Fatalf("expect ErrHeaderParse for missing method, got %v", err)
	}
}

func TestDecodeArgsSizeMismatch(t *testing.T) {
	frame, err := Encode(&Header{ServiceName: "Arith", MethodName: "Add", ArgsSize: 4}, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, _, err := Decode(frame[:len(frame)-1]); !errors.Is(err, ErrArgsSizeMismatch) {
		t.Fatalf("expect ErrArgsSizeMismatch, got %v", err)
	}
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	frame, _ := Encode(&Header{ServiceName: "Arith", MethodName: "Add", ArgsSize: 2}, []byte{7, 8})
	frame = append(frame, 9, 9, 9)

	_, args, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 8}, args)
}

func TestHeaderSkipsUnknownFields(t *testing.T) {
	h := Header{ServiceName: "Arith", MethodName: "Add", ArgsSize: 5}
	b, _ := h.Marshal()
	b = protowire.AppendTag(b, 9, protowire.BytesType)
	b = protowire.AppendString(b, "trace-id")

	var got Header
	require.NoError(t, got.Unmarshal(b))
	assert.Equal(t, h, got)
}

func TestHeaderRejectsArgsSizeOverflow(t *testing.T) {
	h := Header{ServiceName: "Arith", MethodName: "Add"}
	b, _ := h.Marshal()
	b = protowire.AppendTag(b, fieldArgsSize, protowire.VarintType)
	b = protowire.AppendVarint(b, 1<<32+5)

	var got Header
	err := got.Unmarshal(b)
	assert.ErrorIs(t, err, ErrHeaderParse)
}

func TestReadFrame(t *testing.T) {
	args := []byte("arguments")
	frame, err := Encode(&Header{ServiceName: "Arith", MethodName: "Add", ArgsSize: uint32(len(args))}, args)
	require.NoError(t, err)

	// one byte per Read, the way a slow peer would deliver it
	got, err := ReadFrame(io.MultiReader(iotestOneByte(frame)...), 0)
	require.NoError(t, err)
	assert.Equal(t, frame, got)

	h, decoded, err := Decode(got)
	require.NoError(t, err)
	assert.Equal(t, "Add", h.MethodName)
	assert.Equal(t, args, decoded)
}

func TestReadFrameTruncated(t *testing.T) {
	frame, _ := Encode(&Header{ServiceName: "Arith", MethodName: "Add", ArgsSize: 4}, []byte{1, 2, 3, 4})

	_, err := ReadFrame(bytes.NewReader(frame[:len(frame)-2]), 0)
	if !errors.Is(err, ErrFrameTooShort) {
		t.Fatalf("expect ErrFrameTooShort, got %v", err)
	}

	_, err = ReadFrame(bytes.NewReader(nil), 0)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expect io.EOF on empty stream, got %v", err)
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	largeArgs := make([]byte, 1024*1024)
	for i := range largeArgs {
		largeArgs[i] = byte(i % 256)
	}
	frame, err := Encode(&Header{ServiceName: "Blob", MethodName: "Put", ArgsSize: uint32(len(largeArgs))}, largeArgs)
	require.NoError(t, err)

	_, err = ReadFrame(bytes.NewReader(frame), 64*1024)
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	got, err := ReadFrame(bytes.NewReader(frame), 2*1024*1024)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(frame, got))
}

func iotestOneByte(b []byte) []io.Reader {
	rs := make([]io.Reader, len(b))
	for i := range b {
		rs[i] = bytes.NewReader(b[i : i+1])
	}
	return rs
}
