// Package protocol implements the request frame used between a Channel and a Provider.
//
// A request travels as one frame per connection. The receiver reads the length prefix
// first to find the header boundary, parses the header to learn how many argument
// bytes follow, then reads exactly that many bytes.
//
// Frame format:
//
//	0         4                    4+hlen               4+hlen+args_size
//	┌─────────┬────────────────────┬────────────────────┐
//	│  hlen   │      header        │     arguments      │
//	│ uint32  │ protobuf-encoded   │  serialized request│
//	│ LE      │ hlen bytes         │  args_size bytes   │
//	└─────────┴────────────────────┴────────────────────┘
//
// The response is not framed: the server writes the raw serialized response message
// and closes the connection.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// PrefixSize is the width of the header length prefix.
const PrefixSize = 4

// DefaultMaxFrameSize bounds ReadFrame when the caller passes a non-positive limit.
const DefaultMaxFrameSize = 4 << 20

// ByteOrder is the byte order of the length prefix. Both ends of the wire must use it.
var ByteOrder = binary.LittleEndian

var (
	ErrEncode           = errors.New("protocol: encode frame")
	ErrFrameTooShort    = errors.New("protocol: frame too short")
	ErrFrameTooLarge    = errors.New("protocol: frame too large")
	ErrHeaderParse      = errors.New("protocol: parse header")
	ErrArgsSizeMismatch = errors.New("protocol: args size mismatch")
)

// Encode builds a complete frame (prefix + header + args).
// h.ArgsSize must already equal len(args).
func Encode(h *Header, args []byte) ([]byte, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: nil header", ErrEncode)
	}
	if h.ServiceName == "" || h.MethodName == "" {
		return nil, fmt.Errorf("%w: empty service or method name", ErrEncode)
	}
	if int(h.ArgsSize) != len(args) {
		return nil, fmt.Errorf("%w: args_size %d, have %d bytes", ErrEncode, h.ArgsSize, len(args))
	}

	header, err := h.Marshal()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	buf := make([]byte, PrefixSize+len(header)+len(args))
	ByteOrder.PutUint32(buf[:PrefixSize], uint32(len(header)))
	copy(buf[PrefixSize:], header)
	copy(buf[PrefixSize+len(header):], args)
	return buf, nil
}

// Decode splits a frame into its header and argument bytes.
// Bytes after the declared arguments are ignored.
func Decode(frame []byte) (*Header, []byte, error) {
	if len(frame) < PrefixSize {
		return nil, nil, fmt.Errorf("%w: %d bytes, need %d for prefix", ErrFrameTooShort, len(frame), PrefixSize)
	}
	hlen := ByteOrder.Uint32(frame[:PrefixSize])
	rest := frame[PrefixSize:]
	if uint64(len(rest)) < uint64(hlen) {
		return nil, nil, fmt.Errorf("%w: header declares %d bytes, have %d", ErrFrameTooShort, hlen, len(rest))
	}

	h := new(Header)
	if err := h.Unmarshal(rest[:hlen]); err != nil {
		return nil, nil, err
	}

	args := rest[hlen:]
	if uint64(len(args)) < uint64(h.ArgsSize) {
		return nil, nil, fmt.Errorf("%w: header declares %d bytes, have %d", ErrArgsSizeMismatch, h.ArgsSize, len(args))
	}
	return h, args[:h.ArgsSize], nil
}

// ReadFrame reads exactly one frame from r and returns its raw bytes, ready for Decode.
// It uses io.ReadFull so a frame split across several TCP segments is reassembled.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}

	prefix := make([]byte, PrefixSize)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, readErr(err)
	}
	hlen := ByteOrder.Uint32(prefix)
	if uint64(hlen)+PrefixSize > uint64(maxSize) {
		return nil, fmt.Errorf("%w: header of %d bytes exceeds %d", ErrFrameTooLarge, hlen, maxSize)
	}

	header := make([]byte, hlen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, readErr(err)
	}
	var h Header
	if err := h.Unmarshal(header); err != nil {
		return nil, err
	}

	total := uint64(PrefixSize) + uint64(hlen) + uint64(h.ArgsSize)
	if total > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFrameTooLarge, total, maxSize)
	}

	frame := make([]byte, total)
	copy(frame, prefix)
	copy(frame[PrefixSize:], header)
	if _, err := io.ReadFull(r, frame[PrefixSize+int(hlen):]); err != nil {
		return nil, readErr(err)
	}
	return frame, nil
}

// readErr maps a truncated stream onto ErrFrameTooShort and passes other errors through.
func readErr(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrFrameTooShort, err)
	}
	return err
}
