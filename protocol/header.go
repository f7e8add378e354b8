package protocol

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the header message. The layout matches
//
//	message RpcHeader {
//	  bytes  service_name = 1;
//	  bytes  method_name  = 2;
//	  uint32 args_size    = 3;
//	}
const (
	fieldServiceName protowire.Number = 1
	fieldMethodName  protowire.Number = 2
	fieldArgsSize    protowire.Number = 3
)

// Header identifies the target of a request frame and the size of its arguments.
type Header struct {
	ServiceName string
	MethodName  string
	ArgsSize    uint32
}

// Marshal encodes the header in protobuf wire format.
func (h *Header) Marshal() ([]byte, error) {
	b := make([]byte, 0, 3*protowire.SizeTag(fieldArgsSize)+
		protowire.SizeBytes(len(h.ServiceName))+
		protowire.SizeBytes(len(h.MethodName))+
		protowire.SizeVarint(uint64(h.ArgsSize)))

	// proto3 omits default values
	if h.ServiceName != "" {
		b = protowire.AppendTag(b, fieldServiceName, protowire.BytesType)
		b = protowire.AppendString(b, h.ServiceName)
	}
	if h.MethodName != "" {
		b = protowire.AppendTag(b, fieldMethodName, protowire.BytesType)
		b = protowire.AppendString(b, h.MethodName)
	}
	if h.ArgsSize != 0 {
		b = protowire.AppendTag(b, fieldArgsSize, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h.ArgsSize))
	}
	return b, nil
}

// Unmarshal decodes a header. Unknown fields are skipped; a header without
// a service or method name is rejected.
func (h *Header) Unmarshal(b []byte) error {
	*h = Header{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrHeaderParse, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldServiceName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return fmt.Errorf("%w: service_name: %v", ErrHeaderParse, protowire.ParseError(n))
			}
			h.ServiceName = v
			b = b[n:]
		case num == fieldMethodName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return fmt.Errorf("%w: method_name: %v", ErrHeaderParse, protowire.ParseError(n))
			}
			h.MethodName = v
			b = b[n:]
		case num == fieldArgsSize && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("%w: args_size: %v", ErrHeaderParse, protowire.ParseError(n))
			}
			if v > math.MaxUint32 {
				return fmt.Errorf("%w: args_size %d overflows uint32", ErrHeaderParse, v)
			}
			h.ArgsSize = uint32(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrHeaderParse, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if h.ServiceName == "" || h.MethodName == "" {
		return fmt.Errorf("%w: missing service or method name", ErrHeaderParse)
	}
	return nil
}
