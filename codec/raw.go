package codec

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// Bytes passes payloads through unchanged.
type Bytes struct{}

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }

// String carries UTF-8 text; Decode rejects anything else.
type String struct{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }

func (String) Decode(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", fmt.Errorf("codec: string: invalid utf-8")
	}
	return string(b), nil
}

// Uint16 and Uint32 carry one big-endian register value, the usual payload
// of a sensor reading or a setpoint write.
type (
	Uint16 struct{}
	Uint32 struct{}
)

func (Uint16) Encode(v uint16) ([]byte, error) { return binary.BigEndian.AppendUint16(nil, v), nil }

func (Uint16) Decode(b []byte) (uint16, error) {
	if len(b) != 2 {
		return 0, fmt.Errorf("codec: uint16: payload is %d bytes", len(b))
	}
	return binary.BigEndian.Uint16(b), nil
}

func (Uint32) Encode(v uint32) ([]byte, error) { return binary.BigEndian.AppendUint32(nil, v), nil }

func (Uint32) Decode(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("codec: uint32: payload is %d bytes", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}
