package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version byte = 1
	hdrLen       = 4 + 1 + 8 + 2
	// maxFrame bounds the stored frame: 4 bytes of overhead + 255 payload.
	maxFrame = 259
)

var (
	ErrCorrupt = errors.New("zpacket: corrupt mailbox entry")
	magic4     = [...]byte{'Z', 'P', 'K', 'T'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry: magic(4) | ver(1) | gen(u64 be) | flen(u16 be) | frame(flen)
//
// frame is a complete zpacket wire frame; it is validated by the caller's
// Deserializer, not here.
func EncodeEntry(gen uint64, frame []byte) ([]byte, error) {
	if len(frame) == 0 || len(frame) > maxFrame {
		return nil, ErrCorrupt
	}
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(frame))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u8 [8]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], gen)
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(frame)))
	buf.Write(u2[:])

	buf.Write(frame)
	return buf.Bytes(), nil
}

// DecodeEntry returns the generation and a zero-copy slice of the frame.
// Trailing bytes are treated as corruption.
func DecodeEntry(b []byte) (gen uint64, frame []byte, err error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version {
		return 0, nil, ErrCorrupt
	}

	off := 5

	gen = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	flen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if flen == 0 || flen > maxFrame || flen != len(b)-off {
		return 0, nil, ErrCorrupt
	}

	return gen, b[off : off+flen], nil
}
