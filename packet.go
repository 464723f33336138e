package zpacket

import (
	"bytes"
	"fmt"
)

const (
	// MaxAddress is the highest address representable in the 6-bit address field.
	MaxAddress = 63
	// MaxPayload is the largest payload a single frame can carry.
	MaxPayload = 255
	// Overhead is the number of non-payload bytes in every frame.
	Overhead = 4
	// MaxFrameLen is the length of a frame carrying MaxPayload bytes.
	MaxFrameLen = MaxPayload + Overhead

	addressMask byte = 0x3F
	startMarker byte = 0x80
)

// Packet is an immutable addressed payload. The zero value is a valid empty
// packet from address 0 to address 0.
type Packet struct {
	dst  uint8
	src  uint8
	data []byte
}

// New validates the addresses and copies payload into the returned Packet.
// Payloads longer than MaxPayload are rejected, never truncated.
func New(dst, src uint8, payload []byte) (Packet, error) {
	if dst > MaxAddress {
		return Packet{}, ErrDestinationAddressOutOfRange
	}
	if src > MaxAddress {
		return Packet{}, ErrSenderAddressOutOfRange
	}
	if len(payload) > MaxPayload {
		return Packet{}, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), MaxPayload)
	}
	p := Packet{dst: dst, src: src}
	if len(payload) > 0 {
		p.data = append(make([]byte, 0, len(payload)), payload...)
	}
	return p, nil
}

// MustNew is like New but panics on error. Handy for fixtures and tests.
func MustNew(dst, src uint8, payload []byte) Packet {
	p, err := New(dst, src, payload)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Packet) Destination() uint8 { return p.dst }
func (p Packet) Source() uint8      { return p.src }
func (p Packet) Len() int           { return len(p.data) }

// FrameLen is the number of bytes the packet occupies on the wire.
func (p Packet) FrameLen() int { return Overhead + len(p.data) }

// Payload returns a copy of the payload; the Packet itself is never mutated.
func (p Packet) Payload() []byte {
	return append([]byte(nil), p.data...)
}

// Equal reports whether both packets carry the same addresses and payload bytes.
func (p Packet) Equal(o Packet) bool {
	return p.dst == o.dst && p.src == o.src && bytes.Equal(p.data, o.data)
}

func (p Packet) String() string {
	return fmt.Sprintf("packet %d->%d len=%d", p.src, p.dst, len(p.data))
}

// Serializer returns a fresh Serializer for p.
func (p Packet) Serializer() *Serializer { return NewSerializer(p) }

// AppendPayload appends the payload to dst and returns the extended slice.
func (p Packet) AppendPayload(dst []byte) []byte { return append(dst, p.data...) }
