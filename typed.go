package zpacket

import (
	"fmt"

	c "github.com/unkn0wn-root/zpacket/codec"
)

// Encode builds a Packet whose payload is v encoded with codec.
func Encode[V any](codec c.Codec[V], dst, src uint8, v V) (Packet, error) {
	b, err := codec.Encode(v)
	if err != nil {
		return Packet{}, fmt.Errorf("zpacket: encode payload: %w", err)
	}
	return New(dst, src, b)
}

// Decode decodes p's payload with codec.
func Decode[V any](codec c.Codec[V], p Packet) (V, error) {
	v, err := codec.Decode(p.Payload())
	if err != nil {
		var zero V
		return zero, fmt.Errorf("zpacket: decode payload from %d: %w", p.src, err)
	}
	return v, nil
}
