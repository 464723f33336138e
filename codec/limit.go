package codec

import "fmt"

// DefaultLimit is the payload capacity of one frame.
const DefaultLimit = 255

// LimitCodec wraps another codec and refuses payloads larger than Max in
// both directions, so an oversized value fails at Encode with a clear
// error instead of at packet construction.
// If Max <= 0, DefaultLimit is used.
type LimitCodec[V any] struct {
	// Inner is the underlying codec being wrapped. It must be set.
	Inner Codec[V]
	Max   int
}

// Limit wraps inner with the frame payload limit.
func Limit[V any](inner Codec[V]) LimitCodec[V] {
	return LimitCodec[V]{Inner: inner}
}

func (c LimitCodec[V]) max() int {
	if c.Max <= 0 {
		return DefaultLimit
	}
	return c.Max
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if len(b) > c.max() {
		return nil, fmt.Errorf("codec: encoded payload too large: %d > %d", len(b), c.max())
	}
	return b, nil
}

func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if len(b) > c.max() {
		var zero V
		return zero, fmt.Errorf("codec: payload too large: %d > %d", len(b), c.max())
	}
	return c.Inner.Decode(b)
}
