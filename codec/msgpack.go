package codec

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack serializes values with vmihailenco/msgpack. The zero value is
// ready to use.
//
// Integers and floats are written in their smallest lossless form. Use short
// `msgpack:"k"` tags to save payload bytes, or set ArrayStructs to drop the
// field names entirely; both ends must then agree on field order.
type Msgpack[V any] struct {
	ArrayStructs bool
}

func (c Msgpack[V]) Encode(v V) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	enc.UseCompactFloats(true)
	enc.UseArrayEncodedStructs(c.ArrayStructs)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode fails if b holds more than one value.
func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	r := bytes.NewReader(b)
	if err := msgpack.NewDecoder(r).Decode(&v); err != nil {
		return v, err
	}
	if r.Len() > 0 {
		return v, fmt.Errorf("codec: msgpack: %d trailing bytes", r.Len())
	}
	return v, nil
}
