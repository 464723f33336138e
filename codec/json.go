package codec

import (
	"bytes"
	"encoding/json"
	"errors"
)

// JSON is backed by encoding/json. Verbose on the wire; keep it for consoles
// and hand-typed commands. Decoding is strict: unknown object fields and
// anything after the first value are errors, which catches a payload sent to
// the wrong node early.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }

func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, err
	}
	if dec.More() {
		return v, errors.New("codec: json: trailing data after value")
	}
	return v, nil
}
