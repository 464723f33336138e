// Package codec turns typed values into packet payloads and back.
//
// A payload rides in a single frame, so it is at most 255 bytes. The
// compact codecs (Msgpack, CBOR, Protobuf) are the usual choice; JSON is
// there for debugging consoles and human-typed commands. Wrap any codec
// whose output can grow with LimitCodec to fail at Encode instead of at
// packet construction.
package codec

// Codec encodes/decodes values V to []byte payloads.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

var (
	_ Codec[[]byte] = Bytes{}
	_ Codec[string] = String{}
	_ Codec[uint16] = Uint16{}
	_ Codec[uint32] = Uint32{}
	_ Codec[any]    = JSON[any]{}
	_ Codec[any]    = Msgpack[any]{}
	_ Codec[any]    = CBOR[any]{}
)
