package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

var (
	pbMarshal   = proto.MarshalOptions{Deterministic: true}
	pbUnmarshal = proto.UnmarshalOptions{RecursionLimit: 16}
)

// Protobuf encodes generated messages. Marshaling is deterministic so a
// retransmitted message yields the same frame.
type Protobuf[T proto.Message] struct {
	new func() T // e.g. func() *pb.Reading { return &pb.Reading{} }
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

// Encode sizes the message first and fails before marshaling anything that
// cannot fit a frame.
func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	n := pbMarshal.Size(v)
	if n > DefaultLimit {
		return nil, fmt.Errorf("codec: protobuf: message is %d bytes > %d", n, DefaultLimit)
	}
	return pbMarshal.MarshalAppend(make([]byte, 0, n), v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := pbUnmarshal.Unmarshal(b, m)
	return m, err
}
