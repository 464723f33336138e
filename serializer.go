package zpacket

import "io"

type serializerState uint8

const (
	serDestination serializerState = iota
	serSender
	serLength
	serData
	serCRC
	serDone
)

// Serializer produces the wire frame of one Packet a byte at a time.
// Once the checksum byte is emitted it is exhausted for good; encode the
// packet again with a new Serializer.
type Serializer struct {
	state serializerState
	i     int
	crc   byte
	p     Packet
}

var _ io.Reader = (*Serializer)(nil)

func NewSerializer(p Packet) *Serializer {
	return &Serializer{p: p}
}

// Next returns the next frame byte, or false once the frame is complete.
func (s *Serializer) Next() (byte, bool) {
	var b byte
	switch s.state {
	case serDestination:
		b = startMarker | (s.p.dst & addressMask)
		s.crc = b
		s.state = serSender
		return b, true
	case serSender:
		b = s.p.src & addressMask
		s.state = serLength
	case serLength:
		b = byte(len(s.p.data))
		if len(s.p.data) == 0 {
			s.state = serCRC
		} else {
			s.state = serData
		}
	case serData:
		b = s.p.data[s.i]
		s.i++
		if s.i == len(s.p.data) {
			s.state = serCRC
		}
	case serCRC:
		s.state = serDone
		return s.crc, true
	default:
		return 0, false
	}
	s.crc ^= b
	return b, true
}

// Read fills p with as many frame bytes as fit and returns io.EOF once
// the frame is exhausted.
func (s *Serializer) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		b, ok := s.Next()
		if !ok {
			break
		}
		p[n] = b
		n++
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Remaining is the number of bytes still to be produced.
func (s *Serializer) Remaining() int {
	switch s.state {
	case serDestination:
		return s.p.FrameLen()
	case serSender:
		return s.p.FrameLen() - 1
	case serLength:
		return s.p.FrameLen() - 2
	case serData:
		return len(s.p.data) - s.i + 1
	case serCRC:
		return 1
	default:
		return 0
	}
}

func (s *Serializer) Done() bool { return s.state == serDone }

// AppendFrame appends the complete wire frame of p to dst.
func AppendFrame(dst []byte, p Packet) []byte {
	s := NewSerializer(p)
	for {
		b, ok := s.Next()
		if !ok {
			return dst
		}
		dst = append(dst, b)
	}
}

// Marshal returns the complete wire frame of p.
func Marshal(p Packet) []byte {
	return AppendFrame(make([]byte, 0, p.FrameLen()), p)
}
