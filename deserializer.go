package zpacket

import "fmt"

// Stage is the part of a frame the Deserializer expects next.
type Stage uint8

const (
	StageSeekStart Stage = iota
	StageSender
	StageLength
	StageData
	StageChecksum
)

func (s Stage) String() string {
	switch s {
	case StageSeekStart:
		return "seek-start"
	case StageSender:
		return "sender"
	case StageLength:
		return "length"
	case StageData:
		return "data"
	case StageChecksum:
		return "checksum"
	default:
		return "unknown"
	}
}

// Stats counts what a Deserializer has seen over its lifetime.
type Stats struct {
	Frames uint64 // frames that passed validation
	BadCRC uint64 // frames rejected on checksum
	Noise  uint64 // bytes discarded while seeking a start marker
	Bytes  uint64 // total bytes consumed
}

// Deserializer rebuilds Packets from a byte stream delivered in chunks of
// any size. Keep one per stream: partial frames carry over between calls.
// After every completed frame, valid or not, it is back at StageSeekStart.
type Deserializer struct {
	stage    Stage
	dst      uint8
	src      uint8
	length   int
	cursor   int
	crc      byte
	buf      [MaxPayload]byte
	stats    Stats
	lastSkip int
}

func NewDeserializer() *Deserializer { return &Deserializer{} }

// Feed consumes in up to and including the byte that completes or fails a
// frame. n reports how many bytes were used; the caller must resubmit
// in[n:] later. A nil packet with a nil error means more bytes are needed,
// in which case n == len(in).
func (d *Deserializer) Feed(in []byte) (n int, p *Packet, err error) {
	d.lastSkip = 0
	for _, b := range in {
		n++
		switch d.stage {
		case StageSeekStart:
			if b&^addressMask != startMarker {
				d.lastSkip++
				continue
			}
			d.dst = b & addressMask
			d.crc = b
			d.stage = StageSender
		case StageSender:
			// top two bits are reserved
			d.src = b & addressMask
			d.crc ^= b
			d.stage = StageLength
		case StageLength:
			d.length = int(b)
			d.cursor = 0
			d.crc ^= b
			if d.length == 0 {
				d.stage = StageChecksum
			} else {
				d.stage = StageData
			}
		case StageData:
			d.buf[d.cursor] = b
			d.cursor++
			d.crc ^= b
			if d.cursor == d.length {
				d.stage = StageChecksum
			}
		case StageChecksum:
			p, err = d.finish(b)
			d.stats.Bytes += uint64(n)
			d.stats.Noise += uint64(d.lastSkip)
			return n, p, err
		}
	}
	d.stats.Bytes += uint64(n)
	d.stats.Noise += uint64(d.lastSkip)
	return n, nil, nil
}

func (d *Deserializer) finish(got byte) (*Packet, error) {
	defer d.Reset()
	if got != d.crc {
		d.stats.BadCRC++
		return nil, &FrameError{
			Destination: d.dst,
			Source:      d.src,
			Length:      d.length,
			Want:        d.crc,
			Got:         got,
		}
	}
	pkt, err := New(d.dst, d.src, d.buf[:d.length])
	if err != nil {
		return nil, err
	}
	d.stats.Frames++
	return &pkt, nil
}

// Reset drops any partial frame and returns to StageSeekStart.
// Lifetime stats are kept.
func (d *Deserializer) Reset() {
	d.stage = StageSeekStart
	d.dst, d.src = 0, 0
	d.length, d.cursor = 0, 0
	d.crc = 0
}

func (d *Deserializer) Stage() Stage { return d.stage }

// Buffered is the number of bytes of the current partial frame seen so far.
func (d *Deserializer) Buffered() int {
	switch d.stage {
	case StageSeekStart:
		return 0
	case StageSender:
		return 1
	case StageLength:
		return 2
	default:
		return 3 + d.cursor
	}
}

// Skipped is the number of noise bytes discarded by the last Feed call.
func (d *Deserializer) Skipped() int { return d.lastSkip }

func (d *Deserializer) Stats() Stats { return d.stats }

// Unmarshal parses b as exactly one frame starting at its first byte.
func Unmarshal(b []byte) (Packet, error) {
	if len(b) < Overhead {
		return Packet{}, ErrShortFrame
	}
	if b[0]&^addressMask != startMarker {
		return Packet{}, fmt.Errorf("%w: 0x%02x", ErrNoStartMarker, b[0])
	}
	var d Deserializer
	n, p, err := d.Feed(b)
	switch {
	case err != nil:
		return Packet{}, err
	case p == nil:
		return Packet{}, ErrShortFrame
	case n != len(b):
		return Packet{}, ErrTrailingBytes
	}
	return *p, nil
}
