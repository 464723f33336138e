package zpacket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

const (
	defaultReadBufferSize  = 64
	defaultWriteBufferSize = 64
	maxEmptyReads          = 100
)

// LinkOptions tune a Link. The zero value is usable.
type LinkOptions struct {
	Logger          Logger // if nil, NopLogger is used
	Hooks           Hooks  // if nil, NopHooks is used
	ReadBufferSize  int    // bytes per read from the stream; 0 => 64
	WriteBufferSize int    // bytes per write to the stream; 0 => 64
	// SkipBadFrames keeps ReadPacket going after a rejected frame instead of
	// returning its error. Rejections are still logged and hooked.
	SkipBadFrames bool
}

// Link moves Packets over a byte stream (serial port, pipe, socket).
// One goroutine may read while another writes; concurrent readers (or
// writers) are serialized.
type Link struct {
	r     io.Reader
	w     io.Writer
	log   Logger
	hooks Hooks
	skip  bool

	rmu     sync.Mutex
	dec     *Deserializer
	rbuf    []byte
	pending []byte
	rerr    error

	wmu  sync.Mutex
	wbuf []byte

	smu   sync.Mutex
	stats Stats
}

func NewLink(rw io.ReadWriter, opts LinkOptions) *Link {
	return newLink(rw, rw, opts)
}

func newLink(r io.Reader, w io.Writer, opts LinkOptions) *Link {
	l := &Link{
		r:    r,
		w:    w,
		skip: opts.SkipBadFrames,
		dec:  NewDeserializer(),
	}
	l.log = coalesce[Logger](opts.Logger, NopLogger{})
	l.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	l.rbuf = make([]byte, positive(opts.ReadBufferSize, defaultReadBufferSize))
	l.wbuf = make([]byte, positive(opts.WriteBufferSize, defaultWriteBufferSize))
	return l
}

// WritePacket serializes p through the bounded write buffer.
// ctx is checked between chunks; a frame cut short by cancellation leaves
// the peer to resynchronize on the next start marker.
func (l *Link) WritePacket(ctx context.Context, p Packet) error {
	l.wmu.Lock()
	defer l.wmu.Unlock()

	s := NewSerializer(p)
	for !s.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.Read(l.wbuf)
		if err == io.EOF {
			break
		}
		if _, err := l.w.Write(l.wbuf[:n]); err != nil {
			f := packetFields(p)
			f["err"] = err
			l.log.Error("frame write failed", f)
			return fmt.Errorf("zpacket: write frame %d->%d: %w", p.src, p.dst, err)
		}
	}
	l.hooks.FrameSent(p.dst, p.src, len(p.data))
	l.log.Debug("frame sent", packetFields(p))
	return nil
}

// ReadPacket returns the next valid Packet from the stream. Bytes read past
// the end of that frame are kept for the next call. A rejected frame is
// returned as its error unless SkipBadFrames is set. If the stream ends in
// the middle of a frame the error is io.ErrUnexpectedEOF.
func (l *Link) ReadPacket(ctx context.Context) (Packet, error) {
	l.rmu.Lock()
	defer l.rmu.Unlock()

	empty := 0
	for {
		if len(l.pending) > 0 {
			n, p, err := l.dec.Feed(l.pending)
			l.pending = l.pending[n:]
			l.publishStats()
			if skipped := l.dec.Skipped(); skipped > 0 {
				l.hooks.NoiseDiscarded(skipped)
				l.log.Debug("discarded noise", Fields{"bytes": skipped})
			}
			if err != nil {
				l.hooks.FrameRejected(err)
				l.log.Warn("frame rejected", Fields{"err": err})
				if l.skip {
					continue
				}
				return Packet{}, err
			}
			if p != nil {
				l.hooks.FrameReceived(p.dst, p.src, len(p.data))
				l.log.Debug("frame received", packetFields(*p))
				return *p, nil
			}
			continue
		}

		if l.rerr != nil {
			err := l.rerr
			l.rerr = nil
			return Packet{}, l.endOfStream(err)
		}
		if err := ctx.Err(); err != nil {
			return Packet{}, err
		}

		n, err := l.r.Read(l.rbuf)
		if n > 0 {
			empty = 0
			l.pending = l.rbuf[:n]
		}
		if err != nil {
			if n == 0 {
				return Packet{}, l.endOfStream(err)
			}
			l.rerr = err // surface after the buffered bytes are parsed
			continue
		}
		if n == 0 {
			if empty++; empty >= maxEmptyReads {
				return Packet{}, io.ErrNoProgress
			}
		}
	}
}

func (l *Link) endOfStream(err error) error {
	if errors.Is(err, io.EOF) && l.dec.Buffered() > 0 {
		l.log.Warn("stream ended mid-frame", Fields{"buffered": l.dec.Buffered(), "stage": l.dec.Stage().String()})
		l.dec.Reset()
		return io.ErrUnexpectedEOF
	}
	return err
}

func (l *Link) publishStats() {
	st := l.dec.Stats()
	l.smu.Lock()
	l.stats = st
	l.smu.Unlock()
}

// Stats reports the receive side counters. Safe to call while a read is
// blocked on the stream.
func (l *Link) Stats() Stats {
	l.smu.Lock()
	defer l.smu.Unlock()
	return l.stats
}
