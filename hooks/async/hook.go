// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    NoiseEvery:    100, // serial lines are noisy; sample
//	    RejectedEvery: 1,   // log every bad frame
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	link := zpacket.NewLink(port, zpacket.LinkOptions{Hooks: hooks})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/zpacket"
)

// Hooks forwards events to inner on a worker pool so slow sinks never stall
// a link. Events are dropped when the queue is full; Dropped counts them.
type Hooks struct {
	inner   zpacket.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ zpacket.Hooks = (*Hooks)(nil)

func New(inner zpacket.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events fired after
// Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) FrameRejected(err error)      { h.try(func() { h.inner.FrameRejected(err) }) }
func (h *Hooks) NoiseDiscarded(n int)         { h.try(func() { h.inner.NoiseDiscarded(n) }) }
func (h *Hooks) SelfHeal(k, r string)         { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) ProviderSetRejected(k string) { h.try(func() { h.inner.ProviderSetRejected(k) }) }
func (h *Hooks) GenError(k string, err error) { h.try(func() { h.inner.GenError(k, err) }) }
func (h *Hooks) FrameReceived(dst, src uint8, n int) {
	h.try(func() { h.inner.FrameReceived(dst, src, n) })
}
func (h *Hooks) FrameSent(dst, src uint8, n int) {
	h.try(func() { h.inner.FrameSent(dst, src, n) })
}
