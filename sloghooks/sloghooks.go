package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/zpacket"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	NoiseEvery    uint64
	RejectedEvery uint64
	// Log every received/sent frame at debug level.
	Traffic bool
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	noiseCtr    atomic.Uint64
	rejectedCtr atomic.Uint64
}

var _ zpacket.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) FrameReceived(dst, src uint8, n int) {
	if h.l == nil || !h.opts.Traffic {
		return
	}
	h.l.Debug("zpacket.frame_received",
		"dst", dst,
		"src", src,
		"len", n)
}

func (h *Hooks) FrameSent(dst, src uint8, n int) {
	if h.l == nil || !h.opts.Traffic {
		return
	}
	h.l.Debug("zpacket.frame_sent",
		"dst", dst,
		"src", src,
		"len", n)
}

func (h *Hooks) FrameRejected(err error) {
	if h.l == nil || !sample(h.opts.RejectedEvery, &h.rejectedCtr) {
		return
	}
	h.l.Warn("zpacket.frame_rejected", "err", err)
}

func (h *Hooks) NoiseDiscarded(n int) {
	if h.l == nil || !sample(h.opts.NoiseEvery, &h.noiseCtr) {
		return
	}
	h.l.Debug("zpacket.noise_discarded", "bytes", n)
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil {
		return
	}
	h.l.Info("zpacket.mailbox_self_heal",
		"key", storageKey,
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("zpacket.provider_set_rejected", "key", storageKey)
}

func (h *Hooks) GenError(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("zpacket.gen_error",
		"key", storageKey,
		"err", err)
}
