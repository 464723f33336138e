// Package prom counts link and mailbox events in Prometheus.
//
//	h, err := prom.New(prometheus.DefaultRegisterer, "plant1_bus0")
//	link := zpacket.NewLink(port, zpacket.LinkOptions{Hooks: h})
//
// Counter increments are cheap enough to run inline; no async wrapper needed.
package prom

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/zpacket"
)

const subsystem = "zpacket"

type Hooks struct {
	received   prometheus.Counter
	sent       prometheus.Counter
	payload    prometheus.Counter
	rejected   *prometheus.CounterVec
	noise      prometheus.Counter
	selfHeal   *prometheus.CounterVec
	setReject  prometheus.Counter
	genErrors  prometheus.Counter
	collectors []prometheus.Collector
}

var _ zpacket.Hooks = (*Hooks)(nil)

// New registers the counters with reg under namespace.
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}
	h := &Hooks{
		received: counter("frames_received_total", "Frames that passed checksum validation."),
		sent:     counter("frames_sent_total", "Frames fully written to the link."),
		payload:  counter("payload_bytes_total", "Payload bytes of received and sent frames."),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_rejected_total",
			Help:      "Complete frames dropped, by reason.",
		}, []string{"reason"}),
		noise: counter("noise_bytes_total", "Bytes discarded while seeking a start marker."),
		selfHeal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "mailbox_self_heal_total",
			Help:      "Stored mailbox entries deleted on read, by reason.",
		}, []string{"reason"}),
		setReject: counter("mailbox_set_rejected_total", "Deliveries the store refused under pressure."),
		genErrors: counter("gen_errors_total", "Generation store failures."),
	}
	h.collectors = []prometheus.Collector{
		h.received, h.sent, h.payload, h.rejected, h.noise, h.selfHeal, h.setReject, h.genErrors,
	}
	for _, c := range h.collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Unregister removes the counters from reg, e.g. when a link is torn down.
func (h *Hooks) Unregister(reg prometheus.Registerer) {
	for _, c := range h.collectors {
		reg.Unregister(c)
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, zpacket.ErrBadCRC):
		return "bad_crc"
	case errors.Is(err, zpacket.ErrDestinationAddressOutOfRange),
		errors.Is(err, zpacket.ErrSenderAddressOutOfRange):
		return "address"
	default:
		return "other"
	}
}

func (h *Hooks) FrameReceived(_, _ uint8, n int) {
	h.received.Inc()
	h.payload.Add(float64(n))
}

func (h *Hooks) FrameSent(_, _ uint8, n int) {
	h.sent.Inc()
	h.payload.Add(float64(n))
}

func (h *Hooks) FrameRejected(err error)    { h.rejected.WithLabelValues(rejectReason(err)).Inc() }
func (h *Hooks) NoiseDiscarded(n int)       { h.noise.Add(float64(n)) }
func (h *Hooks) SelfHeal(_, reason string)  { h.selfHeal.WithLabelValues(reason).Inc() }
func (h *Hooks) ProviderSetRejected(string) { h.setReject.Inc() }
func (h *Hooks) GenError(string, error)     { h.genErrors.Inc() }
