package zerolog

import (
	"github.com/rs/zerolog"

	"github.com/unkn0wn-root/zpacket"
)

var _ zpacket.Logger = Logger{}

type Logger struct{ L zerolog.Logger }

// New tags every event with component=zpacket.
func New(l zerolog.Logger) Logger {
	return Logger{L: l.With().Str("component", "zpacket").Logger()}
}

func (z Logger) Debug(msg string, f zpacket.Fields) { send(z.L.Debug(), msg, f) }
func (z Logger) Info(msg string, f zpacket.Fields)  { send(z.L.Info(), msg, f) }
func (z Logger) Warn(msg string, f zpacket.Fields)  { send(z.L.Warn(), msg, f) }
func (z Logger) Error(msg string, f zpacket.Fields) { send(z.L.Error(), msg, f) }

// send is a no-op for disabled levels; zerolog hands out a nil event then.
func send(e *zerolog.Event, msg string, f zpacket.Fields) {
	if !e.Enabled() {
		return
	}
	if len(f) > 0 {
		e = e.Fields(map[string]any(f))
	}
	e.Msg(msg)
}
