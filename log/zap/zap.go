package zap

import (
	"github.com/unkn0wn-root/zpacket"
	"go.uber.org/zap"
)

var _ zpacket.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

// New names the logger "zpacket" so link events are easy to filter.
func New(l *zap.Logger) ZapLogger { return ZapLogger{L: l.Named("zpacket")} }

func (z ZapLogger) Debug(msg string, f zpacket.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f zpacket.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f zpacket.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f zpacket.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f zpacket.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		switch vv := v.(type) {
		case error:
			out = append(out, zap.NamedError(k, vv))
		case uint8:
			out = append(out, zap.Uint8(k, vv))
		case int:
			out = append(out, zap.Int(k, vv))
		default:
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}
