package zpacket

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// packetFields is the common set of fields for a frame event.
func packetFields(p Packet) Fields {
	return Fields{"dst": p.dst, "src": p.src, "len": len(p.data)}
}

// Logger is a tiny leveled logger; adapters for zap, logrus and log/slog
// live under log/. The codecs never log, only Link and Mailbox do.
// If Logger is nil in options, logging is disabled.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
