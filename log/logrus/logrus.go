package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/zpacket"
)

var _ zpacket.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New tags every entry with component=zpacket.
func New(l *logrus.Logger) LogrusLogger {
	return LogrusLogger{E: l.WithField("component", "zpacket")}
}

func (l LogrusLogger) Debug(msg string, f zpacket.Fields) { l.log(logrus.DebugLevel, msg, f) }
func (l LogrusLogger) Info(msg string, f zpacket.Fields)  { l.log(logrus.InfoLevel, msg, f) }
func (l LogrusLogger) Warn(msg string, f zpacket.Fields)  { l.log(logrus.WarnLevel, msg, f) }
func (l LogrusLogger) Error(msg string, f zpacket.Fields) { l.log(logrus.ErrorLevel, msg, f) }

// log skips building the entry when the level is off; link reads log on
// every frame at debug level.
func (l LogrusLogger) log(lvl logrus.Level, msg string, f zpacket.Fields) {
	if !l.E.Logger.IsLevelEnabled(lvl) {
		return
	}
	e := l.E
	for k, v := range f {
		// errors go under logrus.ErrorKey so hooks and formatters find them
		if err, ok := v.(error); ok && k == "err" {
			e = e.WithError(err)
			continue
		}
		e = e.WithField(k, v)
	}
	e.Log(lvl, msg)
}
