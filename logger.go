package farmodbus

import (
	"go.uber.org/zap"
)

// logger keeps the same prefix-tagged, leveled-method shape as
// simonvetter-modbus's logger (Info/Infof/Warning/Warningf/Error/Errorf),
// backed by a zap.SugaredLogger instead of raw stdout/stderr writes, per
// the ambient logging stack's use of go.uber.org/zap.
type logger struct {
	prefix string
	sugar  *zap.SugaredLogger
}

// newLogger wraps base (or a freshly built production zap logger, if base
// is nil) with the given prefix. Every Farm-owned object (Port, Station)
// gets its own logger, prefixed "port" or "station"; the prefix separates
// port lines from station lines, and each log event names the port or
// station handle as a key.
func newLogger(prefix string, base *zap.Logger) *logger {
	if base == nil {
		base, _ = zap.NewProduction()
	}
	return &logger{
		prefix: prefix,
		sugar:  base.Sugar().Named(prefix),
	}
}

func (l *logger) Info(msg string)                          { l.sugar.Info(msg) }
func (l *logger) Infof(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *logger) Warning(msg string)                        { l.sugar.Warn(msg) }
func (l *logger) Warningf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}
func (l *logger) Error(msg string)                          { l.sugar.Error(msg) }
func (l *logger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// Debugw logs a timing/instrumentation event with structured key-value
// pairs, the replacement for the original implementation's cRunWatch
// poll-duration dumps (see SPEC_FULL.md §4).
func (l *logger) Debugw(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}
