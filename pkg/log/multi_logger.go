package log

// MultiLogger sends messages to multiple loggers.
// hap-sim uses it to log to the console and a JSON file at once.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger that forwards to all non-nil loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *MultiLogger) Debug(msg string, args ...any) {
	for _, l := range m.loggers {
		l.Debug(msg, args...)
	}
}

func (m *MultiLogger) Info(msg string, args ...any) {
	for _, l := range m.loggers {
		l.Info(msg, args...)
	}
}

func (m *MultiLogger) Warn(msg string, args ...any) {
	for _, l := range m.loggers {
		l.Warn(msg, args...)
	}
}

func (m *MultiLogger) Error(msg string, args ...any) {
	for _, l := range m.loggers {
		l.Error(msg, args...)
	}
}

// Compile-time interface satisfaction check.
var _ Logger = (*MultiLogger)(nil)
