package log

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// badKey is used for a trailing value without a key.
const badKey = "!BADKEY"

// LogrusAdapter writes messages to a logrus logger. Key/value arguments
// become logrus fields.
type LogrusAdapter struct {
	entry *logrus.Entry
}

// NewLogrus creates an adapter for l. A nil l uses a fresh logrus logger.
func NewLogrus(l *logrus.Logger) *LogrusAdapter {
	if l == nil {
		l = logrus.New()
	}
	return &LogrusAdapter{entry: logrus.NewEntry(l)}
}

// With returns an adapter that adds the given key/value pairs to every
// message.
func (a *LogrusAdapter) With(args ...any) *LogrusAdapter {
	return &LogrusAdapter{entry: a.entry.WithFields(toFields(args))}
}

func (a *LogrusAdapter) Debug(msg string, args ...any) {
	a.entry.WithFields(toFields(args)).Debug(msg)
}

func (a *LogrusAdapter) Info(msg string, args ...any) {
	a.entry.WithFields(toFields(args)).Info(msg)
}

func (a *LogrusAdapter) Warn(msg string, args ...any) {
	a.entry.WithFields(toFields(args)).Warn(msg)
}

func (a *LogrusAdapter) Error(msg string, args ...any) {
	a.entry.WithFields(toFields(args)).Error(msg)
}

// toFields converts alternating key/value pairs into logrus fields.
func toFields(args []any) logrus.Fields {
	fields := make(logrus.Fields, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fields[badKey] = args[i]
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		fields[key] = args[i+1]
	}
	return fields
}

// Compile-time interface satisfaction check.
var _ Logger = (*LogrusAdapter)(nil)
