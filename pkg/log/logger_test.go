package log

import (
	"log/slog"
	"testing"
)

func TestNoopLoggerDoesNotPanic(t *testing.T) {
	logger := NoopLogger{}

	logger.Debug("debug", "key", 1)
	logger.Info("info")
	logger.Warn("warn", "odd")
	logger.Error("error", "err", nil)
}

func TestLoggerInterfaceSatisfaction(t *testing.T) {
	var _ Logger = NoopLogger{}
	var _ Logger = &NoopLogger{}
	var _ Logger = slog.Default()
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(NoopLogger); !ok {
		t.Error("OrNop(nil) should return NoopLogger")
	}

	l := slog.Default()
	if OrNop(l) != Logger(l) {
		t.Error("OrNop should return the given logger")
	}
}
