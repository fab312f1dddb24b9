package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogrus(buf *bytes.Buffer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.DebugLevel)
	return l
}

func TestLogrusAdapterFields(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewLogrus(newBufferedLogrus(&buf))

	adapter.Info("characteristic updated", "characteristic", "On", "value", true)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "characteristic updated", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "On", entry["characteristic"])
	assert.Equal(t, true, entry["value"])
}

func TestLogrusAdapterWith(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewLogrus(newBufferedLogrus(&buf)).With("component", "netsim")

	adapter.Warn("packet dropped", 42, "odd")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "netsim", entry["component"])
	assert.Equal(t, "odd", entry["42"])
	assert.Equal(t, "warning", entry["level"])
}

func TestToFieldsTrailingValue(t *testing.T) {
	fields := toFields([]any{"a", 1, "dangling"})

	assert.Equal(t, 1, fields["a"])
	assert.Equal(t, "dangling", fields[badKey])
}
