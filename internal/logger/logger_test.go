package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerFields(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "billing").With(map[string]any{"vehicle_id": "CBDH 789"})

	l.Warnf("no odometer data found at %s", "2025-01-01")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "billing", entry["component"])
	assert.Equal(t, "CBDH 789", entry["vehicle_id"])
	assert.Equal(t, "no odometer data found at 2025-01-01", entry["message"])
}

func TestZerologLoggerLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "test")

	l.Debugf("debug %d", 1)
	l.Infof("info")
	assert.Zero(t, buf.Len())

	l.Errorf("error")
	assert.NotZero(t, buf.Len())
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l = l.With(map[string]any{"k": 1})
	l.Debugf("debug")
	l.Infof("info")
	l.Warnf("warn")
	l.Errorf("error")
}
