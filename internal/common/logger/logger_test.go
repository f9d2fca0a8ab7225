package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesActionAndFieldsAsJSON(t *testing.T) {
	var buf bytes.Buffer
	lg := NewWithOutput("tab-service", &buf)

	lg.Error("settlement_failed", errors.New("boom"), map[string]any{"order_id": "o-1"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "tab-service", entry["service"])
	assert.Equal(t, "settlement_failed", entry["action"])
	assert.Equal(t, "settlement_failed", entry["message"])
	assert.Equal(t, "o-1", entry["order_id"])
	assert.Equal(t, "boom", entry["error"])
	assert.Contains(t, entry, "timestamp")
}

func TestSetup_RejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Setup(Options{Level: "chatty"}))
	assert.NoError(t, Setup(Options{Level: "debug"}))
	assert.NoError(t, Setup(Options{Level: "info"}))
}
