package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linewalk/internal/walk"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		entries = append(entries, entry)
	}
	return entries
}

func TestNew_InfoLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)

	logger.Debug("hidden")
	logger.Info("shown")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "shown", entries[0]["message"])
	assert.Equal(t, "info", entries[0]["level"])
	assert.Contains(t, entries[0], "timestamp")
}

func TestNew_Verbose(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, true)

	logger.Debug("event recorded")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "debug", entries[0]["level"])
}

func TestForRun_AddsRunFields(t *testing.T) {
	var buf bytes.Buffer
	logger := ForRun(New(&buf, false), "run-1")

	logger.Info("stored")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "run-1", entries[0]["run_id"])
}

func TestForRun_NilLogger(t *testing.T) {
	logger := ForRun(nil, "run-1")
	require.NotNil(t, logger)
	logger.Info("discarded")
}

func TestEngineLogsThroughRunLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := walk.Config{StartPosition: 1, MaxPosition: 2}
	engine := walk.New(walk.WithLogger(ForRun(New(&buf, true), "run-7")))

	engine.Begin(cfg)

	entries := decodeLines(t, &buf)
	// four events at debug, one completion at info
	require.Len(t, entries, 5)
	for _, e := range entries {
		assert.Equal(t, "run-7", e["run_id"])
	}
	last := entries[len(entries)-1]
	assert.Equal(t, "traversal complete", last["message"])
	assert.Equal(t, "BOUND_EXCEEDED", last["reason"])
	assert.Equal(t, float64(4), last["events"])
	assert.Equal(t, float64(1), last["start"])
	assert.Equal(t, float64(2), last["max"])
}
