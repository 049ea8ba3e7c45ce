// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	torcctx "github.com/NREL/torc/pkg/context"
)

// captureLogger builds a JSON logger writing into a temp file and
// returns a function that decodes the lines written so far.
func captureLogger(t *testing.T, level slog.Level) (Logger, func() []map[string]interface{}) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log.jsonl")
	f, err := os.Create(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	logger := NewLogger(&Config{Level: level, Format: FormatJSON, Output: f, Version: "test"})
	return logger, func() []map[string]interface{} {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var out []map[string]interface{}
		for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
			if line == "" {
				continue
			}
			var m map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(line), &m))
			out = append(out, m)
		}
		return out
	}
}

func TestJSONOutputCarriesServiceFields(t *testing.T) {
	logger, lines := captureLogger(t, slog.LevelInfo)
	logger.Info("workflow created", "workflow_id", 42)

	entries := lines()
	require.Len(t, entries, 1)
	assert.Equal(t, "torc", entries[0]["service"])
	assert.Equal(t, "test", entries[0]["version"])
	assert.Equal(t, "workflow created", entries[0]["msg"])
	assert.EqualValues(t, 42, entries[0]["workflow_id"])
}

func TestLevelFiltering(t *testing.T) {
	logger, lines := captureLogger(t, slog.LevelWarn)
	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("shown")
	logger.Error("also shown")

	entries := lines()
	require.Len(t, entries, 2)
	assert.Equal(t, "shown", entries[0]["msg"])
	assert.Equal(t, "also shown", entries[1]["msg"])
}

func TestWithAddsPersistentFields(t *testing.T) {
	logger, lines := captureLogger(t, slog.LevelInfo)
	scoped := logger.With("scheduler", "bigmem")
	scoped.Info("allocation submitted")

	entries := lines()
	require.Len(t, entries, 1)
	assert.Equal(t, "bigmem", entries[0]["scheduler"])
}

func TestWithContextLiftsTorcIDs(t *testing.T) {
	logger, lines := captureLogger(t, slog.LevelInfo)

	ctx := torcctx.WithWorkflowID(context.Background(), 7)
	ctx = torcctx.WithWorkerID(ctx, "host:42")
	logger.WithContext(ctx).Info("claimed job")

	entries := lines()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 7, entries[0]["workflow_id"])
	assert.Equal(t, "host:42", entries[0]["worker_id"])
	_, hasJob := entries[0]["job_id"]
	assert.False(t, hasJob)
}

func TestWithContextNoIDsReturnsSameShape(t *testing.T) {
	logger, lines := captureLogger(t, slog.LevelInfo)
	logger.WithContext(context.Background()).Info("plain")
	entries := lines()
	require.Len(t, entries, 1)
	_, hasWf := entries[0]["workflow_id"]
	assert.False(t, hasWf)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNoOpLoggerImplementsInterface(t *testing.T) {
	var logger Logger = NoOpLogger{}
	logger.Info("discarded")
	assert.Equal(t, NoOpLogger{}, logger.With("a", 1))
	assert.Equal(t, NoOpLogger{}, logger.WithContext(context.Background()))
}

func TestErrorAttr(t *testing.T) {
	assert.Empty(t, ErrorAttr(nil))
	assert.Equal(t, "assert.AnError general error for testing", ErrorAttr(assert.AnError))
}
