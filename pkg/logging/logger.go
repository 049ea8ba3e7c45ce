// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package logging is the structured logging surface for the Torc
// workflow core, a thin interface over log/slog. Components never
// print directly; they log through a Logger so the CLI can pick text
// vs JSON output and a minimum level, and so workers on compute nodes
// emit machine-parseable lines that cluster log shippers can ingest.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	torcctx "github.com/NREL/torc/pkg/context"
)

// Logger is the interface every torc component logs through.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithContext(ctx context.Context) Logger
}

// Format selects the output encoding.
type Format string

const (
	// FormatText is the human-readable default for interactive CLI use.
	FormatText Format = "text"
	// FormatJSON is for workers and services whose output is shipped.
	FormatJSON Format = "json"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level emitted.
	Level slog.Level
	// Format selects text or JSON output.
	Format Format
	// Output defaults to os.Stdout.
	Output *os.File
	// Version stamps every line so mixed-version fleets are tellable
	// apart in aggregated logs.
	Version string
}

// DefaultConfig returns an info-level text logger on stdout.
func DefaultConfig() *Config {
	return &Config{
		Level:   slog.LevelInfo,
		Format:  FormatText,
		Output:  os.Stdout,
		Version: "dev",
	}
}

// ParseLevel maps the CLI's --log-level values onto slog levels.
// Unrecognised values fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type slogLogger struct {
	logger *slog.Logger
}

// NewLogger builds a Logger from config; nil means DefaultConfig.
func NewLogger(config *Config) Logger {
	if config == nil {
		config = DefaultConfig()
	}
	out := config.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level: config.Level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if config.Format == FormatJSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler).With(
		"service", "torc",
		"version", config.Version,
	)
	return &slogLogger{logger: logger}
}

func (l *slogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...)}
}

// WithContext lifts the Torc operation metadata (workflow, job, run,
// worker ids; see pkg/context) out of ctx into log attributes, so a
// worker's lines all carry the workflow they belong to.
func (l *slogLogger) WithContext(ctx context.Context) Logger {
	attrs := make([]any, 0, 8)
	if id, ok := torcctx.WorkflowID(ctx); ok {
		attrs = append(attrs, "workflow_id", id)
	}
	if id, ok := torcctx.JobID(ctx); ok {
		attrs = append(attrs, "job_id", id)
	}
	if id, ok := torcctx.RunID(ctx); ok {
		attrs = append(attrs, "run_id", id)
	}
	if id, ok := torcctx.WorkerID(ctx); ok {
		attrs = append(attrs, "worker_id", id)
	}
	if len(attrs) > 0 {
		return l.With(attrs...)
	}
	return l
}

// ErrorAttr formats an error for a log field, tolerating nil.
func ErrorAttr(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%v", err)
}

// NoOpLogger discards everything.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...any)                  {}
func (NoOpLogger) Info(string, ...any)                   {}
func (NoOpLogger) Warn(string, ...any)                   {}
func (NoOpLogger) Error(string, ...any)                  {}
func (NoOpLogger) With(...any) Logger                    { return NoOpLogger{} }
func (NoOpLogger) WithContext(context.Context) Logger    { return NoOpLogger{} }

// DefaultLogger is the package-level fallback for call sites created
// before the CLI has parsed its flags.
var DefaultLogger = NewLogger(DefaultConfig())

// SetDefaultLogger replaces the package-level fallback.
func SetDefaultLogger(logger Logger) {
	DefaultLogger = logger
}
