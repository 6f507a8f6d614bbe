// Copyright 2025 Mangwale
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package obslog configures the process-wide structured logger.
//
// The orchestration core logs one summary record per processed
// message naming the gate that produced the reply (see
// pkg/orchestrator), plus a gate record when a gate blocks a message
// or hits an error, each tagged with participant_id/session key so
// logs for a single conversation can be grepped out of a shared
// stream. Third-party library chatter (sqlite driver, grpc, etc.) is
// suppressed unless the level is debug.
package obslog

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

const modulePrefix = "github.com/mangwale/assistant-core"

// ParseLevel converts a string log level to slog.Level. Unknown values
// default to info rather than erroring, since this is almost always
// fed from an operator-supplied env var.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
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

// filteringHandler suppresses non-module log records unless the
// configured level is debug, so a noisy dependency doesn't drown out
// the orchestrator's own gate-by-gate trace.
type filteringHandler struct {
	inner    slog.Handler
	minLevel slog.Level
}

func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel && h.inner.Enabled(ctx, level)
}

func (h *filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel <= slog.LevelDebug || h.fromModule(record.PC) {
		return h.inner.Handle(ctx, record)
	}
	return nil
}

func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &filteringHandler{inner: h.inner.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{inner: h.inner.WithGroup(name), minLevel: h.minLevel}
}

func (h *filteringHandler) fromModule(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	return strings.Contains(fn.Name(), modulePrefix)
}

// New builds the process-wide logger. format is "json" (default,
// production) or "text" (local development).
func New(levelStr, format string) *slog.Logger {
	level := ParseLevel(levelStr)

	var base slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if format == "text" {
		base = slog.NewTextHandler(os.Stderr, opts)
	} else {
		base = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(&filteringHandler{inner: base, minLevel: level})
}

// WithFields returns a logger scoped to a single conversation, used at
// the top of processMessage so every gate's log line carries the
// participant/session identity without each gate re-specifying it.
func WithFields(l *slog.Logger, participantID, sessionKey string) *slog.Logger {
	return l.With("participant_id", participantID, "session_key", sessionKey)
}
