// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestHandler(buf *bytes.Buffer) *SlogHandler {
	return &SlogHandler{logger: zerolog.New(buf)}
}

func TestSlogHandlerEnabled(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf)
	h.logger = h.logger.Level(zerolog.InfoLevel)

	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug to be disabled at info level")
	}
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info to be enabled at info level")
	}
}

func TestSlogHandlerHandle(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf)

	rec := slog.NewRecord(time.Time{}, slog.LevelWarn, "worker stalled", 0)
	rec.AddAttrs(slog.Int("worker_pid", 7), slog.String("reason", "emfile"))

	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("expected warn level, got: %s", out)
	}
	if !strings.Contains(out, `"worker_pid":7`) || !strings.Contains(out, `"reason":"emfile"`) {
		t.Errorf("expected record attrs in output: %s", out)
	}
	if !strings.Contains(out, "worker stalled") {
		t.Errorf("expected message in output: %s", out)
	}
}

func TestSlogHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf).WithAttrs([]slog.Attr{slog.String("component", "tree")}).WithGroup("supervisor")

	rec := slog.NewRecord(time.Time{}, slog.LevelInfo, "service added", 0)
	rec.AddAttrs(slog.String("name", "gateway"))

	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"component":"tree"`) {
		t.Errorf("expected pre-configured attr in output: %s", out)
	}
	if !strings.Contains(out, `"supervisor.name":"gateway"`) {
		t.Errorf("expected group-prefixed attr in output: %s", out)
	}
}

func TestSlogHandlerWithGroupEmptyNameIsNoop(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf)
	if h.WithGroup("") != h {
		t.Error("expected WithGroup(\"\") to return the same handler")
	}
}

func TestAddAttrTypes(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	event := logger.Info()
	event = addAttr(event, slog.Int64("n", 5), nil)
	event = addAttr(event, slog.Bool("ok", true), nil)
	event = addAttr(event, slog.Duration("backoff", 2*time.Second), nil)
	event.Msg("attrs")

	out := buf.String()
	for _, want := range []string{`"n":5`, `"ok":true`, `"backoff":2000`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in output: %s", want, out)
		}
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := slogToZerologLevel(tt.in); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestNewSlogLogger covers the exact construction internal/worker.Tree
// uses to bridge suture's slog-based event logging onto zerolog.
func TestNewSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	slogger := NewSlogLogger()
	if slogger == nil {
		t.Fatal("NewSlogLogger() = nil")
	}
	slogger.Info("supervision tree started")

	if !strings.Contains(buf.String(), "supervision tree started") {
		t.Errorf("expected message routed through zerolog: %s", buf.String())
	}
}
