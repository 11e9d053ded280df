package logging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func resetState() {
	mu.Lock()
	modules = make(map[string]*moduleLogger)
	initialized = false
	current = Config{}
	logCallback = nil
	mu.Unlock()
	logBuffer = NewRingBuffer(defaultBufferSize)
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"streams": "debug",
			"api":     "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"streams", true, true, true},
		{"api", false, false, true},
		{"other", false, true, true},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()

			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestSetLevelsUpdatesExistingLoggers(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info"})

	logger := GetLogger("monitor")
	if logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be disabled before SetLevels")
	}

	SetLevels(Config{Level: "info", Modules: map[string]string{"monitor": "debug"}})

	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be enabled after SetLevels")
	}
}

func TestGetLoggerReturnsSameInstance(t *testing.T) {
	resetState()
	if GetLogger("api") != GetLogger("api") {
		t.Error("GetLogger should cache loggers per module")
	}
}

func TestBufferHandlerCapturesModuleAndAttrs(t *testing.T) {
	resetState()
	Initialize(Config{Level: "debug"})

	var got []LogEntry
	SetLogCallback(func(e LogEntry) { got = append(got, e) })

	GetLogger("streams").With("stream_id", "noise_white").Warn("restart", "err", errors.New("boom"), "after", 2*time.Second)

	entries := GetBuffer().ReadAll()
	if len(entries) == 0 {
		t.Fatal("expected buffered entry")
	}
	e := entries[len(entries)-1]
	if e.Module != "streams" {
		t.Errorf("Module = %q, want streams", e.Module)
	}
	if e.Level != "warn" {
		t.Errorf("Level = %q, want warn", e.Level)
	}
	if e.Attributes["stream_id"] != "noise_white" {
		t.Errorf("stream_id = %v", e.Attributes["stream_id"])
	}
	if e.Attributes["err"] != "boom" {
		t.Errorf("err = %v, want boom", e.Attributes["err"])
	}
	if e.Attributes["after"] != "2s" {
		t.Errorf("after = %v, want 2s", e.Attributes["after"])
	}
	if len(got) == 0 || got[len(got)-1].Seq != e.Seq {
		t.Error("callback should receive the buffered entry")
	}
}

func TestRingBufferWrapsAndResumes(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := range 5 {
		rb.Write(LogEntry{Message: string(rune('a' + i))})
	}

	all := rb.ReadAll()
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].Message != "c" || all[2].Message != "e" {
		t.Errorf("order = %q..%q, want c..e", all[0].Message, all[2].Message)
	}
	if all[2].Seq != 5 {
		t.Errorf("last seq = %d, want 5", all[2].Seq)
	}

	since := rb.ReadSince(4)
	if len(since) != 1 || since[0].Message != "e" {
		t.Errorf("ReadSince(4) = %+v", since)
	}
	if rb.ReadSince(5) != nil {
		t.Error("ReadSince(latest) should be empty")
	}

	tail := rb.Tail(2)
	if len(tail) != 2 || tail[0].Message != "d" {
		t.Errorf("Tail(2) = %+v", tail)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   slog.Level
		wantOK bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{" error ", slog.LevelError, true},
		{"verbose", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v,%v want %v,%v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFormatLogLine(t *testing.T) {
	line := FormatLogLine(LogEntry{
		Timestamp:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:      "info",
		Module:     "monitor",
		Message:    "cycle",
		Attributes: map[string]any{"b": 2, "a": 1},
	})
	if !strings.Contains(line, "[INFO] [monitor] cycle a=1 b=2") {
		t.Errorf("FormatLogLine = %q", line)
	}
}

func TestJournalKey(t *testing.T) {
	if got := journalKey("stream.id-x"); got != "STREAM_ID_X" {
		t.Errorf("journalKey = %q", got)
	}
}
