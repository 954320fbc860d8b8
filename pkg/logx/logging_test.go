package logx

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestZeroLoggerIsNoop(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("expected zero logger")
	}
	// Must not panic.
	l.Info("hello", String("k", "v"))
	l.With(Int("n", 1)).Error("boom", Err(nil))
}

func TestWriterLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "warn")

	l.Info("hidden")
	l.Warn("shown", String("routine", "load"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "routine=load") {
		t.Fatalf("warn line missing fields: %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("writer output carries colour codes: %q", out)
	}
	if l.Enabled(LevelDebug) {
		t.Fatal("debug should be disabled at warn level")
	}
}

func TestServiceApplyWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "app.log")

	svc, log := New(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	defer func() { _ = svc.Close() }()

	log.Debug("written", String("comp", "test"))

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), `"message":"written"`) || !strings.Contains(string(b), `"comp":"test"`) {
		t.Fatalf("unexpected file content: %s", b)
	}

	svc.Apply(Config{Level: "error", File: FileConfig{Enabled: true, Path: path}})
	log.Info("dropped")
	b, _ = os.ReadFile(path)
	if strings.Contains(string(b), "dropped") {
		t.Fatalf("level change not applied: %s", b)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want Level
	}{
		{"trace", LevelTrace},
		{" DEBUG ", LevelDebug},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.raw, LevelInfo); got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
