package obslog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewJSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "json", Console: true, Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", zap.String("engine", "fake"))
	_ = logger.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["msg"] != "shown" || entry["level"] != "warn" || entry["engine"] != "fake" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.log")
	logger, err := New(Options{Level: "debug", Format: "console", ToFile: true, File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("to file")
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), "to file") {
		t.Fatalf("log file = %q", raw)
	}
}

func TestNewWithoutOutputsIsNop(t *testing.T) {
	logger, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatalf("expected a no-op logger")
	}
}

func TestDevelopmentPanicsOnDPanic(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Format: "json", Console: true, Output: &buf, Development: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("DPanic did not panic in development mode")
		}
	}()
	logger.DPanic("broken invariant")
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_TO_FILE", "true")
	t.Setenv("LOG_FILE", "/tmp/x.log")
	t.Setenv("LOG_CALLER", "")
	t.Setenv("LOG_TO_CONSOLE", "")

	opt := OptionsFromEnv()
	if opt.Level != "debug" || opt.Format != "json" || !opt.ToFile || opt.File != "/tmp/x.log" || opt.Caller || !opt.Console {
		t.Fatalf("OptionsFromEnv = %+v", opt)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARNING": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
