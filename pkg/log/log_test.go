package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    LogLevel
		expected string
		wantErr  bool
	}{
		{"debug level", LevelDebug, "debug", false},
		{"info level", LevelInfo, "info", false},
		{"empty defaults to info", LogLevel(""), "info", false},
		{"warn level", LevelWarn, "warn", false},
		{"error level", LevelError, "error", false},
		{"unknown level", LogLevel("progress"), "info", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zapLevel, err := parseLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLevel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if zapLevel.String() != tt.expected {
				t.Errorf("parseLevel() = %v, want %v", zapLevel.String(), tt.expected)
			}
		})
	}
}

func TestInitRejectsUnknownFormat(t *testing.T) {
	Reset()
	defer Reset()

	if err := Init(Config{Level: LevelInfo, Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestInitJSONWritesToOutput(t *testing.T) {
	Reset()
	defer Reset()

	var buf bytes.Buffer
	if err := Init(Config{Level: LevelDebug, Format: FormatJSON, Output: &buf}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	Warn("socket in use", "socket", "/tmp/server0.sock")
	_ = Sync()

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("missing level in %q", out)
	}
	if !strings.Contains(out, `"socket":"/tmp/server0.sock"`) {
		t.Errorf("missing field in %q", out)
	}
}

func TestLevelFiltersEntries(t *testing.T) {
	Reset()
	defer Reset()

	var buf bytes.Buffer
	if err := Init(Config{Level: LevelError, Format: FormatConsole, Output: &buf}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	Debug("hidden debug")
	Info("hidden info")
	Warn("hidden warn")
	Errorf("visible %s", "error")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("entries below error leaked: %q", out)
	}
	if !strings.Contains(out, "visible error") {
		t.Errorf("error entry missing: %q", out)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != LevelInfo {
		t.Errorf("DefaultConfig().Level = %v, want %v", cfg.Level, LevelInfo)
	}
	if cfg.Format != FormatConsole {
		t.Errorf("DefaultConfig().Format = %v, want %v", cfg.Format, FormatConsole)
	}
}

func TestGetInitializesDefaultLogger(t *testing.T) {
	Reset()
	defer Reset()

	logger := Get()
	if logger == nil {
		t.Fatal("Get() returned nil logger")
	}
	if logger != Get() {
		t.Error("Get() returned different logger instances")
	}
}

func TestWith(t *testing.T) {
	Reset()
	defer Reset()

	if logger := With("socket", "/tmp/server1.sock"); logger == nil {
		t.Error("With() returned nil logger")
	}
}
