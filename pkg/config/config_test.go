package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edgeshim.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SocketDir != "/tmp" {
		t.Errorf("SocketDir = %q", cfg.SocketDir)
	}
	if len(cfg.BinaryTypes) != 0 {
		t.Errorf("BinaryTypes = %v", cfg.BinaryTypes)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "console" {
		t.Errorf("log = %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.FunctionName != "edgeshim" || cfg.MiddlewareKey != "edge" {
		t.Errorf("FunctionName = %q, MiddlewareKey = %q", cfg.FunctionName, cfg.MiddlewareKey)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `socket_dir: /var/run/edgeshim
binary_types:
  - image/png
  - application/octet-stream
request_timeout: 5s
log:
  level: debug
  format: json
context:
  function_name: viewer-request
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SocketDir != "/var/run/edgeshim" {
		t.Errorf("SocketDir = %q", cfg.SocketDir)
	}
	if strings.Join(cfg.BinaryTypes, ",") != "image/png,application/octet-stream" {
		t.Errorf("BinaryTypes = %v", cfg.BinaryTypes)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	logCfg := cfg.LogConfig()
	if logCfg.Level != "debug" || logCfg.Format != "json" {
		t.Errorf("LogConfig = %+v", logCfg)
	}
	if cfg.FunctionName != "viewer-request" {
		t.Errorf("FunctionName = %q", cfg.FunctionName)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "socket_dir: /from/file\nrequest_timeout: 5s\n")
	t.Setenv("EDGESHIM_SOCKET_DIR", "/from/env")
	t.Setenv("EDGESHIM_BINARY_TYPES", "image/png, image/jpeg")
	t.Setenv("EDGESHIM_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SocketDir != "/from/env" {
		t.Errorf("SocketDir = %q, want env value", cfg.SocketDir)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want file value", cfg.RequestTimeout)
	}
	if strings.Join(cfg.BinaryTypes, "|") != "image/png|image/jpeg" {
		t.Errorf("BinaryTypes = %v", cfg.BinaryTypes)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"zero timeout", "request_timeout: 0s\n", "request_timeout must be positive"},
		{"negative timeout", "request_timeout: -1s\n", "request_timeout must be positive"},
		{"empty socket dir", "socket_dir: \"\"\n", "socket_dir must not be empty"},
		{"empty middleware key", "middleware:\n  key: \" \"\n", "middleware.key must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Load error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Fatalf("Load error = %v", err)
	}
}
