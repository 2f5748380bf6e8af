package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/holon-run/edgeshim/pkg/log/logtest"
)

func shortDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "pf")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestSocketDirCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("writable dir", func(t *testing.T) {
		result := (&SocketDirCheck{Path: shortDir(t)}).Run(ctx)
		if result.Level != LevelInfo {
			t.Fatalf("expected LevelInfo, got %v: %s", result.Level, result.Message)
		}
	})

	t.Run("creates missing dir", func(t *testing.T) {
		dir := filepath.Join(shortDir(t), "socks")
		result := (&SocketDirCheck{Path: dir}).Run(ctx)
		if result.Level != LevelInfo {
			t.Fatalf("expected LevelInfo, got %v: %s", result.Level, result.Message)
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("socket dir not created: %v", err)
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 0 {
			t.Errorf("write probe left files behind: %v", entries)
		}
	})

	t.Run("file instead of dir", func(t *testing.T) {
		file := filepath.Join(shortDir(t), "f")
		if err := os.WriteFile(file, nil, 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
		result := (&SocketDirCheck{Path: file}).Run(ctx)
		if result.Level != LevelError || !strings.Contains(result.Message, "not a directory") {
			t.Fatalf("result = %+v", result)
		}
	})

	t.Run("path too long", func(t *testing.T) {
		long := "/tmp/" + strings.Repeat("d", MaxSocketPathLen)
		result := (&SocketDirCheck{Path: long}).Run(ctx)
		if result.Level != LevelError || !strings.Contains(result.Message, "shorter --socket-dir") {
			t.Fatalf("result = %+v", result)
		}
	})
}

func TestDirCheck(t *testing.T) {
	ctx := context.Background()
	dir := shortDir(t)

	if result := (&DirCheck{Label: "spool", Path: dir}).Run(ctx); result.Level != LevelInfo || result.Name != "spool-dir" {
		t.Fatalf("result = %+v", result)
	}
	result := (&DirCheck{Label: "static", Path: filepath.Join(dir, "missing")}).Run(ctx)
	if result.Level != LevelError || !strings.Contains(result.Message, "does not exist") {
		t.Fatalf("result = %+v", result)
	}
}

func TestUpstreamCheck(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("probe method = %s, want HEAD", r.Method)
		}
	}))
	if result := (&UpstreamCheck{URL: srv.URL}).Run(ctx); result.Level != LevelInfo {
		t.Fatalf("result = %+v", result)
	}
	srv.Close()

	if result := (&UpstreamCheck{URL: srv.URL}).Run(ctx); result.Level != LevelWarn {
		t.Fatalf("unreachable upstream should warn, got %+v", result)
	}
}

func TestCheckerRun(t *testing.T) {
	logs := logtest.Observe(t)
	ctx := context.Background()
	dir := shortDir(t)

	c := NewChecker(Config{SocketDir: dir, SpoolDir: filepath.Join(dir, "nope")})
	if len(c.Checks()) != 2 {
		t.Fatalf("checks = %d, want 2", len(c.Checks()))
	}
	err := c.Run(ctx)
	if err == nil || !strings.Contains(err.Error(), "spool-dir") {
		t.Fatalf("Run error = %v", err)
	}
	if logs.FilterMessage("preflight check failed").Len() != 1 {
		t.Error("failure was not logged")
	}

	if err := NewChecker(Config{Skip: true, SpoolDir: "/nonexistent"}).Run(ctx); err != nil {
		t.Fatalf("skipped checker returned %v", err)
	}
	if err := NewChecker(Config{SocketDir: dir}).Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}
