// Package preflight checks the local environment before the shim binds its
// socket, so that misconfiguration fails with a readable message instead of a
// bind error.
package preflight

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	edgelog "github.com/holon-run/edgeshim/pkg/log"
)

// MaxSocketPathLen is the longest socket path accepted. Linux allows 107
// bytes, macOS 103; leave room for suffix growth below the smaller one.
const MaxSocketPathLen = 100

// CheckLevel represents the severity level of a preflight check
type CheckLevel int

const (
	// LevelError indicates a failure that prevents the shim from running
	LevelError CheckLevel = iota
	// LevelWarn indicates a problem that may surface as error responses
	LevelWarn
	// LevelInfo indicates informational output
	LevelInfo
)

// CheckResult represents the result of a single preflight check
type CheckResult struct {
	Name    string
	Level   CheckLevel
	Message string
	Error   error
}

// Check represents a single preflight check
type Check interface {
	Name() string
	Run(ctx context.Context) CheckResult
}

// Checker runs a collection of preflight checks
type Checker struct {
	checks  []Check
	skipped bool
}

// Config selects the checks to run. Empty fields are not checked.
type Config struct {
	Skip        bool
	SocketDir   string
	StaticDir   string
	SpoolDir    string
	UpstreamURL string
}

// NewChecker creates a checker for cfg
func NewChecker(cfg Config) *Checker {
	c := &Checker{skipped: cfg.Skip}
	if cfg.SocketDir != "" {
		c.checks = append(c.checks, &SocketDirCheck{Path: cfg.SocketDir})
	}
	if cfg.StaticDir != "" {
		c.checks = append(c.checks, &DirCheck{Label: "static", Path: cfg.StaticDir})
	}
	if cfg.SpoolDir != "" {
		c.checks = append(c.checks, &DirCheck{Label: "spool", Path: cfg.SpoolDir})
	}
	if cfg.UpstreamURL != "" {
		c.checks = append(c.checks, &UpstreamCheck{URL: cfg.UpstreamURL})
	}
	return c
}

// Checks returns the registered checks.
func (c *Checker) Checks() []Check {
	return c.checks
}

// Run executes all checks and returns an error if any of them failed.
func (c *Checker) Run(ctx context.Context) error {
	if c.skipped {
		edgelog.Info("preflight checks skipped")
		return nil
	}

	var failures []string
	for _, check := range c.checks {
		result := check.Run(ctx)
		switch result.Level {
		case LevelError:
			edgelog.Error("preflight check failed", "check", result.Name, "message", result.Message, "error", result.Error)
			failures = append(failures, fmt.Sprintf("%s: %s", result.Name, result.Message))
		case LevelWarn:
			edgelog.Warn("preflight check warning", "check", result.Name, "message", result.Message, "error", result.Error)
		case LevelInfo:
			edgelog.Debug("preflight check", "check", result.Name, "message", result.Message)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("preflight checks failed:\n  - %s", strings.Join(failures, "\n  - "))
	}
	return nil
}

// SocketDirCheck verifies the socket directory exists (creating it if needed),
// is writable and is short enough to hold a socket path.
type SocketDirCheck struct {
	Path string
}

func (c *SocketDirCheck) Name() string {
	return "socket-dir"
}

func (c *SocketDirCheck) Run(ctx context.Context) CheckResult {
	absPath, err := filepath.Abs(c.Path)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: fmt.Sprintf("failed to resolve socket dir: %s", c.Path),
			Error:   err,
		}
	}

	probe := filepath.Join(absPath, "server0.sock")
	if len(probe) > MaxSocketPathLen {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: fmt.Sprintf("socket path %s is %d bytes, limit is %d; use a shorter --socket-dir", probe, len(probe), MaxSocketPathLen),
			Error:   fmt.Errorf("socket path too long"),
		}
	}

	info, err := os.Stat(absPath)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(absPath, 0o755); err != nil {
			return CheckResult{
				Name:    c.Name(),
				Level:   LevelError,
				Message: fmt.Sprintf("cannot create socket dir: %s", absPath),
				Error:   err,
			}
		}
	case err != nil:
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: fmt.Sprintf("cannot access socket dir: %s", absPath),
			Error:   err,
		}
	case !info.IsDir():
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: fmt.Sprintf("socket dir is not a directory: %s", absPath),
			Error:   fmt.Errorf("not a directory"),
		}
	}

	f, err := os.CreateTemp(absPath, ".edgeshim-write-test-*")
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: fmt.Sprintf("socket dir is not writable: %s", absPath),
			Error:   err,
		}
	}
	f.Close()
	_ = os.Remove(f.Name())

	return CheckResult{
		Name:    c.Name(),
		Level:   LevelInfo,
		Message: fmt.Sprintf("socket dir is writable: %s", absPath),
	}
}

// DirCheck verifies an input directory exists.
type DirCheck struct {
	Label string
	Path  string
}

func (c *DirCheck) Name() string {
	return c.Label + "-dir"
}

func (c *DirCheck) Run(ctx context.Context) CheckResult {
	info, err := os.Stat(c.Path)
	if err != nil {
		msg := fmt.Sprintf("cannot access %s dir: %s", c.Label, c.Path)
		if os.IsNotExist(err) {
			msg = fmt.Sprintf("%s dir does not exist: %s", c.Label, c.Path)
		}
		return CheckResult{Name: c.Name(), Level: LevelError, Message: msg, Error: err}
	}
	if !info.IsDir() {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelError,
			Message: fmt.Sprintf("%s path is not a directory: %s", c.Label, c.Path),
			Error:   fmt.Errorf("not a directory"),
		}
	}
	return CheckResult{
		Name:    c.Name(),
		Level:   LevelInfo,
		Message: fmt.Sprintf("%s dir is accessible: %s", c.Label, c.Path),
	}
}

// UpstreamCheck is a best-effort reachability probe of the upstream origin.
// An unreachable upstream only warns: its failures surface as 502 responses.
type UpstreamCheck struct {
	URL string
}

func (c *UpstreamCheck) Name() string {
	return "upstream"
}

func (c *UpstreamCheck) Run(ctx context.Context) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, c.URL, nil)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelWarn,
			Message: fmt.Sprintf("invalid upstream url: %s", c.URL),
			Error:   err,
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Level:   LevelWarn,
			Message: fmt.Sprintf("upstream %s is not reachable; events will get 502 responses", c.URL),
			Error:   err,
		}
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		edgelog.Debug("failed to drain upstream probe body", "error", err)
	}

	return CheckResult{
		Name:    c.Name(),
		Level:   LevelInfo,
		Message: fmt.Sprintf("upstream answered HEAD with %d", resp.StatusCode),
	}
}
