// Package logtest captures entries written through pkg/log in tests.
package logtest

import (
	"testing"

	edgelog "github.com/holon-run/edgeshim/pkg/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Observe swaps the global logger for an in-memory observer at debug level
// and restores a fresh default logger when the test ends.
func Observe(t testing.TB) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	edgelog.SetLogger(zap.New(core))
	t.Cleanup(edgelog.Reset)
	return logs
}
