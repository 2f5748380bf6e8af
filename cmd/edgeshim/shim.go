package main

import (
	"context"
	"fmt"
	"time"

	"github.com/holon-run/edgeshim/pkg/app"
	"github.com/holon-run/edgeshim/pkg/config"
	"github.com/holon-run/edgeshim/pkg/dispatch"
	"github.com/holon-run/edgeshim/pkg/edge"
	"github.com/holon-run/edgeshim/pkg/fixture"
	"github.com/holon-run/edgeshim/pkg/lifecycle"
	edgelog "github.com/holon-run/edgeshim/pkg/log"
	"github.com/holon-run/edgeshim/pkg/preflight"
)

// shim is one local server plus the dispatcher feeding it. Every event handled
// by a process goes through the same shim.
type shim struct {
	cfg        *config.Config
	lc         *lifecycle.Server
	dispatcher *dispatch.Dispatcher
}

// runPreflight checks the socket dir and the handler inputs.
func runPreflight(ctx context.Context, c *config.Config, appOpts app.Options, spoolDir string) error {
	return preflight.NewChecker(preflight.Config{
		Skip:        skipPreflight,
		SocketDir:   c.SocketDir,
		StaticDir:   appOpts.StaticDir,
		SpoolDir:    spoolDir,
		UpstreamURL: appOpts.UpstreamURL,
	}).Run(ctx)
}

func newShim(c *config.Config, appOpts app.Options) (*shim, error) {
	appOpts.MiddlewareKey = c.MiddlewareKey
	handler, err := app.New(appOpts)
	if err != nil {
		return nil, err
	}
	lc := lifecycle.New(handler, lifecycle.Options{
		SocketDir:   c.SocketDir,
		BinaryTypes: c.BinaryTypes,
		OnListening: func(socket string) {
			edgelog.Debug("shim ready", "socket", socket)
		},
	})
	return &shim{
		cfg:        c,
		lc:         lc,
		dispatcher: dispatch.New(dispatch.Options{Timeout: c.RequestTimeout}),
	}, nil
}

// invoke forwards ev and waits for its response. The wait is bounded by the
// request timeout plus time for the server to come up.
func (s *shim) invoke(ctx context.Context, ev *edge.Event) (edge.Response, edge.Metadata, error) {
	meta := fixture.NewMetadata(s.cfg.FunctionName)
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout+5*time.Second)
	defer cancel()

	resp, err := s.dispatcher.ProxyWait(ctx, s.lc, ev, meta)
	if err != nil {
		return edge.Response{}, meta, fmt.Errorf("event %s: %w", meta.AWSRequestID, err)
	}
	return resp, meta, nil
}

func (s *shim) Close() error {
	return s.lc.Close()
}
