// Package dispatch forwards edge events to the local server once it is
// listening and completes each event's context with exactly one response.
package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/holon-run/edgeshim/pkg/codec"
	"github.com/holon-run/edgeshim/pkg/edge"
	edgelog "github.com/holon-run/edgeshim/pkg/log"
)

// Lifecycle is the view of the local server the dispatcher needs.
// *lifecycle.Server satisfies it.
type Lifecycle interface {
	IsListening() bool
	SocketPath() string
	BinaryTypes() codec.BinaryTypes
	WhenListening(fn func())
	Start() error
}

// Options configures a Dispatcher.
type Options struct {
	// Timeout bounds one forwarded request, including reading the body.
	// Zero means no limit.
	Timeout time.Duration
}

// Dispatcher sends events to a Lifecycle's socket.
type Dispatcher struct {
	client *http.Client
}

type socketKey struct{}

// New returns a dispatcher. Connections are never reused, so a request always
// reaches the socket current at the time it was built.
func New(opts Options) *Dispatcher {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			socket, _ := ctx.Value(socketKey{}).(string)
			if socket == "" {
				return nil, errors.New("request has no target socket")
			}
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
		DisableKeepAlives:  true,
		DisableCompression: true,
	}
	return &Dispatcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Proxy forwards ev to lc and completes ictx with the result. It never blocks:
// if lc is not listening yet the event is queued and lc is started.
func (d *Dispatcher) Proxy(lc Lifecycle, ev *edge.Event, ictx *edge.Context) {
	if lc.IsListening() {
		go d.forward(lc, ev, ictx)
		return
	}

	lc.WhenListening(func() {
		d.Proxy(lc, ev, ictx)
	})
	go func() {
		if err := lc.Start(); err != nil {
			edgelog.Error("failed to start local server", "error", err)
		}
	}()
}

// ProxyWait is Proxy for callers that want the response back. It returns
// ctx.Err() if ctx ends first; the event is still forwarded.
func (d *Dispatcher) ProxyWait(ctx context.Context, lc Lifecycle, ev *edge.Event, meta edge.Metadata) (edge.Response, error) {
	done := make(chan edge.Response, 1)
	d.Proxy(lc, ev, edge.NewContext(meta, func(resp edge.Response) {
		done <- resp
	}))

	select {
	case resp := <-done:
		return resp, nil
	case <-ctx.Done():
		return edge.Response{}, ctx.Err()
	}
}

func (d *Dispatcher) forward(lc Lifecycle, ev *edge.Event, ictx *edge.Context) {
	defer func() {
		if r := recover(); r != nil {
			d.fail(ictx, &LibraryError{Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	socket := lc.SocketPath()
	lr, err := codec.ToLocalRequest(ev, ictx, socket)
	if err != nil {
		d.fail(ictx, &LibraryError{Err: err})
		return
	}
	req, err := newHTTPRequest(lr)
	if err != nil {
		d.fail(ictx, &LibraryError{Err: err})
		return
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.fail(ictx, &ConnectionError{Socket: socket, Err: err})
		return
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		d.fail(ictx, &ConnectionError{Socket: socket, Err: fmt.Errorf("read response body: %w", err)})
		return
	}

	out, err := codec.ToEdgeResponse(resp.StatusCode, resp.Header, body, lc.BinaryTypes())
	if err != nil {
		d.fail(ictx, &LibraryError{Err: err})
		return
	}

	edgelog.Debug("forwarded edge request",
		"method", lr.Method,
		"path", lr.Path,
		"socket", socket,
		"status", resp.StatusCode,
		"request_id", ictx.AWSRequestID,
	)
	ictx.Complete(out)
}

func (d *Dispatcher) fail(ictx *edge.Context, err error) {
	edgelog.Error("edge request failed", "request_id", ictx.AWSRequestID, "error", err)
	ictx.Complete(responseFor(err))
}

func newHTTPRequest(lr *codec.LocalRequest) (*http.Request, error) {
	ctx := context.WithValue(context.Background(), socketKey{}, lr.Socket)
	req, err := http.NewRequestWithContext(ctx, lr.Method, "http://localhost"+lr.Path, bytes.NewReader(lr.Body))
	if err != nil {
		return nil, fmt.Errorf("build local request: %w", err)
	}

	// An empty User-Agent stops net/http from sending its own.
	req.Header["User-Agent"] = []string{""}
	for name, values := range lr.Header {
		if len(values) == 0 {
			continue
		}
		switch strings.ToLower(name) {
		case "host":
			req.Host = values[0]
		case "content-length", "transfer-encoding", "connection":
		case "user-agent":
			req.Header["User-Agent"] = values
		default:
			req.Header[name] = values
		}
	}
	return req, nil
}
