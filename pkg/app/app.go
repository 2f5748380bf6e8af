// Package app provides the local handlers the edgeshim CLI serves behind the
// socket: a static file tree, a reverse proxy to an upstream, or an echo of
// what the handler received.
package app

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"

	json "github.com/goccy/go-json"
	edgelog "github.com/holon-run/edgeshim/pkg/log"
	"github.com/holon-run/edgeshim/pkg/middleware"
)

// Options selects the handler. At most one of StaticDir and UpstreamURL may be set;
// with neither, the echo handler is used.
type Options struct {
	StaticDir   string
	UpstreamURL string
	// MiddlewareKey is where the decoded event is stored on each request.
	MiddlewareKey string
}

// New builds the selected handler wrapped in the event context middleware.
func New(opts Options) (http.Handler, error) {
	if opts.StaticDir != "" && opts.UpstreamURL != "" {
		return nil, fmt.Errorf("static dir and upstream url are mutually exclusive")
	}

	var h http.Handler
	switch {
	case opts.StaticDir != "":
		h = Static(opts.StaticDir)
	case opts.UpstreamURL != "":
		target, err := url.Parse(opts.UpstreamURL)
		if err != nil {
			return nil, fmt.Errorf("invalid upstream url: %w", err)
		}
		if target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("invalid upstream url %q: scheme and host are required", opts.UpstreamURL)
		}
		h = Upstream(target)
	default:
		h = Echo(opts.MiddlewareKey)
	}

	return middleware.EventContext(middleware.Options{Key: opts.MiddlewareKey})(h), nil
}

// Static serves files under dir.
func Static(dir string) http.Handler {
	return http.FileServer(http.Dir(dir))
}

// Upstream forwards every request to target.
func Upstream(target *url.URL) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		edgelog.Error("upstream request failed", "upstream", target.String(), "path", r.URL.Path, "error", err)
		w.WriteHeader(http.StatusBadGateway)
	}
	return proxy
}

// EchoResponse is the body written by Echo.
type EchoResponse struct {
	Method  string              `json:"method"`
	Path    string              `json:"path"`
	Query   string              `json:"query,omitempty"`
	Headers map[string][]string `json:"headers"`
	Body    string              `json:"body,omitempty"`
	Edge    *middleware.Payload `json:"edge,omitempty"`
}

// Echo answers with a JSON description of the request, including the edge
// payload stored under key.
func Echo(key string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		out := EchoResponse{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.RawQuery,
			Headers: r.Header,
			Body:    string(body),
		}
		if payload, ok := middleware.FromRequest(r, key); ok {
			out.Edge = payload
		}

		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(out); err != nil {
			edgelog.Error("failed to write echo response", "error", err)
		}
	})
}
