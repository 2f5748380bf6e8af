// Package middleware lets handlers behind the local socket read the edge
// event and invocation context that arrived with a forwarded request.
package middleware

import (
	"context"
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/holon-run/edgeshim/pkg/codec"
	"github.com/holon-run/edgeshim/pkg/edge"
	edgelog "github.com/holon-run/edgeshim/pkg/log"
)

// DefaultKey names the payload when Options.Key is empty.
const DefaultKey = "edge"

// Payload is the decoded pair of synthetic headers.
type Payload struct {
	Event   *edge.Event   `json:"event"`
	Context edge.Metadata `json:"context"`
}

// Options configures EventContext.
type Options struct {
	// Key names the payload in the request context.
	Key string
	// KeepHeaders leaves the synthetic headers on the request.
	KeepHeaders bool
}

type contextKey string

// EventContext decodes the x-edge-event and x-edge-context headers into a
// Payload stored on the request context. Requests without both headers, or
// with headers that do not decode, reach next unchanged.
func EventContext(opts Options) func(http.Handler) http.Handler {
	key := opts.Key
	if key == "" {
		key = DefaultKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawEvent := r.Header.Get(codec.HeaderEvent)
			rawContext := r.Header.Get(codec.HeaderContext)
			if rawEvent == "" || rawContext == "" {
				edgelog.Warn("missing edge headers", "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			payload, err := decodePayload(rawEvent, rawContext)
			if err != nil {
				edgelog.Warn("undecodable edge headers", "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			r = r.Clone(context.WithValue(r.Context(), contextKey(key), payload))
			if !opts.KeepHeaders {
				r.Header.Del(codec.HeaderEvent)
				r.Header.Del(codec.HeaderContext)
			}
			r.Host = ""
			r.Header.Del("Host")
			next.ServeHTTP(w, r)
		})
	}
}

func decodePayload(rawEvent, rawContext string) (*Payload, error) {
	eventJSON, err := codec.DecodeURIComponent(rawEvent)
	if err != nil {
		return nil, fmt.Errorf("unescape %s: %w", codec.HeaderEvent, err)
	}
	contextJSON, err := codec.DecodeURIComponent(rawContext)
	if err != nil {
		return nil, fmt.Errorf("unescape %s: %w", codec.HeaderContext, err)
	}

	payload := &Payload{}
	if err := json.Unmarshal([]byte(eventJSON), &payload.Event); err != nil {
		return nil, fmt.Errorf("decode %s: %w", codec.HeaderEvent, err)
	}
	if err := json.Unmarshal([]byte(contextJSON), &payload.Context); err != nil {
		return nil, fmt.Errorf("decode %s: %w", codec.HeaderContext, err)
	}
	return payload, nil
}

// FromRequest returns the payload EventContext stored under key.
func FromRequest(r *http.Request, key string) (*Payload, bool) {
	if key == "" {
		key = DefaultKey
	}
	p, ok := r.Context().Value(contextKey(key)).(*Payload)
	return p, ok
}
