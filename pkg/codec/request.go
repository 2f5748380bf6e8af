// Package codec maps edge events onto local HTTP requests and local HTTP
// responses back onto edge responses. Nothing here performs I/O.
package codec

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/holon-run/edgeshim/pkg/edge"
	"golang.org/x/net/http/httpguts"
)

const (
	// HeaderEvent carries the URL-encoded JSON event, body removed.
	HeaderEvent = "x-edge-event"
	// HeaderContext carries the URL-encoded JSON invocation context.
	HeaderContext = "x-edge-context"
)

// LocalRequest describes the HTTP request sent to the local socket.
// Header names keep the casing they arrived with.
type LocalRequest struct {
	Method string
	Path   string
	Header http.Header
	Socket string
	Body   []byte
}

// ToLocalRequest builds the request for ev. Neither ev nor ctx is modified.
func ToLocalRequest(ev *edge.Event, ctx *edge.Context, socket string) (*LocalRequest, error) {
	req, err := ev.Request()
	if err != nil {
		return nil, err
	}

	header := make(http.Header, len(req.Headers)+2)
	for _, name := range req.Headers.Names() {
		if name == HeaderEvent || name == HeaderContext {
			continue
		}
		for _, entry := range req.Headers[name] {
			key := entry.Key
			if key == "" {
				key = name
			}
			if !httpguts.ValidHeaderFieldName(key) {
				return nil, fmt.Errorf("invalid header name %q", key)
			}
			if !httpguts.ValidHeaderFieldValue(entry.Value) {
				return nil, fmt.Errorf("invalid value for header %q", key)
			}
			header[key] = append(header[key], entry.Value)
		}
	}

	eventJSON, err := json.Marshal(ev.WithoutBody())
	if err != nil {
		return nil, fmt.Errorf("encode event header: %w", err)
	}
	contextJSON, err := json.Marshal(ctx)
	if err != nil {
		return nil, fmt.Errorf("encode context header: %w", err)
	}
	header[HeaderEvent] = []string{EncodeURIComponent(string(eventJSON))}
	header[HeaderContext] = []string{EncodeURIComponent(string(contextJSON))}

	body, err := decodeBody(req)
	if err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	return &LocalRequest{
		Method: strings.ToUpper(method),
		Path:   PathWithQuery(req),
		Header: header,
		Socket: socket,
		Body:   body,
	}, nil
}

func decodeBody(req *edge.Request) ([]byte, error) {
	if !req.HasBody() {
		return nil, nil
	}
	if req.BodyEncoding != edge.BodyEncodingBase64 {
		return []byte(req.Body), nil
	}
	body, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return nil, fmt.Errorf("decode base64 body: %w", err)
	}
	return body, nil
}
