package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/holon-run/edgeshim/pkg/edge"
)

// BinaryTypes is the set of content types whose bodies travel as base64.
type BinaryTypes map[string]struct{}

// NewBinaryTypes builds a set from types. Blank entries are ignored.
func NewBinaryTypes(types ...string) BinaryTypes {
	set := make(BinaryTypes, len(types))
	for _, t := range types {
		if t = strings.TrimSpace(t); t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

// List returns the members sorted.
func (b BinaryTypes) List() []string {
	out := make([]string, 0, len(b))
	for t := range b {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ContentType strips parameters such as charset from a Content-Type value.
func ContentType(headerValue string) string {
	mediaType, _, _ := strings.Cut(headerValue, ";")
	return strings.TrimSpace(mediaType)
}

// IsBinary reports exact membership of contentType in set.
func IsBinary(contentType string, set BinaryTypes) bool {
	_, ok := set[contentType]
	return ok
}

// ToEdgeResponse converts a fully buffered local response. text/html bodies
// are always gzipped and base64-encoded; other bodies are base64 when their
// content type is in binary, UTF-8 text otherwise. header is not modified.
func ToEdgeResponse(status int, header http.Header, body []byte, binary BinaryTypes) (edge.Response, error) {
	headers := make(edge.Headers, len(header)+1)

	names := make([]string, 0, len(header))
	for name := range header {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		values := header[name]
		switch strings.ToLower(name) {
		case "connection", "content-length":
			continue
		case "transfer-encoding":
			if isChunked(values) {
				continue
			}
		}
		for _, v := range values {
			headers.Add(name, v)
		}
	}

	contentType := ContentType(headers.Get("content-type"))
	base64Body := IsBinary(contentType, binary)

	var encoded string
	switch {
	case contentType == "text/html":
		compressed, err := gzipBytes(body)
		if err != nil {
			return edge.Response{}, err
		}
		encoded = base64.StdEncoding.EncodeToString(compressed)
		base64Body = true
		headers.Set("Content-Encoding", "gzip")
	case base64Body:
		encoded = base64.StdEncoding.EncodeToString(body)
	default:
		encoded = string(body)
	}

	resp := edge.Response{
		Status:  strconv.Itoa(status),
		Headers: headers,
		Body:    encoded,
	}
	if base64Body {
		resp.BodyEncoding = edge.BodyEncodingBase64
	}
	return resp, nil
}

func isChunked(values []string) bool {
	for _, v := range values {
		if !strings.EqualFold(strings.TrimSpace(v), "chunked") {
			return false
		}
	}
	return len(values) > 0
}

func gzipBytes(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, fmt.Errorf("gzip body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip body: %w", err)
	}
	return buf.Bytes(), nil
}
