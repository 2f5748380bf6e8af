package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/holon-run/edgeshim/pkg/edge"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property-based test: repeated keys keep every value, grouped in first-appearance order
func TestPathWithQuery_PropertyRepetitionAndOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("query values survive grouped by key", prop.ForAll(
		func(values []int) bool {
			parts := make([]string, 0, len(values))
			var order []string
			grouped := make(map[string][]string)
			for _, v := range values {
				key := "k" + strconv.Itoa(v%3)
				val := strconv.Itoa(v)
				parts = append(parts, key+"="+val)
				if _, ok := grouped[key]; !ok {
					order = append(order, key)
				}
				grouped[key] = append(grouped[key], val)
			}

			var want []string
			for _, key := range order {
				for _, val := range grouped[key] {
					want = append(want, key+"="+val)
				}
			}
			expected := "/p"
			if len(want) > 0 {
				expected += "?" + strings.Join(want, "&")
			}

			got := PathWithQuery(&edge.Request{URI: "/p", Querystring: strings.Join(parts, "&")})
			return got == expected
		},
		gen.SliceOf(gen.IntRange(0, 999)),
	))

	properties.TestingRun(t)
}

// Property-based test: framing headers never reach the edge response
func TestToEdgeResponse_PropertyStripsFraming(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("connection, content-length and chunked transfer-encoding are dropped", prop.ForAll(
		func(withConnection, withLength, withChunked bool, contentType, body string) bool {
			header := http.Header{"Content-Type": {contentType}, "X-Keep": {"yes"}}
			if withConnection {
				header.Set("Connection", "close")
			}
			if withLength {
				header.Set("Content-Length", strconv.Itoa(len(body)))
			}
			if withChunked {
				header.Set("Transfer-Encoding", "chunked")
			}

			resp, err := ToEdgeResponse(200, header, []byte(body), NewBinaryTypes("image/png"))
			if err != nil {
				return false
			}
			for _, name := range []string{"connection", "content-length", "transfer-encoding"} {
				if _, ok := resp.Headers[name]; ok {
					return false
				}
			}
			return resp.Headers.Get("x-keep") == "yes"
		},
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
		gen.OneConstOf("text/plain", "image/png", "application/json", "text/html"),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// Property-based test: text/html is always gzipped and base64-encoded
func TestToEdgeResponse_PropertyHTMLGzip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("html bodies round trip through gzip", prop.ForAll(
		func(body string, htmlIsBinary bool) bool {
			binary := NewBinaryTypes("image/png")
			if htmlIsBinary {
				binary = NewBinaryTypes("text/html")
			}
			resp, err := ToEdgeResponse(200, http.Header{"Content-Type": {"text/html"}}, []byte(body), binary)
			if err != nil {
				return false
			}
			if resp.BodyEncoding != edge.BodyEncodingBase64 || resp.Headers.Get("content-encoding") != "gzip" {
				return false
			}
			raw, err := base64.StdEncoding.DecodeString(resp.Body)
			if err != nil {
				return false
			}
			zr, err := gzip.NewReader(bytes.NewReader(raw))
			if err != nil {
				return false
			}
			out, err := io.ReadAll(zr)
			return err == nil && string(out) == body
		},
		gen.AlphaString(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
