package codec

import (
	"net/url"
	"strings"

	"github.com/holon-run/edgeshim/pkg/edge"
)

type queryParam struct {
	key    string
	values []string
}

// parseQuery splits a raw querystring into parameters grouped by key. Keys keep
// their first-appearance order, values their appearance order.
func parseQuery(raw string) []queryParam {
	var params []queryParam
	index := make(map[string]int)
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key := unescapeComponent(k)
		if key == "" {
			continue
		}
		value := unescapeComponent(v)
		if i, ok := index[key]; ok {
			params[i].values = append(params[i].values, value)
			continue
		}
		index[key] = len(params)
		params = append(params, queryParam{key: key, values: []string{value}})
	}
	return params
}

// unescapeComponent decodes '+' and percent escapes. Malformed escapes leave
// the text as it was.
func unescapeComponent(s string) string {
	s = strings.ReplaceAll(s, "+", " ")
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// PathWithQuery joins the request uri and its re-serialized querystring.
func PathWithQuery(req *edge.Request) string {
	path := escapePathname(req.URI)
	params := parseQuery(req.Querystring)
	if len(params) == 0 {
		return path
	}

	var b strings.Builder
	b.WriteString(path)
	b.WriteByte('?')
	first := true
	for _, p := range params {
		for _, v := range p.values {
			if !first {
				b.WriteByte('&')
			}
			first = false
			b.WriteString(EncodeURIComponent(p.key))
			b.WriteByte('=')
			b.WriteString(EncodeURIComponent(v))
		}
	}
	return b.String()
}

var pathnameEscaper = strings.NewReplacer("?", "%3F", "#", "%23")

func escapePathname(uri string) string {
	return pathnameEscaper.Replace(uri)
}

var componentFixups = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeURIComponent escapes everything outside A-Z a-z 0-9 - _ . ! ~ * ' ( ).
func EncodeURIComponent(s string) string {
	return componentFixups.Replace(url.QueryEscape(s))
}

// DecodeURIComponent reverses EncodeURIComponent. '+' is kept literal.
func DecodeURIComponent(s string) (string, error) {
	return url.PathUnescape(s)
}
