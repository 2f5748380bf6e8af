package edge

import (
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

// HeaderEntry is one header line in the edge platform's {key, value} shape.
// Key keeps the name's original casing.
type HeaderEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Headers maps a lowercase header name to its ordered entries.
type Headers map[string][]HeaderEntry

// Add appends a value under name.
func (h Headers) Add(name, value string) {
	lower := strings.ToLower(name)
	h[lower] = append(h[lower], HeaderEntry{Key: name, Value: value})
}

// Set replaces every value under name.
func (h Headers) Set(name, value string) {
	h[strings.ToLower(name)] = []HeaderEntry{{Key: name, Value: value}}
}

// Get returns the first value under name, or "".
func (h Headers) Get(name string) string {
	entries := h[strings.ToLower(name)]
	if len(entries) == 0 {
		return ""
	}
	return entries[0].Value
}

// Values returns every value under name.
func (h Headers) Values(name string) []string {
	entries := h[strings.ToLower(name)]
	if len(entries) == 0 {
		return nil
	}
	values := make([]string, len(entries))
	for i, e := range entries {
		values[i] = e.Value
	}
	return values
}

// Del removes name.
func (h Headers) Del(name string) {
	delete(h, strings.ToLower(name))
}

// Names returns the lowercase names in sorted order.
func (h Headers) Names() []string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy. A nil receiver clones to nil.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	for name, entries := range h {
		out[name] = append([]HeaderEntry(nil), entries...)
	}
	return out
}

// UnmarshalJSON accepts, per header, a string, an array of strings, or an
// array of {key, value} objects. Map keys are lowercased; the original name
// survives in each entry's Key.
func (h *Headers) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode headers: %w", err)
	}
	out := make(Headers, len(raw))
	for name, v := range raw {
		entries, err := headerEntries(name, v)
		if err != nil {
			return err
		}
		lower := strings.ToLower(name)
		out[lower] = append(out[lower], entries...)
	}
	*h = out
	return nil
}

func headerEntries(name string, v interface{}) ([]HeaderEntry, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []HeaderEntry{{Key: name, Value: val}}, nil
	case []interface{}:
		entries := make([]HeaderEntry, 0, len(val))
		for _, item := range val {
			switch it := item.(type) {
			case string:
				entries = append(entries, HeaderEntry{Key: name, Value: it})
			case map[string]interface{}:
				value, ok := it["value"].(string)
				if !ok {
					return nil, fmt.Errorf("header %q: entry without string value", name)
				}
				key, _ := it["key"].(string)
				if key == "" {
					key = name
				}
				entries = append(entries, HeaderEntry{Key: key, Value: value})
			default:
				return nil, fmt.Errorf("header %q: unsupported entry type %T", name, item)
			}
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("header %q: unsupported value type %T", name, v)
	}
}
