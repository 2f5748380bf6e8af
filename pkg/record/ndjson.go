// Package record appends completed invocations to an NDJSON log.
package record

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/holon-run/edgeshim/pkg/edge"
)

// Entry is one line of the log.
type Entry struct {
	Time       time.Time      `json:"time"`
	Source     string         `json:"source,omitempty"`
	RequestID  string         `json:"request_id"`
	Method     string         `json:"method,omitempty"`
	URI        string         `json:"uri,omitempty"`
	DurationMS int64          `json:"duration_ms"`
	Response   *edge.Response `json:"response,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Writer appends entries. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	closer io.Closer
	enc    *json.Encoder
}

// Open appends to the file at path, creating it if needed.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open ndjson file %q: %w", path, err)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// NewWriter writes to out. Close does not close out.
func NewWriter(out io.Writer) *Writer {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	return &Writer{enc: enc}
}

// Write appends e as one line.
func (w *Writer) Write(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(e); err != nil {
		return fmt.Errorf("failed to write ndjson entry: %w", err)
	}
	return nil
}

// Close closes the file opened by Open.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closer == nil {
		return nil
	}
	if err := w.closer.Close(); err != nil {
		return fmt.Errorf("failed to close ndjson file: %w", err)
	}
	w.closer = nil
	return nil
}

// ReadAll decodes every entry in r. Blank lines are skipped.
func ReadAll(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ndjson: %w", err)
	}
	return entries, nil
}
