package record

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/holon-run/edgeshim/pkg/edge"
)

func TestWriterAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "responses.ndjson")

	for i := 0; i < 2; i++ {
		w, err := Open(path)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		resp := edge.Response{Status: "200", Headers: edge.Headers{}, Body: "<b>ok</b>"}
		if err := w.Write(Entry{Time: time.Unix(0, 0).UTC(), RequestID: "req", Response: &resp}); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if n := strings.Count(string(data), "\n"); n != 2 {
		t.Fatalf("lines = %d, want 2", n)
	}
	if !strings.Contains(string(data), `"body":"<b>ok</b>"`) {
		t.Errorf("html should not be escaped: %s", data)
	}
}

func TestReadAllRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Write(Entry{RequestID: "req", Error: "connection refused"})
		}()
	}
	wg.Wait()
	if err := w.Close(); err != nil {
		t.Fatalf("Close on caller-owned writer failed: %v", err)
	}

	buf.WriteString("\n")
	entries, err := ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != 20 {
		t.Fatalf("entries = %d, want 20", len(entries))
	}
	if entries[0].Error != "connection refused" || entries[0].Response != nil {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestReadAllReportsBadLine(t *testing.T) {
	_, err := ReadAll(strings.NewReader("{\"request_id\":\"a\"}\nnot json\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("ReadAll error = %v", err)
	}
}

func TestOpenFailure(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing", "x.ndjson")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
