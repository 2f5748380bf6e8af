// Package fixture loads edge events from files and builds the invocation
// metadata a real edge runtime would attach to them.
package fixture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/holon-run/edgeshim/pkg/edge"
	"gopkg.in/yaml.v3"
)

// IsEventFile reports whether path has an extension Load understands.
func IsEventFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads an event from a JSON or YAML file.
func Load(path string) (*edge.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read event file: %w", err)
	}
	ev, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ev, nil
}

// Parse decodes an event. ext selects YAML for ".yaml" and ".yml"; anything
// else is JSON. A document holding a bare request, without the Records
// envelope, is wrapped into a single-record event.
func Parse(data []byte, ext string) (*edge.Event, error) {
	raw := data
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var doc map[string]interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml event: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert yaml event: %w", err)
		}
		raw = converted
	}

	var ev edge.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if len(ev.Records) > 0 {
		if _, err := ev.Request(); err != nil {
			return nil, err
		}
		return &ev, nil
	}

	var req edge.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if req.URI == "" {
		return nil, edge.ErrNoRequest
	}
	return edge.NewEvent(req), nil
}

// NewMetadata returns invocation metadata with a fresh request id.
func NewMetadata(functionName string) edge.Metadata {
	id := uuid.New()
	return edge.Metadata{
		AWSRequestID:       id.String(),
		FunctionName:       functionName,
		FunctionVersion:    "$LATEST",
		InvokedFunctionARN: "arn:aws:lambda:us-east-1:000000000000:function:" + functionName,
		MemoryLimitInMB:    "128",
		LogGroupName:       "/aws/lambda/us-east-1." + functionName,
		LogStreamName:      time.Now().UTC().Format("2006/01/02") + "/[$LATEST]" + strings.ReplaceAll(id.String(), "-", ""),
	}
}
