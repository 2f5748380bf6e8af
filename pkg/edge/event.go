// Package edge defines the edge platform's request event, invocation context
// and response shapes.
package edge

import (
	"errors"
)

// BodyEncodingBase64 marks a request or response body carried as base64.
const BodyEncodingBase64 = "base64"

var (
	// ErrNoRequest indicates an event without a request record.
	ErrNoRequest = errors.New("event has no request record")

	// ErrMultipleRequests indicates an event carrying more than one request record.
	ErrMultipleRequests = errors.New("event has more than one request record")
)

// Event is the invocation payload delivered by the edge platform.
type Event struct {
	Records []Record `json:"Records"`
}

type Record struct {
	CF CloudFront `json:"cf"`
}

type CloudFront struct {
	Config  map[string]interface{} `json:"config,omitempty"`
	Request Request                `json:"request"`
}

// Request is the viewer request carried by an Event.
type Request struct {
	ClientIP     string  `json:"clientIp,omitempty"`
	Method       string  `json:"method"`
	URI          string  `json:"uri"`
	Querystring  string  `json:"querystring"`
	Headers      Headers `json:"headers"`
	Body         string  `json:"body,omitempty"`
	BodyEncoding string  `json:"bodyEncoding,omitempty"`
}

// NewEvent wraps a single request into an event envelope.
func NewEvent(req Request) *Event {
	return &Event{Records: []Record{{CF: CloudFront{Request: req}}}}
}

// Request returns the event's only request.
func (e *Event) Request() (*Request, error) {
	if e == nil || len(e.Records) == 0 {
		return nil, ErrNoRequest
	}
	if len(e.Records) > 1 {
		return nil, ErrMultipleRequests
	}
	return &e.Records[0].CF.Request, nil
}

// WithoutBody returns a copy of the event with every request body dropped.
// The receiver is left untouched.
func (e *Event) WithoutBody() *Event {
	out := &Event{Records: make([]Record, len(e.Records))}
	for i, rec := range e.Records {
		rec.CF.Request.Body = ""
		rec.CF.Request.Headers = rec.CF.Request.Headers.Clone()
		out.Records[i] = rec
	}
	return out
}

// HasBody reports whether the request carries a body.
func (r *Request) HasBody() bool {
	return r.Body != ""
}
