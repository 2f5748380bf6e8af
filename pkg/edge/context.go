package edge

import (
	"sync"
	"sync/atomic"

	json "github.com/goccy/go-json"
)

// Metadata is the serializable part of an invocation context.
type Metadata struct {
	AWSRequestID       string `json:"awsRequestId"`
	FunctionName       string `json:"functionName,omitempty"`
	FunctionVersion    string `json:"functionVersion,omitempty"`
	InvokedFunctionARN string `json:"invokedFunctionArn,omitempty"`
	MemoryLimitInMB    string `json:"memoryLimitInMB,omitempty"`
	LogGroupName       string `json:"logGroupName,omitempty"`
	LogStreamName      string `json:"logStreamName,omitempty"`
}

// Context is the completion handle for one event. Complete delivers the
// response to the platform; only the first call has any effect.
type Context struct {
	Metadata

	once      sync.Once
	completed atomic.Bool
	done      func(Response)
}

// NewContext returns a context that hands its response to done.
func NewContext(meta Metadata, done func(Response)) *Context {
	return &Context{Metadata: meta, done: done}
}

// Complete delivers resp and reports whether this call was the one that did.
func (c *Context) Complete(resp Response) bool {
	first := false
	c.once.Do(func() {
		first = true
		c.completed.Store(true)
		if c.done != nil {
			c.done(resp)
		}
	})
	return first
}

// Completed reports whether Complete has been called.
func (c *Context) Completed() bool {
	return c.completed.Load()
}

// MarshalJSON emits the metadata only.
func (c *Context) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Metadata)
}

// Response is what the platform receives for an event.
type Response struct {
	Status       string  `json:"status"`
	Headers      Headers `json:"headers"`
	Body         string  `json:"body"`
	BodyEncoding string  `json:"bodyEncoding,omitempty"`
}
