package dispatch

import (
	"fmt"

	"github.com/holon-run/edgeshim/pkg/edge"
)

// ConnectionError means the local server could not be reached or its response
// could not be read.
type ConnectionError struct {
	Socket string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("local server %s: %v", e.Socket, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// LibraryError means the event could not be translated, or forwarding panicked.
type LibraryError struct {
	Err error
}

func (e *LibraryError) Error() string {
	return fmt.Sprintf("edge translation: %v", e.Err)
}

func (e *LibraryError) Unwrap() error { return e.Err }

// ConnectionErrorResponse is sent for a ConnectionError.
func ConnectionErrorResponse() edge.Response {
	return edge.Response{Status: "502", Headers: edge.Headers{}}
}

// LibraryErrorResponse is sent for a LibraryError.
func LibraryErrorResponse() edge.Response {
	return edge.Response{Status: "500", Headers: edge.Headers{}}
}

func responseFor(err error) edge.Response {
	if _, ok := err.(*ConnectionError); ok {
		return ConnectionErrorResponse()
	}
	return LibraryErrorResponse()
}
