package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that the object does not exist.
	ErrNotFound = errors.New("stream: object not found")

	// ErrSizeUnavailable indicates that the service reported no content length.
	ErrSizeUnavailable = errors.New("stream: object size unavailable")

	// ErrTransport indicates a network or service fault on a request.
	ErrTransport = errors.New("stream: transport error")

	// ErrBodyRead indicates that reading a response body failed after all
	// retries were used.
	ErrBodyRead = errors.New("stream: body read error")

	// ErrInvalidConfig indicates a reader configuration that cannot plan ranges.
	ErrInvalidConfig = errors.New("stream: invalid config")

	// ErrClosed is returned by a Reader after Close.
	ErrClosed = errors.New("stream: reader closed")
)

// Error describes a failed stream operation. It matches its Kind with
// errors.Is and unwraps to the underlying SDK error.
type Error struct {
	Op     string
	Bucket string
	Key    string
	Kind   error
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("stream.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Kind)
	}
	return fmt.Sprintf("stream.%s %s/%s: %v: %v", e.Op, e.Bucket, e.Key, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, obj Object, kind, err error) *Error {
	return &Error{Op: op, Bucket: obj.Bucket, Key: obj.Key, Kind: kind, Err: err}
}
