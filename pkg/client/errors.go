package client

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies why a call to the analytics API failed
type Kind string

const (
	KindNetwork        Kind = "network"
	KindMalformed      Kind = "malformed_payload"
	KindMutationFailed Kind = "mutation_failed"
	KindUpstreamStatus Kind = "upstream_status"
	KindTimeout        Kind = "timeout"
)

var (
	// ErrNetwork matches any transport-level failure
	ErrNetwork = &Error{Kind: KindNetwork}

	// ErrMalformed matches responses that could not be decoded
	ErrMalformed = &Error{Kind: KindMalformed}

	// ErrMutationFailed matches edits the analytics API did not accept
	ErrMutationFailed = &Error{Kind: KindMutationFailed}

	// ErrUpstreamStatus matches non-2xx responses to reads
	ErrUpstreamStatus = &Error{Kind: KindUpstreamStatus}

	// ErrTimeout matches requests cut off by their deadline
	ErrTimeout = &Error{Kind: KindTimeout}
)

// Error describes a failed analytics API call
type Error struct {
	Kind       Kind
	Op         string
	Endpoint   string
	StatusCode int
	Err        error
}

// Error returns the error message
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Op, e.Endpoint, e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is matches on Kind so callers can use errors.Is(err, client.ErrTimeout)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of a client error, or "" for foreign errors
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

func transportError(op, endpoint string, err error) *Error {
	kind := KindNetwork
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Op: op, Endpoint: endpoint, Err: err}
}
