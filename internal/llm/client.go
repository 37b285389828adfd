// Package llm is the boundary to the remote completion API. A call either
// returns plain completion text or fails with a *RemoteError; nothing is
// retried and partial output is never returned.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Request is the text sent for completion.
type Request struct {
	Text string
}

// Response is the completion text.
type Response struct {
	Text string
}

// Client is the narrow contract the chat session depends on; it is easy to
// mock in tests.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ErrRemoteCall matches every failure of the completion API.
var ErrRemoteCall = errors.New("remote call failed")

// FailureKind tells network, status and payload failures apart.
type FailureKind string

const (
	KindNetwork FailureKind = "network"
	KindStatus  FailureKind = "status"
	KindPayload FailureKind = "payload"
)

// RemoteError describes a failed completion call.
type RemoteError struct {
	Kind FailureKind
	// StatusCode is the HTTP status for KindStatus failures when known.
	StatusCode int
	// Status is a provider-specific status name, e.g. a gRPC code.
	Status string
	Err    error
}

func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s failure (status %d): %v", ErrRemoteCall, e.Kind, e.StatusCode, e.Err)
	case e.Status != "":
		return fmt.Sprintf("%s: %s failure (%s): %v", ErrRemoteCall, e.Kind, e.Status, e.Err)
	default:
		return fmt.Sprintf("%s: %s failure: %v", ErrRemoteCall, e.Kind, e.Err)
	}
}

func (e *RemoteError) Unwrap() []error { return []error{ErrRemoteCall, e.Err} }

// ErrInvalidPayload is the cause of KindPayload failures.
var ErrInvalidPayload = errors.New("invalid API response format")

func payloadError(detail string) *RemoteError {
	return &RemoteError{Kind: KindPayload, Err: fmt.Errorf("%w: %s", ErrInvalidPayload, detail)}
}

// networkError classifies transport-level failures, returning nil when err
// does not look like one.
func networkError(err error) *RemoteError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.As(err, &netErr) {
		return &RemoteError{Kind: KindNetwork, Err: err}
	}
	return nil
}

// asRemote leaves *RemoteError values untouched and wraps anything else as a
// network failure.
func asRemote(err error) error {
	var re *RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &RemoteError{Kind: KindNetwork, Err: err}
}
