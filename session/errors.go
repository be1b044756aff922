package session

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an API failure. The queue and the recycle policy branch on it.
type Kind string

const (
	// KindTransport is a network-level failure: connection refused, reset, DNS.
	KindTransport Kind = "transport"
	// KindServer is a structured non-2xx response with a server-provided message.
	KindServer Kind = "server"
	// KindSessionExpired means the refresh protocol itself failed. Fatal for the
	// whole session, not a retryable per-call condition.
	KindSessionExpired Kind = "sessionExpired"
	// KindCancelled is a deliberate abort. Not a failure for UI purposes.
	KindCancelled Kind = "cancelled"
)

// APIError is the typed failure surfaced by every Client call.
type APIError struct {
	Kind    Kind
	Status  int // HTTP status, 0 for transport-level failures
	Message string
	Err     error // underlying error, if any
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ErrorKind returns the Kind of err, or "" when err is not an APIError.
func ErrorKind(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

func IsCancelled(err error) bool      { return ErrorKind(err) == KindCancelled }
func IsSessionExpired(err error) bool { return ErrorKind(err) == KindSessionExpired }
func IsTransport(err error) bool      { return ErrorKind(err) == KindTransport }
func IsServer(err error) bool         { return ErrorKind(err) == KindServer }

// classifyTransport maps a round-trip error to cancelled or transport.
func classifyTransport(ctx context.Context, err error) *APIError {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return &APIError{Kind: KindCancelled, Message: "request cancelled", Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Kind: KindTransport, Message: "request timed out", Err: err}
	}
	return &APIError{Kind: KindTransport, Message: "network error", Err: err}
}

func sessionExpiredError(status int) *APIError {
	return &APIError{
		Kind:    KindSessionExpired,
		Status:  status,
		Message: "session expired, please sign in again",
	}
}
