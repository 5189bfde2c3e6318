package client

import (
	"errors"
	"fmt"
	"time"
)

// Standard error types that can be used with errors.Is().
var (
	// ErrUnsupportedProtocolVersion reports that version negotiation exhausted
	// its single retry without finding a revision both sides accept. The
	// session is left open; a later call negotiates fresh.
	ErrUnsupportedProtocolVersion = errors.New("no mutually supported protocol version")

	// ErrRequestTimeout reports that the call's deadline elapsed before a
	// response arrived. A retry must bind a fresh deadline.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrCancelled reports that the caller cancelled the invocation.
	ErrCancelled = errors.New("request was cancelled")

	// ErrTransportFailure wraps any other channel failure, passed through
	// uninterpreted.
	ErrTransportFailure = errors.New("transport failure")

	// ErrResourceNotFound reports that the server does not know the requested
	// resource URI.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrNotificationStreamDegraded is the session-level advisory raised once
	// per degradation event when the notification stream cannot be
	// re-established. Unary calls are unaffected.
	ErrNotificationStreamDegraded = errors.New("notification stream degraded")

	// ErrSessionClosed reports use of a closed session.
	ErrSessionClosed = errors.New("session is closed")
)

// VersionMismatchError carries the mismatch signal of a rejected call: the
// server's preferred version (may be empty when the server sent none) and the
// human-readable list of versions it enumerated.
type VersionMismatchError struct {
	ServerVersion string
	Supported     string
	Cause         error
}

func (e *VersionMismatchError) Error() string {
	if e.ServerVersion == "" {
		return fmt.Sprintf("no mutually supported protocol version (server supports: %s)", e.Supported)
	}
	return fmt.Sprintf("no mutually supported protocol version (server prefers %s; supports: %s)", e.ServerVersion, e.Supported)
}

func (e *VersionMismatchError) Unwrap() []error {
	return []error{ErrUnsupportedProtocolVersion, e.Cause}
}

// TimeoutError reports which operation timed out and the timeout that was in
// force.
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
	Cause     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out while waiting for response to %s (waited %v)", e.Operation, e.Timeout)
}

func (e *TimeoutError) Unwrap() []error { return []error{ErrRequestTimeout, e.Cause} }

// CancelledError reports a caller-initiated cancellation.
type CancelledError struct {
	Operation string
	Cause     error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s was cancelled", e.Operation)
}

func (e *CancelledError) Unwrap() []error { return []error{ErrCancelled, e.Cause} }

// NotFoundError reports that the server does not know the requested resource.
type NotFoundError struct {
	Operation string
	Cause     error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: resource not found", e.Operation)
}

func (e *NotFoundError) Unwrap() []error { return []error{ErrResourceNotFound, e.Cause} }

// TransportError wraps a channel failure this layer does not interpret.
type TransportError struct {
	Operation string
	Cause     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Operation, e.Cause)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransportFailure, e.Cause} }

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool { return errors.Is(err, ErrRequestTimeout) }

// IsCancelled reports whether err is a caller cancellation.
func IsCancelled(err error) bool { return errors.Is(err, ErrCancelled) }

// IsVersionMismatch reports whether err is a failed version negotiation.
func IsVersionMismatch(err error) bool { return errors.Is(err, ErrUnsupportedProtocolVersion) }
