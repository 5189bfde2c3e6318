package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestTimeoutErrorChain(t *testing.T) {
	cause := status.Error(codes.DeadlineExceeded, "deadline exceeded")
	err := error(&TimeoutError{Operation: "ListTools", Timeout: 2 * time.Second, Cause: cause})

	assert.True(t, errors.Is(err, ErrRequestTimeout))
	assert.True(t, IsTimeout(err))
	assert.Equal(t, codes.DeadlineExceeded, status.Code(err))
	assert.Contains(t, err.Error(), "ListTools")
	assert.Contains(t, err.Error(), "2s")

	var te *TimeoutError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, 2*time.Second, te.Timeout)
}

func TestCancelledErrorChain(t *testing.T) {
	err := error(&CancelledError{Operation: "CallTool(echo)", Cause: context.Canceled})

	assert.True(t, errors.Is(err, ErrCancelled))
	assert.True(t, IsCancelled(err))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, IsTimeout(err))
}

func TestVersionMismatchErrorChain(t *testing.T) {
	cause := status.Error(codes.Unimplemented, "unsupported protocol version")
	err := error(&VersionMismatchError{ServerVersion: "2025-03-26", Supported: "2025-03-26, 2024-11-05", Cause: cause})

	assert.True(t, errors.Is(err, ErrUnsupportedProtocolVersion))
	assert.True(t, IsVersionMismatch(err))
	assert.Contains(t, err.Error(), "2025-03-26")

	var vm *VersionMismatchError
	assert.True(t, errors.As(err, &vm))
	assert.Equal(t, "2025-03-26", vm.ServerVersion)
}

func TestVersionMismatchErrorWithoutServerVersion(t *testing.T) {
	err := &VersionMismatchError{Supported: "2010-01-01"}
	assert.Contains(t, err.Error(), "server supports: 2010-01-01")
}

func TestNotFoundErrorChain(t *testing.T) {
	cause := status.Error(codes.NotFound, "resource missing")
	err := error(&NotFoundError{Operation: "ReadResource(file:///x)", Cause: cause})

	assert.True(t, errors.Is(err, ErrResourceNotFound))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestTransportErrorChain(t *testing.T) {
	cause := status.Error(codes.Unavailable, "connection refused")
	err := error(&TransportError{Operation: "Ping", Cause: cause})

	assert.True(t, errors.Is(err, ErrTransportFailure))
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.False(t, IsTimeout(err))
	assert.False(t, IsCancelled(err))
	assert.False(t, IsVersionMismatch(err))
}
