package client

import (
	"context"
	"time"
)

// deadlineManager resolves the effective timeout for a call and binds it to
// the call's context. Precedence: explicit per-call timeout, then the
// session's default timeout, then no deadline at all.
type deadlineManager struct {
	defaultTimeout time.Duration
}

// noopCancel is returned when no deadline is bound so callers can always
// defer the cancel func.
func noopCancel() {}

// bind attaches the resolved deadline to ctx. explicit is nil when the caller
// gave no per-call timeout. A zero or negative explicit timeout is a doomed
// call: it fails synchronously with a timeout error and nothing is sent.
func (d deadlineManager) bind(ctx context.Context, operation string, explicit *time.Duration) (context.Context, context.CancelFunc, error) {
	if explicit != nil {
		if *explicit <= 0 {
			return nil, nil, &TimeoutError{Operation: operation, Timeout: *explicit, Cause: context.DeadlineExceeded}
		}
		ctx, cancel := context.WithTimeout(ctx, *explicit)
		return ctx, cancel, nil
	}
	if d.defaultTimeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, d.defaultTimeout)
		return ctx, cancel, nil
	}
	return ctx, noopCancel, nil
}

// timeoutInForce reports the duration that governed a call, for error
// messages. Zero means no deadline was bound.
func (d deadlineManager) timeoutInForce(explicit *time.Duration) time.Duration {
	if explicit != nil {
		return *explicit
	}
	return d.defaultTimeout
}
