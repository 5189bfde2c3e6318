package client

import (
	"time"

	"github.com/localrivet/grpcmcp/logx"
	"github.com/localrivet/grpcmcp/protocol"
	transportgrpc "github.com/localrivet/grpcmcp/transport/grpc"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger provides an option to set a custom logger.
func WithLogger(logger logx.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDefaultTimeout sets the session-wide default timeout applied to every
// call that has no explicit per-call timeout. Zero means calls without an
// explicit timeout carry no deadline.
func WithDefaultTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.defaultTimeout = d
	}
}

// WithNotificationHandler registers the handler for out-of-band resource
// events and enables the notification stream.
func WithNotificationHandler(h NotificationHandler) Option {
	return func(s *Session) {
		s.notificationHandler = h
	}
}

// WithAdvisoryHandler registers the handler for session-level advisories.
func WithAdvisoryHandler(h AdvisoryHandler) Option {
	return func(s *Session) {
		s.advisoryHandler = h
	}
}

// WithReconnectBackoff sets the backoff strategy for notification stream
// reconnection.
func WithReconnectBackoff(b BackoffStrategy) Option {
	return func(s *Session) {
		if b != nil {
			s.backoff = b
		}
	}
}

// WithChannelOptions passes options through to the underlying gRPC channel
// (TLS, keepalive, message sizes).
func WithChannelOptions(opts ...transportgrpc.ChannelOption) Option {
	return func(s *Session) {
		s.channelOpts = append(s.channelOpts, opts...)
	}
}

// ProgressHandler receives progress updates during a tool call.
type ProgressHandler func(protocol.Progress)

// CallOption configures a single call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout  *time.Duration
	cursor   string
	progress ProgressHandler
}

func newCallOptions(opts []CallOption) *callOptions {
	o := &callOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithTimeout sets an explicit timeout for this call, overriding the
// session's default. A zero or negative value fails the call immediately with
// a timeout error, without touching the network.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = &d
	}
}

// WithCursor sets the pagination cursor for a list call. Cursored list
// results bypass the session cache.
func WithCursor(cursor string) CallOption {
	return func(o *callOptions) {
		o.cursor = cursor
	}
}

// WithProgressHandler registers a progress callback for a tool call.
func WithProgressHandler(h ProgressHandler) CallOption {
	return func(o *callOptions) {
		o.progress = h
	}
}
