// Package grpc provides the gRPC channel used by the grpcmcp client and
// server.
//
// The channel is deliberately opaque to the layers above it: the client sees
// unary calls and reconnectable server streams that carry JSON payloads and
// metadata, nothing else. Version negotiation, deadlines, and notification
// handling all live above this package.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
)

// Default configuration values.
const (
	DefaultMaxMessageSize   = 4 * 1024 * 1024 // 4MB
	DefaultConnectTimeout   = 10 * time.Second
	DefaultKeepAliveTime    = 10 * time.Second
	DefaultKeepAliveTimeout = 3 * time.Second
)

// Channel errors.
var (
	ErrClosed        = errors.New("channel is closed")
	ErrInvalidTarget = errors.New("invalid channel target")
)

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithTLS enables TLS with the provided certificate files. caFile may be
// empty to use the system root pool.
func WithTLS(certFile, keyFile, caFile string) ChannelOption {
	return func(c *Channel) {
		c.useTLS = true
		c.tlsCertFile = certFile
		c.tlsKeyFile = keyFile
		c.tlsCAFile = caFile
	}
}

// WithMaxMessageSize sets the maximum message size for calls on the channel.
func WithMaxMessageSize(size int) ChannelOption {
	return func(c *Channel) {
		if size > 0 {
			c.maxMessageSize = size
		}
	}
}

// WithConnectTimeout sets the minimum connect timeout for the underlying
// connection.
func WithConnectTimeout(timeout time.Duration) ChannelOption {
	return func(c *Channel) {
		if timeout > 0 {
			c.connectTimeout = timeout
		}
	}
}

// WithKeepAliveParams sets the keepalive parameters.
func WithKeepAliveParams(interval, timeout time.Duration) ChannelOption {
	return func(c *Channel) {
		if interval > 0 {
			c.keepAliveTime = interval
		}
		if timeout > 0 {
			c.keepAliveTimeout = timeout
		}
	}
}

// WithDialOptions appends raw grpc.DialOptions, applied after the options the
// channel derives from its own configuration. Used by tests to dial bufconn
// listeners.
func WithDialOptions(opts ...grpc.DialOption) ChannelOption {
	return func(c *Channel) {
		c.extraDialOpts = append(c.extraDialOpts, opts...)
	}
}

// Channel wraps a grpc.ClientConn behind the narrow surface the session layer
// needs: unary calls and server streams, both carrying metadata in and header
// metadata out.
type Channel struct {
	target string

	useTLS      bool
	tlsCertFile string
	tlsKeyFile  string
	tlsCAFile   string

	maxMessageSize   int
	connectTimeout   time.Duration
	keepAliveTime    time.Duration
	keepAliveTimeout time.Duration
	extraDialOpts    []grpc.DialOption

	conn      *grpc.ClientConn
	closeOnce sync.Once
	closeErr  error
	closed    bool
	closedMu  sync.Mutex
}

// NewChannel creates a channel connected to target.
func NewChannel(target string, options ...ChannelOption) (*Channel, error) {
	if target == "" {
		return nil, ErrInvalidTarget
	}

	c := &Channel{
		target:           target,
		maxMessageSize:   DefaultMaxMessageSize,
		connectTimeout:   DefaultConnectTimeout,
		keepAliveTime:    DefaultKeepAliveTime,
		keepAliveTimeout: DefaultKeepAliveTimeout,
	}
	for _, option := range options {
		option(c)
	}

	dialOpts, err := c.dialOptions()
	if err != nil {
		return nil, err
	}
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create channel to %s: %w", target, err)
	}
	c.conn = conn
	return c, nil
}

// dialOptions assembles the grpc.DialOptions from the channel configuration.
func (c *Channel) dialOptions() ([]grpc.DialOption, error) {
	opts := []grpc.DialOption{
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(c.maxMessageSize),
			grpc.MaxCallSendMsgSize(c.maxMessageSize),
			grpc.CallContentSubtype(CodecName),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                c.keepAliveTime,
			Timeout:             c.keepAliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithConnectParams(grpc.ConnectParams{
			MinConnectTimeout: c.connectTimeout,
		}),
	}

	if c.useTLS {
		creds, err := ClientTLSCredentials(c.tlsCertFile, c.tlsKeyFile, c.tlsCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS credentials: %w", err)
		}
		opts = append(opts, grpc.WithTransportCredentials(creds))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	opts = append(opts, c.extraDialOpts...)
	return opts, nil
}

// UnaryCall invokes a unary method. md is attached as outgoing request
// metadata; if header is non-nil, the response header metadata is stored in it
// whether the call succeeds or fails. The latter matters: a version-mismatch
// abort still carries the server's preferred version in the header.
func (c *Channel) UnaryCall(ctx context.Context, method string, req, resp interface{}, md metadata.MD, header *metadata.MD) error {
	if c.isClosed() {
		return ErrClosed
	}
	if md != nil {
		ctx = metadata.NewOutgoingContext(ctx, md)
	}
	opts := []grpc.CallOption{}
	if header != nil {
		opts = append(opts, grpc.Header(header))
	}
	return c.conn.Invoke(ctx, method, req, resp, opts...)
}

// OpenStream opens a server stream for method, sends the single request
// message, and half-closes the send side. The returned stream delivers
// messages via RecvMsg until the server closes it.
func (c *Channel) OpenStream(ctx context.Context, desc *grpc.StreamDesc, method string, req interface{}, md metadata.MD) (grpc.ClientStream, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	if md != nil {
		ctx = metadata.NewOutgoingContext(ctx, md)
	}
	stream, err := c.conn.NewStream(ctx, desc, method)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream %s: %w", method, err)
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, fmt.Errorf("failed to send stream request on %s: %w", method, err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("failed to half-close stream %s: %w", method, err)
	}
	return stream, nil
}

// Target returns the channel's dial target.
func (c *Channel) Target() string { return c.target }

// Close releases the underlying connection. Safe to call multiple times; the
// connection is closed exactly once.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.closedMu.Lock()
		c.closed = true
		c.closedMu.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *Channel) isClosed() bool {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()
	return c.closed
}
