// Package client provides the client-side transport session for the grpcmcp
// protocol: protocol-version negotiation, per-call deadline management, and
// asynchronous notification delivery, composed around a gRPC channel.
package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/localrivet/grpcmcp/logx"
	"github.com/localrivet/grpcmcp/protocol"
	transportgrpc "github.com/localrivet/grpcmcp/transport/grpc"
)

// Session is the client-facing transport session. Every operation funnels
// through one invoke path: bind deadline, attach the negotiated protocol
// version, send, and retry exactly once if the server signals a usable
// version mismatch.
//
// A Session is safe for concurrent use. The negotiated version is owned by
// the session and never shared across sessions.
type Session struct {
	logger         logx.Logger
	defaultTimeout time.Duration
	backoff        BackoffStrategy
	channelOpts    []transportgrpc.ChannelOption

	notificationHandler NotificationHandler
	advisoryHandler     AdvisoryHandler

	channel    *transportgrpc.Channel
	deadlines  deadlineManager
	negotiator *negotiator
	dispatcher *dispatcher
	scheduler  *expiryScheduler

	toolsCache     *cacheEntry
	resourcesCache *cacheEntry
	templatesCache *cacheEntry

	runningMu    sync.Mutex
	runningCalls map[string]context.CancelFunc

	// Session lifetime. Closing cancels every in-flight call.
	ctx    context.Context
	cancel context.CancelFunc

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewSession creates a session connected to target.
func NewSession(target string, options ...Option) (*Session, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		logger:       logx.NewDefaultLogger(),
		backoff:      NewExponentialBackoff(500*time.Millisecond, 30*time.Second, 8),
		runningCalls: make(map[string]context.CancelFunc),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, option := range options {
		option(s)
	}

	s.negotiator = newNegotiator(s.logger)
	s.deadlines = deadlineManager{defaultTimeout: s.defaultTimeout}

	channel, err := transportgrpc.NewChannel(target, s.channelOpts...)
	if err != nil {
		cancel()
		return nil, err
	}
	s.channel = channel

	s.toolsCache = newCacheEntry(func() { s.notifyLocal(protocol.URIToolList) })
	s.resourcesCache = newCacheEntry(func() { s.notifyLocal(protocol.URIResourceList) })
	s.templatesCache = newCacheEntry(func() { s.notifyLocal(protocol.URIResourceTemplateList) })
	s.scheduler = newExpiryScheduler(s.deliver)

	if s.notificationHandler != nil {
		s.dispatcher = newDispatcher(channel, s.notificationHandler, s.advisoryHandler, s.backoff, s.negotiator, s.logger)
		s.dispatcher.start()
	}

	s.logger.Info("session created for target %s", target)
	return s, nil
}

// NegotiatedVersion returns the protocol version the session currently
// believes is mutually acceptable.
func (s *Session) NegotiatedVersion() string {
	return s.negotiator.current()
}

// CancelRequest cancels a running tool call by its request ID. It returns
// true if a matching call was found.
func (s *Session) CancelRequest(requestID string) bool {
	s.runningMu.Lock()
	cancel, ok := s.runningCalls[requestID]
	s.runningMu.Unlock()
	if ok {
		s.logger.Info("cancelling request %s", requestID)
		cancel()
	}
	return ok
}

// Close releases the channel and stops the notification stream. Idempotent:
// the underlying connection is closed exactly once. In-flight calls are
// cancelled.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		s.scheduler.stop()
		s.toolsCache.stop()
		s.resourcesCache.stop()
		s.templatesCache.stop()
		if s.dispatcher != nil {
			s.dispatcher.stop()
		}
		s.closeErr = s.channel.Close()
		s.logger.Info("session closed")
	})
	return s.closeErr
}

// invoke is the single path every unary operation goes through.
func (s *Session) invoke(ctx context.Context, operation, method string, req, resp interface{}, md metadata.MD, o *callOptions) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	ctx, stop := s.callContext(ctx)
	defer stop()
	ctx, cancel, err := s.deadlines.bind(ctx, operation, o.timeout)
	if err != nil {
		return err
	}
	defer cancel()
	if err := s.negotiator.unary(ctx, s.channel, method, req, resp, md); err != nil {
		return s.mapError(operation, err, o)
	}
	return nil
}

// callContext derives a per-call context that is additionally cancelled when
// the session closes.
func (s *Session) callContext(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// mapError classifies a channel failure into the session error taxonomy.
// Version mismatch errors are produced by the negotiator and pass through
// untouched; everything that is not a timeout, a cancellation, or a missing
// resource stays an uninterpreted transport failure.
func (s *Session) mapError(operation string, err error, o *callOptions) error {
	var vm *VersionMismatchError
	if errors.As(err, &vm) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || status.Code(err) == codes.DeadlineExceeded {
		return &TimeoutError{Operation: operation, Timeout: s.deadlines.timeoutInForce(o.timeout), Cause: err}
	}
	if errors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled {
		return &CancelledError{Operation: operation, Cause: err}
	}
	if status.Code(err) == codes.NotFound {
		return &NotFoundError{Operation: operation, Cause: err}
	}
	return &TransportError{Operation: operation, Cause: err}
}

// notifyLocal raises a client-local expiry notification for a list cache.
func (s *Session) notifyLocal(uri string) {
	s.deliver(protocol.Notification{URI: uri, Reason: protocol.ReasonExpired})
}

// deliver routes a notification into the dispatcher queue, keeping handler
// invocation off the calling goroutine. Without a registered handler there is
// nothing to deliver.
func (s *Session) deliver(n protocol.Notification) {
	if s.dispatcher != nil {
		s.dispatcher.enqueue(n)
	}
}
