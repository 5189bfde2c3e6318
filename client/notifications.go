package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/localrivet/grpcmcp/logx"
	"github.com/localrivet/grpcmcp/protocol"
	transportgrpc "github.com/localrivet/grpcmcp/transport/grpc"
)

// NotificationHandler receives out-of-band resource events: server-pushed
// changes and client-local TTL expiries. It is always invoked from the
// dispatcher's own goroutine, never from a goroutine issuing calls.
type NotificationHandler func(protocol.Notification)

// AdvisoryHandler receives session-level advisories such as
// ErrNotificationStreamDegraded. Advisories never fail unary calls.
type AdvisoryHandler func(error)

// streamOpener is the slice of the channel surface the dispatcher needs.
type streamOpener interface {
	OpenStream(ctx context.Context, desc *grpc.StreamDesc, method string, req interface{}, md metadata.MD) (grpc.ClientStream, error)
}

const defaultNotificationQueueSize = 64

// dispatcher owns the long-lived Watch subscription and the bounded queue
// feeding the registered handler. It runs independently of unary calls:
// neither path ever waits on the other.
//
// If the stream drops, the dispatcher reconnects under its backoff strategy.
// Across a reconnect, delivery degrades to at-least-once: the server replays
// nothing, but an event racing the disconnect may be observed on both sides
// of it. When the backoff budget runs out, a single degraded advisory is
// raised and the dispatcher stops; unary calls continue unaffected.
type dispatcher struct {
	opener     streamOpener
	handler    NotificationHandler
	advisory   AdvisoryHandler
	backoff    BackoffStrategy
	logger     logx.Logger
	negotiator *negotiator

	queue  chan protocol.Notification
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newDispatcher(opener streamOpener, handler NotificationHandler, advisory AdvisoryHandler, backoff BackoffStrategy, negotiator *negotiator, logger logx.Logger) *dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &dispatcher{
		opener:     opener,
		handler:    handler,
		advisory:   advisory,
		backoff:    backoff,
		logger:     logger,
		negotiator: negotiator,
		queue:      make(chan protocol.Notification, defaultNotificationQueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// start launches the delivery and subscription goroutines.
func (d *dispatcher) start() {
	d.wg.Add(2)
	go d.deliverLoop()
	go d.streamLoop()
}

// stop tears the dispatcher down and waits for both goroutines to exit.
// Safe to call multiple times.
func (d *dispatcher) stop() {
	d.cancel()
	d.wg.Wait()
}

// enqueue feeds one notification into the delivery queue, preserving arrival
// order. It blocks if the queue is full rather than dropping, and gives up
// only when the dispatcher is stopped.
func (d *dispatcher) enqueue(n protocol.Notification) {
	select {
	case d.queue <- n:
	case <-d.ctx.Done():
	}
}

func (d *dispatcher) deliverLoop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case n := <-d.queue:
			d.handler(n)
		}
	}
}

func (d *dispatcher) streamLoop() {
	defer d.wg.Done()
	attempt := 0
	for {
		if d.ctx.Err() != nil {
			return
		}
		stream, err := d.subscribe()
		if err == nil {
			attempt = 0
			err = d.recvAll(stream)
			if d.ctx.Err() != nil {
				return
			}
			// A version-guard rejection carries the server's preferred
			// version in the stream header; converge and resubscribe right
			// away instead of burning backoff attempts on a version the
			// server already told us it rejects.
			if header, herr := stream.Header(); herr == nil && d.negotiator.checkAndUpdate(err, header) {
				continue
			}
		}
		if d.ctx.Err() != nil {
			return
		}
		d.logger.Warn("notification stream failed: %v", err)
		attempt++
		if max := d.backoff.MaxAttempts(); max > 0 && attempt > max {
			d.degrade(err)
			return
		}
		select {
		case <-d.ctx.Done():
			return
		case <-time.After(d.backoff.NextDelay(attempt)):
		}
	}
}

func (d *dispatcher) subscribe() (grpc.ClientStream, error) {
	md := metadata.MD{}
	md.Set(protocol.MetadataProtocolVersion, d.negotiator.current())
	return d.opener.OpenStream(d.ctx, &transportgrpc.WatchStreamDesc, transportgrpc.MethodWatch, &protocol.WatchRequest{}, md)
}

// recvAll drains the stream into the queue until it fails or the dispatcher
// stops.
func (d *dispatcher) recvAll(stream grpc.ClientStream) error {
	for {
		var n protocol.Notification
		if err := stream.RecvMsg(&n); err != nil {
			return err
		}
		d.enqueue(n)
	}
}

// degrade raises the one-shot session advisory. streamLoop exits right after,
// so the advisory fires at most once per degradation.
func (d *dispatcher) degrade(cause error) {
	d.logger.Error("notification stream degraded, giving up reconnection: %v", cause)
	if d.advisory != nil {
		d.advisory(fmt.Errorf("%w: %v", ErrNotificationStreamDegraded, cause))
	}
}
