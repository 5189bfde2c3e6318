package server

import (
	"sync"

	"github.com/localrivet/grpcmcp/logx"
	"github.com/localrivet/grpcmcp/protocol"
)

// hub fans notifications out to every active Watch stream. Each subscriber
// owns an unbounded pending buffer drained by its own forwarder goroutine: a
// publish never blocks and a slow stream delays only itself. No event is
// dropped for an active subscription; per-subscriber FIFO order is preserved.
// The buffer lives only as long as its stream, so a stalled consumer costs
// memory until its stream ends, never correctness.
type hub struct {
	mu     sync.Mutex
	subs   map[int64]*subscriber
	nextID int64
	closed bool
	logger logx.Logger
}

type subscriber struct {
	mu      sync.Mutex
	pending []protocol.Notification
	wake    chan struct{}
	ch      chan protocol.Notification
	done    chan struct{}
}

func newHub(logger logx.Logger) *hub {
	return &hub{
		subs:   make(map[int64]*subscriber),
		logger: logger,
	}
}

// subscribe registers a new subscriber and returns its id and queue.
func (h *hub) subscribe() (int64, *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	sub := &subscriber{
		wake: make(chan struct{}, 1),
		ch:   make(chan protocol.Notification),
		done: make(chan struct{}),
	}
	if h.closed {
		close(sub.done)
	} else {
		h.subs[id] = sub
		go sub.forward()
		h.logger.Debug("watch subscriber %d attached", id)
	}
	return id, sub
}

// unsubscribe removes a subscriber and stops its forwarder.
func (h *hub) unsubscribe(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.done)
		h.logger.Debug("watch subscriber %d detached", id)
	}
}

// publish delivers n to every active subscriber in per-subscriber FIFO order.
// It never blocks on a slow consumer.
func (h *hub) publish(n protocol.Notification) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.push(n)
	}
}

// close detaches every subscriber. Active Watch streams terminate, and new
// subscriptions are born detached until reopen.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.done)
	}
}

// reopen re-arms the hub after close so a later serve accepts subscribers
// again.
func (h *hub) reopen() {
	h.mu.Lock()
	h.closed = false
	h.mu.Unlock()
}

func (s *subscriber) push(n protocol.Notification) {
	s.mu.Lock()
	s.pending = append(s.pending, n)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// forward drains the pending buffer into the delivery channel until the
// subscriber is detached.
func (s *subscriber) forward() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		n := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.ch <- n:
		case <-s.done:
			return
		}
	}
}
