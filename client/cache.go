package client

import (
	"sync"
	"time"

	"github.com/localrivet/grpcmcp/protocol"
)

// cacheEntry holds one cached value until an absolute expiry instant taken
// from the response envelope. When the instant passes, the value is dropped
// and onExpired fires exactly once for that set().
type cacheEntry struct {
	mu        sync.Mutex
	data      interface{}
	expiresAt time.Time
	timer     *time.Timer
	onExpired func()
}

func newCacheEntry(onExpired func()) *cacheEntry {
	return &cacheEntry{onExpired: onExpired}
}

// set stores data valid until expiresAt. A nil expiresAt means the server
// attached no TTL; the data is not cached.
func (e *cacheEntry) set(data interface{}, expiresAt *time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimerLocked()
	if expiresAt == nil {
		e.data = nil
		e.expiresAt = time.Time{}
		return
	}
	e.data = data
	e.expiresAt = *expiresAt
	if until := time.Until(*expiresAt); until > 0 {
		e.timer = time.AfterFunc(until, e.expire)
	} else {
		e.data = nil
	}
}

// get returns the cached data if it is still valid.
func (e *cacheEntry) get() (interface{}, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.data == nil || !time.Now().Before(e.expiresAt) {
		return nil, false
	}
	return e.data, true
}

func (e *cacheEntry) expire() {
	e.mu.Lock()
	e.data = nil
	e.timer = nil
	cb := e.onExpired
	e.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// stop cancels any pending expiry callback.
func (e *cacheEntry) stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimerLocked()
}

func (e *cacheEntry) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// expiryScheduler tracks per-resource TTLs from ReadResource responses and
// raises one "expired" notification per resource when its TTL elapses.
// Re-reading a resource replaces its pending expiry, so each read produces at
// most one notification.
type expiryScheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	notify  func(protocol.Notification)
	stopped bool
}

func newExpiryScheduler(notify func(protocol.Notification)) *expiryScheduler {
	return &expiryScheduler{
		timers: make(map[string]*time.Timer),
		notify: notify,
	}
}

// schedule arms (or re-arms) the expiry for uri at expiresAt.
func (s *expiryScheduler) schedule(uri string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if t, ok := s.timers[uri]; ok {
		t.Stop()
	}
	s.timers[uri] = time.AfterFunc(time.Until(expiresAt), func() {
		s.fire(uri)
	})
}

func (s *expiryScheduler) fire(uri string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.timers, uri)
	s.mu.Unlock()
	s.notify(protocol.Notification{URI: uri, Reason: protocol.ReasonExpired})
}

// stop cancels every pending expiry. No notifications fire after stop
// returns.
func (s *expiryScheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for uri, t := range s.timers {
		t.Stop()
		delete(s.timers, uri)
	}
}
