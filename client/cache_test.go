package client

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/grpcmcp/protocol"
)

func future(d time.Duration) *time.Time {
	t := time.Now().Add(d)
	return &t
}

func TestCacheEntryServesUntilExpiry(t *testing.T) {
	e := newCacheEntry(nil)
	e.set("tools-v1", future(time.Hour))
	defer e.stop()

	got, ok := e.get()
	require.True(t, ok)
	assert.Equal(t, "tools-v1", got)
}

func TestCacheEntryWithoutExpiryIsNotCached(t *testing.T) {
	e := newCacheEntry(nil)
	e.set("tools-v1", nil)

	_, ok := e.get()
	assert.False(t, ok)
}

func TestCacheEntryPastExpiryIsNotCached(t *testing.T) {
	e := newCacheEntry(nil)
	e.set("tools-v1", future(-time.Second))

	_, ok := e.get()
	assert.False(t, ok)
}

func TestCacheEntryExpiryDropsDataAndFiresOnce(t *testing.T) {
	fired := make(chan struct{}, 4)
	e := newCacheEntry(func() { fired <- struct{}{} })
	e.set("tools-v1", future(30*time.Millisecond))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("expiry callback did not fire")
	}
	_, ok := e.get()
	assert.False(t, ok)

	select {
	case <-fired:
		t.Fatal("expiry callback fired more than once")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCacheEntrySetReplacesPendingExpiry(t *testing.T) {
	var mu sync.Mutex
	count := 0
	e := newCacheEntry(func() {
		mu.Lock()
		count++
		mu.Unlock()
	})
	e.set("v1", future(30*time.Millisecond))
	e.set("v2", future(60*time.Millisecond))

	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestCacheEntryStopCancelsExpiry(t *testing.T) {
	fired := make(chan struct{}, 1)
	e := newCacheEntry(func() { fired <- struct{}{} })
	e.set("v1", future(30*time.Millisecond))
	e.stop()

	select {
	case <-fired:
		t.Fatal("expiry callback fired after stop")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSchedulerRaisesExpiredNotification(t *testing.T) {
	got := make(chan protocol.Notification, 1)
	s := newExpiryScheduler(func(n protocol.Notification) { got <- n })
	defer s.stop()

	s.schedule("file:///tmp/a.txt", time.Now().Add(150*time.Millisecond))

	// Nothing may arrive while the entry is still fresh.
	select {
	case n := <-got:
		t.Fatalf("notification for %s arrived before the expiry instant", n.URI)
	case <-time.After(75 * time.Millisecond):
	}

	select {
	case n := <-got:
		assert.Equal(t, "file:///tmp/a.txt", n.URI)
		assert.Equal(t, protocol.ReasonExpired, n.Reason)
	case <-time.After(time.Second):
		t.Fatal("no expiry notification")
	}
}

func TestSchedulerRearmReplacesPendingExpiry(t *testing.T) {
	got := make(chan protocol.Notification, 4)
	s := newExpiryScheduler(func(n protocol.Notification) { got <- n })
	defer s.stop()

	s.schedule("file:///tmp/a.txt", time.Now().Add(30*time.Millisecond))
	s.schedule("file:///tmp/a.txt", time.Now().Add(60*time.Millisecond))

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("no expiry notification")
	}
	select {
	case n := <-got:
		t.Fatalf("unexpected second notification for %s", n.URI)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSchedulerStopSilencesPendingExpiries(t *testing.T) {
	got := make(chan protocol.Notification, 1)
	s := newExpiryScheduler(func(n protocol.Notification) { got <- n })

	s.schedule("file:///tmp/a.txt", time.Now().Add(30*time.Millisecond))
	s.stop()
	s.schedule("file:///tmp/b.txt", time.Now().Add(10*time.Millisecond))

	select {
	case n := <-got:
		t.Fatalf("notification after stop for %s", n.URI)
	case <-time.After(100 * time.Millisecond):
	}
}
