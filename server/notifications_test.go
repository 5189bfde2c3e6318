package server

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/grpcmcp/logx"
	"github.com/localrivet/grpcmcp/protocol"
)

func TestHubDeliversToAllSubscribersInOrder(t *testing.T) {
	h := newHub(logx.NewNopLogger())
	_, a := h.subscribe()
	_, b := h.subscribe()

	events := []protocol.Notification{
		{URI: "file:///1", Reason: protocol.ReasonChanged},
		{URI: "file:///2", Reason: protocol.ReasonExpired},
	}
	for _, n := range events {
		h.publish(n)
	}

	for _, sub := range []*subscriber{a, b} {
		for _, want := range events {
			select {
			case got := <-sub.ch:
				assert.Equal(t, want, got)
			case <-time.After(time.Second):
				t.Fatal("subscriber did not receive event")
			}
		}
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	h := newHub(logx.NewNopLogger())
	id, sub := h.subscribe()
	h.unsubscribe(id)

	select {
	case <-sub.done:
	default:
		t.Fatal("done not closed on unsubscribe")
	}

	h.publish(protocol.Notification{URI: "file:///x"})
	select {
	case n := <-sub.ch:
		t.Fatalf("received %v after unsubscribe", n)
	default:
	}
}

func TestHubUnsubscribeUnknownIDIsNoop(t *testing.T) {
	h := newHub(logx.NewNopLogger())
	h.unsubscribe(42)
}

func TestHubSlowSubscriberLosesNothing(t *testing.T) {
	h := newHub(logx.NewNopLogger())
	_, sub := h.subscribe()

	// Publish far more than any fixed queue would hold, without draining.
	const total = 600
	published := make(chan struct{})
	go func() {
		for i := 0; i < total; i++ {
			h.publish(protocol.Notification{URI: fmt.Sprintf("file:///%d", i)})
		}
		close(published)
	}()

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// Every event is still there, in order.
	for i := 0; i < total; i++ {
		select {
		case n := <-sub.ch:
			require.Equal(t, fmt.Sprintf("file:///%d", i), n.URI)
		case <-time.After(time.Second):
			t.Fatalf("event %d was never delivered", i)
		}
	}
}

func TestHubSlowSubscriberDoesNotDelayOthers(t *testing.T) {
	h := newHub(logx.NewNopLogger())
	_, slow := h.subscribe()
	_, fast := h.subscribe()
	_ = slow // never drained

	for i := 0; i < 100; i++ {
		h.publish(protocol.Notification{URI: "file:///x", Reason: protocol.ReasonChanged})
	}
	for i := 0; i < 100; i++ {
		select {
		case <-fast.ch:
		case <-time.After(time.Second):
			t.Fatal("fast subscriber starved by slow one")
		}
	}
}

func TestHubCloseDetachesSubscribers(t *testing.T) {
	h := newHub(logx.NewNopLogger())
	_, sub := h.subscribe()
	h.close()

	select {
	case <-sub.done:
	case <-time.After(time.Second):
		t.Fatal("done not closed on hub close")
	}

	// New subscriptions after close are born detached.
	_, late := h.subscribe()
	select {
	case <-late.done:
	default:
		t.Fatal("post-close subscriber not detached")
	}
}

func TestHubReopenAcceptsSubscribersAgain(t *testing.T) {
	h := newHub(logx.NewNopLogger())
	h.close()
	h.reopen()

	_, sub := h.subscribe()
	select {
	case <-sub.done:
		t.Fatal("subscriber detached after reopen")
	default:
	}

	h.publish(protocol.Notification{URI: "file:///back", Reason: protocol.ReasonChanged})
	select {
	case n := <-sub.ch:
		assert.Equal(t, "file:///back", n.URI)
	case <-time.After(time.Second):
		t.Fatal("no delivery after reopen")
	}
}

func TestServerNotifyHelpersPublish(t *testing.T) {
	s := NewServer("test", WithLogger(logx.NewNopLogger()))
	_, sub := s.hub.subscribe()

	s.NotifyResourceChanged("file:///a")
	s.NotifyResourceExpired("file:///b")
	s.NotifyToolsChanged()

	want := []protocol.Notification{
		{URI: "file:///a", Reason: protocol.ReasonChanged},
		{URI: "file:///b", Reason: protocol.ReasonExpired},
		{URI: protocol.URIToolList, Reason: protocol.ReasonChanged},
	}
	for _, w := range want {
		select {
		case got := <-sub.ch:
			require.Equal(t, w, got)
		case <-time.After(time.Second):
			t.Fatal("missing notification")
		}
	}
}
