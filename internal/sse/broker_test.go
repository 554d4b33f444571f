package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeAnchorsUpdated, Data: map[string]string{"documentId": "p1"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: anchors.updated") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"documentId":"p1"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishDocumentEvent_InvalidateThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First event should trigger site.invalidated.
	b.PublishDocumentEvent("created", "a")
	// Second event immediately should NOT trigger another site.invalidated.
	b.PublishDocumentEvent("updated", "b")
	// Unknown kinds are ignored.
	b.PublishDocumentEvent("renamed", "c")

	// Drain and count events.
	time.Sleep(50 * time.Millisecond)
	invalidateCount := 0
	docCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "site.invalidated") {
				invalidateCount++
			} else {
				docCount++
			}
		default:
			break loop
		}
	}

	if docCount != 2 {
		t.Errorf("document events = %d, want 2", docCount)
	}
	if invalidateCount != 1 {
		t.Errorf("invalidate events = %d, want 1 (throttled)", invalidateCount)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: TypeDocumentUpdated, Data: map[string]string{"id": "x"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: document.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: TypeDocumentUpdated, Data: map[string]string{"id": "x"}})
	b.PublishDocumentEvent("updated", "x")
}

func TestSubscribeTypeFilter(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe(TypeAnchorsUpdated)
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeSeedSynced, Data: map[string]int{"loaded": 1}})
	b.Publish(Event{Type: TypeAnchorsUpdated, Data: map[string]string{"documentId": "p1"}})

	select {
	case msg := <-ch:
		if !strings.Contains(string(msg), "event: anchors.updated") {
			t.Errorf("filtered client got %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	select {
	case msg := <-ch:
		t.Errorf("unexpected extra message %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventIDsIncrease(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeSeedSynced, Data: nil})
	b.Publish(Event{Type: TypeSeedSynced, Data: nil})

	for _, want := range []string{"id: 1\n", "id: 2\n"} {
		select {
		case msg := <-ch:
			if !strings.HasPrefix(string(msg), want) {
				t.Errorf("message %q does not start with %q", msg, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	}
}

func TestSSEHandler_TypesQueryAndKeepAlive(t *testing.T) {
	prev := KeepAlive
	KeepAlive = 20 * time.Millisecond
	defer func() { KeepAlive = prev }()

	b := NewBroker(time.Second)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events?types=document.deleted,%20seed.synced", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	b.Publish(Event{Type: TypeDocumentUpdated, Data: map[string]string{"id": "x"}})
	b.Publish(Event{Type: TypeSeedSynced, Data: map[string]int{"loaded": 2}})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	if strings.Contains(body, "document.updated") {
		t.Errorf("filtered event delivered: %q", body)
	}
	if !strings.Contains(body, "event: seed.synced") {
		t.Errorf("missing seed.synced: %q", body)
	}
	if !strings.Contains(body, ": ping") {
		t.Errorf("missing keep-alive: %q", body)
	}
}
