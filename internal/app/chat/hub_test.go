package chat

import (
	"testing"
	"time"
)

func receive(t *testing.T, s *Subscription, within time.Duration) Event {
	t.Helper()

	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(within):
		t.Fatalf("subscription %s received nothing within %s", s.ID(), within)
		return Event{}
	}
}

func assertNoEvent(t *testing.T, s *Subscription) {
	t.Helper()

	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected extra event %+v", ev)
	default:
	}
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	h := NewHub(DefaultSubscriberBuffer, time.Second)

	if n := h.Publish(Event{Type: EventNewMessage, SequenceNumber: 1}); n != 0 {
		t.Errorf("Publish delivered %d, want 0", n)
	}
}

func TestHub_PublishReachesEverySubscriberOnce(t *testing.T) {
	h := NewHub(DefaultSubscriberBuffer, time.Second)
	a, b := h.Subscribe(), h.Subscribe()

	ev := Event{Type: EventNewMessage, SequenceNumber: 7}
	if n := h.Publish(ev); n != 2 {
		t.Errorf("Publish delivered %d, want 2", n)
	}

	for _, s := range []*Subscription{a, b} {
		if got := receive(t, s, time.Second); got != ev {
			t.Errorf("received %+v, want %+v", got, ev)
		}
		assertNoEvent(t, s)
	}
}

func TestHub_UnsubscribeIsIdempotent(t *testing.T) {
	h := NewHub(DefaultSubscriberBuffer, time.Second)
	s := h.Subscribe()

	h.Unsubscribe(s)
	h.Unsubscribe(s)
	h.Unsubscribe(nil)

	if h.Len() != 0 {
		t.Errorf("Len = %d, want 0", h.Len())
	}

	select {
	case <-s.Done():
	default:
		t.Error("Done should be closed after Unsubscribe")
	}

	if n := h.Publish(Event{Type: EventNewMessage}); n != 0 {
		t.Errorf("Publish delivered %d to a removed subscription", n)
	}
}

func TestHub_BlockedSubscriberIsDropped(t *testing.T) {
	const timeout = 50 * time.Millisecond
	h := NewHub(0, timeout)

	a := h.Subscribe()
	blocked := h.Subscribe()

	got := make(chan Event, 1)
	go func() { got <- <-a.Events() }()

	started := time.Now()
	if n := h.Publish(Event{Type: EventNewMessage, SequenceNumber: 1}); n != 1 {
		t.Errorf("Publish delivered %d, want 1", n)
	}
	if elapsed := time.Since(started); elapsed > 20*timeout {
		t.Errorf("Publish took %s, want bounded by the delivery timeout", elapsed)
	}

	select {
	case ev := <-got:
		if ev.SequenceNumber != 1 {
			t.Errorf("SequenceNumber = %d, want 1", ev.SequenceNumber)
		}
	case <-time.After(time.Second):
		t.Fatal("healthy subscriber did not receive the event")
	}

	select {
	case <-blocked.Done():
	default:
		t.Error("blocked subscriber should have been unsubscribed")
	}
	if h.Len() != 1 {
		t.Errorf("Len = %d, want 1", h.Len())
	}
}

func TestHub_Close(t *testing.T) {
	h := NewHub(DefaultSubscriberBuffer, time.Second)
	s := h.Subscribe()

	h.Close()

	select {
	case <-s.Done():
	default:
		t.Error("Close should end existing subscriptions")
	}

	late := h.Subscribe()
	select {
	case <-late.Done():
	default:
		t.Error("Subscribe after Close should return an ended subscription")
	}
	if h.Len() != 0 {
		t.Errorf("Len = %d, want 0", h.Len())
	}
}

func TestHub_EveryBlockedSubscriberIsDropped(t *testing.T) {
	const timeout = 30 * time.Millisecond
	h := NewHub(0, timeout)

	blocked := []*Subscription{h.Subscribe(), h.Subscribe(), h.Subscribe()}

	if n := h.Publish(Event{Type: EventPresenceChanged}); n != 0 {
		t.Errorf("Publish delivered %d, want 0", n)
	}

	for i, s := range blocked {
		select {
		case <-s.Done():
		default:
			t.Errorf("blocked subscriber %d should have been unsubscribed", i)
		}
	}
	if h.Len() != 0 {
		t.Errorf("Len = %d, want 0", h.Len())
	}
}
