/*
Package chat contains the message side of the chat core.

This file defines the Hub (broadcast hub): a publish/subscribe fan-out of lightweight
"state changed" events to every connected client. Delivery to each subscriber is bounded by
a timeout and isolated from the others; a subscriber that cannot keep up is dropped.
*/
package chat

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"hzlobby/internal/pkg/logx"
)

const (
	// DefaultSubscriberBuffer is the number of events a subscriber may have queued.
	DefaultSubscriberBuffer = 16

	// DefaultPublishTimeout bounds the time spent delivering one event to one subscriber.
	DefaultPublishTimeout = 2 * time.Second
)

var (
	errSubscriptionClosed = errors.New("subscription closed")
	errDeliveryTimeout    = errors.New("delivery timed out")
)

// EventType names the kind of change an Event announces.
type EventType string

const (
	// EventNewMessage is published after a message is appended to the log.
	EventNewMessage EventType = "new_message"

	// EventPresenceChanged is published when users join or expire.
	EventPresenceChanged EventType = "presence_changed"
)

// Event is a change notification. Receivers re-fetch the full state rather than applying it
// as a diff.
type Event struct {
	Type EventType `json:"event"`

	// SequenceNumber is the latest message sequence number when the event was published.
	SequenceNumber uint64 `json:"sequenceNumber"`
}

// Subscription is one connection's handle on the hub.
type Subscription struct {
	id     string
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// ID returns the subscription's unique identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Events returns the channel on which notifications arrive.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done is closed once the subscription has been removed from the hub, either by
// Unsubscribe or because a delivery to it failed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.done) })
}

// Hub fans events out to all current subscriptions.
type Hub struct {
	// mu guards subs and closed.
	mu sync.RWMutex

	subs   map[*Subscription]struct{}
	closed bool

	buffer  int
	timeout time.Duration

	logger zerolog.Logger
}

// NewHub creates a hub whose subscriptions queue up to buffer events and whose per-subscriber
// delivery waits at most timeout. A negative buffer or non-positive timeout selects the defaults.
func NewHub(buffer int, timeout time.Duration) *Hub {
	if buffer < 0 {
		buffer = DefaultSubscriberBuffer
	}
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}

	return &Hub{
		subs:    make(map[*Subscription]struct{}),
		buffer:  buffer,
		timeout: timeout,
		logger:  logx.Component("BroadcastHub"),
	}
}

// Subscribe registers a new connection. Subscribing to a closed hub returns a subscription
// whose Done channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{
		id:     uuid.NewString(),
		events: make(chan Event, h.buffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		s.close()
		return s
	}

	h.subs[s] = struct{}{}
	h.logger.Debug().Str("subscription_id", s.id).Int("subscribers", len(h.subs)).Msg("Subscriber added.")

	return s
}

// Unsubscribe removes s. Calling it again, or on a subscription the hub already dropped, is a no-op.
func (h *Hub) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}

	h.mu.Lock()
	_, ok := h.subs[s]
	delete(h.subs, s)
	remaining := len(h.subs)
	h.mu.Unlock()

	s.close()

	if ok {
		h.logger.Debug().Str("subscription_id", s.id).Int("subscribers", remaining).Msg("Subscriber removed.")
	}
}

// Publish delivers ev to every subscription registered at the time of the call and returns
// how many accepted it. Each delivery runs in its own goroutine and waits at most the hub
// timeout; a subscription that times out is unsubscribed. Publish never fails.
func (h *Hub) Publish(ev Event) int {
	subs := h.snapshot()
	if len(subs) == 0 {
		return 0
	}

	var (
		g                  errgroup.Group
		delivered, dropped atomic.Int64
	)

	for _, s := range subs {
		g.Go(func() error {
			err := h.deliver(s, ev)
			switch {
			case err == nil:
				delivered.Add(1)
				return nil
			case errors.Is(err, errSubscriptionClosed):
				// Unsubscribed while the event was in flight.
				return nil
			default:
				h.Unsubscribe(s)
				dropped.Add(1)
				return fmt.Errorf("subscription %s: %w", s.id, err)
			}
		})
	}

	// A plain Group never cancels siblings, so Wait returns after every delivery has finished.
	if err := g.Wait(); err != nil {
		h.logger.Warn().
			Err(err).
			Str("event", string(ev.Type)).
			Int64("dropped", dropped.Load()).
			Dur("timeout", h.timeout).
			Msg("Subscribers did not accept event in time, unsubscribed.")
	}

	return int(delivered.Load())
}

// deliver hands ev to s, waiting up to the hub timeout when its queue is full.
func (h *Hub) deliver(s *Subscription, ev Event) error {
	select {
	case <-s.done:
		return errSubscriptionClosed
	default:
	}

	select {
	case s.events <- ev:
		return nil
	default:
	}

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return errSubscriptionClosed
	case <-timer.C:
		return errDeliveryTimeout
	}
}

// snapshot copies the current subscriber set under the read lock.
func (h *Hub) snapshot() []*Subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := make([]*Subscription, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	return subs
}

// Len returns the number of current subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}

// Close removes every subscription and rejects future ones.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*Subscription]struct{})
	h.closed = true
	h.mu.Unlock()

	for s := range subs {
		s.close()
	}

	h.logger.Info().Int("closed_subscribers", len(subs)).Msg("Hub closed.")
}
