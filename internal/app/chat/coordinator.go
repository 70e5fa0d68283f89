/*
Package chat contains the message side of the chat core.

This file defines the Coordinator (session coordinator), the only entry point the presentation
layer uses: it identifies the user behind a session, validates and appends submissions, fans the
resulting change out through the Hub and runs the background expiry sweep.
*/
package chat

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hzlobby/internal/app/user"
	"hzlobby/internal/configs"
	"hzlobby/internal/pkg/errs"
	"hzlobby/internal/pkg/logx"
)

// Options configures a Coordinator. Zero values select the package defaults.
type Options struct {
	InactivityTimeout time.Duration

	// SweepInterval is the cadence of the background expiry sweep; <= 0 disables the loop.
	SweepInterval time.Duration

	PublishTimeout   time.Duration
	SubscriberBuffer int
	MaxContentBytes  int

	// Clock overrides time.Now.
	Clock user.Clock
}

// OptionsFromConfig maps the application configuration onto coordinator options.
func OptionsFromConfig(cfg *configs.AppConfig) Options {
	return Options{
		InactivityTimeout: cfg.InactivityTimeout,
		SweepInterval:     cfg.SweepInterval,
		PublishTimeout:    cfg.PublishTimeout,
		SubscriberBuffer:  cfg.SubscriberBuffer,
		MaxContentBytes:   cfg.MaxContentBytes,
	}
}

// ConnectPayload is the full state a newly connecting or reconnecting client renders from.
type ConnectPayload struct {
	CurrentUser user.User   `json:"currentUser"`
	History     []Message   `json:"history"`
	ActiveUsers []user.User `json:"activeUsers"`
}

// StatePayload is the shared state clients re-fetch after a change notification.
type StatePayload struct {
	History     []Message   `json:"history"`
	ActiveUsers []user.User `json:"activeUsers"`
}

// Coordinator owns the UserRegistry, MessageLog and Hub of one chat room.
type Coordinator struct {
	users    *user.Registry
	messages *MessageLog
	hub      *Hub

	now           user.Clock
	sweepInterval time.Duration

	// stop ends the sweep loop; stopOnce makes Shutdown idempotent.
	stop     chan struct{}
	stopOnce sync.Once

	// wg waits for the sweep loop during shutdown.
	wg sync.WaitGroup

	logger zerolog.Logger
}

// NewCoordinator builds the core components and starts the sweep loop when enabled.
func NewCoordinator(opts Options) *Coordinator {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	buffer := opts.SubscriberBuffer
	if buffer == 0 {
		buffer = DefaultSubscriberBuffer
	}

	c := &Coordinator{
		users:         user.NewRegistry(opts.InactivityTimeout, clock),
		messages:      NewMessageLog(opts.MaxContentBytes),
		hub:           NewHub(buffer, opts.PublishTimeout),
		now:           clock,
		sweepInterval: opts.SweepInterval,
		stop:          make(chan struct{}),
		logger:        logx.Component("SessionCoordinator"),
	}

	if c.sweepInterval > 0 {
		c.wg.Add(1)
		go c.runSweepLoop()
	}

	return c
}

// runSweepLoop evicts idle users on every tick until Shutdown.
func (c *Coordinator) runSweepLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	c.logger.Info().
		Dur("interval", c.sweepInterval).
		Dur("inactivity_timeout", c.users.Timeout()).
		Msg("Sweep loop started.")

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.stop:
			c.logger.Info().Msg("Sweep loop stopped.")
			return
		}
	}
}

// OnConnect identifies the session's user and returns everything needed for a first render.
func (c *Coordinator) OnConnect(sessionIdentity string) ConnectPayload {
	current, created := c.users.Identify(sessionIdentity)
	now := c.now()

	payload := ConnectPayload{
		CurrentUser: current,
		History:     c.messages.Snapshot(),
		ActiveUsers: c.users.ListActive(now),
	}

	if created {
		c.logger.Info().
			Str("user_id", current.ID).
			Int("active_users", len(payload.ActiveUsers)).
			Msg("New user connected.")
		c.publish(EventPresenceChanged)
	}

	return payload
}

// OnSubmit refreshes the session's liveness, appends rawContent as a new message and notifies
// every subscriber. Invalid content returns ErrInvalidMessage (or ErrMessageContentTooLong)
// and leaves the log untouched with no message broadcast.
func (c *Coordinator) OnSubmit(sessionIdentity, rawContent string) (Message, *errs.CustomError) {
	author, created := c.users.Identify(sessionIdentity)
	if created {
		c.publish(EventPresenceChanged)
	}

	msg, err := c.messages.Append(author.Profile, rawContent, c.now())
	if err != nil {
		c.logger.Debug().
			Str("user_id", author.ID).
			Int("error_code", err.Code).
			Msg("Submission rejected.")
		return Message{}, err
	}

	delivered := c.hub.Publish(Event{Type: EventNewMessage, SequenceNumber: msg.Seq})

	c.logger.Debug().
		Str("user_id", author.ID).
		Uint64("seq", msg.Seq).
		Int("notified", delivered).
		Msg("Message submitted.")

	return msg, nil
}

// State returns the current history and active users without touching anyone's liveness.
func (c *Coordinator) State() StatePayload {
	return StatePayload{
		History:     c.messages.Snapshot(),
		ActiveUsers: c.users.ListActive(c.now()),
	}
}

// IsActive reports whether the session still has a live user.
func (c *Coordinator) IsActive(sessionIdentity string) bool {
	_, ok := c.users.Lookup(sessionIdentity, c.now())
	return ok
}

// Subscribe registers a push channel for change notifications.
func (c *Coordinator) Subscribe() *Subscription {
	return c.hub.Subscribe()
}

// Unsubscribe removes a push channel; it is safe to call more than once.
func (c *Coordinator) Unsubscribe(s *Subscription) {
	c.hub.Unsubscribe(s)
}

// InactivityTimeout returns the liveness window in effect.
func (c *Coordinator) InactivityTimeout() time.Duration {
	return c.users.Timeout()
}

// Subscribers returns the number of connected push channels.
func (c *Coordinator) Subscribers() int {
	return c.hub.Len()
}

// Sweep evicts idle users now and announces the presence change if anyone left.
func (c *Coordinator) Sweep() []user.User {
	removed := c.users.SweepExpired(c.now())
	if len(removed) > 0 {
		c.publish(EventPresenceChanged)
	}
	return removed
}

func (c *Coordinator) publish(t EventType) {
	c.hub.Publish(Event{Type: t, SequenceNumber: uint64(c.messages.Len())})
}

// Shutdown stops the sweep loop and closes every subscription. It is idempotent.
func (c *Coordinator) Shutdown() {
	c.stopOnce.Do(func() {
		c.logger.Info().Msg("Shutting down coordinator...")

		close(c.stop)
		c.wg.Wait()
		c.hub.Close()

		c.logger.Info().Msg("Coordinator shutdown complete.")
	})
}
