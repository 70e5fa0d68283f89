package user

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hzlobby/internal/pkg/logx"
)

// DefaultInactivityTimeout is the liveness window after which an idle User is evicted.
const DefaultInactivityTimeout = 300 * time.Second

// Clock returns the current time. Tests substitute a controllable clock.
type Clock func() time.Time

// entry is the registry's record for one session identity.
type entry struct {
	session string
	user    User
}

// Registry tracks connected Users keyed by session identity and evicts the ones that have
// been idle longer than the inactivity timeout.
// It exclusively owns its Users; callers only ever receive copies.
type Registry struct {
	// mu guards sessions and order.
	mu sync.RWMutex

	// sessions maps a normalized session identity to its entry.
	sessions map[string]*entry

	// order keeps entries in insertion order for listing.
	order []*entry

	timeout time.Duration
	now     Clock
	logger  zerolog.Logger
}

// NewRegistry creates an empty Registry. A zero timeout selects DefaultInactivityTimeout and
// a nil clock selects time.Now.
func NewRegistry(timeout time.Duration, clock Clock) *Registry {
	if timeout <= 0 {
		timeout = DefaultInactivityTimeout
	}
	if clock == nil {
		clock = time.Now
	}

	return &Registry{
		sessions: make(map[string]*entry),
		timeout:  timeout,
		now:      clock,
		logger:   logx.Component("UserRegistry"),
	}
}

// Timeout returns the inactivity window.
func (r *Registry) Timeout() time.Duration {
	return r.timeout
}

func (r *Registry) expired(u User, now time.Time) bool {
	return now.Sub(u.LastActiveAt) > r.timeout
}

// Identify returns the User for sessionIdentity, refreshing its LastActiveAt.
// A session seen for the first time, or whose previous User has already expired, gets a
// fresh User; created reports that case.
func (r *Registry) Identify(sessionIdentity string) (u User, created bool) {
	session := NormalizeSession(sessionIdentity)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[session]; ok {
		if !r.expired(e.user, now) {
			if now.After(e.user.LastActiveAt) {
				e.user.LastActiveAt = now
			}
			return e.user, false
		}
		r.removeLocked(e)
	}

	e := &entry{
		session: session,
		user: User{
			Profile:      DeriveProfile(session),
			JoinedAt:     now,
			LastActiveAt: now,
		},
	}
	r.sessions[session] = e
	r.order = append(r.order, e)

	r.logger.Debug().
		Str("user_id", e.user.ID).
		Int("active_users", len(r.order)).
		Msg("User joined.")

	return e.user, true
}

// Lookup returns the live User for sessionIdentity without refreshing it.
func (r *Registry) Lookup(sessionIdentity string, now time.Time) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[NormalizeSession(sessionIdentity)]
	if !ok || r.expired(e.user, now) {
		return User{}, false
	}
	return e.user, true
}

// ListActive returns every User still inside the liveness window at now, in insertion order.
// Entries past the window are filtered out even if no sweep has removed them yet.
func (r *Registry) ListActive(now time.Time) []User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]User, 0, len(r.order))
	for _, e := range r.order {
		if !r.expired(e.user, now) {
			users = append(users, e.user)
		}
	}
	return users
}

// SweepExpired removes every User idle for longer than the window and returns them.
func (r *Registry) SweepExpired(now time.Time) []User {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []User
	kept := r.order[:0]
	for _, e := range r.order {
		if r.expired(e.user, now) {
			delete(r.sessions, e.session)
			removed = append(removed, e.user)
			continue
		}
		kept = append(kept, e)
	}

	for i := len(kept); i < len(r.order); i++ {
		r.order[i] = nil
	}
	r.order = kept

	for _, u := range removed {
		r.logger.Info().
			Str("user_id", u.ID).
			Time("last_active_at", u.LastActiveAt).
			Msg("User expired after inactivity.")
	}

	return removed
}

// Len returns the number of entries currently held, including ones awaiting a sweep.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// removeLocked drops e from both indexes. r.mu must be held for writing.
func (r *Registry) removeLocked(e *entry) {
	delete(r.sessions, e.session)
	for i, candidate := range r.order {
		if candidate == e {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
