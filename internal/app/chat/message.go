/*
Package chat contains the message side of the chat core: the append-only MessageLog, the
BroadcastHub that pushes change notifications, the Coordinator that ties a session to both
and the WebSocket Client that turns a hub Subscription into a push channel.

This file defines the Message struct and the MessageLog.
*/
package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hzlobby/internal/app/user"
	"hzlobby/internal/pkg/errs"
	"hzlobby/internal/pkg/logx"
	"hzlobby/internal/pkg/randx"
)

// DefaultMaxContentBytes is the content size limit used when none is configured.
const DefaultMaxContentBytes = 5000

// Message is an immutable chat entry.
// Author is captured by value at append time, so it outlives the author's registry entry.
type Message struct {
	// ID is a UUID assigned at append time.
	ID string `json:"id"`

	// Seq is the 1-based position of the message in the log.
	Seq uint64 `json:"sequenceNumber"`

	Content string       `json:"content"`
	Author  user.Profile `json:"author"`

	// CreatedAt never decreases along the log.
	CreatedAt time.Time `json:"createdAt"`
}

// AuthorID returns the ID of the User who wrote the message.
func (m Message) AuthorID() string {
	return m.Author.ID
}

// IsFrom reports whether the message was written by the given profile.
// Renderers call it on every pass instead of storing ownership on the message.
func (m Message) IsFrom(p user.Profile) bool {
	return m.Author.ID == p.ID
}

// ValidateContent rejects whitespace-only content and content longer than maxBytes.
func ValidateContent(content string, maxBytes int) *errs.CustomError {
	if strings.TrimSpace(content) == "" {
		return errs.NewError(errs.ErrInvalidMessage)
	}

	if maxBytes > 0 && len(content) > maxBytes {
		return errs.NewError(errs.ErrMessageContentTooLong, maxBytes)
	}

	return nil
}

// MessageLog is an append-only, time-ordered store of messages shared by all users.
type MessageLog struct {
	// mu guards messages; appends take it exclusively, snapshots shared.
	mu sync.RWMutex

	messages []Message

	maxContentBytes int

	logger zerolog.Logger
}

// NewMessageLog creates an empty log. maxContentBytes <= 0 selects DefaultMaxContentBytes.
func NewMessageLog(maxContentBytes int) *MessageLog {
	if maxContentBytes <= 0 {
		maxContentBytes = DefaultMaxContentBytes
	}

	return &MessageLog{
		maxContentBytes: maxContentBytes,
		logger:          logx.Component("MessageLog"),
	}
}

// Append validates content and stores a new Message authored by author at timestamp.
// A timestamp older than the last stored one is raised to it so CreatedAt stays non-decreasing
// in append order.
func (l *MessageLog) Append(author user.Profile, content string, timestamp time.Time) (Message, *errs.CustomError) {
	if err := ValidateContent(content, l.maxContentBytes); err != nil {
		return Message{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.messages); n > 0 && timestamp.Before(l.messages[n-1].CreatedAt) {
		timestamp = l.messages[n-1].CreatedAt
	}

	msg := Message{
		ID:        randx.MessageID(),
		Seq:       uint64(len(l.messages)) + 1,
		Content:   content,
		Author:    author,
		CreatedAt: timestamp,
	}
	l.messages = append(l.messages, msg)

	l.logger.Debug().
		Uint64("seq", msg.Seq).
		Str("author_id", author.ID).
		Int("content_bytes", len(content)).
		Msg("Message appended.")

	return msg, nil
}

// Snapshot returns a copy of the whole log in append order.
func (l *MessageLog) Snapshot() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of stored messages, which is also the latest sequence number.
func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.messages)
}
