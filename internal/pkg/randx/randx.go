/*
Package randx provides generators for opaque random identifiers.

Session identities and message IDs are UUID v4 strings backed by crypto/rand.
*/
package randx

import (
	"github.com/google/uuid"
)

// SessionIDPrefix marks identifiers minted by this server for new sessions.
const SessionIDPrefix = "sess_"

// SessionID returns a new opaque session identity.
func SessionID() string {
	return SessionIDPrefix + uuid.NewString()
}

// MessageID generates a standard UUID v4 string to serve as a unique identifier for a message.
func MessageID() string {
	return uuid.NewString()
}

// IsValidSessionID reports whether id has the shape produced by SessionID.
func IsValidSessionID(id string) bool {
	if len(id) <= len(SessionIDPrefix) || id[:len(SessionIDPrefix)] != SessionIDPrefix {
		return false
	}

	_, err := uuid.Parse(id[len(SessionIDPrefix):])
	return err == nil
}
