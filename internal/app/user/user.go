/*
Package user contains the presence side of the chat core: the User representation and the
Registry that tracks which session identities are currently live.

A User's identity is derived deterministically from the session identity handed in by the
connection layer, never from anything the client types.
*/
package user

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const (
	// IDLength is the number of hex characters kept from the session identity hash.
	IDLength = 8

	// DisplayNamePrefix is prepended to the ID to build the display name.
	DisplayNamePrefix = "User_"

	// PlaceholderSession stands in for an empty session identity.
	PlaceholderSession = "anonymous"
)

// palette holds the presentation colors a User can be assigned.
var palette = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231",
	"#911eb4", "#42d4f4", "#f032e6", "#469990",
	"#9a6324", "#800000", "#808000", "#000075",
}

// Profile is the immutable part of a User that messages capture by value.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
}

// User represents a live chat participant.
type User struct {
	Profile

	// JoinedAt is when this registry entry was created.
	JoinedAt time.Time `json:"joinedAt"`

	// LastActiveAt is refreshed on every action from the owning session.
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// NormalizeSession maps a degenerate (empty) session identity to PlaceholderSession.
func NormalizeSession(sessionIdentity string) string {
	if sessionIdentity == "" {
		return PlaceholderSession
	}
	return sessionIdentity
}

// DeriveProfile computes the ID, display name and color for a session identity.
// The same identity always yields the same Profile.
func DeriveProfile(sessionIdentity string) Profile {
	sum := sha256.Sum256([]byte(NormalizeSession(sessionIdentity)))
	id := hex.EncodeToString(sum[:])[:IDLength]

	return Profile{
		ID:          id,
		DisplayName: DisplayNamePrefix + id,
		Color:       palette[int(sum[IDLength/2])%len(palette)],
	}
}
