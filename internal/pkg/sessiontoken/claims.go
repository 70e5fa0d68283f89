package sessiontoken

import "github.com/golang-jwt/jwt"

// Payload is the claim set of a session token.
// The token carries nothing but the opaque session identity; it grants no privileges.
type Payload struct {
	jwt.StandardClaims

	// SessionID is the opaque session identity handed to the presence core.
	SessionID string `json:"sid"`
}
