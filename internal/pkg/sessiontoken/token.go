/*
Package sessiontoken issues and verifies signed session tokens.

A session token lets a browser keep the same session identity across page reloads and
reconnects, so the presence core maps it back to the same User while the liveness window
is still open. Tokens are HS256 JWTs.
*/
package sessiontoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"

	"hzlobby/internal/pkg/randx"
)

// TokenIssuer identifies the issuer of the token.
const TokenIssuer = "HZLobby-Server"

// Generate signs a token for sessionID that is valid for ttl.
func Generate(sessionID, secretKey string, ttl time.Duration) (string, error) {
	now := time.Now()

	payload := &Payload{
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    TokenIssuer,
		},
		SessionID: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)

	return token.SignedString([]byte(secretKey))
}

// Parse validates tokenString and returns its payload.
func Parse(tokenString, secretKey string) (*Payload, error) {
	claims := &Payload{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	if claims.Issuer != TokenIssuer {
		return nil, errors.New("token is not a session token")
	}

	if !randx.IsValidSessionID(claims.SessionID) {
		return nil, errors.New("token carries a malformed session identity")
	}

	return claims, nil
}
