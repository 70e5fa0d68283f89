package sessiontoken

import (
	"context"
	"net/http"
	"strings"

	"hzlobby/internal/pkg/errs"
	"hzlobby/internal/pkg/logx"
)

type contextKey string

const (
	// ContextPayloadKey is the request context key holding the verified *Payload.
	ContextPayloadKey contextKey = "session_payload"

	// ContextErrorKey holds the *errs.CustomError of a presented but rejected token.
	ContextErrorKey contextKey = "session_error"
)

// QueryParam is the query parameter carrying the token where headers cannot be set (WebSocket upgrades).
const QueryParam = "token"

// Extractor verifies a session token from the Authorization header (Bearer) or the
// token query parameter and stores the payload in the request context.
// Missing or invalid tokens never fail the request here; the caller is then treated as a
// session without identity, and Err reports whether a token was presented and rejected.
func Extractor(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := tokenFromRequest(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			payload, err := Parse(tokenString, secretKey)
			if err != nil {
				logx.Debug("Ignoring invalid session token", "error", err.Error())
				ctx := context.WithValue(r.Context(), ContextErrorKey, errs.NewError(errs.ErrSessionInvalid))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			ctx := context.WithValue(r.Context(), ContextPayloadKey, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	return r.URL.Query().Get(QueryParam)
}

// FromContext returns the verified payload, or nil when the request carried no valid token.
func FromContext(r *http.Request) *Payload {
	payload, ok := r.Context().Value(ContextPayloadKey).(*Payload)
	if !ok {
		return nil
	}
	return payload
}

// SessionID returns the request's session identity, or "" when it has none.
func SessionID(r *http.Request) string {
	if payload := FromContext(r); payload != nil {
		return payload.SessionID
	}
	return ""
}

// Err returns ErrSessionInvalid when the request presented a token that failed verification,
// and nil otherwise.
func Err(r *http.Request) error {
	customErr, ok := r.Context().Value(ContextErrorKey).(*errs.CustomError)
	if !ok {
		return nil
	}
	return customErr
}
