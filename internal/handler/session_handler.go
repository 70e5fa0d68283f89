/*
Package handler provides HTTP handler functions for issuing session tokens.
*/
package handler

import (
	"net/http"
	"time"

	"hzlobby/internal/app/user"
	"hzlobby/internal/pkg/errs"
	"hzlobby/internal/pkg/logx"
	"hzlobby/internal/pkg/randx"
	"hzlobby/internal/pkg/resp"
	"hzlobby/internal/pkg/sessiontoken"
)

// HandleCreateSession issues a signed session token. A caller that already presents a valid
// token keeps its session identity and gets a refreshed token; anyone else gets a new identity.
// Issuing a token does not register the user; that happens on connect or submit.
func HandleCreateSession(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := sessiontoken.SessionID(r)
		if sessionID == "" {
			if errs.HasCode(sessiontoken.Err(r), errs.ErrSessionInvalid) {
				logx.Debug("Replacing rejected session token with a new session")
			}
			sessionID = randx.SessionID()
		}

		token, err := sessiontoken.Generate(sessionID, deps.Config.SessionSecret, deps.Config.SessionTTL)
		if err != nil {
			logx.Error(err, "Failed to sign session token")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token":     token,
			"expiresAt": time.Now().Add(deps.Config.SessionTTL).Format(time.RFC3339),
			"user":      user.DeriveProfile(sessionID),
		})
	}
}
