/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"hzlobby/internal/app/chat"
	"hzlobby/internal/pkg/errs"
	"hzlobby/internal/pkg/limiter"
	"hzlobby/internal/pkg/logx"
	"hzlobby/internal/pkg/randx"
	"hzlobby/internal/pkg/resp"
	"hzlobby/internal/pkg/sessiontoken"
)

// HandleWebSocket upgrades the request and serves the push channel for the caller's session.
// A request without a token is given a fresh session identity, whose token is delivered
// in the INIT_DATA frame. A request with a rejected token gets ErrSessionInvalid so the client
// can fetch a new one from POST /api/session.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rateLimiter.Allow(r) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", limiter.ClientIP(r))
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		if err := sessiontoken.Err(r); errs.HasCode(err, errs.ErrSessionInvalid) {
			logx.Info("WebSocket connection rejected: Session token invalid.", "ip", limiter.ClientIP(r))
			resp.RespondError(w, r, errs.NewError(errs.ErrSessionInvalid))
			return
		}

		sessionID := sessiontoken.SessionID(r)
		if sessionID == "" {
			sessionID = randx.SessionID()
		}

		token, err := sessiontoken.Generate(sessionID, deps.Config.SessionSecret, deps.Config.SessionTTL)
		if err != nil {
			logx.Error(err, "Failed to sign session token for WebSocket connection")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Warn("Failed to upgrade connection to WebSocket", "error", err.Error())
			return
		}

		client := chat.NewClient(deps.Coordinator, conn, sessionID, token)

		logx.Debug("WebSocket connection established")

		client.Serve()
	}
}
