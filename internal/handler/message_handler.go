/*
Package handler provides the HTTP fallbacks for reading chat state and submitting messages.
*/
package handler

import (
	"net/http"

	"hzlobby/internal/pkg/req"
	"hzlobby/internal/pkg/resp"
	"hzlobby/internal/pkg/sessiontoken"
)

// SubmitMessageInput is the body of POST /api/messages.
type SubmitMessageInput struct {
	Content string `json:"content"`
}

// HandleSubmitMessage appends a message on behalf of the caller's session.
// Requests without a valid session token act as the placeholder session.
func HandleSubmitMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input SubmitMessageInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		msg, customErr := deps.Coordinator.OnSubmit(sessiontoken.SessionID(r), input.Content)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"message": msg,
		})
	}
}

// HandleGetState returns the full history and the active users.
func HandleGetState(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, deps.Coordinator.State())
	}
}
