/*
Package handler provides the HTTP handlers and routing setup for the chat server.

This file defines the main Router, applying logging, CORS, session extraction and IP-based
rate limiting before delegating requests to the API and WebSocket handlers.
*/
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"hzlobby/internal/pkg/limiter"
	"hzlobby/internal/pkg/logx"
	"hzlobby/internal/pkg/resp"
	"hzlobby/internal/pkg/sessiontoken"
)

const (
	SessionRate  = 0.2
	SessionBurst = 5
	SubmitRate   = 2
	SubmitBurst  = 10
	ConnectRate  = 0.5
	ConnectBurst = 5
)

// Router builds the chi routing table. ctx bounds the lifetime of the limiter cleanup goroutines.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	sessionLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(SessionRate), SessionBurst)
	submitLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(SubmitRate), SubmitBurst)
	connectLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(ConnectRate), ConnectBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)
	r.Use(sessiontoken.Extractor(deps.Config.SessionSecret))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]any{
			"status":                   "ok",
			"service":                  "HZ Lobby Server",
			"subscribers":              deps.Coordinator.Subscribers(),
			"inactivityTimeoutSeconds": int(deps.Coordinator.InactivityTimeout().Seconds()),
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.With(sessionLimiter.Middleware).Post("/session", HandleCreateSession(deps))
		api.Get("/state", HandleGetState(deps))
		api.With(submitLimiter.Middleware).Post("/messages", HandleSubmitMessage(deps))
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, connectLimiter, deps))

	return r
}
