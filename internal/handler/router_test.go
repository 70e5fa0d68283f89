package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"hzlobby/internal/app/chat"
	"hzlobby/internal/app/user"
	"hzlobby/internal/configs"
	"hzlobby/internal/pkg/errs"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*httptest.Server, *chat.Coordinator) {
	t.Helper()

	cfg := &configs.AppConfig{
		Environment:       "development",
		SessionSecret:     "test-secret",
		SessionTTL:        time.Hour,
		InactivityTimeout: 300 * time.Second,
		MaxContentBytes:   100,
	}

	coordinator := chat.NewCoordinator(chat.Options{
		InactivityTimeout: cfg.InactivityTimeout,
		MaxContentBytes:   cfg.MaxContentBytes,
	})

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(Router(ctx, &AppDeps{Coordinator: coordinator, Config: cfg}))

	t.Cleanup(func() {
		srv.Close()
		cancel()
		coordinator.Shutdown()
	})

	return srv, coordinator
}

func do(t *testing.T, method, url, token, contentType, body string) (int, envelope) {
	t.Helper()

	r, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := http.DefaultClient.Do(r)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer res.Body.Close()

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return res.StatusCode, env
}

type sessionData struct {
	Token string       `json:"token"`
	User  user.Profile `json:"user"`
}

func createSession(t *testing.T, srv *httptest.Server, token string) sessionData {
	t.Helper()

	status, env := do(t, http.MethodPost, srv.URL+"/api/session", token, "", "")
	if status != http.StatusOK || env.Code != 0 {
		t.Fatalf("POST /api/session = %d %+v", status, env)
	}

	var data sessionData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return data
}

func TestRouter_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	status, env := do(t, http.MethodGet, srv.URL+"/health", "", "", "")
	if status != http.StatusOK || env.Code != 0 {
		t.Fatalf("GET /health = %d %+v", status, env)
	}

	var health struct {
		InactivityTimeoutSeconds int `json:"inactivityTimeoutSeconds"`
	}
	if err := json.Unmarshal(env.Data, &health); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if health.InactivityTimeoutSeconds != 300 {
		t.Errorf("inactivityTimeoutSeconds = %d, want 300", health.InactivityTimeoutSeconds)
	}
}

func TestRouter_SessionKeepsIdentity(t *testing.T) {
	srv, _ := newTestServer(t)

	first := createSession(t, srv, "")
	if first.Token == "" || first.User.ID == "" {
		t.Fatalf("session = %+v", first)
	}

	again := createSession(t, srv, first.Token)
	if again.User.ID != first.User.ID {
		t.Errorf("User.ID = %q, want %q", again.User.ID, first.User.ID)
	}

	other := createSession(t, srv, "not-a-token")
	if other.User.ID == first.User.ID {
		t.Error("an invalid token should get a fresh identity")
	}
}

func TestRouter_SubmitAndState(t *testing.T) {
	srv, coordinator := newTestServer(t)
	session := createSession(t, srv, "")

	status, env := do(t, http.MethodPost, srv.URL+"/api/messages", session.Token, "application/json", `{"content":"hello"}`)
	if status != http.StatusOK || env.Code != 0 {
		t.Fatalf("POST /api/messages = %d %+v", status, env)
	}

	_, env = do(t, http.MethodGet, srv.URL+"/api/state", "", "", "")
	var state chat.StatePayload
	if err := json.Unmarshal(env.Data, &state); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if len(state.History) != 1 || state.History[0].AuthorID() != session.User.ID {
		t.Errorf("History = %+v", state.History)
	}
	if len(state.ActiveUsers) != 1 || state.ActiveUsers[0].ID != session.User.ID {
		t.Errorf("ActiveUsers = %+v", state.ActiveUsers)
	}
	if coordinator.Subscribers() != 0 {
		t.Errorf("Subscribers = %d, want 0", coordinator.Subscribers())
	}
}

func TestRouter_SubmitErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantCode    int
	}{
		{"blank content", "application/json", `{"content":"   "}`, http.StatusOK, errs.ErrInvalidMessage},
		{"too long", "application/json", `{"content":"` + strings.Repeat("x", 101) + `"}`, http.StatusOK, errs.ErrMessageContentTooLong},
		{"wrong media type", "text/plain", `hello`, http.StatusUnsupportedMediaType, errs.ErrUnsupportedMediaType},
		{"unknown field", "application/json", `{"text":"hi"}`, http.StatusBadRequest, errs.ErrInvalidJSONFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, http.MethodPost, srv.URL+"/api/messages", "", tt.contentType, tt.body)
			if status != tt.wantStatus || env.Code != tt.wantCode {
				t.Errorf("got %d/%d, want %d/%d", status, env.Code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestRouter_WebSocketReusesSessionToken(t *testing.T) {
	srv, coordinator := newTestServer(t)
	session := createSession(t, srv, "")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + session.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Type    chat.FrameType       `json:"type"`
		Payload chat.InitDataPayload `json:"payload"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}

	if frame.Type != chat.FrameInitData {
		t.Fatalf("Type = %s, want %s", frame.Type, chat.FrameInitData)
	}
	if frame.Payload.CurrentUser.ID != session.User.ID {
		t.Errorf("CurrentUser.ID = %q, want %q", frame.Payload.CurrentUser.ID, session.User.ID)
	}
	if frame.Payload.Token == "" {
		t.Error("INIT_DATA should carry a refreshed token")
	}
	if coordinator.Subscribers() != 1 {
		t.Errorf("Subscribers = %d, want 1", coordinator.Subscribers())
	}
}

func TestRouter_WebSocketRejectsInvalidToken(t *testing.T) {
	srv, coordinator := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=forged"
	conn, res, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		conn.Close()
		t.Fatal("Dial should fail with a forged token")
	}
	if res == nil {
		t.Fatalf("Dial: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if env.Code != errs.ErrSessionInvalid {
		t.Errorf("code = %d, want %d", env.Code, errs.ErrSessionInvalid)
	}
	if coordinator.Subscribers() != 0 {
		t.Errorf("Subscribers = %d, want 0", coordinator.Subscribers())
	}
}
