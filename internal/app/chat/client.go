/*
Package chat contains the message side of the chat core.

This file defines the Client struct, one WebSocket connection bound to a session identity.
It turns a hub Subscription into pushed STATE_CHANGED frames, forwards SUBMIT frames to the
Coordinator and tracks the connection state (Connecting, Active, Disconnected).
*/
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"hzlobby/internal/app/user"
	"hzlobby/internal/pkg/errs"
	"hzlobby/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxFrameSize = 8192

	// capacity of the direct reply queue (CONFIRM, ERROR, STATE).
	sendBuffer = 32

	// WsCloseCodeSessionExpired tells the client its user was evicted for inactivity.
	WsCloseCodeSessionExpired = 4002
)

// ConnState is the lifecycle state of a Client.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateActive
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("ConnState(%d)", int32(s))
	}
}

// Client is an active WebSocket connection and the session it speaks for.
type Client struct {
	coordinator *Coordinator
	conn        *websocket.Conn

	// sessionID is the opaque session identity; token is its signed form for reconnects.
	sessionID string
	token     string

	user user.User
	sub  *Subscription

	// send queues direct replies for WritePump; it is never closed.
	send chan []byte

	state atomic.Int32

	// done is closed when ReadPump finishes.
	done      chan struct{}
	closeOnce sync.Once

	logger zerolog.Logger
}

// NewClient constructs a Client in the Connecting state.
func NewClient(coordinator *Coordinator, conn *websocket.Conn, sessionID, token string) *Client {
	c := &Client{
		coordinator: coordinator,
		conn:        conn,
		sessionID:   sessionID,
		token:       token,
		send:        make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
		logger:      logx.Logger().With().Str("component", "Client").Logger(),
	}
	c.state.Store(int32(StateConnecting))

	return c
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

// Serve runs the connection until it closes. It subscribes, performs the connect handshake,
// starts WritePump and blocks in ReadPump.
func (c *Client) Serve() {
	c.sub = c.coordinator.Subscribe()

	payload := c.coordinator.OnConnect(c.sessionID)
	c.user = payload.CurrentUser
	c.logger = c.logger.With().Str("user_id", c.user.ID).Str("subscription_id", c.sub.ID()).Logger()
	c.state.Store(int32(StateActive))

	// INIT_DATA goes out before WritePump starts so it always precedes STATE_CHANGED.
	data, err := encodeFrame(FrameInitData, InitDataPayload{ConnectPayload: payload, Token: c.token})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to encode INIT_DATA frame.")
		c.cleanupOnDisconnect()
		return
	}
	if !c.write(websocket.TextMessage, data) {
		c.cleanupOnDisconnect()
		return
	}

	go c.WritePump()

	c.ReadPump()
}

// ReadPump reads client frames until the connection fails, then cleans up.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxFrameSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			return
		}

		c.processInboundFrame(data)
	}
}

// cleanupOnDisconnect leaves the hub and closes the socket. The user itself stays in the
// registry until the expiry sweep removes it.
func (c *Client) cleanupOnDisconnect() {
	c.state.Store(int32(StateDisconnected))
	c.coordinator.Unsubscribe(c.sub)

	c.closeOnce.Do(func() { close(c.done) })

	if err := c.conn.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}

	c.logger.Info().Msg("Client disconnected.")
}

// processInboundFrame dispatches one raw client frame.
func (c *Client) processInboundFrame(data []byte) {
	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		c.SendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	switch frame.Type {
	case FrameSubmit:
		c.handleSubmit(frame.Payload, frame.TempID)

	case FrameSync:
		if err := c.sendFrame(FrameState, c.coordinator.State()); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to queue STATE frame.")
		}

	default:
		c.logger.Warn().Str("frame_type", string(frame.Type)).Msg("Client sent unsupported frame type")
		c.SendError(errs.NewError(errs.ErrInvalidParams))
	}
}

// handleSubmit forwards a SUBMIT frame to the coordinator and acknowledges the outcome.
func (c *Client) handleSubmit(raw json.RawMessage, tempID string) {
	var payload SubmitPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid SUBMIT payload")
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	msg, customErr := c.coordinator.OnSubmit(c.sessionID, payload.Content)
	if customErr != nil {
		c.SendError(customErr)
		return
	}

	if err := c.sendFrame(FrameConfirm, ConfirmPayload{TempID: tempID, Message: msg}); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to queue CONFIRM frame.")
	}
}

// WritePump is the only writer on the connection. It drains direct replies, turns hub events
// into STATE_CHANGED frames and keeps the heartbeat going.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case data := <-c.send:
			if !c.write(websocket.TextMessage, data) {
				return
			}

		case ev := <-c.sub.Events():
			if !c.handleEvent(ev) {
				return
			}

		case <-c.sub.Done():
			c.writeClose(websocket.CloseTryAgainLater, "notification channel closed")
			return

		case <-c.done:
			return

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

// handleEvent pushes ev to the client. A presence change that removed this session's user
// moves the connection to Disconnected and closes it. Returns false when WritePump must stop.
func (c *Client) handleEvent(ev Event) bool {
	if ev.Type == EventPresenceChanged && !c.coordinator.IsActive(c.sessionID) {
		c.state.Store(int32(StateDisconnected))
		c.logger.Info().Msg("User expired, closing connection.")
		c.writeClose(WsCloseCodeSessionExpired, errs.NewError(errs.ErrSessionExpired).Message)
		return false
	}

	data, err := encodeFrame(FrameStateChanged, ev)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to encode STATE_CHANGED frame.")
		return true
	}

	return c.write(websocket.TextMessage, data)
}

// write sends one frame under a write deadline. Returns false on failure.
func (c *Client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Int("message_type", messageType).Msg("Error writing frame")
		return false
	}

	return true
}

// writeClose sends a close frame with the given code and reason.
func (c *Client) writeClose(code int, reason string) {
	c.write(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}

// sendFrame encodes a frame and queues it without blocking.
func (c *Client) sendFrame(t FrameType, payload any) error {
	data, err := encodeFrame(t, payload)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send queue full, dropping frame")
		return fmt.Errorf("client send queue full")
	}
}

// SendError queues an ERROR frame for err.
func (c *Client) SendError(err error) {
	var customErr *errs.CustomError
	if !errors.As(err, &customErr) {
		customErr = errs.NewError(errs.ErrUnknown, err)
	}

	if sendErr := c.sendFrame(FrameError, ErrorPayload{Code: customErr.Code, Message: customErr.Message}); sendErr != nil {
		c.logger.Error().Err(sendErr).Msg("Failed to queue error frame")
	}
}
