package chat

import (
	"encoding/json"
	"time"
)

// FrameType identifies a WebSocket frame.
type FrameType string

// Server to client.
const (
	FrameInitData     FrameType = "INIT_DATA"
	FrameStateChanged FrameType = "STATE_CHANGED"
	FrameState        FrameType = "STATE"
	FrameConfirm      FrameType = "CONFIRM"
	FrameError        FrameType = "ERROR"
)

// Client to server.
const (
	FrameSubmit FrameType = "SUBMIT"
	FrameSync   FrameType = "SYNC"
)

// OutboundFrame is the envelope of every server frame.
type OutboundFrame struct {
	Type      FrameType `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// InboundFrame is the envelope of every client frame.
type InboundFrame struct {
	Type    FrameType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	TempID  string          `json:"tempId,omitempty"`
}

// InitDataPayload is sent once per connection. Token lets the client reconnect as the same session.
type InitDataPayload struct {
	ConnectPayload
	Token string `json:"token"`
}

// SubmitPayload carries the text of a SUBMIT frame.
type SubmitPayload struct {
	Content string `json:"content"`
}

// ConfirmPayload acknowledges a SUBMIT with the stored message.
type ConfirmPayload struct {
	TempID  string  `json:"tempId,omitempty"`
	Message Message `json:"message"`
}

// ErrorPayload reports a failure to the client.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// encodeFrame marshals a server frame stamped with the current time.
func encodeFrame(t FrameType, payload any) ([]byte, error) {
	return json.Marshal(OutboundFrame{
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	})
}
