// Package v1 defines the VivahVows realtime push contract.
//
// The backend exposes two socket kinds: a per-user notification stream and a
// per-room chat stream. Both authenticate with the access token passed as the
// "token" query parameter. Frames are single JSON objects, one per websocket
// text message.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Socket paths (relative to the realtime origin).
const (
	NotificationsPath = "/ws/notifications/"
	ChatRoomPathFmt   = "/ws/chat/%d/"

	// TokenQueryParam carries the access token on the handshake URL.
	TokenQueryParam = "token"
)

// Notification event names (wire-stable, mirror the backend event choices).
const (
	EventLike    = "like"
	EventMatch   = "match"
	EventMessage = "message"

	// EventDisconnected is never sent by the server. It is synthesized locally
	// when the notification socket fails.
	EventDisconnected = "disconnected"
)

// NotificationFrame is pushed by the server on the notification stream.
type NotificationFrame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs structural validation of an inbound notification frame.
func (f NotificationFrame) Validate() error {
	if strings.TrimSpace(f.Event) == "" {
		return errors.New("missing field: event")
	}
	if len(f.Payload) > 0 && !json.Valid(f.Payload) {
		return errors.New("invalid payload")
	}
	return nil
}

// ChatSendFrame is written by the client to post into a chat room.
type ChatSendFrame struct {
	Message string `json:"message"`
}

// ChatMessageFrame is fanned out by the server to every member of a room.
type ChatMessageFrame struct {
	ID        int64     `json:"id"`
	Room      int64     `json:"room"`
	Sender    int64     `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate performs structural validation of an inbound chat frame.
func (m ChatMessageFrame) Validate() error {
	if m.ID <= 0 {
		return errors.New("missing field: id")
	}
	if m.Room <= 0 {
		return errors.New("missing field: room")
	}
	if m.Content == "" {
		return fmt.Errorf("empty content for message %d", m.ID)
	}
	return nil
}

// ChatRoomPath returns the socket path for a chat room.
func ChatRoomPath(roomID int64) string {
	return fmt.Sprintf(ChatRoomPathFmt, roomID)
}
