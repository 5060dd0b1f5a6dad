package v1

import (
	"encoding/json"
	"fmt"
	"time"
)

const PathNotifications = "/notifications/"

// NotificationPath returns the detail endpoint for a notification.
func NotificationPath(id int64) string {
	return fmt.Sprintf("/notifications/%d/", id)
}

// Notification is a persisted notification. Payload shape depends on Event.
type Notification struct {
	ID        int64           `json:"id"`
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	IsRead    bool            `json:"is_read"`
	CreatedAt time.Time       `json:"created_at"`
}

// NotificationPatch flips read state.
type NotificationPatch struct {
	IsRead bool `json:"is_read"`
}
