package realtime

import (
	"encoding/json"
	"time"

	v1 "vivahvows/shared/contracts/realtime/v1"
)

// Event is a notification as seen by the rest of the client.
type Event struct {
	ID         string
	Event      string
	Payload    json.RawMessage
	ReceivedAt time.Time
	IsRead     bool

	// Local marks events synthesized by the client (disconnects).
	Local bool

	// ServerID is the backend notification id when the event came from the
	// REST list rather than the socket.
	ServerID int64
}

// Sink receives events. It is called from the channel's read goroutine and
// must not block for long.
type Sink func(Event)

func eventFromFrame(f v1.NotificationFrame, now time.Time) Event {
	return Event{
		ID:         NewEventID(now),
		Event:      f.Event,
		Payload:    f.Payload,
		ReceivedAt: now,
	}
}

func disconnectedEvent(reason string, now time.Time) Event {
	payload, _ := json.Marshal(map[string]string{"reason": reason})
	return Event{
		ID:         NewEventID(now),
		Event:      v1.EventDisconnected,
		Payload:    payload,
		ReceivedAt: now,
		Local:      true,
	}
}
