package v1

import (
	"fmt"
	"time"
)

const PathChatRooms = "/chat/rooms/"

// ChatMessagesPath returns the messages endpoint for a room.
func ChatMessagesPath(roomID int64) string {
	return fmt.Sprintf("/chat/rooms/%d/messages/", roomID)
}

// ChatRoom is a conversation between two mutually matched users.
type ChatRoom struct {
	ID        int64     `json:"id"`
	UserOne   int64     `json:"user_one"`
	UserTwo   int64     `json:"user_two"`
	CreatedAt time.Time `json:"created_at"`
	Partner   Profile   `json:"partner"`
}

// ChatMessage is a persisted chat message.
type ChatMessage struct {
	ID        int64     `json:"id"`
	Room      int64     `json:"room"`
	Sender    int64     `json:"sender"`
	Content   string    `json:"content"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// SendMessageRequest posts a message over REST.
type SendMessageRequest struct {
	Content string `json:"content"`
}
