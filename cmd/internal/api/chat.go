package api

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	apiv1 "vivahvows/shared/contracts/api/v1"
)

// MaxMessageRunes bounds a chat message body.
const MaxMessageRunes = 4000

var ErrEmptyMessage = errors.New("empty message")

// Chat covers /chat/rooms/.
type Chat struct {
	c Caller
}

func NewChat(c Caller) *Chat { return &Chat{c: c} }

func (ch *Chat) Rooms(ctx context.Context) ([]apiv1.ChatRoom, error) {
	page, err := getList[apiv1.ChatRoom](ctx, ch.c, apiv1.PathChatRooms, nil)
	return page.Results, err
}

func (ch *Chat) Messages(ctx context.Context, roomID int64) ([]apiv1.ChatMessage, error) {
	page, err := getList[apiv1.ChatMessage](ctx, ch.c, apiv1.ChatMessagesPath(roomID), nil)
	return page.Results, err
}

// Send posts a message over REST.
func (ch *Chat) Send(ctx context.Context, roomID int64, content string) (apiv1.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return apiv1.ChatMessage{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > MaxMessageRunes {
		return apiv1.ChatMessage{}, errors.New("message too long")
	}
	var out apiv1.ChatMessage
	err := ch.c.Post(ctx, apiv1.ChatMessagesPath(roomID), apiv1.SendMessageRequest{Content: content}, &out)
	return out, err
}
