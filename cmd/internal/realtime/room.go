package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	v1 "vivahvows/shared/contracts/realtime/v1"

	"vivahvows/cmd/internal/metrics"
)

var (
	ErrRoomClosed   = errors.New("room channel closed")
	ErrRateLimited  = errors.New("sending too fast")
	ErrEmptyMessage = errors.New("empty message")
	ErrTooLong      = errors.New("message too long")
)

// RoomOptions configures a RoomChannel.
type RoomOptions struct {
	ChannelOptions

	RoomID int64
	// OnMessage receives inbound chat frames. OnClosed runs once if the
	// socket ends without Close being called.
	OnMessage func(v1.ChatMessageFrame)
	OnClosed  func(reason string)

	SendLimit  int
	SendWindow time.Duration
}

// RoomChannel is a chat socket for one room.
type RoomChannel struct {
	roomID  int64
	origin  string
	tokens  TokenSource
	cfg     socketConfig
	metrics *metrics.Metrics
	limiter *RateLimiter

	onMessage func(v1.ChatMessageFrame)
	onClosed  func(reason string)

	mu   sync.Mutex
	sock *socket
}

func NewRoomChannel(opts RoomOptions) (*RoomChannel, error) {
	if opts.Tokens == nil {
		return nil, errors.New("realtime: token source is required")
	}
	if opts.RoomID <= 0 {
		return nil, fmt.Errorf("realtime: invalid room id %d", opts.RoomID)
	}
	if _, err := socketURL(opts.Origin, v1.ChatRoomPath(opts.RoomID), "x"); err != nil {
		return nil, err
	}
	onMessage := opts.OnMessage
	if onMessage == nil {
		onMessage = func(v1.ChatMessageFrame) {}
	}
	onClosed := opts.OnClosed
	if onClosed == nil {
		onClosed = func(string) {}
	}

	return &RoomChannel{
		roomID: opts.RoomID,
		origin: opts.Origin,
		tokens: opts.Tokens,
		cfg: socketConfig{
			heartbeatEvery:   opts.HeartbeatInterval,
			heartbeatTimeout: opts.HeartbeatTimeout,
			httpClient:       opts.HTTPClient,
			log:              opts.Logger,
		}.withDefaults(),
		metrics:   opts.Metrics,
		limiter:   NewRateLimiter(opts.SendLimit, opts.SendWindow),
		onMessage: onMessage,
		onClosed:  onClosed,
	}, nil
}

// Open dials the room socket. It is a no-op when already open.
func (r *RoomChannel) Open(ctx context.Context) error {
	snap, ok := r.tokens.Get(ctx)
	if !ok || snap.Access == "" {
		return ErrNoToken
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sock != nil {
		return nil
	}

	u, err := socketURL(r.origin, v1.ChatRoomPath(r.roomID), snap.Access)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("chat:%d", r.roomID)
	s, err := dialSocket(ctx, u, name, r.cfg)
	if err != nil {
		return err
	}
	r.sock = s
	r.metrics.ConnOpened()

	s.run(r.onFrame, func(reason string) {
		r.mu.Lock()
		current := r.sock == s
		if current {
			r.sock = nil
			r.metrics.ConnClosed()
		}
		r.mu.Unlock()
		if current {
			r.onClosed(reason)
		}
	})
	return nil
}

// Send posts a message to the room.
func (r *RoomChannel) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > maxMessageChars {
		return ErrTooLong
	}

	r.mu.Lock()
	s := r.sock
	r.mu.Unlock()
	if s == nil {
		return ErrRoomClosed
	}

	now := time.Now()
	if !r.limiter.Allow(now) {
		return fmt.Errorf("%w: retry in %s", ErrRateLimited, r.limiter.RetryAfter(now).Round(time.Millisecond))
	}

	b, err := json.Marshal(v1.ChatSendFrame{Message: content})
	if err != nil {
		return err
	}
	return s.write(ctx, b)
}

// Close is idempotent.
func (r *RoomChannel) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sock == nil {
		return
	}
	r.sock.close()
	r.sock = nil
	r.metrics.ConnClosed()
}

func (r *RoomChannel) onFrame(data []byte) {
	var m v1.ChatMessageFrame
	if err := json.Unmarshal(data, &m); err != nil {
		r.cfg.log.Warn("ws.frame.malformed", "socket", "chat", "room", r.roomID, "err", err)
		return
	}
	if m.Room == 0 {
		m.Room = r.roomID
	}
	if err := m.Validate(); err != nil {
		r.cfg.log.Warn("ws.frame.invalid", "socket", "chat", "room", r.roomID, "err", err)
		return
	}
	r.onMessage(m)
}
