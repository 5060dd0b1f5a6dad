package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"vivahvows/cmd/internal/auth/session"
	"vivahvows/cmd/internal/gateway"
	"vivahvows/cmd/security/token"
)

// SessionEvents is the subset of *gateway.Gateway the hub listens to.
type SessionEvents interface {
	OnSessionCleared(gateway.SessionClearedFunc)
	OnTokenRotated(gateway.TokenRotatedFunc)
}

// Refresher exchanges the refresh token for a new access token.
// *gateway.Gateway satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) (session.Credentials, error)
}

// Hub keeps a Channel in step with the session: open while an access token
// is stored, reopened when the token rotates, closed when it disappears.
//
// Triggers only wake the reconcile loop; a channel that went down on its own
// stays down until the next trigger.
type Hub struct {
	ch      *Channel
	tokens  TokenSource
	refresh Refresher
	log     *slog.Logger
	now     func() time.Time

	kick chan struct{}

	mu    sync.Mutex
	rooms map[int64]*RoomChannel
}

// NewHub wires the channel to session events. Start runs the loop. If
// events can also refresh, an access token that has already expired is
// refreshed before the channel dials with it.
func NewHub(ch *Channel, tokens TokenSource, events SessionEvents, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	h := &Hub{
		ch:     ch,
		tokens: tokens,
		log:    log,
		now:    time.Now,
		kick:   make(chan struct{}, 1),
		rooms:  make(map[int64]*RoomChannel),
	}
	if r, ok := events.(Refresher); ok {
		h.refresh = r
	}
	if events != nil {
		events.OnTokenRotated(func(session.Credentials) { h.Kick() })
		events.OnSessionCleared(func(string) { h.Kick() })
	}
	return h
}

// Kick requests a reconcile. It never blocks.
func (h *Hub) Kick() {
	select {
	case h.kick <- struct{}{}:
	default:
	}
}

// Start reconciles once and then on every trigger until ctx is done. If the
// token source can report external changes, those are triggers too.
func (h *Hub) Start(ctx context.Context) error {
	if w, ok := h.tokens.(session.Watcher); ok {
		changes, err := w.Watch(ctx)
		if err != nil {
			h.log.Warn("hub.watch_unavailable", "err", err)
		} else {
			go func() {
				for range changes {
					h.Kick()
				}
			}()
		}
	}

	h.reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			h.ch.Close()
			h.closeRooms()
			return nil
		case <-h.kick:
			h.reconcile(ctx)
		}
	}
}

func (h *Hub) reconcile(ctx context.Context) {
	snap, ok := h.tokens.Get(ctx)
	if !ok || snap.Access == "" {
		if h.ch.IsOpen() {
			h.log.Info("hub.session_gone")
		}
		h.ch.Close()
		h.closeRooms()
		return
	}

	if h.ch.IsOpen() && h.ch.Token() == snap.Access {
		return
	}

	if h.expired(snap.Access) {
		if h.refresh == nil {
			h.log.Info("hub.token_expired", "access_fp", token.Fingerprint(snap.Access))
			return
		}
		if _, err := h.refresh.Refresh(ctx); err != nil {
			h.log.Warn("hub.refresh_failed", "err", err)
			return
		}
	}

	// Open replaces a socket dialed with an older token.
	if err := h.ch.Open(ctx); err != nil && !errors.Is(err, ErrNoToken) {
		h.log.Warn("hub.open_failed", "err", err)
	}
}

// expired reports whether access is a JWT past its exp. Opaque tokens are
// never treated as expired; the server decides.
func (h *Hub) expired(access string) bool {
	c, err := token.Inspect(access)
	if err != nil {
		return false
	}
	return c.Expired(h.now(), 0)
}

// Room returns the chat socket for roomID, opening it if needed.
func (h *Hub) Room(ctx context.Context, opts RoomOptions) (*RoomChannel, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.rooms[opts.RoomID]; ok {
		// Open is a no-op for a live socket and redials one that went down.
		if err := r.Open(ctx); err != nil {
			return nil, err
		}
		return r, nil
	}
	if opts.Tokens == nil {
		opts.Tokens = h.tokens
	}
	r, err := NewRoomChannel(opts)
	if err != nil {
		return nil, err
	}
	if err := r.Open(ctx); err != nil {
		return nil, err
	}
	h.rooms[opts.RoomID] = r
	return r, nil
}

// LeaveRoom closes and forgets a room socket.
func (h *Hub) LeaveRoom(roomID int64) {
	h.mu.Lock()
	r := h.rooms[roomID]
	delete(h.rooms, roomID)
	h.mu.Unlock()
	if r != nil {
		r.Close()
	}
}

func (h *Hub) closeRooms() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[int64]*RoomChannel)
	h.mu.Unlock()
	for _, r := range rooms {
		r.Close()
	}
}
