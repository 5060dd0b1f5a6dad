package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "vivahvows/shared/contracts/realtime/v1"

	"vivahvows/cmd/internal/auth/session"
	"vivahvows/cmd/internal/gateway"
)

// wsServer is a fake backend socket endpoint.
type wsServer struct {
	*httptest.Server

	conns    chan *websocket.Conn
	tokens   chan string
	paths    chan string
	received chan []byte

	// silent handlers never read, so pings go unanswered.
	silent bool
}

func newWSServer(t *testing.T, silent bool) *wsServer {
	t.Helper()
	s := &wsServer{
		conns:    make(chan *websocket.Conn, 8),
		tokens:   make(chan string, 8),
		paths:    make(chan string, 8),
		received: make(chan []byte, 32),
		silent:   silent,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := r.URL.Query().Get(v1.TokenQueryParam)
		if tok == "reject" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		s.tokens <- tok
		s.paths <- r.URL.Path
		s.conns <- conn

		if s.silent {
			<-r.Context().Done()
			return
		}
		for {
			_, data, err := conn.Read(context.Background())
			if err != nil {
				return
			}
			s.received <- data
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsServer) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-s.conns:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no websocket connection")
		return nil
	}
}

func (s *wsServer) nextToken(t *testing.T) string {
	t.Helper()
	select {
	case tok := <-s.tokens:
		return tok
	case <-time.After(5 * time.Second):
		t.Fatal("no websocket handshake")
		return ""
	}
}

func push(t *testing.T, c *websocket.Conn, raw string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(raw)))
}

type sinkRecorder struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newSinkRecorder() *sinkRecorder {
	return &sinkRecorder{ch: make(chan Event, 32)}
}

func (r *sinkRecorder) sink(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.ch <- ev
}

func (r *sinkRecorder) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-r.ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
		return Event{}
	}
}

func storeWith(t *testing.T, access string) *session.MemoryStore {
	t.Helper()
	s := session.NewMemoryStore()
	if access != "" {
		require.NoError(t, s.Set(context.Background(), session.Snapshot{
			Credentials: session.Credentials{Access: access, Refresh: "ref1"},
		}))
	}
	return s
}

func newTestChannel(t *testing.T, srv *wsServer, store TokenSource, rec *sinkRecorder) *Channel {
	t.Helper()
	ch, err := NewChannel(ChannelOptions{
		Origin: srv.URL,
		Tokens: store,
		Sink:   rec.sink,
	})
	require.NoError(t, err)
	t.Cleanup(ch.Close)
	return ch
}

func TestChannel_OpenWithoutToken(t *testing.T) {
	srv := newWSServer(t, false)
	ch := newTestChannel(t, srv, storeWith(t, ""), newSinkRecorder())

	require.ErrorIs(t, ch.Open(context.Background()), ErrNoToken)
	assert.False(t, ch.IsOpen())
}

func TestChannel_DeliversEventsAndDropsMalformed(t *testing.T) {
	srv := newWSServer(t, false)
	rec := newSinkRecorder()
	ch := newTestChannel(t, srv, storeWith(t, "tok1"), rec)

	require.NoError(t, ch.Open(context.Background()))
	assert.Equal(t, "tok1", srv.nextToken(t))
	assert.Equal(t, v1.NotificationsPath, <-srv.paths)
	conn := srv.nextConn(t)

	push(t, conn, `{"event":"like","payload":{"from_user":7}}`)
	push(t, conn, `not json`)
	push(t, conn, `{"payload":{}}`)
	push(t, conn, `{"event":"match","payload":{"match_id":3}}`)

	first := rec.next(t)
	second := rec.next(t)
	assert.Equal(t, "like", first.Event)
	assert.JSONEq(t, `{"from_user":7}`, string(first.Payload))
	assert.False(t, first.Local)
	assert.False(t, first.IsRead)
	assert.Equal(t, "match", second.Event)
	assert.Less(t, first.ID, second.ID, "ids sort in arrival order")

	assert.True(t, ch.IsOpen(), "malformed frames are not fatal")
}

func TestChannel_ServerCloseEmitsDisconnected(t *testing.T) {
	srv := newWSServer(t, false)
	rec := newSinkRecorder()
	ch := newTestChannel(t, srv, storeWith(t, "tok1"), rec)

	require.NoError(t, ch.Open(context.Background()))
	conn := srv.nextConn(t)
	_ = conn.Close(websocket.StatusPolicyViolation, "token expired")

	ev := rec.next(t)
	assert.Equal(t, v1.EventDisconnected, ev.Event)
	assert.True(t, ev.Local)
	assert.Contains(t, string(ev.Payload), "closed by server")
	assert.Eventually(t, func() bool { return !ch.IsOpen() }, 2*time.Second, 10*time.Millisecond)
}

func TestChannel_CloseIsIdempotentAndQuiet(t *testing.T) {
	srv := newWSServer(t, false)
	rec := newSinkRecorder()
	ch := newTestChannel(t, srv, storeWith(t, "tok1"), rec)

	require.NoError(t, ch.Open(context.Background()))
	srv.nextConn(t)

	ch.Close()
	ch.Close()
	assert.False(t, ch.IsOpen())

	select {
	case ev := <-rec.ch:
		t.Fatalf("unexpected event after Close: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestChannel_ReopenUsesLatestToken(t *testing.T) {
	srv := newWSServer(t, false)
	store := storeWith(t, "tok1")
	ch := newTestChannel(t, srv, store, newSinkRecorder())

	require.NoError(t, ch.Open(context.Background()))
	assert.Equal(t, "tok1", srv.nextToken(t))

	// Same token: no new dial.
	require.NoError(t, ch.Open(context.Background()))

	require.NoError(t, store.Set(context.Background(), session.Snapshot{
		Credentials: session.Credentials{Access: "tok2", Refresh: "ref1"},
	}))
	require.NoError(t, ch.Reopen(context.Background()))
	assert.Equal(t, "tok2", srv.nextToken(t))
	assert.Equal(t, "tok2", ch.Token())
}

func TestChannel_DialRejected(t *testing.T) {
	srv := newWSServer(t, false)
	ch := newTestChannel(t, srv, storeWith(t, "reject"), newSinkRecorder())

	err := ch.Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.False(t, ch.IsOpen())
}

func TestChannel_HeartbeatFailureDisconnects(t *testing.T) {
	srv := newWSServer(t, true)
	rec := newSinkRecorder()
	ch, err := NewChannel(ChannelOptions{
		Origin:            srv.URL,
		Tokens:            storeWith(t, "tok1"),
		Sink:              rec.sink,
		HeartbeatInterval: 20 * time.Millisecond,
		HeartbeatTimeout:  20 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(ch.Close)

	require.NoError(t, ch.Open(context.Background()))

	ev := rec.next(t)
	assert.Equal(t, v1.EventDisconnected, ev.Event)
	assert.Contains(t, string(ev.Payload), "heartbeat failed")
}

type fakeEvents struct {
	mu      sync.Mutex
	cleared []gateway.SessionClearedFunc
	rotated []gateway.TokenRotatedFunc
}

func (f *fakeEvents) OnSessionCleared(fn gateway.SessionClearedFunc) {
	f.mu.Lock()
	f.cleared = append(f.cleared, fn)
	f.mu.Unlock()
}

func (f *fakeEvents) OnTokenRotated(fn gateway.TokenRotatedFunc) {
	f.mu.Lock()
	f.rotated = append(f.rotated, fn)
	f.mu.Unlock()
}

func (f *fakeEvents) rotate(c session.Credentials) {
	f.mu.Lock()
	hooks := append([]gateway.TokenRotatedFunc(nil), f.rotated...)
	f.mu.Unlock()
	for _, fn := range hooks {
		fn(c)
	}
}

func (f *fakeEvents) clear(reason string) {
	f.mu.Lock()
	hooks := append([]gateway.SessionClearedFunc(nil), f.cleared...)
	f.mu.Unlock()
	for _, fn := range hooks {
		fn(reason)
	}
}

func TestHub_FollowsSession(t *testing.T) {
	srv := newWSServer(t, false)
	store := storeWith(t, "tok1")
	ch := newTestChannel(t, srv, store, newSinkRecorder())
	events := &fakeEvents{}
	hub := NewHub(ch, store, events, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Start(ctx) }()

	assert.Equal(t, "tok1", srv.nextToken(t))

	creds := session.Credentials{Access: "tok2", Refresh: "ref2"}
	require.NoError(t, store.Set(context.Background(), session.Snapshot{Credentials: creds}))
	events.rotate(creds)
	assert.Equal(t, "tok2", srv.nextToken(t))

	require.NoError(t, store.Clear(context.Background()))
	events.clear(gateway.ClearedLogout)
	assert.Eventually(t, func() bool { return !ch.IsOpen() }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("hub did not stop")
	}
}

// refreshingEvents is fakeEvents that can also refresh, storing next.
type refreshingEvents struct {
	fakeEvents
	store *session.MemoryStore
	next  string
	calls atomic.Int32
}

func (r *refreshingEvents) Refresh(ctx context.Context) (session.Credentials, error) {
	r.calls.Add(1)
	creds := session.Credentials{Access: r.next, Refresh: "ref2"}
	if err := r.store.Set(ctx, session.Snapshot{Credentials: creds}); err != nil {
		return session.Credentials{}, err
	}
	r.rotate(creds)
	return creds, nil
}

func expiredJWT(t *testing.T) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1,
		"exp":     time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func TestHub_RefreshesExpiredTokenBeforeDialing(t *testing.T) {
	srv := newWSServer(t, false)
	store := storeWith(t, expiredJWT(t))
	ch := newTestChannel(t, srv, store, newSinkRecorder())
	events := &refreshingEvents{store: store, next: "fresh"}
	hub := NewHub(ch, store, events, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Start(ctx) }()

	assert.Equal(t, "fresh", srv.nextToken(t))
	assert.Equal(t, int32(1), events.calls.Load())
}

func TestHub_ExpiredTokenWithoutRefresherStaysDown(t *testing.T) {
	srv := newWSServer(t, false)
	store := storeWith(t, expiredJWT(t))
	ch := newTestChannel(t, srv, store, newSinkRecorder())
	hub := NewHub(ch, store, &fakeEvents{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Start(ctx) }()

	select {
	case tok := <-srv.tokens:
		t.Fatalf("dialed with expired token %q", tok)
	case <-time.After(150 * time.Millisecond):
	}
	assert.False(t, ch.IsOpen())
}

func TestRoomChannel_SendAndReceive(t *testing.T) {
	srv := newWSServer(t, false)
	got := make(chan v1.ChatMessageFrame, 4)

	room, err := NewRoomChannel(RoomOptions{
		ChannelOptions: ChannelOptions{Origin: srv.URL, Tokens: storeWith(t, "tok1")},
		RoomID:         12,
		OnMessage:      func(m v1.ChatMessageFrame) { got <- m },
		SendLimit:      2,
		SendWindow:     time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(room.Close)

	require.ErrorIs(t, room.Send(context.Background(), "early"), ErrRoomClosed)

	require.NoError(t, room.Open(context.Background()))
	assert.Equal(t, "/ws/chat/12/", <-srv.paths)
	conn := srv.nextConn(t)

	require.NoError(t, room.Send(context.Background(), "  namaste  "))
	select {
	case raw := <-srv.received:
		var f v1.ChatSendFrame
		require.NoError(t, json.Unmarshal(raw, &f))
		assert.Equal(t, "namaste", f.Message)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not receive message")
	}

	require.ErrorIs(t, room.Send(context.Background(), "   "), ErrEmptyMessage)
	require.NoError(t, room.Send(context.Background(), "second"))
	require.ErrorIs(t, room.Send(context.Background(), "third"), ErrRateLimited)

	push(t, conn, `{"id":5,"room":12,"sender":7,"content":"hello back","created_at":"2026-01-02T03:04:05Z"}`)
	push(t, conn, `{"id":0}`)
	select {
	case m := <-got:
		assert.Equal(t, "hello back", m.Content)
		assert.Equal(t, int64(7), m.Sender)
	case <-time.After(5 * time.Second):
		t.Fatal("no chat message")
	}
}

func TestSocketURL(t *testing.T) {
	u, err := socketURL("http://localhost:8000", v1.NotificationsPath, "a b")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8000/ws/notifications/?token=a+b", u)

	u, err = socketURL("https://api.vivahvows.in/", v1.ChatRoomPath(3), "t")
	require.NoError(t, err)
	assert.Equal(t, "wss://api.vivahvows.in/ws/chat/3/?token=t", u)

	_, err = socketURL("ftp://x", v1.NotificationsPath, "t")
	require.Error(t, err)
	_, err = socketURL("localhost:8000", v1.NotificationsPath, "t")
	require.Error(t, err)
}
