// Package main provides a CI-friendly WebSocket smoke test for the VivahVows
// realtime endpoints.
//
// It validates:
//   - notification socket handshake with a bearer token on the query string
//   - structural validity of any notification frames seen within -wait
//   - optionally, chat room fanout between two sockets on the same room
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"

	v1 "vivahvows/shared/contracts/realtime/v1"
)

const maxReadBytes = 1 << 20 // 1MiB

type smokeClient struct {
	name string
	conn *websocket.Conn

	inbox chan []byte
	errCh chan error
}

func main() {
	var (
		origin  = flag.String("origin", "http://localhost:8000", "Realtime origin (http/https or ws/wss)")
		tok     = flag.String("token", "", "Access token (defaults to $VIVAH_ACCESS_TOKEN)")
		room    = flag.Int64("room", 0, "Chat room ID for the fanout check (0 skips it)")
		text    = flag.String("text", "namaste from ws-smoke", "Chat message to send")
		wait    = flag.Duration("wait", 0, "How long to listen for notification frames")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	access := strings.TrimSpace(*tok)
	if access == "" {
		access = strings.TrimSpace(os.Getenv("VIVAH_ACCESS_TOKEN"))
	}
	if access == "" {
		fatalf("missing -token (or VIVAH_ACCESS_TOKEN)")
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}

	root := context.Background()

	notifURL := mustSocketURL(*origin, v1.NotificationsPath, access)
	n := mustConnect(root, "notifications", notifURL, *timeout)
	defer closeWS(n.conn)

	if *verbose {
		fmt.Printf("connected: notifications origin=%q\n", *origin)
	}

	seen := drainNotifications(root, n, *wait, *verbose)

	if *room <= 0 {
		fmt.Printf("OK: notifications frames=%d\n", seen)
		return
	}

	roomURL := mustSocketURL(*origin, v1.ChatRoomPath(*room), access)
	a := mustConnect(root, "A", roomURL, *timeout)
	defer closeWS(a.conn)
	b := mustConnect(root, "B", roomURL, *timeout)
	defer closeWS(b.conn)

	if *verbose {
		fmt.Printf("connected: A and B to room=%d\n", *room)
	}

	want := strings.TrimSpace(*text)
	if want == "" {
		fatalf("-text must not be blank")
	}
	mustWriteWithTimeout(root, a.conn, v1.ChatSendFrame{Message: want}, *timeout)

	gotB := b.mustReadMessage(root, want, *timeout)
	gotA := a.mustReadMessage(root, want, *timeout)

	if gotA.ID != gotB.ID {
		fatalf("fanout: id mismatch: A=%d B=%d", gotA.ID, gotB.ID)
	}
	if gotB.Room != *room {
		fatalf("fanout: room mismatch: got=%d want=%d", gotB.Room, *room)
	}

	fmt.Printf("OK: notifications frames=%d room=%d message_id=%d sender=%d\n", seen, *room, gotB.ID, gotB.Sender)
}

func validateOrigin(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func mustSocketURL(origin, path, access string) string {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(origin), "/"))
	if err != nil {
		fatalf("parse origin: %v", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	q := url.Values{}
	q.Set(v1.TokenQueryParam, access)
	u.RawQuery = q.Encode()
	return u.String()
}

func mustConnect(parent context.Context, name, wsURL string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"User-Agent": []string{"vivahvows-ws-smoke"}},
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			fatalf("connect %s: status=%d: %v", name, resp.StatusCode, err)
		}
		fatalf("connect %s: %v", name, err)
	}

	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		name:  name,
		conn:  conn,
		inbox: make(chan []byte, 512),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()
	return c
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			mt, data, err := c.conn.Read(context.Background())
			if err != nil {
				select {
				case c.errCh <- err:
				default:
				}
				return
			}

			if mt != websocket.MessageText {
				select {
				case c.errCh <- fmt.Errorf("unsupported message type: %v", mt):
				default:
				}
				return
			}

			select {
			case c.inbox <- data:
			default:
				select {
				case c.errCh <- errors.New("inbox overflow: consumer too slow"):
				default:
				}
				return
			}
		}
	}()
}

// drainNotifications reads frames for d and fails on the first invalid one.
func drainNotifications(parent context.Context, c *smokeClient, d time.Duration, verbose bool) int {
	if d <= 0 {
		return 0
	}
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return n
		case err := <-c.errCh:
			fatalf("notification socket error: %v", err)
		case data, ok := <-c.inbox:
			if !ok {
				fatalf("notification socket closed after %d frames", n)
			}
			var f v1.NotificationFrame
			if err := json.Unmarshal(data, &f); err != nil {
				fatalf("bad notification json: %v", err)
			}
			if err := f.Validate(); err != nil {
				fatalf("bad notification frame: %v", err)
			}
			n++
			if verbose {
				fmt.Printf("notification: event=%s payload=%s\n", f.Event, string(f.Payload))
			}
		}
	}
}

// mustReadMessage waits for a chat frame carrying want. Frames for other
// messages in the room are skipped.
func (c *smokeClient) mustReadMessage(parent context.Context, want string, stepTimeout time.Duration) v1.ChatMessageFrame {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for message %q (%s): %v", want, c.name, ctx.Err())
		case err := <-c.errCh:
			fatalf("connection error while waiting for message (%s): %v", c.name, err)
		case data, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for message (%s)", c.name)
			}
			var m v1.ChatMessageFrame
			if err := json.Unmarshal(data, &m); err != nil {
				fatalf("bad chat json (%s): %v", c.name, err)
			}
			if err := m.Validate(); err != nil {
				fatalf("bad chat frame (%s): %v", c.name, err)
			}
			if m.Content == want {
				return m
			}
		}
	}
}

func mustWriteWithTimeout(parent context.Context, conn *websocket.Conn, v any, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(v)
	if err != nil {
		fatalf("marshal frame: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
