package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	v1 "vivahvows/shared/contracts/realtime/v1"
)

// socketConfig is shared by notification and chat sockets.
type socketConfig struct {
	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration
	httpClient       *http.Client
	log              *slog.Logger
}

func (c socketConfig) withDefaults() socketConfig {
	if c.heartbeatEvery <= 0 {
		c.heartbeatEvery = heartbeatInterval
	}
	if c.heartbeatTimeout <= 0 {
		c.heartbeatTimeout = heartbeatTimeout
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// socket is one websocket connection plus its read and heartbeat loops.
type socket struct {
	conn *websocket.Conn
	cfg  socketConfig
	name string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce    sync.Once
	closedByUser atomic.Bool
	downReason   atomic.Value // string
}

func dialSocket(ctx context.Context, rawURL, name string, cfg socketConfig) (*socket, error) {
	conn, resp, err := websocket.Dial(ctx, rawURL, &websocket.DialOptions{HTTPClient: cfg.httpClient})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", name, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", name, err)
	}
	conn.SetReadLimit(maxFrameBytes)

	// The socket outlives the dial context.
	sctx, cancel := context.WithCancel(context.Background())
	return &socket{
		conn:   conn,
		cfg:    cfg,
		name:   name,
		ctx:    sctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}, nil
}

// run starts the loops. onFrame gets each data frame in order. onDown runs
// once, after shutdown, when the socket ended for any reason other than close.
func (s *socket) run(onFrame func([]byte), onDown func(reason string)) {
	go s.heartbeat()

	go func() {
		defer close(s.done)

		for {
			mt, data, err := s.conn.Read(s.ctx)
			if err != nil {
				reason := s.reason(err)
				s.shutdown(websocket.StatusNormalClosure, "bye")
				if !s.closedByUser.Load() {
					s.cfg.log.Info("ws.down", "socket", s.name, "reason", reason, "close_status", websocket.CloseStatus(err))
					onDown(reason)
				}
				return
			}
			if mt != websocket.MessageText && mt != websocket.MessageBinary {
				continue
			}
			onFrame(data)
		}
	}()
}

func (s *socket) heartbeat() {
	t := time.NewTicker(s.cfg.heartbeatEvery)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			hbCtx, hbCancel := context.WithTimeout(s.ctx, s.cfg.heartbeatTimeout)
			err := s.conn.Ping(hbCtx)
			hbCancel()

			if err != nil {
				if s.ctx.Err() != nil {
					return
				}
				failures++
				s.cfg.log.Info("ws.ping.fail", "socket", s.name, "failures", failures, "err", err)
				if failures >= maxPingFailures {
					s.downReason.Store("heartbeat failed")
					s.shutdown(websocket.StatusGoingAway, "heartbeat failed")
					return
				}
				continue
			}
			failures = 0
		}
	}
}

func (s *socket) write(ctx context.Context, b []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return s.conn.Write(wctx, websocket.MessageText, b)
}

// close is the caller-initiated close. It never triggers onDown.
func (s *socket) close() {
	s.closedByUser.Store(true)
	s.shutdown(websocket.StatusNormalClosure, "bye")

	select {
	case <-s.done:
	case <-time.After(closeGrace):
	}
}

// shutdown is idempotent.
func (s *socket) shutdown(code websocket.StatusCode, reason string) {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.conn.Close(code, reason)
	})
}

func (s *socket) reason(err error) string {
	if r, ok := s.downReason.Load().(string); ok && r != "" {
		return r
	}
	switch classifyReadErr(err) {
	case readErrClose:
		return fmt.Sprintf("closed by server (%d)", websocket.CloseStatus(err))
	case readErrCtxDone:
		return "context done"
	case readErrConnClosed:
		return "connection lost"
	default:
		return "read failed"
	}
}

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}
	return readErrUnknown
}

// socketURL maps an http(s) origin to the ws(s) URL for path with the token
// query parameter.
func socketURL(origin, path, tok string) (string, error) {
	u, err := url.Parse(strings.TrimRight(origin, "/"))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid realtime origin %q", origin)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported realtime scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	q := url.Values{}
	q.Set(v1.TokenQueryParam, tok)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
