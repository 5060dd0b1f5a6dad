package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	v1 "vivahvows/shared/contracts/realtime/v1"

	"vivahvows/cmd/internal/auth/session"
	"vivahvows/cmd/internal/metrics"
	"vivahvows/cmd/security/token"
)

// ErrNoToken is returned by Open when no access token is stored.
var ErrNoToken = errors.New("no access token")

// TokenSource yields the current credentials. session.Store satisfies it.
type TokenSource interface {
	Get(ctx context.Context) (session.Snapshot, bool)
}

// ChannelOptions configures a notification Channel.
type ChannelOptions struct {
	// Origin is the realtime origin, e.g. http://localhost:8000.
	Origin string
	Tokens TokenSource
	Sink   Sink

	HTTPClient        *http.Client
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	Logger            *slog.Logger
	Metrics           *metrics.Metrics
}

// Channel is the per-user notification stream.
type Channel struct {
	origin  string
	tokens  TokenSource
	sink    Sink
	cfg     socketConfig
	log     *slog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	sock  *socket
	token string
}

func NewChannel(opts ChannelOptions) (*Channel, error) {
	if opts.Tokens == nil {
		return nil, errors.New("realtime: token source is required")
	}
	if _, err := socketURL(opts.Origin, v1.NotificationsPath, "x"); err != nil {
		return nil, err
	}
	sink := opts.Sink
	if sink == nil {
		sink = func(Event) {}
	}
	cfg := socketConfig{
		heartbeatEvery:   opts.HeartbeatInterval,
		heartbeatTimeout: opts.HeartbeatTimeout,
		httpClient:       opts.HTTPClient,
		log:              opts.Logger,
	}.withDefaults()

	return &Channel{
		origin:  opts.Origin,
		tokens:  opts.Tokens,
		sink:    sink,
		cfg:     cfg,
		log:     cfg.log,
		metrics: opts.Metrics,
	}, nil
}

// Open connects with the current access token. It is a no-op when already
// open with that token.
func (c *Channel) Open(ctx context.Context) error {
	snap, ok := c.tokens.Get(ctx)
	if !ok || snap.Access == "" {
		return ErrNoToken
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sock != nil {
		if c.token == snap.Access {
			return nil
		}
		c.closeLocked()
	}

	u, err := socketURL(c.origin, v1.NotificationsPath, snap.Access)
	if err != nil {
		return err
	}
	s, err := dialSocket(ctx, u, "notifications", c.cfg)
	if err != nil {
		return err
	}

	c.sock = s
	c.token = snap.Access
	c.metrics.ConnOpened()
	c.log.Info("ws.open", "socket", "notifications", "token_fp", token.Fingerprint(snap.Access))

	s.run(c.onFrame, func(reason string) { c.onDown(s, reason) })
	return nil
}

// Reopen closes the current socket (if any) and opens a new one with the
// current token. This is the only reconnect path.
func (c *Channel) Reopen(ctx context.Context) error {
	c.Close()
	return c.Open(ctx)
}

// Close closes the socket. It is idempotent and safe to call concurrently.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

// IsOpen reports whether a socket is currently held.
func (c *Channel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock != nil
}

// Token returns the access token the open socket was dialed with.
func (c *Channel) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Channel) closeLocked() {
	if c.sock == nil {
		return
	}
	c.sock.close()
	c.sock = nil
	c.token = ""
	c.metrics.ConnClosed()
	c.log.Info("ws.close", "socket", "notifications")
}

func (c *Channel) onFrame(data []byte) {
	var f v1.NotificationFrame
	if err := json.Unmarshal(data, &f); err != nil {
		c.log.Warn("ws.frame.malformed", "socket", "notifications", "err", err, "bytes", len(data))
		return
	}
	if err := f.Validate(); err != nil {
		c.log.Warn("ws.frame.invalid", "socket", "notifications", "err", err)
		return
	}
	c.metrics.ObserveEvent(f.Event)
	c.sink(eventFromFrame(f, time.Now().UTC()))
}

// onDown handles an unrequested socket end: drop the socket and tell the sink.
func (c *Channel) onDown(s *socket, reason string) {
	c.mu.Lock()
	current := c.sock == s
	if current {
		c.sock = nil
		c.token = ""
		c.metrics.ConnClosed()
	}
	c.mu.Unlock()

	if !current {
		return
	}
	c.metrics.ObserveEvent(v1.EventDisconnected)
	c.sink(disconnectedEvent(reason, time.Now().UTC()))
}
