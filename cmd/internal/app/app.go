// Package app wires the vivah runtime: config, logging, the session store,
// the gateway and controller, the realtime hub and the command tree.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	v1 "vivahvows/shared/contracts/realtime/v1"

	"vivahvows/cmd/internal/api"
	"vivahvows/cmd/internal/auth/lifecycle"
	"vivahvows/cmd/internal/auth/session"
	"vivahvows/cmd/internal/gateway"
	"vivahvows/cmd/internal/metrics"
	"vivahvows/cmd/internal/realtime"
	"vivahvows/cmd/security/password"
)

const pingTimeout = 2 * time.Second

// Version is stamped at build time with -ldflags "-X ...app.Version=...".
var Version = "dev"

// App owns every long-lived client component for one configured account.
type App struct {
	cfg Config
	log *slog.Logger

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	store session.Store
	probe func(context.Context) error

	Gateway    *gateway.Gateway
	Controller *lifecycle.Controller

	Profiles      *api.Profiles
	Match         *api.Match
	Chat          *api.Chat
	Notifications *api.Notifications

	Feed    *realtime.Feed
	Channel *realtime.Channel
	Hub     *realtime.Hub

	listenMu  sync.Mutex
	listeners []eventListener
}

// New constructs a fully wired App. It does not touch the network beyond
// connecting to a remote session store.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.Log.Level, cfg.Log.Format, nil)
	}
	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	policy, err := password.FromEnv()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	gw, err := gateway.New(gateway.Options{
		BaseURL:        cfg.BaseURL(),
		HTTPClient:     &http.Client{Timeout: cfg.API.Timeout},
		Store:          st.Store,
		Logger:         log,
		Metrics:        m,
		UserAgent:      "vivahvows-go/" + Version,
		RefreshTimeout: cfg.API.RefreshTimeout,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		registry: reg,
		metrics:  m,
		store:    st.Store,
		probe:    st.probe,
		Gateway:  gw,
		Controller: lifecycle.New(gw, lifecycle.Options{
			Policy: policy,
			Logger: log,
		}),
		Profiles:      api.NewProfiles(gw),
		Match:         api.NewMatch(gw),
		Chat:          api.NewChat(gw),
		Notifications: api.NewNotifications(gw),
		Feed:          realtime.NewFeed(0),
	}

	ch, err := realtime.NewChannel(realtime.ChannelOptions{
		Origin:            cfg.WS.Origin,
		Tokens:            st.Store,
		Sink:              a.onEvent,
		HeartbeatInterval: cfg.WS.HeartbeatInterval,
		HeartbeatTimeout:  cfg.WS.HeartbeatTimeout,
		Logger:            log,
		Metrics:           m,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	a.Channel = ch
	a.Hub = realtime.NewHub(ch, st.Store, gw, log)
	return a, nil
}

func (a *App) Config() Config                 { return a.cfg }
func (a *App) Logger() *slog.Logger           { return a.log }
func (a *App) Registry() *prometheus.Registry { return a.registry }

// Close releases the channel and the session store.
func (a *App) Close() error {
	a.Channel.Close()
	return a.store.Close()
}

// Ready reports whether the store backend answers and, when required, a
// session is present.
func (a *App) Ready(ctx context.Context) error {
	if err := a.probe(ctx); err != nil {
		return err
	}
	if a.cfg.Agent.ReadinessRequireSession {
		if _, ok := a.store.Get(ctx); !ok {
			return errors.New("no session")
		}
	}
	return nil
}

// SyncNotifications replaces the feed with the server's list.
func (a *App) SyncNotifications(ctx context.Context) error {
	list, err := a.Notifications.List(ctx, false)
	if err != nil {
		return err
	}
	a.Feed.Load(list)
	return nil
}

// MarkRead flips a feed item to read. Items loaded from the server are also
// marked read there first; a failure leaves the feed untouched.
func (a *App) MarkRead(ctx context.Context, id string) (realtime.Event, error) {
	ev, ok := a.Feed.Find(id)
	if !ok {
		return realtime.Event{}, errNotInFeed
	}
	if ev.ServerID > 0 && !ev.IsRead {
		if _, err := a.Notifications.MarkRead(ctx, ev.ServerID); err != nil {
			return realtime.Event{}, err
		}
	}
	a.Feed.MarkRead(id)
	ev, _ = a.Feed.Find(id)
	return ev, nil
}

var errNotInFeed = errors.New("notification not found")

type eventListener func(realtime.Event)

// OnEvent registers fn to receive every realtime event after it reaches the
// feed. fn runs on the channel's read goroutine.
func (a *App) OnEvent(fn func(realtime.Event)) {
	a.listenMu.Lock()
	a.listeners = append(a.listeners, fn)
	a.listenMu.Unlock()
}

func (a *App) onEvent(ev realtime.Event) {
	a.Feed.Push(ev)

	a.listenMu.Lock()
	fns := append([]eventListener(nil), a.listeners...)
	a.listenMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}

	if ev.Event == v1.EventDisconnected {
		a.log.Warn("realtime.disconnected", "payload", string(ev.Payload))
		return
	}
	a.log.Info("realtime.event", "event", ev.Event, "id", ev.ID)
}
