package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	apiv1 "vivahvows/shared/contracts/api/v1"

	"vivahvows/cmd/internal/auth/session"
	"vivahvows/cmd/internal/gateway"
	"vivahvows/cmd/internal/realtime"
	"vivahvows/cmd/security/token"
)

type sessionResponse struct {
	State       string            `json:"state"`
	Loading     bool              `json:"loading"`
	User        *session.Identity `json:"user"`
	Profile     *apiv1.Profile    `json:"profile"`
	ChannelOpen bool              `json:"channel_open"`

	// AccessExpiresAt is read from the access token's exp claim, when it has one.
	AccessExpiresAt *time.Time `json:"access_expires_at,omitempty"`
}

type eventResponse struct {
	ID         string          `json:"id"`
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
	IsRead     bool            `json:"is_read"`
	Local      bool            `json:"local,omitempty"`
	ServerID   int64           `json:"server_id,omitempty"`
}

type feedResponse struct {
	Unread int             `json:"unread"`
	Items  []eventResponse `json:"items"`
}

type markReadRequest struct {
	IDs []string `json:"ids"`
	All bool     `json:"all"`
}

func toEventResponse(ev realtime.Event) eventResponse {
	return eventResponse{
		ID:         ev.ID,
		Event:      ev.Event,
		Payload:    ev.Payload,
		ReceivedAt: ev.ReceivedAt,
		IsRead:     ev.IsRead,
		Local:      ev.Local,
		ServerID:   ev.ServerID,
	}
}

func (a *App) feedResponse() feedResponse {
	return a.feedResponseOf(a.Feed.Items())
}

func (a *App) feedResponseOf(items []realtime.Event) feedResponse {
	out := feedResponse{Unread: a.Feed.Unread(), Items: make([]eventResponse, 0, len(items))}
	for _, ev := range items {
		out.Items = append(out.Items, toEventResponse(ev))
	}
	return out
}

// registerHTTP mounts the agent's local API.
func (a *App) registerHTTP(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.Ready(r.Context()); err != nil {
			a.log.Info("readyz.not_ready", "err", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.Handle("GET /metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /session", func(w http.ResponseWriter, r *http.Request) {
		c := a.Controller
		resp := sessionResponse{
			State:       c.State().String(),
			Loading:     c.Loading(),
			User:        c.User(),
			Profile:     c.Profile(),
			ChannelOpen: a.Channel.IsOpen(),
		}
		if snap, ok := a.store.Get(r.Context()); ok {
			if exp, err := token.ExpiresAt(snap.Access); err == nil {
				resp.AccessExpiresAt = &exp
			}
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("GET /notifications", func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("since")
		if raw == "" {
			writeJSON(w, http.StatusOK, a.feedResponse())
			return
		}
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_since", "since must be an RFC 3339 timestamp")
			return
		}
		writeJSON(w, http.StatusOK, a.feedResponseOf(a.Feed.Since(since)))
	})

	mux.HandleFunc("POST /notifications/sync", func(w http.ResponseWriter, r *http.Request) {
		if err := a.SyncNotifications(r.Context()); err != nil {
			a.writeUpstreamError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a.feedResponse())
	})

	mux.HandleFunc("POST /notifications/read", func(w http.ResponseWriter, r *http.Request) {
		var req markReadRequest
		if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		if req.All {
			a.Feed.MarkAllRead()
			writeJSON(w, http.StatusOK, a.feedResponse())
			return
		}
		if len(req.IDs) == 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "ids or all is required")
			return
		}
		for _, id := range req.IDs {
			if _, err := a.MarkRead(r.Context(), id); err != nil {
				if errors.Is(err, errNotInFeed) {
					writeError(w, http.StatusNotFound, "not_found", "notification "+id+" not found")
					return
				}
				a.writeUpstreamError(w, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, a.feedResponse())
	})

	mux.HandleFunc("POST /logout", func(w http.ResponseWriter, r *http.Request) {
		if err := a.Controller.Logout(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, "logout_failed", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// writeUpstreamError maps a gateway error onto the agent's error envelope.
func (a *App) writeUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case gateway.IsNetwork(err):
		writeError(w, http.StatusBadGateway, "network_error", err.Error())
	case gateway.IsUnauthorized(err):
		writeError(w, http.StatusUnauthorized, "unauthorized", "session expired")
	default:
		if apiErr, ok := gateway.AsAPIError(err); ok {
			writeError(w, http.StatusBadGateway, "upstream_error", apiErr.Message("request failed"))
			return
		}
		a.log.Error("agent.request_failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "request failed")
	}
}

// handler is the agent's full middleware chain.
func (a *App) handler() http.Handler {
	mux := http.NewServeMux()
	a.registerHTTP(mux)
	return WithRequestID(WithRequestLogging(WithSecurityHeaders(WithLoopbackOrigin(mux, a.log)), a.log))
}
