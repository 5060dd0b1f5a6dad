package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vivahvows/cmd/internal/auth/lifecycle"
	"vivahvows/cmd/internal/auth/session"
)

func newTestApp(t *testing.T, origin string) *App {
	t.Helper()
	clearEnv(t)
	t.Setenv("VIVAH_API_ORIGIN", origin)
	t.Setenv("VIVAH_STORE_KIND", "memory")

	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)

	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func login(t *testing.T, a *App) {
	t.Helper()
	require.NoError(t, a.Controller.Login(context.Background(), lifecycle.LoginInput{Username: "jane", Password: "pw"}))
}

func serve(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, rdr))
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestAgent_HealthReadyMetrics(t *testing.T) {
	_, srv := newFakeAPI(t)
	a := newTestApp(t, srv.URL)
	h := a.handler()

	assert.Equal(t, http.StatusOK, serve(t, h, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, serve(t, h, http.MethodGet, "/readyz", nil).Code)

	login(t, a)
	rr := serve(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
	assert.Contains(t, rr.Body.String(), "vivahvows_")
}

func TestAgent_ReadinessRequiresSession(t *testing.T) {
	_, srv := newFakeAPI(t)
	a := newTestApp(t, srv.URL)
	a.cfg.Agent.ReadinessRequireSession = true
	h := a.handler()

	assert.Equal(t, http.StatusServiceUnavailable, serve(t, h, http.MethodGet, "/readyz", nil).Code)
	login(t, a)
	assert.Equal(t, http.StatusOK, serve(t, h, http.MethodGet, "/readyz", nil).Code)
}

func TestAgent_Session(t *testing.T) {
	_, srv := newFakeAPI(t)
	a := newTestApp(t, srv.URL)
	h := a.handler()

	got := decode[sessionResponse](t, serve(t, h, http.MethodGet, "/session", nil))
	assert.Equal(t, "anonymous", got.State)
	assert.Nil(t, got.User)

	login(t, a)
	got = decode[sessionResponse](t, serve(t, h, http.MethodGet, "/session", nil))
	assert.Equal(t, "authenticated", got.State)
	require.NotNil(t, got.User)
	assert.Equal(t, "jane", got.User.Username)
	assert.Nil(t, got.Profile, "missing profile is not fatal")
	assert.False(t, got.ChannelOpen)
	assert.Nil(t, got.AccessExpiresAt, "opaque tokens carry no expiry")
}

func TestAgent_SessionReportsAccessExpiry(t *testing.T) {
	_, srv := newFakeAPI(t)
	a := newTestApp(t, srv.URL)

	exp := time.Date(2030, 5, 6, 7, 8, 9, 0, time.UTC)
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1,
		"exp":     exp.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	require.NoError(t, a.store.Set(context.Background(), session.Snapshot{
		Credentials: session.Credentials{Access: access, Refresh: "ref1"},
	}))

	got := decode[sessionResponse](t, serve(t, a.handler(), http.MethodGet, "/session", nil))
	require.NotNil(t, got.AccessExpiresAt)
	assert.True(t, exp.Equal(*got.AccessExpiresAt))
}

func TestAgent_NotificationsSyncAndRead(t *testing.T) {
	api, srv := newFakeAPI(t)
	a := newTestApp(t, srv.URL)
	h := a.handler()
	login(t, a)

	feed := decode[feedResponse](t, serve(t, h, http.MethodPost, "/notifications/sync", nil))
	require.Len(t, feed.Items, 1)
	assert.Equal(t, 1, feed.Unread)
	assert.Equal(t, int64(5), feed.Items[0].ServerID)
	id := feed.Items[0].ID

	rr := serve(t, h, http.MethodPost, "/notifications/read", markReadRequest{IDs: []string{id}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	feed = decode[feedResponse](t, rr)
	assert.Equal(t, 0, feed.Unread)
	assert.True(t, feed.Items[0].IsRead)
	assert.Equal(t, []int64{5}, api.patchedIDs())

	// Already read: no second server call.
	serve(t, h, http.MethodPost, "/notifications/read", markReadRequest{IDs: []string{id}})
	assert.Len(t, api.patchedIDs(), 1)

	assert.Equal(t, http.StatusNotFound, serve(t, h, http.MethodPost, "/notifications/read", markReadRequest{IDs: []string{"nope"}}).Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, h, http.MethodPost, "/notifications/read", map[string]any{"bogus": 1}).Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, h, http.MethodPost, "/notifications/read", markReadRequest{}).Code)
}

func TestAgent_NotificationsSince(t *testing.T) {
	_, srv := newFakeAPI(t)
	a := newTestApp(t, srv.URL)
	h := a.handler()
	login(t, a)

	serve(t, h, http.MethodPost, "/notifications/sync", nil)

	feed := decode[feedResponse](t, serve(t, h, http.MethodGet, "/notifications?since=2026-01-01T00:00:00Z", nil))
	assert.Len(t, feed.Items, 1)

	feed = decode[feedResponse](t, serve(t, h, http.MethodGet, "/notifications?since=2026-02-01T00:00:00Z", nil))
	assert.Empty(t, feed.Items)
	assert.Equal(t, 1, feed.Unread)

	assert.Equal(t, http.StatusBadRequest, serve(t, h, http.MethodGet, "/notifications?since=yesterday", nil).Code)
}

func TestAgent_SyncWithoutSession(t *testing.T) {
	_, srv := newFakeAPI(t)
	a := newTestApp(t, srv.URL)

	rr := serve(t, a.handler(), http.MethodPost, "/notifications/sync", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "unauthorized", decode[errorResponse](t, rr).Error.Code)
}

func TestAgent_Logout(t *testing.T) {
	_, srv := newFakeAPI(t)
	a := newTestApp(t, srv.URL)
	h := a.handler()
	login(t, a)

	assert.Equal(t, http.StatusNoContent, serve(t, h, http.MethodPost, "/logout", nil).Code)

	got := decode[sessionResponse](t, serve(t, h, http.MethodGet, "/session", nil))
	assert.Equal(t, "anonymous", got.State)
	_, ok := a.store.Get(context.Background())
	assert.False(t, ok)
}

func TestAgent_RejectsForeignOrigin(t *testing.T) {
	_, srv := newFakeAPI(t)
	a := newTestApp(t, srv.URL)

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr := httptest.NewRecorder()
	a.handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}
