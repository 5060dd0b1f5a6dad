package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiv1 "vivahvows/shared/contracts/api/v1"

	"vivahvows/cmd/internal/auth/session"
	"vivahvows/cmd/internal/gateway"
)

type recorded struct {
	Method string
	Path   string
	Query  url.Values
	Auth   string
	Body   string
}

type fakeAPI struct {
	mu     sync.Mutex
	calls  []recorded
	routes map[string]any
}

func newFakeAPI(t *testing.T, routes map[string]any) (*fakeAPI, *gateway.Gateway) {
	t.Helper()
	f := &fakeAPI{routes: routes}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.calls = append(f.calls, recorded{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Auth:   r.Header.Get("Authorization"),
			Body:   string(body),
		})
		f.mu.Unlock()

		resp, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not found."}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if raw, ok := resp.(string); ok {
			_, _ = w.Write([]byte(raw))
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	store := session.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), session.Snapshot{
		Credentials: session.Credentials{Access: "tok1", Refresh: "ref1"},
	}))
	g, err := gateway.New(gateway.Options{BaseURL: srv.URL + "/api", Store: store})
	require.NoError(t, err)
	return f, g
}

func (f *fakeAPI) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func TestAuth_TokenIsUnauthenticated(t *testing.T) {
	f, g := newFakeAPI(t, map[string]any{
		"POST /api/auth/token/": apiv1.TokenPair{Access: "a", Refresh: "r"},
	})

	pair, err := NewAuth(g).Token(context.Background(), apiv1.TokenRequest{Username: "jane", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, apiv1.TokenPair{Access: "a", Refresh: "r"}, pair)

	call := f.last()
	assert.Empty(t, call.Auth)
	assert.JSONEq(t, `{"username":"jane","password":"pw"}`, call.Body)
}

func TestAuth_MeIsAuthenticated(t *testing.T) {
	f, g := newFakeAPI(t, map[string]any{
		"GET /api/auth/me/": apiv1.User{ID: 3, Username: "jane", Email: "jane@example.com"},
	})

	me, err := NewAuth(g).Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), me.ID)
	assert.Equal(t, "Bearer tok1", f.last().Auth)
}

func TestAuth_PasswordResetFlow(t *testing.T) {
	f, g := newFakeAPI(t, map[string]any{
		"POST /api/auth/password-reset/":         apiv1.Detail{Detail: "sent"},
		"POST /api/auth/password-reset/confirm/": apiv1.Detail{Detail: "done"},
		"POST /api/auth/verify-email/":           apiv1.Detail{Detail: "verified"},
	})
	a := NewAuth(g)

	d, err := a.RequestPasswordReset(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "sent", d.Detail)

	d, err = a.ConfirmPasswordReset(context.Background(), "t0k", "n3w-secret-pass")
	require.NoError(t, err)
	assert.Equal(t, "done", d.Detail)
	assert.JSONEq(t, `{"token":"t0k","password":"n3w-secret-pass"}`, f.last().Body)

	d, err = a.VerifyEmail(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "verified", d.Detail)
}

func TestProfiles_ListFilterAndPagination(t *testing.T) {
	f, g := newFakeAPI(t, map[string]any{
		"GET /api/profiles/": `{"count":2,"next":null,"previous":null,"results":[{"id":1,"name":"A"},{"id":2,"name":"B"}]}`,
	})

	page, err := NewProfiles(g).List(context.Background(), ProfileFilter{
		Gender:    apiv1.GenderFemale,
		City:      " Pune ",
		AgeMin:    25,
		AgeMax:    32,
		Interests: []int64{4, 9},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Count)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "B", page.Results[1].Name)

	q := f.last().Query
	assert.Equal(t, "female", q.Get("gender"))
	assert.Equal(t, "Pune", q.Get("city"))
	assert.Equal(t, "25", q.Get("age_min"))
	assert.Equal(t, "32", q.Get("age_max"))
	assert.Equal(t, "4,9", q.Get("interests"))
	assert.False(t, q.Has("religion"))
}

func TestProfiles_BareArray(t *testing.T) {
	_, g := newFakeAPI(t, map[string]any{
		"GET /api/interests/": `[{"id":1,"name":"music"},{"id":2,"name":"travel"}]`,
	})

	items, err := NewProfiles(g).Interests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []apiv1.Interest{{ID: 1, Name: "music"}, {ID: 2, Name: "travel"}}, items)
}

func TestProfiles_UpdateMeSendsOnlySetFields(t *testing.T) {
	f, g := newFakeAPI(t, map[string]any{
		"PATCH /api/profiles/me/": apiv1.Profile{ID: 1, City: "Delhi"},
	})

	city := "Delhi"
	p, err := NewProfiles(g).UpdateMe(context.Background(), apiv1.ProfilePatch{City: &city})
	require.NoError(t, err)
	assert.Equal(t, "Delhi", p.City)
	assert.JSONEq(t, `{"city":"Delhi"}`, f.last().Body)
}

func TestMatch_Actions(t *testing.T) {
	f, g := newFakeAPI(t, map[string]any{
		"POST /api/match/like/42/":    apiv1.MatchActionResponse{Detail: "liked", Match: true},
		"POST /api/match/block/42/":   apiv1.MatchActionResponse{Detail: "blocked"},
		"GET /api/match/suggestions/": `[{"id":9,"name":"Ravi","religion":"Hindu"}]`,
		"GET /api/match/mutual/":      `[{"id":5,"user_one":1,"user_two":42,"partner_profile":{"id":9,"name":"Ravi"}}]`,
	})
	m := NewMatch(g)

	res, err := m.Like(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, res.Match)
	assert.Equal(t, http.MethodPost, f.last().Method)

	_, err = m.Block(context.Background(), 42)
	require.NoError(t, err)

	_, err = m.Reject(context.Background(), 0)
	require.Error(t, err)

	sugg, err := m.Suggestions(context.Background(), ProfileFilter{Religion: "Hindu"})
	require.NoError(t, err)
	require.Len(t, sugg, 1)
	assert.Equal(t, "Hindu", f.last().Query.Get("religion"))

	mutual, err := m.Mutual(context.Background())
	require.NoError(t, err)
	require.Len(t, mutual, 1)
	assert.Equal(t, "Ravi", mutual[0].PartnerProfile.Name)
}

func TestMatch_NotFound(t *testing.T) {
	_, g := newFakeAPI(t, map[string]any{})

	_, err := NewMatch(g).Reject(context.Background(), 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestChat_Send(t *testing.T) {
	f, g := newFakeAPI(t, map[string]any{
		"POST /api/chat/rooms/3/messages/": apiv1.ChatMessage{ID: 11, Room: 3, Content: "hi"},
		"GET /api/chat/rooms/3/messages/":  `[{"id":10,"room":3,"content":"hello"}]`,
	})
	c := NewChat(g)

	msg, err := c.Send(context.Background(), 3, "  hi  ")
	require.NoError(t, err)
	assert.Equal(t, int64(11), msg.ID)
	assert.JSONEq(t, `{"content":"hi"}`, f.last().Body)

	_, err = c.Send(context.Background(), 3, "   ")
	require.ErrorIs(t, err, ErrEmptyMessage)

	msgs, err := c.Messages(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestNotifications_ListAndMarkRead(t *testing.T) {
	f, g := newFakeAPI(t, map[string]any{
		"GET /api/notifications/":     `[{"id":1,"event":"like","payload":{"from":2},"is_read":false}]`,
		"PATCH /api/notifications/1/": apiv1.Notification{ID: 1, Event: "like", IsRead: true},
	})
	n := NewNotifications(g)

	items, err := n.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.JSONEq(t, `{"from":2}`, string(items[0].Payload))
	assert.Equal(t, "false", f.last().Query.Get("is_read"))

	read, err := n.MarkRead(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	assert.JSONEq(t, `{"is_read":true}`, f.last().Body)
}
