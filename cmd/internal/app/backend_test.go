package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	apiv1 "vivahvows/shared/contracts/api/v1"
)

// fakeAPI is a minimal VivahVows backend under /api.
type fakeAPI struct {
	mu      sync.Mutex
	patched []int64
	read    map[int64]bool
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{read: map[int64]bool{}}
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/token/", func(w http.ResponseWriter, r *http.Request) {
		var req apiv1.TokenRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Username != "jane" || req.Password != "pw" {
			writeJSON(w, http.StatusUnauthorized, apiv1.Detail{Detail: "No active account found with the given credentials"})
			return
		}
		writeJSON(w, http.StatusOK, apiv1.TokenPair{Access: "acc1", Refresh: "ref1"})
	})
	mux.HandleFunc("POST /api/auth/token/refresh/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired", "code": "token_not_valid"})
	})
	mux.HandleFunc("POST /api/auth/register/", func(w http.ResponseWriter, r *http.Request) {
		var req apiv1.RegisterRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Username == "taken" {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"username": {"A user with that username already exists."}})
			return
		}
		writeJSON(w, http.StatusCreated, apiv1.RegisterResponse{Username: req.Username, Email: req.Email})
	})
	mux.HandleFunc("GET /api/auth/me/", authed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, apiv1.User{ID: 1, Username: "jane", Email: "jane@example.com"})
	}))
	mux.HandleFunc("GET /api/profiles/me/", authed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, apiv1.Detail{Detail: "Not found."})
	}))
	mux.HandleFunc("GET /api/interests/", authed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []apiv1.Interest{{ID: 1, Name: "Music"}, {ID: 2, Name: "Travel"}})
	}))
	mux.HandleFunc("GET /api/match/mutual/", authed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []apiv1.MutualMatch{})
	}))
	mux.HandleFunc("GET /api/notifications/", authed(func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		read := f.read[5]
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, []apiv1.Notification{
			{ID: 5, Event: "like", Payload: json.RawMessage(`{"from_user":7}`), IsRead: read, CreatedAt: created},
		})
	}))
	mux.HandleFunc("PATCH /api/notifications/5/", authed(func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.patched = append(f.patched, 5)
		f.read[5] = true
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, apiv1.Notification{ID: 5, Event: "like", IsRead: true, CreatedAt: created})
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") != "acc1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
			return
		}
		next(w, r)
	}
}

func (f *fakeAPI) patchedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.patched...)
}
