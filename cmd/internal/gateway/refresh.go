package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	apiv1 "vivahvows/shared/contracts/api/v1"

	"vivahvows/cmd/internal/auth/session"
	"vivahvows/cmd/internal/metrics"
	"vivahvows/cmd/security/token"
)

type refreshResult struct {
	access string
	err    error
}

// refresher is the pending-refresh state: whether a refresh is running and
// who is waiting on it.
type refresher struct {
	mu       sync.Mutex
	inflight bool
	waiters  []chan refreshResult
}

// Refresh exchanges the stored refresh token for a new access token. If a
// refresh is already running the call waits for that one instead.
func (g *Gateway) Refresh(ctx context.Context) (session.Credentials, error) {
	if _, err := g.refreshShared(ctx); err != nil {
		return session.Credentials{}, err
	}
	snap, ok := g.store.Get(ctx)
	if !ok {
		return session.Credentials{}, fmt.Errorf("%w: %w", ErrRefreshFailed, ErrSessionEnded)
	}
	return snap.Credentials, nil
}

// refreshShared runs a refresh or joins the one in flight.
func (g *Gateway) refreshShared(ctx context.Context) (string, error) {
	g.ref.mu.Lock()
	if g.ref.inflight {
		// Buffered so the leader never blocks on a waiter that gave up.
		ch := make(chan refreshResult, 1)
		g.ref.waiters = append(g.ref.waiters, ch)
		g.ref.mu.Unlock()

		select {
		case r := <-ch:
			return r.access, r.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	g.ref.inflight = true
	g.ref.mu.Unlock()

	// The refresh outlives a cancelled leader: queued requests depend on it.
	rctx := context.WithoutCancel(ctx)
	if g.refreshTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(rctx, g.refreshTimeout)
		defer cancel()
	}

	access, result, err := g.exchange(rctx)

	g.ref.mu.Lock()
	waiters := g.ref.waiters
	g.ref.waiters = nil
	g.ref.inflight = false
	g.ref.mu.Unlock()

	g.metrics.ObserveRefresh(result, len(waiters))

	// FIFO.
	for _, w := range waiters {
		w <- refreshResult{access: access, err: err}
	}
	return access, err
}

// exchange performs the refresh call and settles the store. It returns the
// new access token and a metrics result label.
func (g *Gateway) exchange(ctx context.Context) (string, string, error) {
	epoch := g.epoch.Load()

	snap, ok := g.store.Get(ctx)
	if !ok || snap.Refresh == "" {
		g.log.Info("gateway.refresh_skipped", "reason", "no refresh token")
		_ = g.ClearSessionAt(ctx, epoch, ClearedNoRefreshToken)
		return "", metrics.RefreshNoToken, fmt.Errorf("%w: %w", ErrRefreshFailed, errNoRefreshToken)
	}

	g.log.Debug("gateway.refresh_started", "refresh_fp", token.Fingerprint(snap.Refresh))

	out, err := g.postRefresh(ctx, snap.Refresh)

	// The epoch check and the write below happen under one lock so a logout
	// cannot slip between them.
	g.sessMu.Lock()
	if g.epoch.Load() != epoch {
		g.sessMu.Unlock()
		g.log.Info("gateway.refresh_discarded", "reason", "session ended")
		return "", metrics.RefreshDiscarded, fmt.Errorf("%w: %w", ErrRefreshFailed, ErrSessionEnded)
	}

	if err != nil {
		cerr := g.endLocked(ctx)
		g.sessMu.Unlock()
		g.log.Warn("gateway.refresh_failed", "err", err)
		g.cleared(ClearedRefreshFailed, cerr)
		return "", metrics.RefreshFailed, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	// Start from the stored snapshot: the identity may have been updated
	// while the refresh was on the wire.
	next, ok := g.store.Get(ctx)
	if !ok {
		g.sessMu.Unlock()
		g.log.Info("gateway.refresh_discarded", "reason", "session cleared")
		return "", metrics.RefreshDiscarded, fmt.Errorf("%w: %w", ErrRefreshFailed, ErrSessionEnded)
	}
	next.Access = out.Access
	if out.Refresh != "" {
		next.Refresh = out.Refresh
	}
	if err := g.store.Set(ctx, next); err != nil {
		cerr := g.endLocked(ctx)
		g.sessMu.Unlock()
		g.log.Warn("gateway.refresh_persist_failed", "err", err)
		g.cleared(ClearedRefreshFailed, cerr)
		return "", metrics.RefreshFailed, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	g.sessMu.Unlock()

	g.log.Info("gateway.token_rotated",
		"access_fp", token.Fingerprint(next.Access),
		"refresh_rotated", out.Refresh != "",
	)
	if g.epoch.Load() == epoch {
		g.fireRotated(next.Credentials)
	}
	return next.Access, metrics.RefreshOK, nil
}

func (g *Gateway) postRefresh(ctx context.Context, refresh string) (apiv1.RefreshResponse, error) {
	var out apiv1.RefreshResponse

	req := &Request{
		Method: http.MethodPost,
		Path:   g.refreshPath,
		Body:   apiv1.RefreshRequest{Refresh: refresh},
		NoAuth: true,
	}
	body, err := encodeBody(req.Body)
	if err != nil {
		return out, err
	}

	resp, err := g.send(ctx, req, body, "")
	if err != nil {
		return out, err
	}
	if _, err := finish(resp); err != nil {
		return out, err
	}
	if err := resp.Decode(&out); err != nil {
		return out, fmt.Errorf("decode refresh: %w", err)
	}
	if out.Access == "" {
		return out, errors.New("refresh response missing access token")
	}
	return out, nil
}

func (g *Gateway) cleared(reason string, err error) {
	if err != nil {
		g.log.Warn("gateway.session_clear_failed", "reason", reason, "err", err)
	}
	g.log.Info("gateway.session_cleared", "reason", reason)
	g.fireCleared(reason)
}
