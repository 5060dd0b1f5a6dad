package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// RunAgent restores the session, keeps the notification channel in step with
// it and serves the local API until ctx is cancelled.
func (a *App) RunAgent(ctx context.Context) error {
	if err := a.Controller.Bootstrap(ctx); err != nil {
		a.log.Warn("agent.bootstrap_failed", "err", err)
	}
	if a.Controller.User() != nil {
		if err := a.SyncNotifications(ctx); err != nil {
			a.log.Warn("agent.notifications_sync_failed", "err", err)
		}
	}

	ln, err := net.Listen("tcp", a.cfg.Agent.Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           a.handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.Agent.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	a.log.Info("agent.start", "addr", ln.Addr().String(), "api", a.cfg.BaseURL(), "version", Version)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Hub.Start(gctx)
	})
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("agent.serve_failed", "err", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.Agent.ShutdownTimeout, 10*time.Second))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("agent.shutdown_failed", "err", err)
			return err
		}
		return nil
	})

	err = g.Wait()
	a.log.Info("agent.stopped")
	return err
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
