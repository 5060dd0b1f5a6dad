package app

import (
	"context"
	"fmt"
	"log/slog"

	"vivahvows/cmd/internal/auth/session"
	"vivahvows/cmd/security/vault"
)

// openedStore is a session store plus a readiness probe for whatever backs it.
type openedStore struct {
	session.Store
	probe func(ctx context.Context) error
}

// openStore builds the configured backend. Remote backends are owned by the
// returned store and released by its Close.
func openStore(ctx context.Context, cfg Config, log *slog.Logger) (openedStore, error) {
	sc, err := cfg.SessionConfig()
	if err != nil {
		return openedStore{}, err
	}

	var sealer session.Sealer
	if sc.Passphrase != "" {
		v, err := vault.New(sc.Passphrase, vault.DefaultParams())
		if err != nil {
			return openedStore{}, err
		}
		sealer = v
	}

	noProbe := func(context.Context) error { return nil }

	switch sc.Kind {
	case session.KindMemory:
		log.Info("store.memory")
		return openedStore{Store: session.NewMemoryStore(), probe: noProbe}, nil

	case session.KindFile:
		fs, err := session.NewFileStore(sc.Dir, sc.Key, sealer, log)
		if err != nil {
			return openedStore{}, err
		}
		log.Info("store.file", "path", fs.Path(), "sealed", sealer != nil)
		return openedStore{Store: fs, probe: noProbe}, nil

	case session.KindRedis:
		rdb, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return openedStore{}, fmt.Errorf("redis store: %w", err)
		}
		log.Info("store.redis", "addr", cfg.Redis.Addr, "sealed", sealer != nil)
		return openedStore{
			Store: session.NewRedisStore(rdb, sc.RedisPrefix, sc.Key, sealer, true, log),
			probe: func(ctx context.Context) error { return PingRedis(ctx, rdb, pingTimeout) },
		}, nil

	case session.KindPostgres:
		pool, err := NewDBPool(ctx, cfg.Database)
		if err != nil {
			return openedStore{}, fmt.Errorf("postgres store: %w", err)
		}
		ps := session.NewPostgresStore(pool, sc.Key, sealer, log)
		if err := ps.Migrate(ctx); err != nil {
			pool.Close()
			return openedStore{}, fmt.Errorf("postgres store migrate: %w", err)
		}
		log.Info("store.postgres", "sealed", sealer != nil)
		return openedStore{
			Store: poolOwningStore{PostgresStore: ps, close: pool.Close},
			probe: func(ctx context.Context) error { return PingDB(ctx, pool, pingTimeout) },
		}, nil
	}
	return openedStore{}, fmt.Errorf("%w: unknown kind %q", session.ErrConfig, sc.Kind)
}

// poolOwningStore closes the pool the app opened for the postgres store.
type poolOwningStore struct {
	*session.PostgresStore
	close func()
}

func (s poolOwningStore) Close() error {
	err := s.PostgresStore.Close()
	s.close()
	return err
}
