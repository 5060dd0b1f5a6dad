package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps one row per key in vivahvows.client_sessions.
type PostgresStore struct {
	pool  *pgxpool.Pool
	key   string
	codec codec
	log   *slog.Logger
}

// Schema creates the backing table. It is idempotent.
const Schema = `
CREATE SCHEMA IF NOT EXISTS vivahvows;
CREATE TABLE IF NOT EXISTS vivahvows.client_sessions (
	key        text PRIMARY KEY,
	document   bytea NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
);
`

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool, key string, sealer Sealer, log *slog.Logger) *PostgresStore {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresStore{pool: pool, key: key, codec: codec{sealer: sealer}, log: log}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *PostgresStore) Get(ctx context.Context) (Snapshot, bool) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `
		SELECT document
		FROM vivahvows.client_sessions
		WHERE key = $1
	`, s.key).Scan(&doc)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.log.Warn("session.read_failed", "key", s.key, "err", err)
		}
		return Snapshot{}, false
	}

	snap, err := s.codec.decode(doc)
	if err != nil {
		s.log.Warn("session.decode_failed", "key", s.key, "err", err)
		return Snapshot{}, false
	}
	return snap, true
}

func (s *PostgresStore) Set(ctx context.Context, snap Snapshot) error {
	if err := checkPair(snap); err != nil {
		return err
	}
	b, err := s.codec.encode(snap)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO vivahvows.client_sessions (key, document, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at
	`, s.key, b)
	return err
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM vivahvows.client_sessions WHERE key = $1`, s.key)
	return err
}

// Close does not close the pool; the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }
