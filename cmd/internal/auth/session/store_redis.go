package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the snapshot under <prefix>:<key>.
type RedisStore struct {
	rdb   redis.UniversalClient
	key   string
	codec codec
	log   *slog.Logger
	owned bool
}

// NewRedisStore wraps an existing client. The client is not closed by Close
// unless owned is true.
func NewRedisStore(rdb redis.UniversalClient, prefix, key string, sealer Sealer, owned bool, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}
	return &RedisStore{
		rdb:   rdb,
		key:   prefix + ":" + key,
		codec: codec{sealer: sealer},
		log:   log,
		owned: owned,
	}
}

func (s *RedisStore) Get(ctx context.Context) (Snapshot, bool) {
	b, err := s.rdb.Get(ctx, s.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("session.read_failed", "key", s.key, "err", err)
		}
		return Snapshot{}, false
	}

	snap, err := s.codec.decode(b)
	if err != nil {
		s.log.Warn("session.decode_failed", "key", s.key, "err", err)
		return Snapshot{}, false
	}
	return snap, true
}

func (s *RedisStore) Set(ctx context.Context, snap Snapshot) error {
	if err := checkPair(snap); err != nil {
		return err
	}
	b, err := s.codec.encode(snap)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, b, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s.owned {
		return s.rdb.Close()
	}
	return nil
}
