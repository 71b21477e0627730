package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/kbc-quiz/internal/storage"
)

// Store keeps the session key bag in Redis. Keys never expire; the bag lives until Reset.
type Store struct {
	client *redis.Client
	logger zerolog.Logger
}

var _ storage.KV = (*Store)(nil)

// New creates a Redis-backed KV.
func New(client *redis.Client, logger zerolog.Logger) *Store {
	return &Store{
		client: client,
		logger: logger.With().Str("component", "redis_kv").Logger(),
	}
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("redis read failed")
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return val, true, nil
}

// SetMany writes all pairs inside MULTI/EXEC.
func (s *Store) SetMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, k, v, 0)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Int("keys", len(values)).Msg("redis write failed")
		return fmt.Errorf("set %d keys: %w", len(values), err)
	}
	s.logger.Debug().Int("keys", len(values)).Msg("keys written")
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Strs("keys", keys).Msg("redis delete failed")
		return fmt.Errorf("delete keys: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
