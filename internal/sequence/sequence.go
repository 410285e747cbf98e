// Package sequence provides the global monotonic order counter. The
// counter is informational (display ordering only) and independent of
// serial allocation, so failures degrade instead of blocking submission.
package sequence

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Sequence hands out globally increasing numbers.
type Sequence interface {
	// Next returns the next sequence number. Allocation is atomic.
	Next(ctx context.Context) (int64, error)
}

const counterKey = "digi-merch:orders:seq"

// redisSequence implements Sequence on a Redis INCR counter.
type redisSequence struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisSequence creates a Redis-backed sequence and verifies
// connectivity with a ping.
func NewRedisSequence(ctx context.Context, addr, password string, db int, logger zerolog.Logger) (Sequence, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info().Str("addr", addr).Msg("redis sequence initialised")

	return &redisSequence{
		client: client,
		logger: logger.With().Str("component", "sequence").Logger(),
	}, nil
}

// Next increments and returns the shared counter.
func (s *redisSequence) Next(ctx context.Context) (int64, error) {
	n, err := s.client.Incr(ctx, counterKey).Result()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to increment sequence counter")
		return 0, fmt.Errorf("failed to increment sequence counter: %w", err)
	}
	return n, nil
}
