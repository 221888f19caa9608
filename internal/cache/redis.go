package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisOpTimeout = 500 * time.Millisecond

// Redis is a Store backed by a Redis instance. Every operation carries a
// short timeout; a down or slow backend turns reads into misses and writes
// into no-ops rather than errors.
type Redis struct {
	client redis.UniversalClient
	log    zerolog.Logger
}

// NewRedis creates a Redis-backed cache store for the given address.
func NewRedis(addr string, logger zerolog.Logger) *Redis {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return NewRedisWithClient(client, logger)
}

// NewRedisWithClient wraps an existing client, which tests supply as a mock.
func NewRedisWithClient(client redis.UniversalClient, logger zerolog.Logger) *Redis {
	return &Redis{
		client: client,
		log:    logger.With().Str("component", "cache").Logger(),
	}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.log.Debug().Err(err).Str("key", key).Msg("cache get failed, treating as miss")
		}
		return nil, false
	}
	return val, true
}

func (r *Redis) Put(ctx context.Context, key string, value []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.log.Debug().Err(err).Str("key", key).Msg("cache put failed, skipping")
	}
}

func (r *Redis) Invalidate(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.log.Debug().Err(err).Str("key", key).Msg("cache invalidate failed")
	}
}
