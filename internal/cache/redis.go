package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisOpTimeout = 2 * time.Second

// Redis is the shared Store backed by a Redis server. Every operation
// is bounded and failure-tolerant: an unreachable backend produces
// misses and warn logs, never errors.
type Redis struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedis connects to the server described by rawURL
// (redis://[user:pass@]host:port[/db]). The initial ping failing is an
// error so the caller can decide to run local-only; failures after
// construction degrade silently.
func NewRedis(rawURL string, log zerolog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	log.Info().Str("addr", opts.Addr).Msg("shared cache connected")
	return &Redis{client: client, log: log}, nil
}

// NewRedisFromClient wraps an existing client. Used by tests.
func NewRedisFromClient(client *redis.Client, log zerolog.Logger) *Redis {
	return &Redis{client: client, log: log}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn().Err(err).Str("key", key).Msg("shared cache get failed")
		}
		return nil, false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("shared cache set failed")
	}
}

func (r *Redis) Delete(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("shared cache delete failed")
	}
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
