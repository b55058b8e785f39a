package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisOptions configures [NewL2].
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key, e.g. "swrgate:".
	Prefix string
	Logger zerolog.Logger
}

// L2 is a Redis-backed cache layer shared between gateway instances. All
// operations fail soft: if Redis is unavailable, Get reports a miss and Set
// discards the write after logging it.
type L2 struct {
	rdb    *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewL2 creates a new Redis-backed L2 cache.
func NewL2(opts RedisOptions) *L2 {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &L2{rdb: rdb, prefix: opts.Prefix, logger: opts.Logger}
}

// Get retrieves a value by key. Returns (nil, false, nil) on a miss or when
// Redis is unreachable.
func (l *L2) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := l.rdb.Get(ctx, l.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			l.logger.Warn().Err(err).Str("key", key).Msg("redis get failed, treating as miss")
		}
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a value under key with the given TTL. A zero TTL means the entry
// has no automatic expiration.
func (l *L2) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := l.rdb.Set(ctx, l.prefix+key, val, ttl).Err(); err != nil {
		l.logger.Warn().Err(err).Str("key", key).Msg("redis set failed, write dropped")
	}
	return nil
}

// Ping checks the Redis connection.
func (l *L2) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (l *L2) Close() error {
	return l.rdb.Close()
}
