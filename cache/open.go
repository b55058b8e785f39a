package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Backend names accepted by [Open].
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	// BackendTiered fronts Redis with L1, or SQLite when no Redis address
	// is configured.
	BackendTiered = "tiered"
)

// Options selects and configures a store.
type Options struct {
	Backend    string
	MaxEntries int64
	Redis      RedisOptions
	SQLitePath string
	Logger     zerolog.Logger
}

// Open builds the store named by opts.Backend.
func Open(ctx context.Context, opts Options) (Cache, error) {
	opts.Redis.Logger = opts.Logger
	switch opts.Backend {
	case "", BackendMemory:
		return NewL1(opts.MaxEntries)
	case BackendRedis:
		return openRedis(ctx, opts.Redis)
	case BackendSQLite:
		return NewSQLite(ctx, opts.SQLitePath)
	case BackendTiered:
		near, err := NewL1(opts.MaxEntries)
		if err != nil {
			return nil, err
		}
		var far Cache
		if opts.Redis.Addr != "" {
			far, err = openRedis(ctx, opts.Redis)
		} else {
			far, err = NewSQLite(ctx, opts.SQLitePath)
		}
		if err != nil {
			_ = near.Close()
			return nil, err
		}
		return NewTiered(near, far), nil
	}
	return nil, fmt.Errorf("cache: unknown backend %q", opts.Backend)
}

func openRedis(ctx context.Context, opts RedisOptions) (*L2, error) {
	if opts.Addr == "" {
		return nil, errors.New("cache: redis backend needs an address")
	}
	l2 := NewL2(opts)
	// The store fails soft at runtime; an unreachable server at startup is
	// only logged.
	if err := l2.Ping(ctx); err != nil {
		opts.Logger.Warn().Err(err).Str("addr", opts.Addr).Msg("redis not reachable at startup")
	}
	return l2, nil
}
