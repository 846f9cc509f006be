// Package tokencache holds short-lived single-use tokens: OAuth state and mobile login tokens.
package tokencache

import (
	"context"
	"time"

	"campusfix/internal/config"
	"campusfix/internal/observability"
	contextutils "campusfix/internal/utils"
)

// Store keeps values for a limited time and hands each one out at most once
type Store interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Take returns the value and deletes it. ok is false when the key is unknown or expired.
	Take(ctx context.Context, key string) (value string, ok bool, err error)
	Len(ctx context.Context) (int, error)
}

// New selects the backend named by token_cache.backend
func New(cfg config.TokenCacheConfig, logger *observability.Logger) (Store, error) {
	switch cfg.Backend {
	case config.TokenCacheRedis:
		return NewRedisStore(cfg.Redis, logger), nil
	case config.TokenCacheMemory, "":
		return NewMemoryStore(cfg.SweepInterval, logger), nil
	default:
		return nil, contextutils.ErrorWithContextf("unknown token cache backend %q", cfg.Backend)
	}
}
