package tokencache

import (
	"context"
	"errors"
	"time"

	"campusfix/internal/config"
	"campusfix/internal/observability"
	contextutils "campusfix/internal/utils"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps tokens in redis with native expiry; Take uses GETDEL.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *observability.Logger
}

// NewRedisStore connects lazily; the first command dials
func NewRedisStore(cfg config.RedisCacheConfig, logger *observability.Logger) *RedisStore {
	return NewRedisStoreWithClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg.Prefix, logger)
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client, prefix string, logger *observability.Logger) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

// Put stores value with SET EX
func (s *RedisStore) Put(ctx context.Context, key, value string, ttl time.Duration) (err error) {
	ctx, span := observability.TraceTokenCacheFunction(ctx, "redis_put")
	defer observability.FinishSpan(span, &err)

	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "token cache put failed: %v", err)
	}
	return nil
}

// Take reads and deletes the key atomically
func (s *RedisStore) Take(ctx context.Context, key string) (result0 string, result1 bool, err error) {
	ctx, span := observability.TraceTokenCacheFunction(ctx, "redis_take")
	defer observability.FinishSpan(span, &err)

	value, err := s.client.GetDel(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "token cache take failed: %v", err)
	}
	return value, true, nil
}

// Len counts keys under the prefix with SCAN
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	var cursor uint64
	count := 0
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return 0, contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "token cache scan failed: %v", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// Startup pings redis so a bad address fails at boot
func (s *RedisStore) Startup(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "redis token cache unreachable: %v", err)
	}
	s.logger.Info(ctx, "Redis token cache connected", map[string]interface{}{"addr": s.client.Options().Addr})
	return nil
}

// Shutdown closes the client
func (s *RedisStore) Shutdown(context.Context) error {
	return s.client.Close()
}

// IsReady pings redis
func (s *RedisStore) IsReady() bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return s.client.Ping(ctx).Err() == nil
}
