package fingerprint

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/config"
)

// Open builds the cache described by cfg. An unreachable Redis falls back
// to the in-process backend so classification can still run.
func Open(ctx context.Context, cfg config.CacheConfig) *Cache {
	ttl := time.Duration(cfg.TTLHours) * time.Hour

	if cfg.Backend == "redis" {
		rb, err := NewRedisBackend(ctx, cfg.RedisURL)
		if err == nil {
			return New(rb, ttl)
		}
		zap.L().Warn("fingerprint: redis unavailable, using memory backend", zap.Error(err))
	}
	return New(NewMemoryBackend(cfg.Capacity), ttl)
}
