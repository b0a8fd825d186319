package fingerprint

import (
	"context"
	"time"
)

// Backend stores opaque cache entries. Implementations must be safe for
// concurrent use and must treat an expired entry as absent.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) (int, error)
	Len(ctx context.Context) (int, error)
	Name() string
}
