package fingerprint

import (
	"context"
	"encoding/json"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/model"
)

// DefaultTTL is how long a classification stays valid.
const DefaultTTL = 30 * 24 * time.Hour

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Backend string  `json:"backend"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"`
}

// Cache stores classification results keyed by Key. Backend failures are
// logged and reported as misses; they never reach the caller.
type Cache struct {
	backend Backend
	ttl     time.Duration

	hits   atomic.Int64
	misses atomic.Int64
	errs   atomic.Int64
}

// New wraps backend with the given entry lifetime.
func New(backend Backend, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{backend: backend, ttl: ttl}
}

// Get returns the cached classification for the inputs, if present.
func (c *Cache) Get(ctx context.Context, signalText, contextText, modelID string) (*model.ClassificationResult, bool) {
	key := Key(signalText, contextText, modelID)

	raw, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.fail("get", key, err)
		c.misses.Add(1)
		return nil, false
	}
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	var res model.ClassificationResult
	if err := json.Unmarshal(raw, &res); err != nil {
		// A corrupt entry would keep missing; drop it.
		c.fail("decode", key, err)
		_ = c.backend.Delete(ctx, key)
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return &res, true
}

// Put stores res for the inputs. Concurrent puts for one key are
// last-writer-wins.
func (c *Cache) Put(ctx context.Context, signalText, contextText, modelID string, res *model.ClassificationResult) {
	if res == nil {
		return
	}
	key := Key(signalText, contextText, modelID)

	raw, err := json.Marshal(res)
	if err != nil {
		c.fail("encode", key, err)
		return
	}
	if err := c.backend.Set(ctx, key, raw, c.ttl); err != nil {
		c.fail("set", key, err)
	}
}

// Invalidate drops the entry for the inputs.
func (c *Cache) Invalidate(ctx context.Context, signalText, contextText, modelID string) {
	key := Key(signalText, contextText, modelID)
	if err := c.backend.Delete(ctx, key); err != nil {
		c.fail("delete", key, err)
	}
}

// Clear removes every cached classification and returns how many were
// removed. Unlike lookups, Clear reports backend errors.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	n, err := c.backend.Clear(ctx)
	if err != nil {
		c.errs.Add(1)
		return n, err
	}
	zap.L().Info("fingerprint: cache cleared", zap.String("backend", c.backend.Name()), zap.Int("removed", n))
	return n, nil
}

// Stats reports hit and miss counts since the cache was created.
func (c *Cache) Stats(ctx context.Context) Stats {
	s := Stats{
		Backend: c.backend.Name(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Errors:  c.errs.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	n, err := c.backend.Len(ctx)
	if err != nil {
		c.fail("len", "", err)
	}
	s.Size = n
	return s
}

// Close releases the backend's connection, if it holds one.
func (c *Cache) Close() error {
	if closer, ok := c.backend.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Cache) fail(op, key string, err error) {
	c.errs.Add(1)
	zap.L().Warn("fingerprint: backend error, treating as miss",
		zap.String("backend", c.backend.Name()),
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)
}
