package fingerprint

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisBackend shares cache entries across pipeline instances. Redis owns
// expiry; capacity is bounded by the server's maxmemory policy.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend connects to the Redis server at url and verifies it
// answers.
func NewRedisBackend(ctx context.Context, url string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "fingerprint: parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrap(err, "fingerprint: ping redis")
	}
	return &RedisBackend{client: client}, nil
}

// NewRedisBackendFromClient wraps an existing client.
func NewRedisBackendFromClient(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (r *RedisBackend) Name() string { return "redis" }

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "fingerprint: redis get")
	}
	return b, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return eris.Wrap(r.client.Set(ctx, key, value, ttl).Err(), "fingerprint: redis set")
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return eris.Wrap(r.client.Del(ctx, key).Err(), "fingerprint: redis del")
}

// Clear deletes every key under KeyPrefix and nothing else.
func (r *RedisBackend) Clear(ctx context.Context) (int, error) {
	var deleted int
	iter := r.client.Scan(ctx, 0, KeyPrefix+"*", 200).Iterator()
	batch := make([]string, 0, 200)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := r.client.Del(ctx, batch...).Result()
		if err != nil {
			return eris.Wrap(err, "fingerprint: redis del batch")
		}
		deleted += int(n)
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, eris.Wrap(err, "fingerprint: redis scan")
	}
	return deleted, flush()
}

func (r *RedisBackend) Len(ctx context.Context) (int, error) {
	var n int
	iter := r.client.Scan(ctx, 0, KeyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n, eris.Wrap(iter.Err(), "fingerprint: redis scan")
}

// Close releases the underlying connection pool.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
