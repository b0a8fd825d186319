package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-engine/internal/resilience"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:   "test-agent",
		Timeout:     5 * time.Second,
		MaxRetries:  3,
		RatePerHost: 100,
		Backoff:     resilience.Policy{Base: time.Millisecond, Cap: 5 * time.Millisecond},
	})
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close() //nolint:errcheck
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("company_name,event_type\nAcme,series_a\n"))
	}))
	defer srv.Close()

	body, err := newTestFetcher().Download(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "company_name,event_type\nAcme,series_a\n", readAll(t, body))
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := newTestFetcher().Download(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", readAll(t, body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Equal(t, int32(3), calls.Load())
}

func TestDownload_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestDownload_429ReducesRate(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	body, err := f.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", readAll(t, body))

	// Halved to 50, then raised 20% on the successful retry.
	assert.InDelta(t, 60.0, float64(f.limiterFor(srv.URL).Limit()), 0.001)
}

func TestDownload_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher().Download(ctx, srv.URL)
	require.Error(t, err)
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, "lead-engine/1.0", f.opts.UserAgent)
	assert.Equal(t, 60*time.Second, f.opts.Timeout)
	assert.Equal(t, 3, f.opts.MaxRetries)
	assert.Equal(t, rate.Limit(5), f.opts.RatePerHost)
}

func TestLimiterFor_SharedPerHost(t *testing.T) {
	f := newTestFetcher()
	a := f.limiterFor("https://data.example.com/a.csv")
	b := f.limiterFor("https://data.example.com/b.csv")
	c := f.limiterFor("https://other.example.com/a.csv")
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestAdaptiveLimiter_OnSuccess_CapsAt2x(t *testing.T) {
	al := NewAdaptiveLimiter(10, 10)
	for range 20 {
		al.OnSuccess()
	}
	assert.Equal(t, rate.Limit(20), al.Limit())
}

func TestAdaptiveLimiter_OnRateLimit_FloorAtQuarter(t *testing.T) {
	al := NewAdaptiveLimiter(10, 10)
	for range 20 {
		al.OnRateLimit()
	}
	assert.Equal(t, rate.Limit(2.5), al.Limit())
}

func TestAdaptiveLimiter_Wait_ContextCancelled(t *testing.T) {
	al := NewAdaptiveLimiter(0.001, 1)
	require.NoError(t, al.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, al.Wait(ctx))
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://example.com/funding.csv"))
	assert.True(t, IsRemote(" HTTP://example.com/x.csv"))
	assert.False(t, IsRemote("/tmp/funding.csv"))
	assert.False(t, IsRemote("funding.csv"))
}

func TestOpen_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.csv")
	require.NoError(t, os.WriteFile(path, []byte("text\nhello\n"), 0o600))

	rc, err := Open(context.Background(), nil, path)
	require.NoError(t, err)
	assert.Equal(t, "text\nhello\n", readAll(t, rc))
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(context.Background(), nil, filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestOpen_Remote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("text\nremote\n"))
	}))
	defer srv.Close()

	rc, err := Open(context.Background(), newTestFetcher(), srv.URL+"/signals.csv")
	require.NoError(t, err)
	assert.Equal(t, "text\nremote\n", readAll(t, rc))

	_, err = Open(context.Background(), nil, srv.URL)
	assert.Error(t, err)
}
