package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qxuken/word-puzzles/pkg/config"
	"github.com/qxuken/word-puzzles/pkg/metrics"
	pkgredis "github.com/qxuken/word-puzzles/pkg/redis"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
	err  error
}

func newMemBackend() *memBackend {
	return &memBackend{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (b *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	v, ok := b.data[key]
	if !ok {
		return nil, pkgredis.ErrMiss
	}
	return v, nil
}

func (b *memBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.data[key] = value
	b.ttls[key] = ttl
	return nil
}

func (b *memBackend) DeleteByPattern(_ context.Context, pattern string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return 0, b.err
	}
	var n int64
	for k := range b.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(b.data, k)
			n++
		}
	}
	return n, nil
}

func (b *memBackend) fail(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

func testConfig() config.RedisConfig {
	return config.RedisConfig{CacheTTL: time.Minute}
}

func TestGetOrComputeMissThenHit(t *testing.T) {
	backend := newMemBackend()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := New(backend, testConfig(), m)
	ctx := context.Background()

	calls := 0
	compute := func() ([]string, error) {
		calls++
		return []string{"abed", "aced"}, nil
	}

	words, hit, err := c.GetOrCompute(ctx, "simple:abcdefg", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"abed", "aced"}, words)

	words, hit, err = c.GetOrCompute(ctx, "simple:abcdefg", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"abed", "aced"}, words)
	assert.Equal(t, 1, calls)

	assert.Equal(t, time.Minute, backend.ttls[Key("simple:abcdefg")])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal))

	s := c.Stats()
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, "50.0%", s.HitRate)
	assert.Equal(t, "closed", s.Breaker)
}

func TestEmptySolutionRoundTrips(t *testing.T) {
	c := New(newMemBackend(), testConfig(), nil)
	ctx := context.Background()
	compute := func() ([]string, error) { return []string{}, nil }

	_, _, err := c.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)
	words, hit, err := c.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.NotNil(t, words)
	assert.Empty(t, words)
}

func TestComputeErrorIsReturnedAndNotCached(t *testing.T) {
	backend := newMemBackend()
	c := New(backend, testConfig(), nil)
	boom := errors.New("boom")

	_, _, err := c.GetOrCompute(context.Background(), "k", func() ([]string, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, backend.data)
}

func TestBackendFailureFallsBackToCompute(t *testing.T) {
	backend := newMemBackend()
	backend.fail(errors.New("connection refused"))
	c := New(backend, testConfig(), nil)

	for range 10 {
		words, hit, err := c.GetOrCompute(context.Background(), "k", func() ([]string, error) {
			return []string{"gaff"}, nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, []string{"gaff"}, words)
	}
	assert.Equal(t, "open", c.Stats().Breaker)
	assert.Positive(t, c.Stats().Errors)
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	backend := newMemBackend()
	backend.data[Key("k")] = []byte("not zstd")
	c := New(backend, testConfig(), nil)

	words, hit, err := c.GetOrCompute(context.Background(), "k", func() ([]string, error) {
		return []string{"cage"}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"cage"}, words)
}

func TestConcurrentMissesShareOneCompute(t *testing.T) {
	c := New(newMemBackend(), testConfig(), nil)
	release := make(chan struct{})
	var calls atomic.Int32

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			words, _, err := c.GetOrCompute(context.Background(), "k", func() ([]string, error) {
				calls.Add(1)
				<-release
				return []string{"bead"}, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, []string{"bead"}, words)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	// late arrivals may find the stored entry instead of joining the flight
	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestInvalidate(t *testing.T) {
	backend := newMemBackend()
	backend.data["other:key"] = []byte("x")
	c := New(backend, testConfig(), nil)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		_, _, err := c.GetOrCompute(ctx, k, func() ([]string, error) { return []string{k}, nil })
		require.NoError(t, err)
	}

	n, err := c.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Len(t, backend.data, 1)

	backend.fail(errors.New("down"))
	_, err = c.Invalidate(ctx)
	assert.Error(t, err)
}

func TestKeyIsStable(t *testing.T) {
	assert.Equal(t, Key("hinted:abcdefg:a=4:"), Key("hinted:abcdefg:a=4:"))
	assert.NotEqual(t, Key("simple:abcdefg"), Key("simple:bacdefg"))
	assert.Len(t, Key("x"), len(keyPrefix)+32)
}
