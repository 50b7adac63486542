// Package cache stores spelling-bee solutions in Redis. Entries are keyed by
// a hash of the canonical query, compressed with zstd, deduplicated across
// concurrent callers with singleflight, and guarded by a circuit breaker so a
// failing Redis degrades to direct scans.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/singleflight"

	"github.com/qxuken/word-puzzles/pkg/config"
	"github.com/qxuken/word-puzzles/pkg/metrics"
	pkgredis "github.com/qxuken/word-puzzles/pkg/redis"
	"github.com/qxuken/word-puzzles/pkg/resilience"
)

const keyPrefix = "wp:solve:"

// Backend is the subset of pkg/redis.Client the cache needs. Get must return
// pkgredis.ErrMiss for absent keys.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)
}

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

type entry struct {
	Words []string `json:"words"`
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Errors  int64  `json:"errors"`
	Total   int64  `json:"total"`
	HitRate string `json:"hit_rate"`
	Breaker string `json:"breaker"`
}

type SolutionCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	errors  atomic.Int64
}

// New builds a cache over backend. m may be nil.
func New(backend Backend, cfg config.RedisConfig, m *metrics.Metrics) *SolutionCache {
	c := &SolutionCache{
		backend: backend,
		ttl:     cfg.CacheTTL,
		metrics: m,
		logger:  slog.Default().With("component", "solution-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     15 * time.Second,
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, pkgredis.ErrMiss)
		},
		OnStateChange: func(name string, _, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

// Key hashes a canonical query description into a cache key.
func Key(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return keyPrefix + hex.EncodeToString(sum[:16])
}

// GetOrCompute returns the cached words for canonical, or runs compute,
// stores its result and returns it. Concurrent callers with the same key
// share one compute. The boolean reports a cache hit. Backend failures are
// logged and never fail the call.
func (c *SolutionCache) GetOrCompute(ctx context.Context, canonical string, compute func() ([]string, error)) ([]string, bool, error) {
	key := Key(canonical)
	if words, ok := c.get(ctx, key); ok {
		c.recordHit()
		return words, true, nil
	}
	c.recordMiss()

	val, err, _ := c.group.Do(key, func() (any, error) {
		words, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, words)
		return words, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]string), false, nil
}

// Invalidate removes every cached solution.
func (c *SolutionCache) Invalidate(ctx context.Context) (int64, error) {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.backend.DeleteByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating solution cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *SolutionCache) Stats() Stats {
	s := Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Errors:  c.errors.Load(),
		Breaker: c.breaker.State().String(),
	}
	s.Total = s.Hits + s.Misses
	var rate float64
	if s.Total > 0 {
		rate = float64(s.Hits) / float64(s.Total) * 100
	}
	s.HitRate = fmt.Sprintf("%.1f%%", rate)
	return s
}

func (c *SolutionCache) get(ctx context.Context, key string) ([]string, bool) {
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.backend.Get(ctx, key)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, pkgredis.ErrMiss):
		return nil, false
	case errors.Is(err, resilience.ErrCircuitOpen):
		c.logger.Debug("cache bypassed", "key", key, "error", err)
		return nil, false
	default:
		c.errors.Add(1)
		c.logger.Error("cache get failed", "key", key, "error", err)
		return nil, false
	}

	words, err := decode(data)
	if err != nil {
		c.errors.Add(1)
		c.logger.Error("cache decode failed", "key", key, "error", err)
		return nil, false
	}
	return words, true
}

func (c *SolutionCache) set(ctx context.Context, key string, words []string) {
	data, err := encode(words)
	if err != nil {
		c.logger.Error("cache encode failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.errors.Add(1)
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *SolutionCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *SolutionCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func encode(words []string) ([]byte, error) {
	raw, err := json.Marshal(entry{Words: words})
	if err != nil {
		return nil, fmt.Errorf("marshaling solution: %w", err)
	}
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

func decode(data []byte) ([]string, error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing solution: %w", err)
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("unmarshaling solution: %w", err)
	}
	if e.Words == nil {
		e.Words = []string{}
	}
	return e.Words, nil
}
