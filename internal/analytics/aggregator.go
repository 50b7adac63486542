// Package analytics collects solve and search events, ships them through
// Kafka, and aggregates them into the stats served on /api/v1/analytics.
package analytics

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/qxuken/word-puzzles/pkg/kafka"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

// maxTrackedQueries bounds each per-query counter map. When a new query would
// exceed it, the map is pruned to its most frequent half.
const maxTrackedQueries = 10000

type AggregatedStats struct {
	TotalSolves       int64            `json:"total_solves"`
	TotalSearches     int64            `json:"total_searches"`
	SolvesByVariant   map[string]int64 `json:"solves_by_variant"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	AvgLatencyUs      float64          `json:"avg_latency_us"`
	P50LatencyUs      int64            `json:"p50_latency_us"`
	P95LatencyUs      int64            `json:"p95_latency_us"`
	P99LatencyUs      int64            `json:"p99_latency_us"`
	TopLetterSets     []QueryCount     `json:"top_letter_sets"`
	TopPrefixes       []QueryCount     `json:"top_prefixes"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	EventsPerMinute   float64          `json:"events_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Runner is the consume loop feeding the aggregator, normally a
// pkg/kafka.Consumer built with HandleEvent.
type Runner interface {
	Start(ctx context.Context) error
}

type Aggregator struct {
	mu          sync.RWMutex
	totalSolves int64
	totalSearch int64
	byVariant   map[string]int64
	cacheHits   int64
	cacheMisses int64
	zeroResults int64
	latencies   []int64
	latencyNext int
	letterSets  map[string]int64
	prefixes    map[string]int64
	zeroQueries map[string]int64
	startTime   time.Time
	now         func() time.Time
	runner      Runner
	logger      *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byVariant:   make(map[string]int64),
		latencies:   make([]int64, 0, 1024),
		letterSets:  make(map[string]int64),
		prefixes:    make(map[string]int64),
		zeroQueries: make(map[string]int64),
		startTime:   time.Now(),
		now:         time.Now,
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// SetRunner attaches the consume loop started by Start.
func (a *Aggregator) SetRunner(r Runner) {
	a.runner = r
}

// Start runs the attached consume loop until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) error {
	if a.runner == nil {
		<-ctx.Done()
		return nil
	}
	a.logger.Info("analytics aggregator starting")
	return a.runner.Start(ctx)
}

// HandleEvent decodes Kafka messages into the aggregator. Undecodable
// messages are logged and acknowledged so they do not block the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[SolveEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Record folds one event into the running totals.
func (a *Aggregator) Record(event SolveEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch event.Type {
	case EventSearch:
		a.totalSearch++
		bump(a.prefixes, event.Query)
	default:
		a.totalSolves++
		a.byVariant[event.Variant]++
		bump(a.letterSets, event.Query)
		if event.CacheHit {
			a.cacheHits++
		} else {
			a.cacheMisses++
		}
	}
	if event.Results == 0 {
		a.zeroResults++
		bump(a.zeroQueries, event.Query)
	}

	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyUs)
	} else {
		a.latencies[a.latencyNext] = event.LatencyUs
		a.latencyNext = (a.latencyNext + 1) % maxLatencySamples
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSolves:     a.totalSolves,
		TotalSearches:   a.totalSearch,
		SolvesByVariant: make(map[string]int64, len(a.byVariant)),
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultCount: a.zeroResults,
	}
	for k, v := range a.byVariant {
		stats.SolvesByVariant[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyUs = float64(sum) / float64(len(sorted))
		stats.P50LatencyUs = percentile(sorted, 50)
		stats.P95LatencyUs = percentile(sorted, 95)
		stats.P99LatencyUs = percentile(sorted, 99)
	}
	stats.TopLetterSets = topN(a.letterSets, 10)
	stats.TopPrefixes = topN(a.prefixes, 10)
	stats.ZeroResultQueries = topN(a.zeroQueries, 10)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.EventsPerMinute = float64(a.totalSolves+a.totalSearch) / elapsed
	}
	return stats
}

func bump(counts map[string]int64, query string) {
	if _, ok := counts[query]; !ok && len(counts) >= maxTrackedQueries {
		keep := topN(counts, maxTrackedQueries/2)
		clear(counts)
		for _, qc := range keep {
			counts[qc.Query] = qc.Count
		}
	}
	counts[query]++
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n largest counts, ties broken by query.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	slices.SortFunc(result, func(a, b QueryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Query, b.Query)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
