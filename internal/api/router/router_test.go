package router

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qxuken/word-puzzles/internal/analytics"
	"github.com/qxuken/word-puzzles/internal/api/handler"
	"github.com/qxuken/word-puzzles/internal/words"
	"github.com/qxuken/word-puzzles/pkg/config"
	"github.com/qxuken/word-puzzles/pkg/health"
	"github.com/qxuken/word-puzzles/pkg/metrics"
	"github.com/qxuken/word-puzzles/pkg/middleware"
)

func newTestRouter(t *testing.T, limiter *middleware.Limiter) (http.Handler, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	provider := words.NewProvider(config.DictionaryConfig{})
	h := handler.New(provider, nil, nil, m, config.SearchConfig{DefaultLimit: 1000, MaxResults: 1000, MaxConcurrentScans: 4})
	return New(Deps{
		Handler:        h,
		Checker:        health.NewChecker(),
		Analytics:      analytics.NewHandler(analytics.NewAggregator()),
		Metrics:        m,
		Limiter:        limiter,
		CORS:           middleware.DefaultCORSConfig(),
		RequestTimeout: 5 * time.Second,
	}), m
}

func TestRoutes(t *testing.T) {
	r, m := newTestRouter(t, nil)

	tests := []struct {
		method, target, body string
		status               int
	}{
		{http.MethodGet, "/health/live", "", http.StatusOK},
		{http.MethodGet, "/health/ready", "", http.StatusOK},
		{http.MethodGet, "/api/v1/search?q=ab", "", http.StatusOK},
		{http.MethodPost, "/api/v1/games/spelling-bee/simple", `{"letters":"abcdefg"}`, http.StatusOK},
		{http.MethodPost, "/api/v1/games/spelling-bee/hinted", `{"letters":"abcdefg","start_prefixes":["ab"]}`, http.StatusOK},
		{http.MethodGet, "/api/v1/cache/stats", "", http.StatusOK},
		{http.MethodPost, "/api/v1/cache/invalidate", "", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/v1/analytics", "", http.StatusOK},
		{http.MethodGet, "/api/v1/analytics/snapshots", "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/games/spelling-bee/simple", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
		})
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/search", "200")))
}

func TestGzipLargeResponses(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=a", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)

	var got handler.SearchResponse
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Greater(t, got.Count, 50)
}

func TestRateLimitedRoutes(t *testing.T) {
	r, m := newTestRouter(t, middleware.NewLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}))

	codes := make([]int, 0, 3)
	for range 2 {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=ab", nil))
		codes = append(codes, rec.Code)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	codes = append(codes, rec.Code)

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusOK}, codes)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitedTotal))
}

func TestPreflight(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/games/spelling-bee/simple", nil)
	req.Header.Set("Origin", "https://bee.example")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://bee.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
