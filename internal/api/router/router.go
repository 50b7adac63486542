// Package router wires the HTTP API routes and applies the middleware chain.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"

	"github.com/qxuken/word-puzzles/internal/analytics"
	"github.com/qxuken/word-puzzles/internal/api/handler"
	"github.com/qxuken/word-puzzles/pkg/health"
	"github.com/qxuken/word-puzzles/pkg/metrics"
	"github.com/qxuken/word-puzzles/pkg/middleware"
)

// Deps are the pieces the router mounts. Only Handler and Checker are
// required.
type Deps struct {
	Handler        *handler.Handler
	Checker        *health.Checker
	Analytics      *analytics.Handler
	Snapshots      http.HandlerFunc
	Metrics        *metrics.Metrics
	Limiter        *middleware.Limiter
	CORS           middleware.CORSConfig
	RequestTimeout time.Duration
}

// New builds the service handler.
//
// Route table:
//
//	GET    /api/v1/search                       prefix search
//	POST   /api/v1/games/spelling-bee/simple    solve without hints
//	POST   /api/v1/games/spelling-bee/hinted    solve with length and prefix hints
//	GET    /api/v1/cache/stats                  solution cache counters
//	POST   /api/v1/cache/invalidate             drop cached solutions
//	GET    /api/v1/analytics                    aggregated solve stats
//	GET    /api/v1/analytics/snapshots          persisted stats snapshots
//	GET    /health/live, /health/ready          probes
//
// Middleware chain (outermost first):
//
//	RequestID → Recoverer → CORS → Metrics → RateLimit → Timeout → gzip → handler
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(d.CORS))
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}
	if d.Limiter != nil {
		r.Use(middleware.RateLimit(d.Limiter, d.Metrics))
	}
	if d.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.RequestTimeout))
	}
	r.Use(func(next http.Handler) http.Handler {
		return gzhttp.GzipHandler(next)
	})

	r.Get("/health/live", d.Checker.LiveHandler())
	r.Get("/health/ready", d.Checker.ReadyHandler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", d.Handler.Search)
		r.Post("/games/spelling-bee/simple", d.Handler.SolveSimple)
		r.Post("/games/spelling-bee/hinted", d.Handler.SolveHinted)
		r.Get("/cache/stats", d.Handler.CacheStats)
		r.Post("/cache/invalidate", d.Handler.CacheInvalidate)
		if d.Analytics != nil {
			r.Get("/analytics", d.Analytics.Stats)
		}
		if d.Snapshots != nil {
			r.Get("/analytics/snapshots", d.Snapshots)
		}
	})

	return r
}
