package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/qxuken/word-puzzles/internal/analytics"
	analyticsstore "github.com/qxuken/word-puzzles/internal/analytics/store"
	"github.com/qxuken/word-puzzles/internal/api/handler"
	"github.com/qxuken/word-puzzles/internal/api/router"
	"github.com/qxuken/word-puzzles/internal/cache"
	"github.com/qxuken/word-puzzles/internal/words"
	"github.com/qxuken/word-puzzles/pkg/config"
	"github.com/qxuken/word-puzzles/pkg/health"
	"github.com/qxuken/word-puzzles/pkg/kafka"
	"github.com/qxuken/word-puzzles/pkg/logger"
	"github.com/qxuken/word-puzzles/pkg/metrics"
	"github.com/qxuken/word-puzzles/pkg/middleware"
	"github.com/qxuken/word-puzzles/pkg/postgres"
	pkgredis "github.com/qxuken/word-puzzles/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, "service", "solver")
	slog.Info("starting solver service", "addr", cfg.Server.Addr(), "mode", cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	provider := words.NewProvider(cfg.Dictionary)
	store, err := provider.Store()
	if err != nil {
		slog.Error("failed to load dictionary", "error", err)
		os.Exit(1)
	}
	one, two := store.Index.Buckets()
	m.DictionaryWords.Set(float64(store.Dict.Size()))
	m.IndexBuckets.WithLabelValues("1").Set(float64(one))
	m.IndexBuckets.WithLabelValues("2").Set(float64(two))

	checker := health.NewChecker()
	checker.Register("dictionary", func(ctx context.Context) health.ComponentHealth {
		if !provider.Ready() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "not loaded"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d words", store.Dict.Size())}
	})

	var solutions *cache.SolutionCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, solution caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			solutions = cache.New(redisClient, cfg.Redis, m)
			checker.Register("redis", health.Ping(redisClient.Ping, health.StatusDegraded))
			slog.Info("solution cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var (
		collector    *analytics.Collector
		analyticsH   *analytics.Handler
		snapshotList http.HandlerFunc
	)
	if cfg.Analytics.Enabled {
		topic := cfg.Kafka.Topics.SolveEvents
		producer := kafka.NewProducer(cfg.Kafka, topic)
		defer producer.Close()
		collector = analytics.NewCollector(producer, cfg.Analytics, m)
		collector.Start(ctx)
		defer collector.Close()

		aggregator := analytics.NewAggregator()
		aggregator.SetRunner(kafka.NewConsumer(cfg.Kafka, topic, analytics.HandleEvent(aggregator)))
		go func() {
			if err := aggregator.Start(ctx); err != nil {
				slog.Error("analytics aggregator error", "error", err)
			}
		}()
		analyticsH = analytics.NewHandler(aggregator)
		slog.Info("analytics enabled", "topic", topic, "brokers", cfg.Kafka.Brokers)

		if cfg.Analytics.PersistSnapshots {
			db, err := postgres.New(ctx, cfg.Postgres)
			if err != nil {
				slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
			} else {
				defer db.Close()
				snapshots := analyticsstore.New(db)
				if err := snapshots.Migrate(ctx); err != nil {
					slog.Error("failed to migrate analytics store", "error", err)
					os.Exit(1)
				}
				snapshots.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
				snapshotList = snapshots.ListHandler()
				checker.Register("postgres", health.Ping(db.Ping, health.StatusDegraded))
			}
		}
	}

	var limiter *middleware.Limiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewLimiter(cfg.RateLimit)
	}
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.CORS.AllowOrigins
	if cfg.Server.IsDevelopment() {
		cors.AllowOrigins = []string{"*"}
	}

	h := handler.New(provider, solutions, collector, m, cfg.Search)
	server := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: router.New(router.Deps{
			Handler:        h,
			Checker:        checker,
			Analytics:      analyticsH,
			Snapshots:      snapshotList,
			Metrics:        m,
			Limiter:        limiter,
			CORS:           cors,
			RequestTimeout: cfg.Server.RequestTimeout,
		}),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	shutdownMetrics := func(context.Context) error { return nil }
	if cfg.Metrics.Enabled {
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port, metrics.Handler())
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}()

	slog.Info("solver service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("solver service stopped")
}
