// Command analytics starts the standalone prediction analytics service.
//
// It consumes prediction events from Kafka, aggregates them in memory
// (label mix, confidence, latency percentiles, cache hit rate) and exposes
// them at GET /api/v1/analytics. When PostgreSQL is reachable the
// aggregate is also snapshotted periodically.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Analytics.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	topic := cfg.Kafka.Topics.PredictionEvents
	consumer := kafka.NewConsumer(cfg.Kafka, topic, agg.HandleEvent())
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("consumer error", "error", err)
		}
	}()
	slog.Info("analytics consumer started", "topic", topic)

	checker := health.NewChecker()
	checker.Register("kafka", consumer.Check)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(agg).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshots disabled", "error", err)
	} else {
		defer db.Close()
		store := aggregator.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Warn("snapshot schema setup failed, snapshots disabled", "error", err)
		} else {
			store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
			checker.RegisterOptional("postgres", health.Pinger(db.Ping))
			mux.HandleFunc("GET /api/v1/analytics/snapshot", store.LatestHandler())
		}
	}

	m := metrics.New()
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler:      middleware.Chain(mux, middleware.RequestID, middleware.Metrics(m)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}
