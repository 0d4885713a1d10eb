// Command sentiment serves the trained model over HTTP.
//
// The model artifact is loaded once at startup. When it is missing or
// invalid the process keeps running in a degraded state, answering health
// checks and returning 503 from /predict. PostgreSQL history, the Redis
// prediction cache and Kafka analytics are optional and switched on in the
// config file.
//
// Usage:
//
//	go run ./cmd/sentiment [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/history"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/inference"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/predictcache"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/internal/server"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Sentiment-Analysis-Platform/pkg/redis"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting sentiment service", "port", cfg.Server.Port, "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		ms, err := metrics.StartServer(cfg.Metrics.Port)
		if err != nil {
			slog.Error("failed to start metrics server", "error", err)
			os.Exit(1)
		}
		defer ms.Shutdown(context.Background())
	}

	expected, err := dataset.ParseSet(cfg.Model.ExpectedClasses)
	if err != nil {
		slog.Error("invalid model.expectedClasses", "error", err)
		os.Exit(1)
	}
	svc := inference.NewService(inference.Options{
		ExpectedClasses:    expected,
		ConfidenceDecimals: cfg.Model.ConfidenceDecimal,
		Metrics:            m,
	})
	if err := svc.Load(cfg.Model.ArtifactPath); err != nil {
		slog.Warn("serving without a model", "path", cfg.Model.ArtifactPath, "error", err)
	}

	checker := health.NewChecker()
	deps := server.Deps{Predictor: svc, Metrics: m, Version: version}

	if cfg.History.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, prediction history disabled", "error", err)
		} else {
			defer db.Close()
			store := history.NewStore(db, cfg.History, m)
			if err := store.EnsureSchema(ctx); err != nil {
				slog.Warn("history schema setup failed, prediction history disabled", "error", err)
			} else {
				defer store.Wait()
				deps.History = store
				checker.RegisterOptional("postgres", health.Pinger(store.Ping))
				checker.RegisterOptional("history-writes", store.WriteCheck)
				slog.Info("prediction history enabled", "database", cfg.Postgres.Database)
			}
		}
	}

	if cfg.Cache.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, prediction caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			deps.Cache = predictcache.New(redisClient, cfg.Cache.TTL, m)
			checker.RegisterOptional("redis", health.Pinger(redisClient.Ping))
			slog.Info("prediction cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Cache.TTL)
		}
	}

	if cfg.Analytics.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PredictionEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, cfg.Analytics.BufferSize, cfg.Analytics.FlushInterval)
		collector.Start(ctx)
		defer collector.Close()
		deps.Events = collector
		slog.Info("prediction events enabled", "topic", cfg.Kafka.Topics.PredictionEvents)
	}

	var limiter *middleware.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
		go limiter.Sweep(ctx, 5*time.Minute)
	}

	h := server.NewHandler(deps)
	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.NewRouter(h, server.RouterConfig{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			RequestTimeout: cfg.Server.RequestTimeout,
			Metrics:        m,
			Checker:        checker,
			Limiter:        limiter,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("sentiment service listening", "addr", srv.Addr, "model_state", svc.Status().State)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("sentiment service stopped")
}
