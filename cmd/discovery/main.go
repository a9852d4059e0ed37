package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/discovery"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/discovery/cache"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/discovery/handler"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/discovery/prefix"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/discovery/trending"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/forum/events"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/forum/store"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
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
	slog.Info("starting topic discovery service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	pg, err := resilience.Connect(ctx, "postgres", resilience.RetryConfig{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond}, func() (*postgres.Client, error) {
		return postgres.New(cfg.Postgres)
	})
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pg.Close()
	forumStore := store.New(pg)

	var cacheStore cache.Store
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, trending cache disabled", "error", err)
	} else {
		defer redisClient.Close()
		cacheStore = redisClient
		slog.Info("trending cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	svc := discovery.NewService(
		prefix.NewSearcher(forumStore, m),
		trending.NewRanker(forumStore, cfg.Discovery.Weights, trending.WithMetrics(m)),
		cache.New(cacheStore, cfg.Redis, m),
		cfg.Discovery,
		m,
	)

	checker := health.NewChecker()
	checker.Register("postgres", true, health.PingCheck(pg.Ping))
	var redisPing func(context.Context) error
	if redisClient != nil {
		redisPing = redisClient.Ping
	}
	checker.Register("redis", false, health.PingCheck(redisPing))

	var tracker handler.Tracker
	if cfg.Discovery.AnalyticsEnabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, cfg.Discovery.AnalyticsBuffer, m)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	}

	if cfg.Discovery.InvalidateOnEvents {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ForumEvents, events.NewHandler(svc, true, m))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("forum events consumer error", "error", err)
			}
		}()
		slog.Info("forum events consumer started", "topic", consumer.Topic())
	}
	if cfg.Discovery.AnalyticsEnabled || cfg.Discovery.InvalidateOnEvents {
		checker.Register("kafka", false, health.PingCheck(func(ctx context.Context) error {
			return kafka.Ping(ctx, cfg.Kafka.Brokers)
		}))
	}

	mux := http.NewServeMux()
	handler.New(svc, tracker, cfg.Discovery).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	// Metrics sits directly on the mux: route labels come from the
	// r.Pattern that ServeMux sets on the request it was handed.
	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port, reg)
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if shutdownMetrics != nil {
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("topic discovery service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone

	slog.Info("topic discovery service stopped")
}
