package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"msgcache/internal/cache"
	"msgcache/internal/config"
	"msgcache/internal/contactcache"
	"msgcache/internal/httpapi"
	"msgcache/internal/inflight"
	"msgcache/internal/logging"
	"msgcache/internal/observability"
	sqsqueue "msgcache/internal/queue/sqs"
	"msgcache/internal/store/pg"
	"msgcache/internal/thread"
)

func main() {
	cfg := config.Load()
	logging.Init("api", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
		MaxConns:        cfg.DBPoolMaxConns,
		MinConns:        cfg.DBPoolMinConns,
		MaxConnLifetime: cfg.DBPoolMaxConnLifetime,
		MaxConnIdleTime: cfg.DBPoolMaxConnIdleTime,
	})
	if err != nil {
		slog.Error("api db connect failed", "err", err)
		os.Exit(1)
	}

	var rdb *redis.Client
	if cfg.CacheEnabled() {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("api redis url invalid", "err", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("api redis connect failed", "err", err)
			os.Exit(1)
		}
	} else {
		slog.Info("api running without a cache backend, durable-only mode")
	}

	observability.Register(prometheus.DefaultRegisterer)

	svc := &thread.Service{
		Cache:       cache.New(rdb, cfg.CachePrefix),
		Store:       pg.New(db),
		Contacts:    contactcache.New(rdb, db, cfg.CachePrefix),
		InFlight:    inflight.New(rdb, cfg.CachePrefix),
		SeedLimiter: rate.NewLimiter(rate.Limit(cfg.CacheSeedRPS), int(cfg.CacheSeedRPS)),
	}

	if cfg.OrphanQueueURL != "" {
		sqsClient, err := sqsqueue.NewClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
		if err != nil {
			slog.Error("api sqs client init failed", "err", err)
			os.Exit(1)
		}
		svc.Orphans = &sqsqueue.OrphanProducer{SQS: sqsClient, QueueURL: cfg.OrphanQueueURL}
	}

	s := httpapi.New()
	api := &httpapi.API{Threads: svc}
	api.Register(s.Router)

	s.Router.HandleFunc("/healthz", httpapi.Healthz())
	readyChecks := []httpapi.ReadyzCheck{func(ctx context.Context) error {
		return db.Ping(ctx)
	}}
	if rdb != nil {
		readyChecks = append(readyChecks, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	s.Router.HandleFunc("/readyz", httpapi.Readyz(2*time.Second, readyChecks...))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: s.Router,
	}
	metricsSrv := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: promhttp.Handler(),
	}

	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api metrics server failed", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("api shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("api listening", "port", cfg.Port, "metrics_port", cfg.MetricsPort, "cache_enabled", cfg.CacheEnabled())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("api server failed", "err", err)
		os.Exit(1)
	}

	db.Close()
}
