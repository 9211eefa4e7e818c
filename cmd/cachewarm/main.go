// cachewarm bulk-reads a campaign's messages from the durable store and
// seeds the per-conversation thread cache, so texter reads after a deploy or
// cache flush hit warm entries.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"msgcache/internal/cache"
	"msgcache/internal/config"
	"msgcache/internal/contactcache"
	"msgcache/internal/domain"
	"msgcache/internal/inflight"
	"msgcache/internal/logging"
	"msgcache/internal/store/pg"
	"msgcache/internal/thread"
)

func main() {
	campaignID := flag.Int64("campaign", 0, "campaign id to warm")
	flag.Parse()

	cfg := config.Load()
	logging.Init("cachewarm", cfg.LogFormat)

	if *campaignID == 0 {
		slog.Error("campaign id required")
		os.Exit(2)
	}
	if !cfg.CacheEnabled() {
		slog.Error("no cache backend configured, nothing to warm")
		os.Exit(2)
	}

	ctx := context.Background()

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
		MaxConns:        cfg.DBPoolMaxConns,
		MinConns:        cfg.DBPoolMinConns,
		MaxConnLifetime: cfg.DBPoolMaxConnLifetime,
		MaxConnIdleTime: cfg.DBPoolMaxConnIdleTime,
	})
	if err != nil {
		slog.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("redis url invalid", "err", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("redis connect failed", "err", err)
		os.Exit(1)
	}

	svc := &thread.Service{
		Cache:       cache.New(rdb, cfg.CachePrefix),
		Store:       pg.New(db),
		Contacts:    contactcache.New(rdb, db, cfg.CachePrefix),
		InFlight:    inflight.New(rdb, cfg.CachePrefix),
		SeedLimiter: rate.NewLimiter(rate.Limit(cfg.CacheSeedRPS), int(cfg.CacheSeedRPS)),
	}

	msgs, err := svc.Query(ctx, domain.ConversationRef{CampaignID: *campaignID})
	if err != nil {
		slog.Error("campaign warm failed", "err", err, "campaign_id", *campaignID)
		os.Exit(1)
	}
	slog.Info("campaign warmed", "campaign_id", *campaignID, "messages", len(msgs))
}
