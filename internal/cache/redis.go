package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"msgcache/internal/domain"
	"msgcache/internal/observability"
)

// TTL is the thread entry lifetime, reset on every write.
const TTL = 24 * time.Hour

type redisStore struct {
	client  *redis.Client
	prefix  string
	breaker *gobreaker.CircuitBreaker
}

// New returns the redis-backed store, or Noop when no client is configured.
func New(client *redis.Client, prefix string) ThreadStore {
	if client == nil {
		return Noop{}
	}
	return &redisStore{
		client: client,
		prefix: prefix,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "thread-cache",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (s *redisStore) Enabled() bool { return true }

func (s *redisStore) key(conversationID int64) string { return Key(s.prefix, conversationID) }

// Read degrades to a miss on any backend trouble; a sick cache must look
// like a cold cache, never an error.
func (s *redisStore) Read(ctx context.Context, conversationID int64) (bool, []domain.Message, error) {
	key := s.key(conversationID)
	res, err := s.breaker.Execute(func() (any, error) {
		pipe := s.client.TxPipeline()
		existsCmd := pipe.Exists(ctx, key)
		rangeCmd := pipe.LRange(ctx, key, 0, -1)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
		if existsCmd.Val() == 0 {
			return nil, nil
		}
		return rangeCmd.Val(), nil
	})
	if err != nil {
		slog.Warn("thread cache read degraded", "err", err, "conversation_id", conversationID)
		observability.CacheReads.WithLabelValues("error").Inc()
		return false, nil, nil
	}
	raw, ok := res.([]string)
	if !ok {
		observability.CacheReads.WithLabelValues("miss").Inc()
		return false, nil, nil
	}
	msgs, err := decodeThread(raw)
	if err != nil {
		// Corrupt entry: drop it and report a miss so the durable read rebuilds.
		slog.Warn("thread cache entry corrupt, clearing", "err", err, "conversation_id", conversationID)
		_ = s.Clear(ctx, conversationID)
		observability.CacheReads.WithLabelValues("error").Inc()
		return false, nil, nil
	}
	observability.CacheReads.WithLabelValues("hit").Inc()
	return true, msgs, nil
}

func (s *redisStore) Write(ctx context.Context, conversationID int64, msgs []domain.Message, overwrite bool) error {
	// LPUSH with chronological args leaves the newest message at the head;
	// Read reverses at the boundary.
	payloads := make([]any, 0, len(msgs))
	for _, m := range msgs {
		p, err := encodeMessage(m)
		if err != nil {
			return err
		}
		payloads = append(payloads, p)
	}

	key := s.key(conversationID)
	_, err := s.breaker.Execute(func() (any, error) {
		pipe := s.client.TxPipeline()
		if overwrite {
			pipe.Del(ctx, key)
		}
		if len(payloads) > 0 {
			pipe.LPush(ctx, key, payloads...)
		}
		pipe.Expire(ctx, key, TTL)
		_, err := pipe.Exec(ctx)
		return nil, err
	})
	if err != nil {
		slog.Warn("thread cache write degraded", "err", err, "conversation_id", conversationID)
		return nil
	}
	mode := "append"
	if overwrite {
		mode = "rebuild"
	}
	observability.CacheWrites.WithLabelValues(mode).Inc()
	return nil
}

func (s *redisStore) Clear(ctx context.Context, conversationID int64) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.client.Del(ctx, s.key(conversationID)).Err()
	})
	if err != nil {
		slog.Warn("thread cache clear degraded", "err", err, "conversation_id", conversationID)
	}
	return nil
}
