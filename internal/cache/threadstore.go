// Package cache holds the per-conversation thread cache: an ordered list of
// serialized messages in front of the durable store, expiring 24 hours after
// the last write.
//
// Entry absence means "unknown", never "empty": callers must fall through to
// the durable store on a miss.
package cache

import (
	"context"
	"encoding/json"
	"strconv"

	"msgcache/internal/domain"
	"msgcache/internal/observability"
)

// ThreadStore is the cache adapter. Exactly two implementations exist: the
// redis-backed store and Noop, selected at construction so call sites never
// branch on backend presence.
type ThreadStore interface {
	// Enabled reports whether a real backend is configured.
	Enabled() bool
	// Read returns the thread in chronological (oldest-first) order.
	// exists=false means the entry is unknown, not empty.
	Read(ctx context.Context, conversationID int64) (exists bool, msgs []domain.Message, err error)
	// Write appends msgs to the entry, or rebuilds it when overwrite is
	// set. msgs must be in chronological order. Every write resets the
	// TTL, including an empty append, which only touches the expiry.
	Write(ctx context.Context, conversationID int64, msgs []domain.Message, overwrite bool) error
	// Clear deletes the entry.
	Clear(ctx context.Context, conversationID int64) error
}

// Key derives the cache key for a conversation's thread. Every component
// touching the cache for a conversation must use this.
func Key(prefix string, conversationID int64) string {
	return prefix + "messages-" + strconv.FormatInt(conversationID, 10)
}

// Noop is the disabled-cache implementation: every read is a miss and every
// write is dropped, which callers treat as a permanently cold cache.
type Noop struct{}

func (Noop) Enabled() bool { return false }

func (Noop) Read(ctx context.Context, conversationID int64) (bool, []domain.Message, error) {
	observability.CacheReads.WithLabelValues("disabled").Inc()
	return false, nil, nil
}

func (Noop) Write(ctx context.Context, conversationID int64, msgs []domain.Message, overwrite bool) error {
	return nil
}

func (Noop) Clear(ctx context.Context, conversationID int64) error { return nil }

// encodeMessage serializes one message for cache storage. The raw provider
// response is stripped first; it is large and is never served from cache.
func encodeMessage(m domain.Message) (string, error) {
	m.ServiceResponse = ""
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeThread turns a raw list as stored (newest first, from the
// prepend-based write path) into chronological order for callers.
func decodeThread(raw []string) ([]domain.Message, error) {
	msgs := make([]domain.Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var m domain.Message
		if err := json.Unmarshal([]byte(raw[i]), &m); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}
