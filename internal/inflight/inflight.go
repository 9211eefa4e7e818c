// Package inflight tracks conversations with an outbound send in progress,
// one redis set per campaign.
package inflight

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type Tracker struct {
	Redis  *redis.Client // nil = tracking disabled
	Prefix string
}

func New(rdb *redis.Client, prefix string) *Tracker {
	return &Tracker{Redis: rdb, Prefix: prefix}
}

func (t *Tracker) campaignKey(campaignID int64) string {
	return t.Prefix + "inflight-" + strconv.FormatInt(campaignID, 10)
}

// PopInFlight releases the conversation's send slot. When texterUserID is
// non-zero (an outbound send by a known texter) the texter's last-activity
// timestamp is bumped as well.
func (t *Tracker) PopInFlight(ctx context.Context, campaignID, conversationID, texterUserID int64) error {
	if t.Redis == nil {
		return nil
	}
	pipe := t.Redis.TxPipeline()
	pipe.SRem(ctx, t.campaignKey(campaignID), strconv.FormatInt(conversationID, 10))
	if texterUserID > 0 {
		pipe.HSet(ctx, t.Prefix+"texter-activity",
			strconv.FormatInt(texterUserID, 10),
			time.Now().UTC().Format(time.RFC3339))
	}
	_, err := pipe.Exec(ctx)
	return err
}
