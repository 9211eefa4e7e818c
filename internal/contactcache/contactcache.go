// Package contactcache maps a contact's (cell, service, routing id) to its
// active conversation, backed by redis with a durable fallback.
package contactcache

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"msgcache/internal/domain"
)

// cellTTL matches the thread cache lifetime: an identity entry outliving its
// thread would only delay the durable fallback.
const cellTTL = 24 * time.Hour

type Cache struct {
	Redis  *redis.Client // nil = durable-only lookups
	DB     *pgxpool.Pool
	Prefix string
}

func New(rdb *redis.Client, db *pgxpool.Pool, prefix string) *Cache {
	return &Cache{Redis: rdb, DB: db, Prefix: prefix}
}

func (c *Cache) key(cell, routingID string) string {
	return c.Prefix + "cell-" + cell + "-" + routingID
}

// LookupByCell resolves the active conversation for a cell. With cacheOnly
// set the durable fallback is skipped, so a miss means "not determinable
// from cache", not "no such conversation".
//
// The durable fallback returns the most recent message's provider id along
// with the contact, which lets the save path dedup by direct comparison.
func (c *Cache) LookupByCell(ctx context.Context, cell, service, routingID string, cacheOnly bool) (domain.ActiveContact, bool, error) {
	if c.Redis != nil {
		fields, err := c.Redis.HGetAll(ctx, c.key(cell, routingID)).Result()
		if err == nil && len(fields) > 0 {
			return contactFromHash(fields, cell, routingID), true, nil
		}
	}
	if cacheOnly {
		return domain.ActiveContact{}, false, nil
	}

	row := c.DB.QueryRow(ctx, `
		SELECT cc.id, COALESCE(m.assignment_id, 0), cc.message_status,
		       COALESCE(cc.timezone_offset, ''), COALESCE(m.service_id, '')
		FROM message m
		JOIN campaign_contact cc ON cc.id = m.campaign_contact_id
		WHERE m.contact_number=$1
		  AND ($2 = '' OR m.service=$2)
		  AND m.messageservice_sid=$3
		ORDER BY m.created_at DESC
		LIMIT 1
	`, cell, service, routingID)

	var out domain.ActiveContact
	var status string
	err := row.Scan(&out.ConversationID, &out.AssignmentID, &status, &out.TimezoneOffset, &out.ProviderMessageID)
	if err == pgx.ErrNoRows {
		return domain.ActiveContact{}, false, nil
	}
	if err != nil {
		return domain.ActiveContact{}, false, err
	}
	out.MessageStatus = domain.MessageStatus(status)
	out.Cell = cell
	out.RoutingID = routingID
	return out, true, nil
}

// UpdateStatus writes the new conversation status durably and refreshes the
// cached identity entry so cache-only lookups keep seeing the live status.
func (c *Cache) UpdateStatus(ctx context.Context, conv domain.Conversation, status domain.MessageStatus) error {
	_, err := c.DB.Exec(ctx, `
		UPDATE campaign_contact SET message_status=$2, updated_at=now() WHERE id=$1
	`, conv.ID, string(status))
	if err != nil {
		return err
	}

	if c.Redis != nil && conv.Cell != "" && conv.RoutingID != "" {
		key := c.key(conv.Cell, conv.RoutingID)
		pipe := c.Redis.TxPipeline()
		pipe.HSet(ctx, key,
			"campaign_contact_id", strconv.FormatInt(conv.ID, 10),
			"assignment_id", strconv.FormatInt(conv.AssignmentID, 10),
			"message_status", string(status),
			"timezone_offset", conv.TimezoneOffset,
		)
		pipe.Expire(ctx, key, cellTTL)
		// Identity cache refresh is best-effort; the durable row already holds truth.
		_, _ = pipe.Exec(ctx)
	}
	return nil
}

func contactFromHash(fields map[string]string, cell, routingID string) domain.ActiveContact {
	cid, _ := strconv.ParseInt(fields["campaign_contact_id"], 10, 64)
	aid, _ := strconv.ParseInt(fields["assignment_id"], 10, 64)
	return domain.ActiveContact{
		ConversationID: cid,
		AssignmentID:   aid,
		MessageStatus:  domain.MessageStatus(fields["message_status"]),
		TimezoneOffset: fields["timezone_offset"],
		Cell:           cell,
		RoutingID:      routingID,
	}
}
