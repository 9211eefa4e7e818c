// Package thread implements the conversation message-thread core: identity
// resolution, inbound dedup, the write-through save path, and the cached
// query path. The durable store is system of record everywhere; the cache is
// an optimization that may be disabled, stale, or mid-rebuild at any time.
package thread

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"msgcache/internal/cache"
	"msgcache/internal/domain"
	"msgcache/internal/observability"
)

// ContactCache is the external contact-identity cache. LookupByCell with
// cacheOnly set must not fall back to a durable query.
type ContactCache interface {
	LookupByCell(ctx context.Context, cell, service, routingID string, cacheOnly bool) (domain.ActiveContact, bool, error)
	UpdateStatus(ctx context.Context, conv domain.Conversation, status domain.MessageStatus) error
}

// InFlightTracker releases a conversation's outbound concurrency slot.
// texterUserID, when non-zero, also bumps that texter's last-activity time.
type InFlightTracker interface {
	PopInFlight(ctx context.Context, campaignID, conversationID, texterUserID int64) error
}

// DurableStore is the relational reader/writer.
type DurableStore interface {
	QueryMessages(ctx context.Context, ref domain.ConversationRef) ([]domain.Message, error)
	PersistMessage(ctx context.Context, m domain.Message, isUpdate bool) (domain.Message, error)
}

// OrphanSink receives inbound messages that have no thread to attach to.
type OrphanSink interface {
	PublishOrphan(ctx context.Context, m domain.Message) error
}

type Service struct {
	Cache    cache.ThreadStore
	Store    DurableStore
	Contacts ContactCache
	InFlight InFlightTracker

	// Orphans is optional; nil means orphans are logged and metered only.
	Orphans OrphanSink

	// SeedLimiter bounds the bulk cache-seeding rate. Optional.
	SeedLimiter *rate.Limiter

	// Now is the save timestamp source, overridable in tests.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Resolve maps a reference to its canonical conversation id without touching
// the durable store. A direct id is returned as-is. An incomplete indirect
// identity is a contract violation. Zero with a nil error means no identity
// is determinable from cache alone; callers treat that as a legitimate empty
// result.
func (s *Service) Resolve(ctx context.Context, ref domain.ConversationRef) (int64, error) {
	return s.resolve(ctx, ref, true)
}

func (s *Service) resolve(ctx context.Context, ref domain.ConversationRef, cacheOnly bool) (int64, error) {
	if ref.ConversationID > 0 {
		return ref.ConversationID, nil
	}
	// service may legitimately be blank; the lookup substitutes "".
	if ref.AssignmentID == 0 || ref.Cell == "" || ref.RoutingID == "" {
		return 0, domain.ErrMissingIdentity
	}
	if cacheOnly && !s.Cache.Enabled() {
		return 0, nil
	}
	found, ok, err := s.Contacts.LookupByCell(ctx, ref.Cell, ref.Service, ref.RoutingID, cacheOnly)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return found.ConversationID, nil
}

// Query returns a conversation's thread in chronological order, served from
// cache when possible. Campaign references take the bulk durable path and
// seed a cache entry per conversation so later single-conversation reads hit.
func (s *Service) Query(ctx context.Context, ref domain.ConversationRef) ([]domain.Message, error) {
	cid := ref.ConversationID
	if cid == 0 && ref.Cell != "" {
		id, err := s.resolve(ctx, ref, false)
		if err != nil {
			return nil, err
		}
		cid = id
	}
	if cid == 0 && ref.CampaignID == 0 && ref.Cell == "" {
		return nil, domain.ErrMissingIdentity
	}

	if cid > 0 {
		exists, msgs, err := s.Cache.Read(ctx, cid)
		if err != nil {
			return nil, err
		}
		if exists {
			return msgs, nil
		}
	}

	dbResult, err := s.Store.QueryMessages(ctx, domain.ConversationRef{ConversationID: cid, CampaignID: ref.CampaignID})
	if err != nil {
		return nil, err
	}
	if err := s.seedCache(ctx, dbResult); err != nil {
		return nil, err
	}
	return dbResult, nil
}

// seedCache rebuilds one cache entry per conversation found in a durable
// result. The result is assumed comprehensive per conversation. Entries are
// written sequentially, optionally throttled, to bound burst load on the
// backend.
func (s *Service) seedCache(ctx context.Context, dbResult []domain.Message) error {
	if !s.Cache.Enabled() || len(dbResult) == 0 {
		return nil
	}
	byConversation := map[int64][]domain.Message{}
	var order []int64
	for _, m := range dbResult {
		if _, seen := byConversation[m.ConversationID]; !seen {
			order = append(order, m.ConversationID)
		}
		byConversation[m.ConversationID] = append(byConversation[m.ConversationID], m)
	}
	for _, cid := range order {
		if s.SeedLimiter != nil {
			if err := s.SeedLimiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := s.Cache.Write(ctx, cid, byConversation[cid], true); err != nil {
			return err
		}
		observability.CacheSeeds.Inc()
	}
	return nil
}

// Clear drops a conversation's cache entry. A no-op when caching is disabled
// or no conversation id is resolvable.
func (s *Service) Clear(ctx context.Context, ref domain.ConversationRef) error {
	if !s.Cache.Enabled() {
		return nil
	}
	cid, err := s.resolve(ctx, ref, false)
	if err != nil {
		return err
	}
	if cid == 0 {
		return nil
	}
	return s.Cache.Clear(ctx, cid)
}

// Save is the central write path. For inbound messages it resolves the
// active conversation, rejects orphans and provider-id duplicates, and
// backfills identity onto the hint and the message. It then stamps
// created_at, releases the in-flight slot, appends to cache, advances the
// conversation status, and persists durably.
//
// The steps are deliberately not atomic: a cache append that is never
// followed by a durable row is a transient inconsistency repaired by the
// next full rebuild, and the durable store's uniqueness on the provider
// message id is the final dedup authority.
//
// Duplicate and orphan outcomes mean no state changed; errors mean the
// operation could not complete.
func (s *Service) Save(ctx context.Context, msg domain.Message, hint domain.Conversation) (domain.Conversation, domain.SaveOutcome, error) {
	conv := hint

	if msg.IsFromContact {
		// Inbound carries no conversation id; it must be recovered from
		// the cell + messaging-service identity. Durable fallback allowed.
		found, ok, err := s.Contacts.LookupByCell(ctx, msg.ContactNumber, msg.Service, msg.RoutingID, false)
		if err != nil {
			return domain.Conversation{}, "", err
		}
		if !ok {
			s.reportOrphan(ctx, msg)
			return domain.Conversation{}, domain.SaveOrphan, nil
		}

		dup, err := s.isDuplicate(ctx, msg, found)
		if err != nil {
			return domain.Conversation{}, "", err
		}
		if dup {
			slog.Warn("duplicate inbound message",
				"provider_message_id", msg.ProviderMessageID,
				"conversation_id", found.ConversationID,
			)
			observability.SaveOutcomes.WithLabelValues(string(domain.SaveDuplicate)).Inc()
			return domain.Conversation{}, domain.SaveDuplicate, nil
		}

		conv = backfillConversation(conv, found, msg)
		msg = backfillMessage(msg, found)
	}

	// The provider's timestamp is not trusted; clients need a valid order
	// key before the durable write completes.
	msg.CreatedAt = s.now()

	if conv.CampaignID != 0 {
		var texterID int64
		if !msg.IsFromContact {
			texterID = msg.UserID
		}
		if err := s.InFlight.PopInFlight(ctx, conv.CampaignID, conv.ID, texterID); err != nil {
			return domain.Conversation{}, "", err
		}
	}

	if err := s.Cache.Write(ctx, conv.ID, []domain.Message{msg}, false); err != nil {
		return domain.Conversation{}, "", err
	}

	newStatus := domain.NextStatus(conv.MessageStatus, msg.IsFromContact)
	if err := s.Contacts.UpdateStatus(ctx, conv, newStatus); err != nil {
		return domain.Conversation{}, "", err
	}

	if _, err := s.Store.PersistMessage(ctx, msg, msg.ID != 0); err != nil {
		return domain.Conversation{}, "", err
	}

	observability.SaveOutcomes.WithLabelValues(string(domain.SaveSaved)).Inc()
	conv.MessageStatus = newStatus
	return conv, domain.SaveSaved, nil
}

// isDuplicate applies the two-tier dedup check. A durable-derived record
// carries the last message's provider id and is compared directly; a
// cache-derived record forces a thread scan. Messages without a provider id
// are never deduplicated against each other: only provider-assigned identity
// is trusted.
func (s *Service) isDuplicate(ctx context.Context, msg domain.Message, found domain.ActiveContact) (bool, error) {
	if found.ProviderMessageID != "" {
		return msg.ProviderMessageID == found.ProviderMessageID, nil
	}
	threadMsgs, err := s.Query(ctx, domain.ConversationRef{ConversationID: found.ConversationID})
	if err != nil {
		return false, err
	}
	for _, m := range threadMsgs {
		if m.ProviderMessageID != "" && m.ProviderMessageID == msg.ProviderMessageID {
			return true, nil
		}
	}
	return false, nil
}

// reportOrphan logs, meters, and optionally publishes an inbound message
// with no active thread. Rare in practice: a reply long after a campaign
// closed, or a wrong-number text. Never fatal for the caller.
func (s *Service) reportOrphan(ctx context.Context, msg domain.Message) {
	slog.Error("orphan inbound message",
		"contact_number", msg.ContactNumber,
		"service", msg.Service,
		"routing_id", msg.RoutingID,
		"provider_message_id", msg.ProviderMessageID,
	)
	observability.SaveOutcomes.WithLabelValues(string(domain.SaveOrphan)).Inc()
	if s.Orphans == nil {
		return
	}
	if err := s.Orphans.PublishOrphan(ctx, msg); err != nil {
		slog.Error("orphan publish failed", "err", err)
		observability.OrphanPublishes.WithLabelValues("error").Inc()
		return
	}
	observability.OrphanPublishes.WithLabelValues("ok").Inc()
}

// backfillConversation fills gaps in the caller's hint from the active
// contact record; hint values win. A new enriched value is returned, the
// hint itself is never mutated.
func backfillConversation(hint domain.Conversation, found domain.ActiveContact, msg domain.Message) domain.Conversation {
	out := hint
	if out.ID == 0 {
		out.ID = found.ConversationID
	}
	if out.AssignmentID == 0 {
		out.AssignmentID = found.AssignmentID
	}
	if out.MessageStatus == "" {
		out.MessageStatus = found.MessageStatus
	}
	if out.TimezoneOffset == "" {
		out.TimezoneOffset = found.TimezoneOffset
	}
	if out.Cell == "" {
		out.Cell = msg.ContactNumber
	}
	if out.RoutingID == "" {
		out.RoutingID = msg.RoutingID
	}
	return out
}

// backfillMessage fills the message's thread linkage from the active
// contact record when absent.
func backfillMessage(msg domain.Message, found domain.ActiveContact) domain.Message {
	out := msg
	if out.ConversationID == 0 {
		out.ConversationID = found.ConversationID
	}
	if out.AssignmentID == 0 {
		out.AssignmentID = found.AssignmentID
	}
	return out
}
