package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"msgcache/internal/domain"
)

func TestKey(t *testing.T) {
	if got := Key("", 42); got != "messages-42" {
		t.Fatalf("unexpected key without prefix: %q", got)
	}
	if got := Key("stage-", 42); got != "stage-messages-42" {
		t.Fatalf("unexpected prefixed key: %q", got)
	}
}

func TestEncodeMessageStripsServiceResponse(t *testing.T) {
	m := domain.Message{
		ID:              7,
		ConversationID:  42,
		ContactNumber:   "+15551234567",
		Text:            "hello",
		ServiceResponse: `{"sid":"SM123","raw":"huge payload"}`,
		CreatedAt:       time.Now().UTC(),
	}
	payload, err := encodeMessage(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(payload, "service_response") {
		t.Fatalf("cached payload must not carry the provider response: %s", payload)
	}
	if strings.Contains(payload, "SM123") {
		t.Fatalf("provider response leaked into cache payload: %s", payload)
	}
	if !strings.Contains(payload, `"contact_number":"+15551234567"`) {
		t.Fatalf("expected contact number in payload: %s", payload)
	}
}

// The store keeps entries newest-first (prepend writes); decodeThread must
// hand back chronological order.
func TestDecodeThreadReversesToChronological(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	msgs := []domain.Message{
		{ID: 1, ConversationID: 9, Text: "first", CreatedAt: base},
		{ID: 2, ConversationID: 9, Text: "second", CreatedAt: base.Add(time.Minute)},
		{ID: 3, ConversationID: 9, Text: "third", CreatedAt: base.Add(2 * time.Minute)},
	}

	// as stored: newest at head
	var raw []string
	for i := len(msgs) - 1; i >= 0; i-- {
		p, err := encodeMessage(msgs[i])
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		raw = append(raw, p)
	}

	got, err := decodeThread(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(msgs) {
		t.Fatalf("expected %d messages, got %d", len(msgs), len(got))
	}
	for i := range msgs {
		if got[i].ID != msgs[i].ID || got[i].Text != msgs[i].Text {
			t.Fatalf("position %d: got %+v, want %+v", i, got[i], msgs[i])
		}
		if !got[i].CreatedAt.Equal(msgs[i].CreatedAt) {
			t.Fatalf("position %d: timestamp mismatch", i)
		}
	}
}

func TestDecodeThreadRejectsCorruptEntry(t *testing.T) {
	if _, err := decodeThread([]string{"{not json"}); err == nil {
		t.Fatalf("expected decode error for corrupt entry")
	}
}

func TestNoopIsColdCache(t *testing.T) {
	ctx := context.Background()
	var s ThreadStore = Noop{}

	if s.Enabled() {
		t.Fatalf("noop store must report disabled")
	}
	if err := s.Write(ctx, 1, []domain.Message{{Text: "x"}}, false); err != nil {
		t.Fatalf("noop write: %v", err)
	}
	exists, msgs, err := s.Read(ctx, 1)
	if err != nil {
		t.Fatalf("noop read: %v", err)
	}
	if exists || msgs != nil {
		t.Fatalf("noop read must look like a cold cache, got exists=%v msgs=%v", exists, msgs)
	}
	if err := s.Clear(ctx, 1); err != nil {
		t.Fatalf("noop clear: %v", err)
	}
}
