package sqsqueue

import (
	"testing"

	"msgcache/internal/domain"
)

func TestDedupIDPrefersProviderID(t *testing.T) {
	got := dedupID(domain.Message{ProviderMessageID: "SM123"})
	if got != "SM123" {
		t.Fatalf("expected provider id, got %q", got)
	}
}

func TestDedupIDWithoutProviderID(t *testing.T) {
	a := dedupID(domain.Message{})
	b := dedupID(domain.Message{})
	if a == "" || b == "" {
		t.Fatalf("expected generated ids, got %q / %q", a, b)
	}
	if a == b {
		t.Fatalf("generated ids must be unique, got %q twice", a)
	}
}
