package inflight

import (
	"context"
	"testing"
)

func TestCampaignKey(t *testing.T) {
	tr := New(nil, "stage-")
	if got := tr.campaignKey(7); got != "stage-inflight-7" {
		t.Fatalf("unexpected key: %q", got)
	}
}

func TestPopWithoutBackendIsNoop(t *testing.T) {
	tr := New(nil, "")
	if err := tr.PopInFlight(context.Background(), 7, 42, 99); err != nil {
		t.Fatalf("pop without backend: %v", err)
	}
}
