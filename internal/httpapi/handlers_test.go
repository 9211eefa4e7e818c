package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"msgcache/internal/domain"
)

type fakeThreads struct {
	msgs    []domain.Message
	conv    domain.Conversation
	outcome domain.SaveOutcome
	err     error

	lastRef domain.ConversationRef
	cleared []int64
}

func (f *fakeThreads) Query(ctx context.Context, ref domain.ConversationRef) ([]domain.Message, error) {
	f.lastRef = ref
	return f.msgs, f.err
}

func (f *fakeThreads) Save(ctx context.Context, msg domain.Message, hint domain.Conversation) (domain.Conversation, domain.SaveOutcome, error) {
	return f.conv, f.outcome, f.err
}

func (f *fakeThreads) Clear(ctx context.Context, ref domain.ConversationRef) error {
	f.cleared = append(f.cleared, ref.ConversationID)
	return f.err
}

func newTestServer(threads *fakeThreads) *httptest.Server {
	s := New()
	api := &API{Threads: threads}
	api.Register(s.Router)
	return httptest.NewServer(s.Router)
}

func TestConversationMessages(t *testing.T) {
	threads := &fakeThreads{msgs: []domain.Message{{ID: 1, ConversationID: 42, Text: "hi"}}}
	srv := newTestServer(threads)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/conversations/42/messages")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if threads.lastRef.ConversationID != 42 {
		t.Fatalf("expected conversation ref 42, got %+v", threads.lastRef)
	}

	var msgs []domain.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != "hi" {
		t.Fatalf("unexpected body: %v", msgs)
	}
}

func TestCampaignMessages(t *testing.T) {
	threads := &fakeThreads{}
	srv := newTestServer(threads)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/campaigns/7/messages")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if threads.lastRef.CampaignID != 7 {
		t.Fatalf("expected campaign ref 7, got %+v", threads.lastRef)
	}
}

func TestConversationMessagesBadID(t *testing.T) {
	srv := newTestServer(&fakeThreads{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/conversations/notanid/messages")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSaveMessageCreated(t *testing.T) {
	threads := &fakeThreads{
		conv:    domain.Conversation{ID: 42, MessageStatus: domain.StatusConvo},
		outcome: domain.SaveSaved,
	}
	srv := newTestServer(threads)
	defer srv.Close()

	body := `{"message":{"contact_number":"+15551234567","text":"hi"},"conversation":{"id":42}}`
	resp, err := http.Post(srv.URL+"/v1/messages", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var out saveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Outcome != domain.SaveSaved || out.Conversation == nil || out.Conversation.MessageStatus != domain.StatusConvo {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestSaveMessageDuplicateIsOK(t *testing.T) {
	threads := &fakeThreads{outcome: domain.SaveDuplicate}
	srv := newTestServer(threads)
	defer srv.Close()

	body := `{"message":{"contact_number":"+15551234567","is_from_contact":true,"service_id":"SM1"}}`
	resp, err := http.Post(srv.URL+"/v1/messages", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for no-change outcome, got %d", resp.StatusCode)
	}

	var out saveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Outcome != domain.SaveDuplicate || out.Conversation != nil {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestSaveMessageMissingIdentity(t *testing.T) {
	threads := &fakeThreads{err: domain.ErrMissingIdentity}
	srv := newTestServer(threads)
	defer srv.Close()

	body := `{"message":{"contact_number":"+15551234567"}}`
	resp, err := http.Post(srv.URL+"/v1/messages", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("contract violation must map to 400, got %d", resp.StatusCode)
	}
}

func TestClearCache(t *testing.T) {
	threads := &fakeThreads{}
	srv := newTestServer(threads)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/conversations/42/cache", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if len(threads.cleared) != 1 || threads.cleared[0] != 42 {
		t.Fatalf("expected clear of conversation 42, got %v", threads.cleared)
	}
}
