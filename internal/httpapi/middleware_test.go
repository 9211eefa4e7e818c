package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"msgcache/internal/observability"
)

func TestInstrumentCountsByRouteTemplate(t *testing.T) {
	s := New()
	s.Router.HandleFunc("/v1/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	counter := observability.APIRequests.WithLabelValues("/v1/conversations/{id}/messages", "200")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/conversations/42/messages", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("template-labelled counter = %v, want %v", got, before+1)
	}

	// the raw path must never become a label
	literal := observability.APIRequests.WithLabelValues("/v1/conversations/42/messages", "200")
	if got := testutil.ToFloat64(literal); got != 0 {
		t.Fatalf("literal path leaked into metric labels, count = %v", got)
	}
}

func TestInstrumentRecordsErrorStatus(t *testing.T) {
	s := New()
	s.Router.HandleFunc("/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid json", http.StatusBadRequest)
	}).Methods(http.MethodPost)

	counter := observability.APIRequests.WithLabelValues("/v1/messages", "400")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/messages", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("counter = %v, want %v", got, before+1)
	}
}
