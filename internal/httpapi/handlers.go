package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"msgcache/internal/domain"
)

// Threads is the slice of the thread service the API needs.
type Threads interface {
	Query(ctx context.Context, ref domain.ConversationRef) ([]domain.Message, error)
	Save(ctx context.Context, msg domain.Message, hint domain.Conversation) (domain.Conversation, domain.SaveOutcome, error)
	Clear(ctx context.Context, ref domain.ConversationRef) error
}

type API struct {
	Threads Threads
}

func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/v1/conversations/{id}/messages", a.handleConversationMessages).Methods(http.MethodGet)
	r.HandleFunc("/v1/campaigns/{id}/messages", a.handleCampaignMessages).Methods(http.MethodGet)
	r.HandleFunc("/v1/messages", a.handleSaveMessage).Methods(http.MethodPost)
	r.HandleFunc("/v1/conversations/{id}/cache", a.handleClearCache).Methods(http.MethodDelete)
}

type saveRequest struct {
	Message      domain.Message      `json:"message"`
	Conversation domain.Conversation `json:"conversation"`
}

type saveResponse struct {
	Outcome      domain.SaveOutcome   `json:"outcome"`
	Conversation *domain.Conversation `json:"conversation,omitempty"`
}

func (a *API) handleConversationMessages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}
	msgs, err := a.Threads.Query(r.Context(), domain.ConversationRef{ConversationID: id})
	if err != nil {
		slog.Error("conversation query failed", "err", err, "conversation_id", id)
		http.Error(w, "query failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (a *API) handleCampaignMessages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	msgs, err := a.Threads.Query(r.Context(), domain.ConversationRef{CampaignID: id})
	if err != nil {
		slog.Error("campaign query failed", "err", err, "campaign_id", id)
		http.Error(w, "query failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (a *API) handleSaveMessage(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Message.ContactNumber == "" {
		http.Error(w, "missing contact number", http.StatusBadRequest)
		return
	}

	conv, outcome, err := a.Threads.Save(r.Context(), req.Message, req.Conversation)
	if err != nil {
		if errors.Is(err, domain.ErrMissingIdentity) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("message save failed", "err", err,
			"contact_number", req.Message.ContactNumber,
			"is_from_contact", req.Message.IsFromContact,
		)
		http.Error(w, "save failed", http.StatusBadGateway)
		return
	}

	switch outcome {
	case domain.SaveSaved:
		writeJSON(w, http.StatusCreated, saveResponse{Outcome: outcome, Conversation: &conv})
	default:
		// duplicate or orphan: nothing changed, report which.
		writeJSON(w, http.StatusOK, saveResponse{Outcome: outcome})
	}
}

func (a *API) handleClearCache(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}
	if err := a.Threads.Clear(r.Context(), domain.ConversationRef{ConversationID: id}); err != nil {
		slog.Error("cache clear failed", "err", err, "conversation_id", id)
		http.Error(w, "clear failed", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
