package domain

import (
	"errors"
	"time"
)

// MessageStatus is the conversation-level status driven by the direction of
// the most recent message. The full vocabulary is owned by the contact store;
// this package only reads and writes it.
type MessageStatus string

const (
	StatusNeedsMessage  MessageStatus = "needsMessage"
	StatusNeedsResponse MessageStatus = "needsResponse"
	StatusConvo         MessageStatus = "convo"
	StatusMessaged      MessageStatus = "messaged"
	StatusClosed        MessageStatus = "closed"
)

// NextStatus computes the status after a message lands on a conversation.
// Inbound always flips to needsResponse. Outbound answers a needsResponse
// thread into convo; anything else becomes messaged.
func NextStatus(prior MessageStatus, fromContact bool) MessageStatus {
	if fromContact {
		return StatusNeedsResponse
	}
	if prior == StatusNeedsResponse {
		return StatusConvo
	}
	return StatusMessaged
}

// Message is a single inbound or outbound SMS/MMS record. ID is zero until
// the durable store assigns one. ServiceResponse is the raw provider payload
// and is never written to cache.
type Message struct {
	ID                int64     `json:"id,omitempty"`
	ConversationID    int64     `json:"campaign_contact_id,omitempty"`
	AssignmentID      int64     `json:"assignment_id,omitempty"`
	UserID            int64     `json:"user_id,omitempty"`
	ContactNumber     string    `json:"contact_number"`
	Text              string    `json:"text"`
	Service           string    `json:"service,omitempty"`
	ProviderMessageID string    `json:"service_id,omitempty"`
	RoutingID         string    `json:"messageservice_sid,omitempty"`
	IsFromContact     bool      `json:"is_from_contact"`
	SendStatus        string    `json:"send_status,omitempty"`
	ServiceResponse   string    `json:"service_response,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Conversation is the addressable thread (a campaign contact).
type Conversation struct {
	ID             int64         `json:"id"`
	CampaignID     int64         `json:"campaign_id,omitempty"`
	AssignmentID   int64         `json:"assignment_id,omitempty"`
	MessageStatus  MessageStatus `json:"message_status"`
	TimezoneOffset string        `json:"timezone_offset,omitempty"`
	Cell           string        `json:"cell"`
	RoutingID      string        `json:"messageservice_sid,omitempty"`
}

// ConversationRef identifies a conversation either directly by id, by the
// (cell, service, routing id) triple plus assignment, or by campaign for
// bulk reads.
type ConversationRef struct {
	ConversationID int64
	AssignmentID   int64
	Cell           string
	Service        string
	RoutingID      string
	CampaignID     int64
}

// ActiveContact is what the contact-identity cache returns for a cell
// lookup. ProviderMessageID is set only when the record came from the
// durable store (it is the last message's provider id).
type ActiveContact struct {
	ConversationID    int64
	AssignmentID      int64
	MessageStatus     MessageStatus
	TimezoneOffset    string
	Cell              string
	RoutingID         string
	ProviderMessageID string
}

// SaveOutcome is the typed result of a save. Duplicate and Orphan both mean
// no state changed; they are distinguished for diagnostics.
type SaveOutcome string

const (
	SaveSaved     SaveOutcome = "saved"
	SaveDuplicate SaveOutcome = "duplicate"
	SaveOrphan    SaveOutcome = "orphan"
)

// ErrMissingIdentity means the caller supplied neither a direct conversation
// id nor the complete indirect identity. It is a contract violation, not a
// retryable condition.
var ErrMissingIdentity = errors.New("conversation id or assignment-cell-service-routing identity required")
