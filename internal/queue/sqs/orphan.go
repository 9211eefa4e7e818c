// Package sqsqueue publishes orphaned inbound messages to an operational
// queue so they can be reviewed instead of vanishing into logs.
package sqsqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/oklog/ulid/v2"

	"msgcache/internal/domain"
)

type OrphanProducer struct {
	SQS      *sqs.Client
	QueueURL string
}

// OrphanReport is the queue payload. The raw provider response is dropped
// for the same size/privacy reasons it is kept out of the thread cache.
type OrphanReport struct {
	ContactNumber     string    `json:"contactNumber"`
	Service           string    `json:"service,omitempty"`
	RoutingID         string    `json:"routingId,omitempty"`
	ProviderMessageID string    `json:"providerMessageId,omitempty"`
	Text              string    `json:"text"`
	ReceivedAt        time.Time `json:"receivedAt"`
}

func (p *OrphanProducer) PublishOrphan(ctx context.Context, m domain.Message) error {
	report := OrphanReport{
		ContactNumber:     m.ContactNumber,
		Service:           m.Service,
		RoutingID:         m.RoutingID,
		ProviderMessageID: m.ProviderMessageID,
		Text:              m.Text,
		ReceivedAt:        time.Now().UTC(),
	}
	body, err := json.Marshal(report)
	if err != nil {
		return err
	}

	_, err = p.SQS.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               &p.QueueURL,
		MessageBody:            str(string(body)),
		MessageGroupId:         str(m.ContactNumber), // FIFO ordering per phone
		MessageDeduplicationId: str(dedupID(m)),
	})
	return err
}

// dedupID prefers the provider's message id so a re-delivered orphan
// collapses in the queue; without one a fresh ulid is used.
func dedupID(m domain.Message) string {
	if m.ProviderMessageID != "" {
		return m.ProviderMessageID
	}
	return ulid.Make().String()
}

func str(s string) *string { return &s }
