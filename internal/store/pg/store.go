package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"msgcache/internal/domain"
)

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// messageCols is every message column except service_response: the raw
// provider payload is large and never needed in bulk reads.
const messageCols = `message.id, message.campaign_contact_id, COALESCE(message.assignment_id, 0),
	COALESCE(message.user_id, 0), message.contact_number, message.text,
	COALESCE(message.service, ''), COALESCE(message.service_id, ''),
	COALESCE(message.messageservice_sid, ''), message.is_from_contact,
	COALESCE(message.send_status, ''), message.created_at`

// QueryMessages returns a thread ordered by created_at ascending. A
// conversation id takes precedence; a campaign id selects every message in
// the campaign through the assignment join. Neither yields an empty result.
func (s *Store) QueryMessages(ctx context.Context, ref domain.ConversationRef) ([]domain.Message, error) {
	var rows pgx.Rows
	var err error
	switch {
	case ref.ConversationID > 0:
		rows, err = s.DB.Query(ctx, `
			SELECT `+messageCols+`
			FROM message
			WHERE campaign_contact_id=$1
			ORDER BY created_at
		`, ref.ConversationID)
	case ref.CampaignID > 0:
		rows, err = s.DB.Query(ctx, `
			SELECT `+messageCols+`
			FROM message
			JOIN assignment ON message.assignment_id = assignment.id
			WHERE assignment.campaign_id=$1
			ORDER BY message.created_at
		`, ref.CampaignID)
	default:
		return []domain.Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.AssignmentID, &m.UserID,
			&m.ContactNumber, &m.Text, &m.Service, &m.ProviderMessageID,
			&m.RoutingID, &m.IsFromContact, &m.SendStatus, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PersistMessage writes one message record. isUpdate selects upsert-by-id;
// otherwise a fresh insert assigns the durable id onto the returned copy.
func (s *Store) PersistMessage(ctx context.Context, m domain.Message, isUpdate bool) (domain.Message, error) {
	if isUpdate {
		if m.ID == 0 {
			return domain.Message{}, errors.New("update requires a durable message id")
		}
		_, err := s.DB.Exec(ctx, `
			UPDATE message
			SET campaign_contact_id=$2, assignment_id=$3, user_id=$4, contact_number=$5,
			    text=$6, service=$7, service_id=$8, messageservice_sid=$9,
			    is_from_contact=$10, send_status=$11, service_response=$12, created_at=$13
			WHERE id=$1
		`, m.ID, m.ConversationID, nullIfZero(m.AssignmentID), nullIfZero(m.UserID),
			m.ContactNumber, m.Text, nullIfEmpty(m.Service), nullIfEmpty(m.ProviderMessageID),
			nullIfEmpty(m.RoutingID), m.IsFromContact, nullIfEmpty(m.SendStatus),
			nullIfEmpty(m.ServiceResponse), m.CreatedAt)
		return m, err
	}

	row := s.DB.QueryRow(ctx, `
		INSERT INTO message (campaign_contact_id, assignment_id, user_id, contact_number,
			text, service, service_id, messageservice_sid, is_from_contact,
			send_status, service_response, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id
	`, m.ConversationID, nullIfZero(m.AssignmentID), nullIfZero(m.UserID),
		m.ContactNumber, m.Text, nullIfEmpty(m.Service), nullIfEmpty(m.ProviderMessageID),
		nullIfEmpty(m.RoutingID), m.IsFromContact, nullIfEmpty(m.SendStatus),
		nullIfEmpty(m.ServiceResponse), m.CreatedAt)
	if err := row.Scan(&m.ID); err != nil {
		return domain.Message{}, err
	}
	return m, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}
