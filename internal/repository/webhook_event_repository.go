package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
)

// WebhookEventRepository stores the append-only audit log of payment webhooks
type WebhookEventRepository interface {
	Create(ctx context.Context, event *domain.WebhookEvent) error
	ListByReference(ctx context.Context, reference string) ([]*domain.WebhookEvent, error)
}

type webhookEventRepository struct {
	db *sql.DB
}

// NewWebhookEventRepository creates a new instance of WebhookEventRepository
func NewWebhookEventRepository(db *sql.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// Create appends a webhook delivery to the audit log
func (r *webhookEventRepository) Create(ctx context.Context, event *domain.WebhookEvent) error {
	query := `
		INSERT INTO payment_webhook_events (event_type, reference, signature_valid, outcome, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, received_at
	`

	payload := event.Payload
	if payload == nil {
		payload = []byte{}
	}

	err := conn(ctx, r.db).QueryRowContext(
		ctx,
		query,
		event.EventType,
		event.Reference,
		event.SignatureValid,
		event.Outcome,
		payload,
	).Scan(&event.ID, &event.ReceivedAt)
	if err != nil {
		return fmt.Errorf("failed to record webhook event: %w", err)
	}

	return nil
}

// ListByReference returns the deliveries that named a payment reference, oldest first
func (r *webhookEventRepository) ListByReference(ctx context.Context, reference string) ([]*domain.WebhookEvent, error) {
	query := `
		SELECT id, event_type, reference, signature_valid, outcome, payload, received_at
		FROM payment_webhook_events
		WHERE reference = $1
		ORDER BY received_at ASC, id ASC
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook events: %w", err)
	}
	defer rows.Close()

	events := []*domain.WebhookEvent{}
	for rows.Next() {
		event := &domain.WebhookEvent{}
		if err := rows.Scan(
			&event.ID,
			&event.EventType,
			&event.Reference,
			&event.SignatureValid,
			&event.Outcome,
			&event.Payload,
			&event.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan webhook event: %w", err)
		}
		events = append(events, event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating webhook events: %w", err)
	}

	return events, nil
}
