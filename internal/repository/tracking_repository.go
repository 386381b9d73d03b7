package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
)

var (
	ErrTrackingNotCached = fmt.Errorf("tracking cache entry %w", domain.ErrNotFound)
)

// TrackingRepository defines the interface for order tracking events and the carrier cache
type TrackingRepository interface {
	InsertEvent(ctx context.Context, orderID int64, event domain.TrackingEvent) (bool, error)
	RecentEvents(ctx context.Context, orderID int64, limit int) ([]*domain.OrderTrackingEvent, error)
	FindCache(ctx context.Context, trackingNumber string) (*domain.ShippingTrackingCache, error)
	UpsertCache(ctx context.Context, entry *domain.ShippingTrackingCache) error
}

type trackingRepository struct {
	db *sql.DB
}

// NewTrackingRepository creates a new instance of TrackingRepository
func NewTrackingRepository(db *sql.DB) TrackingRepository {
	return &trackingRepository{db: db}
}

// InsertEvent records a carrier event for an order. It reports false when the
// (order, status, tracking date) triple was already recorded.
func (r *trackingRepository) InsertEvent(ctx context.Context, orderID int64, event domain.TrackingEvent) (bool, error) {
	query := `
		INSERT INTO order_tracking_events (order_id, status, location, description, tracking_date)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id, status, tracking_date) DO NOTHING
	`

	// Postgres keeps microseconds; truncating keeps repeated polls equal to stored rows
	trackingDate := event.TrackingDate.UTC().Truncate(time.Microsecond)

	result, err := conn(ctx, r.db).ExecContext(ctx, query, orderID, event.Status, event.Location, event.Description, trackingDate)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return false, domain.ErrOrderNotFound
		}
		return false, fmt.Errorf("failed to insert tracking event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// RecentEvents returns the latest events of an order, newest first
func (r *trackingRepository) RecentEvents(ctx context.Context, orderID int64, limit int) ([]*domain.OrderTrackingEvent, error) {
	query := `
		SELECT id, order_id, status, location, description, tracking_date, created_at
		FROM order_tracking_events
		WHERE order_id = $1
		ORDER BY tracking_date DESC, created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, orderID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracking events: %w", err)
	}
	defer rows.Close()

	events := []*domain.OrderTrackingEvent{}
	for rows.Next() {
		event := &domain.OrderTrackingEvent{}
		if err := rows.Scan(
			&event.ID,
			&event.OrderID,
			&event.Status,
			&event.Location,
			&event.Description,
			&event.TrackingDate,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tracking event: %w", err)
		}
		events = append(events, event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tracking events: %w", err)
	}

	return events, nil
}

// FindCache returns the last known carrier state of a tracking number
func (r *trackingRepository) FindCache(ctx context.Context, trackingNumber string) (*domain.ShippingTrackingCache, error) {
	query := `
		SELECT tracking_number, carrier_name, status, estimated_delivery, last_checked, history
		FROM shipping_tracking_cache
		WHERE tracking_number = $1
	`

	var history []byte
	entry := &domain.ShippingTrackingCache{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, trackingNumber).Scan(
		&entry.TrackingNumber,
		&entry.CarrierName,
		&entry.Status,
		&entry.EstimatedDelivery,
		&entry.LastChecked,
		&history,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTrackingNotCached
		}
		return nil, fmt.Errorf("failed to find tracking cache entry: %w", err)
	}

	if err := json.Unmarshal(history, &entry.History); err != nil {
		return nil, fmt.Errorf("failed to decode tracking history: %w", err)
	}

	return entry, nil
}

// UpsertCache stores the carrier state of a tracking number, replacing the previous one
func (r *trackingRepository) UpsertCache(ctx context.Context, entry *domain.ShippingTrackingCache) error {
	history := entry.History
	if history == nil {
		history = []domain.TrackingEvent{}
	}

	payload, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to encode tracking history: %w", err)
	}

	query := `
		INSERT INTO shipping_tracking_cache (tracking_number, carrier_name, status, estimated_delivery, last_checked, history)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		ON CONFLICT (tracking_number) DO UPDATE
		SET carrier_name = EXCLUDED.carrier_name,
		    status = EXCLUDED.status,
		    estimated_delivery = EXCLUDED.estimated_delivery,
		    last_checked = EXCLUDED.last_checked,
		    history = EXCLUDED.history
	`

	_, err = conn(ctx, r.db).ExecContext(
		ctx,
		query,
		entry.TrackingNumber,
		entry.CarrierName,
		entry.Status,
		entry.EstimatedDelivery,
		entry.LastChecked,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert tracking cache entry: %w", err)
	}

	return nil
}
