package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	CreateItems(ctx context.Context, items []*domain.OrderItem) error
	FindByID(ctx context.Context, id int64) (*domain.Order, error)
	FindByReferenceForUpdate(ctx context.Context, reference string) (*domain.Order, error)
	Items(ctx context.Context, orderID int64) ([]*domain.OrderItem, error)
	MarkPaid(ctx context.Context, id int64, paidAt time.Time) error
	UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) error
	SetTrackingNumber(ctx context.Context, id int64, trackingNumber string) error
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, user_id, payment_reference, tracking_number, status, total_amount, currency,
	paid_at, created_at, updated_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.PaymentReference,
		&order.TrackingNumber,
		&order.Status,
		&order.TotalAmount,
		&order.Currency,
		&order.PaidAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Create inserts a new order and fills in its generated id and timestamps
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}

	query := `
		INSERT INTO orders (user_id, payment_reference, tracking_number, status, total_amount, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := conn(ctx, r.db).QueryRowContext(
		ctx,
		query,
		order.UserID,
		order.PaymentReference,
		order.TrackingNumber,
		order.Status,
		order.TotalAmount,
		order.Currency,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)

	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// CreateItems inserts the lines of an order
func (r *orderRepository) CreateItems(ctx context.Context, items []*domain.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	for _, item := range items {
		err := conn(ctx, r.db).QueryRowContext(
			ctx,
			query,
			item.OrderID,
			item.ProductID,
			item.ProductName,
			item.Quantity,
			item.UnitPrice,
		).Scan(&item.ID, &item.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	return nil
}

// FindByID retrieves an order by ID
func (r *orderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	return order, nil
}

// FindByReferenceForUpdate retrieves the order paid through reference and locks its row
func (r *orderRepository) FindByReferenceForUpdate(ctx context.Context, reference string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE payment_reference = $1 FOR UPDATE`

	order, err := scanOrder(conn(ctx, r.db).QueryRowContext(ctx, query, reference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by payment reference: %w", err)
	}

	return order, nil
}

// Items lists the lines of an order
func (r *orderRepository) Items(ctx context.Context, orderID int64) ([]*domain.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY id ASC
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	items := []*domain.OrderItem{}
	for rows.Next() {
		item := &domain.OrderItem{}
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.UnitPrice,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

// MarkPaid records the payment time and moves the order to processing
func (r *orderRepository) MarkPaid(ctx context.Context, id int64, paidAt time.Time) error {
	query := `UPDATE orders SET status = $2, paid_at = $3 WHERE id = $1`
	return r.exec(ctx, "mark order paid", query, id, domain.OrderStatusProcessing, paidAt)
}

// UpdateStatus sets the status of an order
func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) error {
	query := `UPDATE orders SET status = $2 WHERE id = $1`
	return r.exec(ctx, "update order status", query, id, status)
}

// SetTrackingNumber attaches a tracking number and marks the order shipped
func (r *orderRepository) SetTrackingNumber(ctx context.Context, id int64, trackingNumber string) error {
	query := `UPDATE orders SET tracking_number = $2, status = $3 WHERE id = $1`
	return r.exec(ctx, "set order tracking number", query, id, trackingNumber, domain.OrderStatusShipped)
}

func (r *orderRepository) exec(ctx context.Context, action, query string, args ...interface{}) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", action, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}
