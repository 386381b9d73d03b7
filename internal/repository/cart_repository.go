package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"

	"github.com/shopspring/decimal"
)

// CartRepository defines the interface for cart data access. Every call is scoped to one owner.
type CartRepository interface {
	Upsert(ctx context.Context, owner domain.Owner, productID int64, quantity int, price decimal.Decimal) error
	Find(ctx context.Context, owner domain.Owner, productID int64) (*domain.CartItem, error)
	SetQuantity(ctx context.Context, owner domain.Owner, productID int64, quantity int) error
	Delete(ctx context.Context, owner domain.Owner, productID int64) error
	Lines(ctx context.Context, owner domain.Owner) ([]domain.CartLine, error)
	Summary(ctx context.Context, owner domain.Owner) (domain.CartSummary, error)
	RemoveOrdered(ctx context.Context, owner domain.Owner, items []*domain.OrderItem) (int, error)
}

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db *sql.DB) CartRepository {
	return &cartRepository{db: db}
}

// ownerPredicate returns the column that identifies the owner's rows and its value
func ownerPredicate(owner domain.Owner) (string, interface{}, error) {
	switch {
	case owner.IsUser():
		return "user_id", owner.UserID, nil
	case owner.SessionID != "":
		return "session_id", owner.SessionID, nil
	}
	return "", nil, domain.ErrUnauthorized
}

func quantityError(err error) error {
	if pgErrorCode(err) == pgCheckViolation {
		return domain.NewValidationError("quantity",
			fmt.Sprintf("quantity must be between %d and %d", domain.MinCartQuantity, domain.MaxCartQuantity))
	}
	return nil
}

// Upsert adds quantity to the owner's line for the product, creating it with the given price if absent
func (r *cartRepository) Upsert(ctx context.Context, owner domain.Owner, productID int64, quantity int, price decimal.Decimal) error {
	column, value, err := ownerPredicate(owner)
	if err != nil {
		return err
	}

	// The conflict target must match the partial unique index of the owner column
	query := fmt.Sprintf(`
		INSERT INTO cart_items (product_id, %[1]s, quantity, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (%[1]s, product_id) WHERE %[1]s IS NOT NULL
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`, column)

	if _, err := conn(ctx, r.db).ExecContext(ctx, query, productID, value, quantity, price); err != nil {
		if qErr := quantityError(err); qErr != nil {
			return qErr
		}
		if pgErrorCode(err) == pgForeignKeyViolation {
			return domain.ErrProductNotFound
		}
		return fmt.Errorf("failed to upsert cart item: %w", err)
	}

	return nil
}

// Find returns the owner's line for a product and locks it for the surrounding transaction
func (r *cartRepository) Find(ctx context.Context, owner domain.Owner, productID int64) (*domain.CartItem, error) {
	column, value, err := ownerPredicate(owner)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, product_id, user_id, session_id, quantity, price, created_at, updated_at
		FROM cart_items
		WHERE %s = $1 AND product_id = $2
		FOR UPDATE
	`, column)

	item := &domain.CartItem{}
	err = conn(ctx, r.db).QueryRowContext(ctx, query, value, productID).Scan(
		&item.ID,
		&item.ProductID,
		&item.UserID,
		&item.SessionID,
		&item.Quantity,
		&item.Price,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCartItemNotFound
		}
		return nil, fmt.Errorf("failed to find cart item: %w", err)
	}

	return item, nil
}

// SetQuantity overwrites the quantity of an existing line
func (r *cartRepository) SetQuantity(ctx context.Context, owner domain.Owner, productID int64, quantity int) error {
	column, value, err := ownerPredicate(owner)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE cart_items SET quantity = $3 WHERE %s = $1 AND product_id = $2`, column)

	result, err := conn(ctx, r.db).ExecContext(ctx, query, value, productID, quantity)
	if err != nil {
		if qErr := quantityError(err); qErr != nil {
			return qErr
		}
		return fmt.Errorf("failed to update cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrCartItemNotFound
	}

	return nil
}

// Delete removes the owner's line for a product
func (r *cartRepository) Delete(ctx context.Context, owner domain.Owner, productID int64) error {
	column, value, err := ownerPredicate(owner)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM cart_items WHERE %s = $1 AND product_id = $2`, column)

	result, err := conn(ctx, r.db).ExecContext(ctx, query, value, productID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrCartItemNotFound
	}

	return nil
}

// Lines returns the owner's cart joined with the products, priced at the price captured when each line was added
func (r *cartRepository) Lines(ctx context.Context, owner domain.Owner) ([]domain.CartLine, error) {
	column, value, err := ownerPredicate(owner)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT ci.product_id, p.name, p.slug, ci.quantity, ci.price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.%s = $1
		ORDER BY ci.created_at ASC, ci.id ASC
	`, column)

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	lines := []domain.CartLine{}
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(
			&line.ProductID,
			&line.ProductName,
			&line.ProductSlug,
			&line.Quantity,
			&line.Price,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		lines = append(lines, line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return lines, nil
}

// Summary counts the owner's distinct lines and total units
func (r *cartRepository) Summary(ctx context.Context, owner domain.Owner) (domain.CartSummary, error) {
	column, value, err := ownerPredicate(owner)
	if err != nil {
		return domain.CartSummary{}, err
	}

	query := fmt.Sprintf(`SELECT COUNT(*), COALESCE(SUM(quantity), 0) FROM cart_items WHERE %s = $1`, column)

	var summary domain.CartSummary
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, value).Scan(&summary.ItemsCount, &summary.TotalQuantity); err != nil {
		return domain.CartSummary{}, fmt.Errorf("failed to summarize cart: %w", err)
	}

	return summary, nil
}

// RemoveOrdered takes the ordered quantities out of the owner's cart. Lines covered in full are
// deleted, larger lines keep the remainder and lines added after checkout are left alone.
// It reports how many lines were deleted.
func (r *cartRepository) RemoveOrdered(ctx context.Context, owner domain.Owner, items []*domain.OrderItem) (int, error) {
	column, value, err := ownerPredicate(owner)
	if err != nil {
		return 0, err
	}

	deleteQuery := fmt.Sprintf(`DELETE FROM cart_items WHERE %s = $1 AND product_id = $2 AND quantity <= $3`, column)
	reduceQuery := fmt.Sprintf(`
		UPDATE cart_items SET quantity = quantity - $3
		WHERE %s = $1 AND product_id = $2 AND quantity > $3
	`, column)

	removed := 0
	for _, item := range items {
		result, err := conn(ctx, r.db).ExecContext(ctx, deleteQuery, value, item.ProductID, item.Quantity)
		if err != nil {
			return 0, fmt.Errorf("failed to remove ordered cart item: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected > 0 {
			removed++
			continue
		}

		if _, err := conn(ctx, r.db).ExecContext(ctx, reduceQuery, value, item.ProductID, item.Quantity); err != nil {
			return 0, fmt.Errorf("failed to reduce ordered cart item: %w", err)
		}
	}

	return removed, nil
}
