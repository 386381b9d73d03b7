package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
)

// ProductImageRepository defines the interface for product image data access
type ProductImageRepository interface {
	Create(ctx context.Context, image *domain.ProductImage) error
	ListByProduct(ctx context.Context, productID int64) ([]*domain.ProductImage, error)
}

type productImageRepository struct {
	db *sql.DB
}

// NewProductImageRepository creates a new instance of ProductImageRepository
func NewProductImageRepository(db *sql.DB) ProductImageRepository {
	return &productImageRepository{db: db}
}

// Create attaches an image to a product. The first image of a product becomes its main image
// and later images are appended to the display order.
func (r *productImageRepository) Create(ctx context.Context, image *domain.ProductImage) error {
	query := `
		INSERT INTO product_images (product_id, filename, is_main, display_order)
		SELECT $1, $2,
		       NOT EXISTS (SELECT 1 FROM product_images WHERE product_id = $1),
		       COALESCE((SELECT MAX(display_order) + 1 FROM product_images WHERE product_id = $1), 0)
		RETURNING id, is_main, display_order, created_at
	`

	err := conn(ctx, r.db).QueryRowContext(ctx, query, image.ProductID, image.Filename).Scan(
		&image.ID,
		&image.IsMain,
		&image.DisplayOrder,
		&image.CreatedAt,
	)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return domain.ErrProductNotFound
		}
		return fmt.Errorf("failed to create product image: %w", err)
	}

	return nil
}

// ListByProduct returns the main image first, then the rest in display order
func (r *productImageRepository) ListByProduct(ctx context.Context, productID int64) ([]*domain.ProductImage, error) {
	query := `
		SELECT id, product_id, filename, is_main, display_order, created_at
		FROM product_images
		WHERE product_id = $1
		ORDER BY is_main DESC, display_order ASC, id ASC
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list product images: %w", err)
	}
	defer rows.Close()

	images := []*domain.ProductImage{}
	for rows.Next() {
		image := &domain.ProductImage{}
		if err := rows.Scan(
			&image.ID,
			&image.ProductID,
			&image.Filename,
			&image.IsMain,
			&image.DisplayOrder,
			&image.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product image: %w", err)
		}
		images = append(images, image)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product images: %w", err)
	}

	return images, nil
}
