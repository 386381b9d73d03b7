package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
)

var (
	ErrCategoryAlreadyExists = errors.New("category with this slug already exists")
)

// CategoryRepository defines the interface for category data access
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	ListActive(ctx context.Context) ([]*domain.Category, error)
	FindBySlug(ctx context.Context, slug string) (*domain.Category, error)
}

type categoryRepository struct {
	db *sql.DB
}

// NewCategoryRepository creates a new instance of CategoryRepository
func NewCategoryRepository(db *sql.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

// Create inserts a new category into the database using parameterized queries
func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	if category.Status == "" {
		category.Status = "active"
	}

	query := `
		INSERT INTO categories (name, slug, status, display_order)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := conn(ctx, r.db).QueryRowContext(
		ctx,
		query,
		category.Name,
		category.Slug,
		category.Status,
		category.DisplayOrder,
	).Scan(&category.ID)

	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return ErrCategoryAlreadyExists
		}
		return fmt.Errorf("failed to create category: %w", err)
	}

	return nil
}

// ListActive retrieves active categories in display order
func (r *categoryRepository) ListActive(ctx context.Context) ([]*domain.Category, error) {
	query := `
		SELECT id, name, slug, status, display_order
		FROM categories
		WHERE status = 'active'
		ORDER BY display_order ASC, name ASC
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		category := &domain.Category{}
		err := rows.Scan(
			&category.ID,
			&category.Name,
			&category.Slug,
			&category.Status,
			&category.DisplayOrder,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// FindBySlug retrieves a category by slug using parameterized queries
func (r *categoryRepository) FindBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	query := `
		SELECT id, name, slug, status, display_order
		FROM categories
		WHERE slug = $1
	`

	category := &domain.Category{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, slug).Scan(
		&category.ID,
		&category.Name,
		&category.Slug,
		&category.Status,
		&category.DisplayOrder,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to find category by slug: %w", err)
	}

	return category, nil
}
