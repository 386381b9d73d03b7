package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
)

var (
	ErrProductSlugTaken = errors.New("product slug already in use")
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// Listing page sizes
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

const productColumns = `p.id, p.slug, p.name, p.description, p.price, p.discount_price, p.stock,
	p.status, p.category_id, p.views, p.brand, p.created_at, p.updated_at`

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	FindBySlug(ctx context.Context, slug string) (*domain.Product, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*domain.Product, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error)
	ReserveStock(ctx context.Context, id int64, quantity int) error
	ReleaseStock(ctx context.Context, id int64, quantity int) error
	StockLevels(ctx context.Context, ids []int64) (map[int64]int, error)
	IncrementViews(ctx context.Context, id int64) error
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	err := row.Scan(
		&product.ID,
		&product.Slug,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.DiscountPrice,
		&product.Stock,
		&product.Status,
		&product.CategoryID,
		&product.Views,
		&product.Brand,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

// Create inserts a new product and fills in its generated id and timestamps
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (slug, name, description, price, discount_price, stock, status, category_id, brand)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, views, created_at, updated_at
	`

	err := conn(ctx, r.db).QueryRowContext(
		ctx,
		query,
		product.Slug,
		product.Name,
		product.Description,
		product.Price,
		product.DiscountPrice,
		product.Stock,
		product.Status,
		product.CategoryID,
		product.Brand,
	).Scan(&product.ID, &product.Views, &product.CreatedAt, &product.UpdatedAt)

	if err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return ErrProductSlugTaken
		case pgForeignKeyViolation:
			return domain.ErrCategoryNotFound
		case pgCheckViolation:
			return domain.NewValidationError("product", "price and stock must not be negative")
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update updates the editable fields of an existing product
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, price = $4, discount_price = $5,
		    stock = $6, status = $7, category_id = $8, brand = $9
		WHERE id = $1
		RETURNING updated_at
	`

	err := conn(ctx, r.db).QueryRowContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		product.DiscountPrice,
		product.Stock,
		product.Status,
		product.CategoryID,
		product.Brand,
	).Scan(&product.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrProductNotFound
		}
		if pgErrorCode(err) == pgCheckViolation {
			return domain.NewValidationError("product", "price and stock must not be negative")
		}
		return fmt.Errorf("failed to update product: %w", err)
	}

	return nil
}

// FindByID retrieves a product by ID regardless of its status
func (r *productRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

	product, err := scanProduct(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// FindBySlug retrieves a product by its unique slug regardless of its status
func (r *productRepository) FindBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.slug = $1`

	product, err := scanProduct(conn(ctx, r.db).QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by slug: %w", err)
	}

	return product, nil
}

// FindByIDForUpdate reads a product and locks its row until the surrounding transaction ends.
// It must be called with a context carrying a transaction.
func (r *productRepository) FindByIDForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1 FOR UPDATE`

	product, err := scanProduct(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}

	return product, nil
}

// SlugExists reports whether a product already uses slug
func (r *productRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check product slug: %w", err)
	}
	return exists, nil
}

// List retrieves active products with optional category and text filtering, pagination, and sorting
func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	// Validate sort field to prevent SQL injection
	validSortFields := map[string]string{
		"name":       "p.name",
		"price":      "COALESCE(p.discount_price, p.price)",
		"created_at": "p.created_at",
		"views":      "p.views",
	}

	sortBy, ok := validSortFields[filter.SortBy]
	if !ok {
		sortBy = "p.created_at"
	}

	sortOrder := SortOrder(strings.ToUpper(filter.SortOrder))
	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderDesc
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}

	// Build the WHERE clause
	conditions := []string{"p.status = 'active'"}
	args := []interface{}{}
	argIndex := 1

	if filter.CategorySlug != "" {
		conditions = append(conditions, fmt.Sprintf("c.slug = $%d", argIndex))
		args = append(args, filter.CategorySlug)
		argIndex++
	}

	if q := strings.TrimSpace(filter.Query); q != "" {
		conditions = append(conditions, fmt.Sprintf("(p.name ILIKE $%d OR p.description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+q+"%")
		argIndex++
	}

	from := "FROM products p LEFT JOIN categories c ON c.id = p.category_id WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := conn(ctx, r.db).QueryRowContext(ctx, "SELECT COUNT(*) "+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`
		SELECT %s
		%s
		ORDER BY %s %s, p.id
		LIMIT $%d OFFSET $%d
	`, productColumns, from, sortBy, sortOrder, argIndex, argIndex+1)

	args = append(args, pageSize, offset)

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	return products, total, nil
}

// StockLevels returns the current stock of the given products keyed by id
func (r *productRepository) StockLevels(ctx context.Context, ids []int64) (map[int64]int, error) {
	levels := make(map[int64]int, len(ids))
	if len(ids) == 0 {
		return levels, nil
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx, `SELECT id, stock FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to read stock levels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    int64
			stock int
		)
		if err := rows.Scan(&id, &stock); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		levels[id] = stock
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock levels: %w", err)
	}

	return levels, nil
}

// ReserveStock decrements stock only when enough units remain
func (r *productRepository) ReserveStock(ctx context.Context, id int64, quantity int) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`,
		id, quantity,
	)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var available int
		err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&available)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrProductNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read stock: %w", err)
		}
		return &domain.InsufficientStockError{ProductID: id, Available: available}
	}

	return nil
}

// ReleaseStock returns previously reserved units to stock
func (r *productRepository) ReleaseStock(ctx context.Context, id int64, quantity int) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE products SET stock = stock + $2 WHERE id = $1`,
		id, quantity,
	)
	if err != nil {
		return fmt.Errorf("failed to release stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

// IncrementViews bumps the view counter of a product
func (r *productRepository) IncrementViews(ctx context.Context, id int64) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE products SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment product views: %w", err)
	}
	return nil
}
