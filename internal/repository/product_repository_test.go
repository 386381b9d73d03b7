package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Feature: storefront, Property: Product creation preserves attributes
func TestProperty_ProductCreationPreservesAttributes(t *testing.T) {
	productRepo := NewProductRepository(testDB)
	categoryRepo := NewCategoryRepository(testDB)

	properties := gopter.NewProperties(nil)

	properties.Property("creating and retrieving a product preserves all attributes", prop.ForAll(
		func(name string, description string, cents int64, stock int) bool {
			ctx := context.Background()

			category := &domain.Category{
				Name: "Category " + uuid.NewString(),
				Slug: "category-" + uuid.NewString(),
			}
			if err := categoryRepo.Create(ctx, category); err != nil {
				t.Logf("FAIL: Failed to create category: %v", err)
				return false
			}

			product := &domain.Product{
				Slug:        "product-" + uuid.NewString(),
				Name:        name,
				Description: description,
				Price:       decimal.New(cents, -2),
				Stock:       stock,
				Status:      domain.ProductStatusActive,
				CategoryID:  &category.ID,
			}
			if err := productRepo.Create(ctx, product); err != nil {
				t.Logf("FAIL: Failed to create product: %v", err)
				return false
			}

			retrieved, err := productRepo.FindBySlug(ctx, product.Slug)
			if err != nil {
				t.Logf("FAIL: Failed to retrieve product: %v", err)
				return false
			}

			return retrieved.ID == product.ID &&
				retrieved.Name == name &&
				retrieved.Description == description &&
				retrieved.Price.Equal(product.Price) &&
				!retrieved.DiscountPrice.Valid &&
				retrieved.Stock == stock &&
				retrieved.CategoryID != nil && *retrieved.CategoryID == category.ID
		},
		gen.AlphaString().SuchThat(func(s string) bool { return len(s) > 0 && len(s) <= 255 }),
		gen.AlphaString(),
		gen.Int64Range(0, 99999999),
		gen.IntRange(0, 10000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProductRepository_DuplicateSlug(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testDB)
	product := createTestProduct(t, 1, "10.00")

	exists, err := repo.SlugExists(ctx, product.Slug)
	require.NoError(t, err)
	assert.True(t, exists)

	dup := &domain.Product{Slug: product.Slug, Name: "Dup", Price: decimal.NewFromInt(1), Status: domain.ProductStatusDraft}
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrProductSlugTaken)
}

func TestProductRepository_ReserveStock(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testDB)
	product := createTestProduct(t, 5, "10.00")

	require.NoError(t, repo.ReserveStock(ctx, product.ID, 3))

	err := repo.ReserveStock(ctx, product.ID, 3)
	var stockErr *domain.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 2, stockErr.Available)

	require.NoError(t, repo.ReleaseStock(ctx, product.ID, 3))

	reloaded, err := repo.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, reloaded.Stock)

	assert.ErrorIs(t, repo.ReserveStock(ctx, -1, 1), domain.ErrProductNotFound)
}

func TestProductRepository_StockLevels(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testDB)
	first := createTestProduct(t, 5, "10.00")
	second := createTestProduct(t, 2, "4.00")

	require.NoError(t, repo.ReserveStock(ctx, first.ID, 3))

	levels, err := repo.StockLevels(ctx, []int64{first.ID, second.ID, -1})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{first.ID: 2, second.ID: 2}, levels)

	levels, err = repo.StockLevels(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, levels)
}

func TestProductRepository_ListOnlyActiveInCategory(t *testing.T) {
	ctx := context.Background()
	productRepo := NewProductRepository(testDB)
	categoryRepo := NewCategoryRepository(testDB)

	category := &domain.Category{Name: "Shoes", Slug: "shoes-" + uuid.NewString()}
	require.NoError(t, categoryRepo.Create(ctx, category))

	statuses := []domain.ProductStatus{
		domain.ProductStatusActive,
		domain.ProductStatusActive,
		domain.ProductStatusDraft,
		domain.ProductStatusInactive,
	}
	for i, status := range statuses {
		product := &domain.Product{
			Slug:       "shoe-" + uuid.NewString(),
			Name:       "Shoe",
			Price:      decimal.NewFromInt(int64(10 + i)),
			Stock:      1,
			Status:     status,
			CategoryID: &category.ID,
		}
		require.NoError(t, productRepo.Create(ctx, product))
	}

	products, total, err := productRepo.List(ctx, domain.ProductFilter{
		CategorySlug: category.Slug,
		SortBy:       "price",
		SortOrder:    "asc",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, products, 2)
	assert.True(t, products[0].Price.LessThan(products[1].Price))

	// Unknown sort fields fall back to created_at instead of reaching the query
	_, _, err = productRepo.List(ctx, domain.ProductFilter{SortBy: "price; DROP TABLE products"})
	assert.NoError(t, err)
}

func TestCategoryRepository_ListActiveInDisplayOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewCategoryRepository(testDB)

	second := &domain.Category{Name: "B", Slug: "b-" + uuid.NewString(), DisplayOrder: 1002}
	first := &domain.Category{Name: "A", Slug: "a-" + uuid.NewString(), DisplayOrder: 1001}
	hidden := &domain.Category{Name: "C", Slug: "c-" + uuid.NewString(), Status: "inactive", DisplayOrder: 1000}
	for _, c := range []*domain.Category{second, first, hidden} {
		require.NoError(t, repo.Create(ctx, c))
	}

	categories, err := repo.ListActive(ctx)
	require.NoError(t, err)

	var slugs []string
	for _, c := range categories {
		slugs = append(slugs, c.Slug)
	}
	assert.NotContains(t, slugs, hidden.Slug)
	assert.Less(t, indexOf(slugs, first.Slug), indexOf(slugs, second.Slug))

	assert.ErrorIs(t, repo.Create(ctx, &domain.Category{Name: "A", Slug: first.Slug}), ErrCategoryAlreadyExists)
}

func TestProductImageRepository_FirstImageIsMain(t *testing.T) {
	ctx := context.Background()
	repo := NewProductImageRepository(testDB)
	product := createTestProduct(t, 1, "10.00")

	first := &domain.ProductImage{ProductID: product.ID, Filename: "products/a.jpg"}
	second := &domain.ProductImage{ProductID: product.ID, Filename: "products/b.jpg"}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	assert.True(t, first.IsMain)
	assert.False(t, second.IsMain)
	assert.Equal(t, 1, second.DisplayOrder)

	images, err := repo.ListByProduct(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, first.ID, images[0].ID)

	assert.ErrorIs(t, repo.Create(ctx, &domain.ProductImage{ProductID: -1, Filename: "x"}), domain.ErrProductNotFound)
}

func indexOf(values []string, target string) int {
	for i, v := range values {
		if v == target {
			return i
		}
	}
	return -1
}
