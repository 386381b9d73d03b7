package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartRepository_UpsertAggregatesQuantity(t *testing.T) {
	ctx := context.Background()
	repo := NewCartRepository(testDB)
	product := createTestProduct(t, 10, "12.50")
	owner := domain.Owner{SessionID: uuid.NewString()}

	require.NoError(t, repo.Upsert(ctx, owner, product.ID, 2, product.Price))
	require.NoError(t, repo.Upsert(ctx, owner, product.ID, 3, product.Price))

	var rows int
	require.NoError(t, testDB.QueryRow(
		`SELECT COUNT(*) FROM cart_items WHERE session_id = $1 AND product_id = $2`,
		owner.SessionID, product.ID,
	).Scan(&rows))
	assert.Equal(t, 1, rows)

	item, err := repo.Find(ctx, owner, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)
	assert.True(t, item.Price.Equal(decimal.RequireFromString("12.50")))

	summary, err := repo.Summary(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.CartSummary{ItemsCount: 1, TotalQuantity: 5}, summary)
}

func TestCartRepository_MergedQuantityAboveLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewCartRepository(testDB)
	product := createTestProduct(t, 500, "1.00")
	owner := domain.Owner{SessionID: uuid.NewString()}

	require.NoError(t, repo.Upsert(ctx, owner, product.ID, 60, product.Price))

	err := repo.Upsert(ctx, owner, product.ID, 40, product.Price)
	var validationErr *domain.ValidationError
	require.True(t, errors.As(err, &validationErr), "expected validation error, got %v", err)
	assert.Equal(t, "quantity", validationErr.Field)
}

func TestCartRepository_OwnersAreIsolated(t *testing.T) {
	ctx := context.Background()
	repo := NewCartRepository(testDB)
	product := createTestProduct(t, 10, "3.00")
	user := createTestUser(t)

	userOwner := domain.Owner{UserID: user.ID}
	sessionOwner := domain.Owner{SessionID: uuid.NewString()}

	require.NoError(t, repo.Upsert(ctx, userOwner, product.ID, 1, product.Price))
	require.NoError(t, repo.Upsert(ctx, sessionOwner, product.ID, 4, product.Price))

	lines, err := repo.Lines(ctx, userOwner)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)
	assert.Equal(t, product.Slug, lines[0].ProductSlug)

	cleared, err := repo.RemoveOrdered(ctx, userOwner, []*domain.OrderItem{{ProductID: product.ID, Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	summary, err := repo.Summary(ctx, sessionOwner)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TotalQuantity)

	_, err = repo.Lines(ctx, domain.Owner{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestCartRepository_SetQuantityAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewCartRepository(testDB)
	product := createTestProduct(t, 10, "3.00")
	owner := domain.Owner{SessionID: uuid.NewString()}

	assert.ErrorIs(t, repo.SetQuantity(ctx, owner, product.ID, 2), domain.ErrCartItemNotFound)

	require.NoError(t, repo.Upsert(ctx, owner, product.ID, 1, product.Price))
	require.NoError(t, repo.SetQuantity(ctx, owner, product.ID, 7))

	item, err := repo.Find(ctx, owner, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, item.Quantity)

	var validationErr *domain.ValidationError
	assert.True(t, errors.As(repo.SetQuantity(ctx, owner, product.ID, 100), &validationErr))

	require.NoError(t, repo.Delete(ctx, owner, product.ID))
	assert.ErrorIs(t, repo.Delete(ctx, owner, product.ID), domain.ErrCartItemNotFound)
}

func TestCartRepository_LinesUseCapturedPrice(t *testing.T) {
	ctx := context.Background()
	repo := NewCartRepository(testDB)
	product := createTestProduct(t, 10, "20.00")
	owner := domain.Owner{SessionID: uuid.NewString()}

	require.NoError(t, repo.Upsert(ctx, owner, product.ID, 2, product.Price))

	_, err := testDB.Exec(`UPDATE products SET price = 35.00, discount_price = 30.00 WHERE id = $1`, product.ID)
	require.NoError(t, err)

	lines, err := repo.Lines(ctx, owner)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Price.Equal(decimal.RequireFromString("20.00")), "got %s", lines[0].Price)
}

func TestCartRepository_RemoveOrderedKeepsNewerLines(t *testing.T) {
	ctx := context.Background()
	repo := NewCartRepository(testDB)
	ordered := createTestProduct(t, 10, "5.00")
	grown := createTestProduct(t, 10, "6.00")
	later := createTestProduct(t, 10, "7.00")
	owner := domain.Owner{SessionID: uuid.NewString()}

	require.NoError(t, repo.Upsert(ctx, owner, ordered.ID, 2, ordered.Price))
	require.NoError(t, repo.Upsert(ctx, owner, grown.ID, 3, grown.Price))
	require.NoError(t, repo.Upsert(ctx, owner, later.ID, 4, later.Price))

	removed, err := repo.RemoveOrdered(ctx, owner, []*domain.OrderItem{
		{ProductID: ordered.ID, Quantity: 2},
		{ProductID: grown.ID, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = repo.Find(ctx, owner, ordered.ID)
	assert.ErrorIs(t, err, domain.ErrCartItemNotFound)

	item, err := repo.Find(ctx, owner, grown.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)

	item, err = repo.Find(ctx, owner, later.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, item.Quantity)
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	products := NewProductRepository(testDB)
	product := createTestProduct(t, 3, "1.00")
	boom := errors.New("boom")

	err := NewTransactor(testDB).WithinTx(context.Background(), func(ctx context.Context) error {
		if err := products.ReserveStock(ctx, product.ID, 2); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	reloaded, err := products.FindByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.Stock)
}

func TestTransactor_NestedCallsJoinOuterTransaction(t *testing.T) {
	products := NewProductRepository(testDB)
	product := createTestProduct(t, 3, "1.00")
	tx := NewTransactor(testDB)

	err := tx.WithinTx(context.Background(), func(ctx context.Context) error {
		if err := tx.WithinTx(ctx, func(ctx context.Context) error {
			return products.ReserveStock(ctx, product.ID, 1)
		}); err != nil {
			return err
		}
		return errors.New("abort outer")
	})
	require.Error(t, err)

	reloaded, err := products.FindByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.Stock, "inner work must roll back with the outer transaction")
}
