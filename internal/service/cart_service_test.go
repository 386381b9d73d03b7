package service

import (
	"context"
	"errors"
	"testing"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	guest    = domain.Owner{SessionID: "guest-session"}
	customer = domain.Owner{UserID: 7, Email: "ada@example.com", Name: "Ada", Role: domain.RoleCustomer}
)

func newCartFixture(products ...*domain.Product) (CartService, *mockCartRepository, *mockProductRepository) {
	carts := newMockCartRepository()
	productRepo := newMockProductRepository(products...)
	return NewCartService(carts, productRepo, &passthroughTx{}, zap.NewNop()), carts, productRepo
}

// Feature: storefront, Property: Quantities outside 1..99 are rejected before touching stock
func TestProperty_AddItemRejectsOutOfRangeQuantity(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("out of range quantity is a validation error", prop.ForAll(
		func(quantity int) bool {
			svc, _, products := newCartFixture(activeProduct(1, "mug", 500, "10.00"))

			_, err := svc.AddItem(context.Background(), guest, 1, quantity)
			var validationErr *domain.ValidationError
			return errors.As(err, &validationErr) &&
				validationErr.Field == "quantity" &&
				products.stock(1) == 500
		},
		gen.OneGenOf(gen.IntRange(-1000, 0), gen.IntRange(100, 1000)),
	))

	properties.Property("in range quantity within stock is reserved", prop.ForAll(
		func(quantity int) bool {
			svc, _, products := newCartFixture(activeProduct(1, "mug", 500, "10.00"))

			summary, err := svc.AddItem(context.Background(), guest, 1, quantity)
			return err == nil &&
				summary.TotalQuantity == quantity &&
				products.stock(1) == 500-quantity
		},
		gen.IntRange(1, 99),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestAddItem_AggregatesQuantities(t *testing.T) {
	svc, carts, products := newCartFixture(activeProduct(1, "mug", 10, "10.00"))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, customer, 1, 2)
	require.NoError(t, err)
	summary, err := svc.AddItem(ctx, customer, 1, 3)
	require.NoError(t, err)

	assert.Equal(t, domain.CartSummary{ItemsCount: 1, TotalQuantity: 5}, summary)
	item, err := carts.Find(ctx, customer, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)
	assert.Equal(t, 5, products.stock(1))
}

func TestAddItem_Failures(t *testing.T) {
	inactive := activeProduct(2, "draft-mug", 10, "10.00")
	inactive.Status = domain.ProductStatusDraft

	tests := []struct {
		name      string
		owner     domain.Owner
		productID int64
		quantity  int
		check     func(t *testing.T, err error)
	}{
		{
			name:      "anonymous without session",
			owner:     domain.Owner{},
			productID: 1,
			quantity:  1,
			check:     func(t *testing.T, err error) { assert.ErrorIs(t, err, domain.ErrUnauthorized) },
		},
		{
			name:      "missing product",
			owner:     guest,
			productID: 99,
			quantity:  1,
			check:     func(t *testing.T, err error) { assert.ErrorIs(t, err, domain.ErrProductNotFound) },
		},
		{
			name:      "inactive product",
			owner:     guest,
			productID: 2,
			quantity:  1,
			check:     func(t *testing.T, err error) { assert.ErrorIs(t, err, domain.ErrProductNotFound) },
		},
		{
			name:      "more than stock",
			owner:     guest,
			productID: 1,
			quantity:  4,
			check: func(t *testing.T, err error) {
				var stockErr *domain.InsufficientStockError
				require.True(t, errors.As(err, &stockErr))
				assert.Equal(t, 3, stockErr.Available)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, products := newCartFixture(activeProduct(1, "mug", 3, "10.00"), inactive)

			_, err := svc.AddItem(context.Background(), tt.owner, tt.productID, tt.quantity)
			tt.check(t, err)
			assert.Equal(t, 3, products.stock(1), "stock untouched")
		})
	}
}

func TestAddItem_CapturesEffectivePrice(t *testing.T) {
	product := activeProduct(1, "mug", 10, "10.00")
	product.DiscountPrice = decimal.NewNullDecimal(decimal.RequireFromString("9.00"))
	svc, carts, _ := newCartFixture(product)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, guest, 1, 1)
	require.NoError(t, err)

	item, err := carts.Find(ctx, guest, 1)
	require.NoError(t, err)
	assert.Equal(t, "9.00", item.Price.StringFixed(2))
}

func TestUpdateQuantity_ReconcilesStock(t *testing.T) {
	svc, _, products := newCartFixture(activeProduct(1, "mug", 10, "10.00"))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, guest, 1, 4)
	require.NoError(t, err)
	require.Equal(t, 6, products.stock(1))

	summary, err := svc.UpdateQuantity(ctx, guest, 1, 9)
	require.NoError(t, err)
	assert.Equal(t, 9, summary.TotalQuantity)
	assert.Equal(t, 1, products.stock(1))

	summary, err = svc.UpdateQuantity(ctx, guest, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalQuantity)
	assert.Equal(t, 8, products.stock(1))

	_, err = svc.UpdateQuantity(ctx, guest, 1, 11)
	var stockErr *domain.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 8, stockErr.Available)
}

func TestUpdateQuantity_MissingLine(t *testing.T) {
	svc, _, _ := newCartFixture(activeProduct(1, "mug", 10, "10.00"))

	_, err := svc.UpdateQuantity(context.Background(), guest, 1, 2)
	assert.ErrorIs(t, err, domain.ErrCartItemNotFound)
}

func TestRemoveItem_ReleasesStock(t *testing.T) {
	svc, _, products := newCartFixture(activeProduct(1, "mug", 10, "10.00"), activeProduct(2, "plate", 10, "5.00"))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, guest, 1, 4)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, guest, 2, 1)
	require.NoError(t, err)

	summary, err := svc.RemoveItem(ctx, guest, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.CartSummary{ItemsCount: 1, TotalQuantity: 1}, summary)
	assert.Equal(t, 10, products.stock(1))

	_, err = svc.RemoveItem(ctx, guest, 1)
	assert.ErrorIs(t, err, domain.ErrCartItemNotFound)
}

func TestItems_ComputesTotals(t *testing.T) {
	svc, _, _ := newCartFixture(activeProduct(1, "mug", 10, "10.00"), activeProduct(2, "plate", 10, "2.50"))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, customer, 1, 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, customer, 2, 3)
	require.NoError(t, err)

	cart, err := svc.Items(ctx, customer)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 2)
	assert.Equal(t, "27.50", cart.Total.StringFixed(2))
	assert.Equal(t, "20.00", cart.Lines[0].LineTotal.StringFixed(2))
	assert.Equal(t, domain.CartSummary{ItemsCount: 2, TotalQuantity: 5}, cart.Summary)

	other, err := svc.Items(ctx, guest)
	require.NoError(t, err)
	assert.Empty(t, other.Lines)
}
