package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MinCartQuantity = 1
	MaxCartQuantity = 99
)

// CartItem is one product line in an owner's cart. Exactly one of UserID and SessionID is set.
type CartItem struct {
	ID        int64           `json:"id" db:"id"`
	ProductID int64           `json:"product_id" db:"product_id"`
	UserID    *int64          `json:"user_id,omitempty" db:"user_id"`
	SessionID *string         `json:"session_id,omitempty" db:"session_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// CartLine is a cart item joined with the product it refers to
type CartLine struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductSlug string          `json:"product_slug"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// CartSummary aggregates an owner's cart
type CartSummary struct {
	ItemsCount    int `json:"items_count"`
	TotalQuantity int `json:"total_quantity"`
}

// Cart is the full content of an owner's cart
type Cart struct {
	Lines   []CartLine      `json:"items"`
	Summary CartSummary     `json:"summary"`
	Total   decimal.Decimal `json:"total"`
}

// NewCart builds a cart from its lines and computes the aggregates
func NewCart(lines []CartLine) *Cart {
	cart := &Cart{Lines: lines, Total: decimal.Zero}
	for i := range cart.Lines {
		line := &cart.Lines[i]
		line.LineTotal = line.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		cart.Total = cart.Total.Add(line.LineTotal)
		cart.Summary.TotalQuantity += line.Quantity
	}
	cart.Summary.ItemsCount = len(cart.Lines)
	return cart
}
