package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Order is a customer purchase
type Order struct {
	ID               int64           `json:"id" db:"id"`
	UserID           int64           `json:"user_id" db:"user_id"`
	PaymentReference *string         `json:"payment_reference,omitempty" db:"payment_reference"`
	TrackingNumber   *string         `json:"tracking_number,omitempty" db:"tracking_number"`
	Status           OrderStatus     `json:"status" db:"status"`
	TotalAmount      decimal.Decimal `json:"total_amount" db:"total_amount"`
	Currency         string          `json:"currency" db:"currency"`
	PaidAt           *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusProcessing: 1,
	OrderStatusShipped:    2,
	OrderStatusDelivered:  3,
}

// CanAdvanceTo reports whether moving to next is a forward step in fulfilment.
// Cancelled orders and unknown statuses never advance.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	from, ok := orderStatusRank[s]
	if !ok {
		return false
	}
	to, ok := orderStatusRank[next]
	return ok && to > from
}

// IsPaid reports whether payment for the order has been confirmed
func (o *Order) IsPaid() bool {
	return o.PaidAt != nil
}

// OrderItem is a line of an order, snapshotted from the cart at checkout
type OrderItem struct {
	ID          int64           `json:"id" db:"id"`
	OrderID     int64           `json:"order_id" db:"order_id"`
	ProductID   int64           `json:"product_id" db:"product_id"`
	ProductName string          `json:"product_name" db:"product_name"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}
