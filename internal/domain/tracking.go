package domain

import (
	"time"
)

// Carrier tracking statuses reported by carrier clients
const (
	TrackingStatusProcessing     = "Processing"
	TrackingStatusShipped        = "Shipped"
	TrackingStatusInTransit      = "In Transit"
	TrackingStatusOutForDelivery = "Out for Delivery"
	TrackingStatusDelivered      = "Delivered"
)

// trackingToOrderStatus maps carrier statuses onto order statuses. Unlisted statuses leave the order alone.
var trackingToOrderStatus = map[string]OrderStatus{
	TrackingStatusDelivered:      OrderStatusDelivered,
	TrackingStatusOutForDelivery: OrderStatusShipped,
	TrackingStatusInTransit:      OrderStatusShipped,
	TrackingStatusShipped:        OrderStatusShipped,
	TrackingStatusProcessing:     OrderStatusProcessing,
}

// OrderStatusForTracking returns the order status implied by a carrier status
func OrderStatusForTracking(status string) (OrderStatus, bool) {
	s, ok := trackingToOrderStatus[status]
	return s, ok
}

// TrackingEvent is a single carrier scan as reported by a carrier client
type TrackingEvent struct {
	Status       string    `json:"status"`
	Location     string    `json:"location"`
	Description  string    `json:"description"`
	TrackingDate time.Time `json:"tracking_date"`
}

// OrderTrackingEvent is a tracking event recorded against an order
type OrderTrackingEvent struct {
	ID           int64     `json:"id" db:"id"`
	OrderID      int64     `json:"order_id" db:"order_id"`
	Status       string    `json:"status" db:"status"`
	Location     string    `json:"location" db:"location"`
	Description  string    `json:"description" db:"description"`
	TrackingDate time.Time `json:"tracking_date" db:"tracking_date"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// ShippingTrackingCache is the last known carrier state for a tracking number
type ShippingTrackingCache struct {
	TrackingNumber    string          `json:"tracking_number" db:"tracking_number"`
	CarrierName       string          `json:"carrier_name" db:"carrier_name"`
	Status            string          `json:"status" db:"status"`
	EstimatedDelivery *time.Time      `json:"estimated_delivery,omitempty" db:"estimated_delivery"`
	LastChecked       time.Time       `json:"last_checked" db:"last_checked"`
	History           []TrackingEvent `json:"history" db:"history"`
}

// TrackingUpdate is the result of refreshing the tracking of an order
type TrackingUpdate struct {
	Updated           bool                  `json:"updated"`
	NewEvents         int                   `json:"new_events"`
	Carrier           string                `json:"carrier"`
	Events            []*OrderTrackingEvent `json:"events"`
	EstimatedDelivery *time.Time            `json:"estimated_delivery,omitempty"`
	LastChecked       *time.Time            `json:"last_checked,omitempty"`
}

// TrackingLookup is the result of a standalone tracking number lookup
type TrackingLookup struct {
	TrackingNumber    string          `json:"tracking_number"`
	Carrier           string          `json:"carrier"`
	Status            string          `json:"status"`
	EstimatedDelivery *time.Time      `json:"estimated_delivery,omitempty"`
	LastChecked       time.Time       `json:"last_checked"`
	FromCache         bool            `json:"from_cache"`
	Events            []TrackingEvent `json:"events"`
}

// CarrierStatus is the service health of a carrier integration
type CarrierStatus struct {
	Carrier      string    `json:"carrier"`
	Name         string    `json:"name"`
	Available    bool      `json:"available"`
	ResponseTime int64     `json:"response_time_ms"`
	CheckedAt    time.Time `json:"checked_at"`
	Message      string    `json:"message,omitempty"`
}
