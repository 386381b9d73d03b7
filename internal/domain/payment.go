package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const WebhookEventChargeSuccess = "charge.success"

// Webhook audit outcomes
const (
	WebhookOutcomeProcessed = "processed"
	WebhookOutcomeIgnored   = "ignored"
	WebhookOutcomeRejected  = "rejected"
	WebhookOutcomeMalformed = "malformed"
	WebhookOutcomeFailed    = "failed"
)

// PaymentVerification is what the gateway reports about a transaction
type PaymentVerification struct {
	Reference       string          `json:"reference"`
	Status          string          `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	GatewayResponse string          `json:"gateway_response"`
}

// CheckoutSession is returned when a payment is initiated
type CheckoutSession struct {
	OrderID          int64           `json:"order_id"`
	Reference        string          `json:"reference"`
	Amount           decimal.Decimal `json:"amount"`
	AuthorizationURL string          `json:"authorization_url"`
}

// PaymentResult is the outcome of a verified payment
type PaymentResult struct {
	Order       *Order          `json:"order"`
	Amount      decimal.Decimal `json:"amount"`
	AlreadyPaid bool            `json:"already_paid"`
	CartCleared int             `json:"cart_cleared"`
}

// WebhookEvent is one entry of the append-only webhook audit log
type WebhookEvent struct {
	ID             int64     `json:"id" db:"id"`
	EventType      string    `json:"event_type" db:"event_type"`
	Reference      string    `json:"reference" db:"reference"`
	SignatureValid bool      `json:"signature_valid" db:"signature_valid"`
	Outcome        string    `json:"outcome" db:"outcome"`
	Payload        []byte    `json:"-" db:"payload"`
	ReceivedAt     time.Time `json:"received_at" db:"received_at"`
}
