package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Not found errors
var (
	ErrNotFound           = errors.New("not found")
	ErrProductNotFound    = fmt.Errorf("product %w", ErrNotFound)
	ErrCategoryNotFound   = fmt.Errorf("category %w", ErrNotFound)
	ErrCartItemNotFound   = fmt.Errorf("cart item %w", ErrNotFound)
	ErrOrderNotFound      = fmt.Errorf("order %w", ErrNotFound)
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrResetTokenNotFound = fmt.Errorf("password reset token expired or %w", ErrNotFound)
)

// Authorization errors
var (
	ErrUnauthorized       = errors.New("authentication required")
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Conflict and gateway errors
var (
	ErrUserAlreadyExists       = errors.New("user with this email already exists")
	ErrPaymentFailed           = errors.New("payment was not successful")
	ErrPaymentAmountMismatch   = errors.New("paid amount does not match order total")
	ErrGatewayTimeout          = errors.New("payment gateway timed out, please try again")
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")
)

// ValidationError reports user-correctable bad input
type ValidationError struct {
	Field   string
	Message string
	Details map[string]interface{}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NewValidationError creates a ValidationError for a single field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InsufficientStockError is returned when a reservation exceeds the stock on hand
type InsufficientStockError struct {
	ProductID int64
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: only %d available", e.Available)
}

// UpstreamError wraps a failure of an external gateway or carrier API
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// CarrierUnavailableError reports a carrier API that is temporarily down
type CarrierUnavailableError struct {
	Carrier    string
	RetryAfter time.Duration
}

func (e *CarrierUnavailableError) Error() string {
	return fmt.Sprintf("%s tracking service temporarily unavailable", strings.ToUpper(e.Carrier))
}

// IsNotFound reports whether err is any of the not found errors
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
