package middleware

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"

	"go.uber.org/zap"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	RetryAfter int         `json:"retry_after,omitempty"`
	Error      ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// RespondWithError sends a structured error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithErrorDetails(w, statusCode, message, nil)
}

// RespondWithErrorDetails sends a structured error response with additional details
func RespondWithErrorDetails(w http.ResponseWriter, statusCode int, message string, details map[string]interface{}) {
	writeError(w, statusCode, ErrorResponse{
		Message: message,
		Error: ErrorDetail{
			Code:      http.StatusText(statusCode),
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func writeError(w http.ResponseWriter, statusCode int, response ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, errors []ValidationError) {
	details := make(map[string]interface{})
	details["validation_errors"] = errors

	RespondWithErrorDetails(w, http.StatusBadRequest, "validation failed", details)
}

// StatusForError maps a domain error to its HTTP status code
func StatusForError(err error) int {
	var validationErr *domain.ValidationError
	var stockErr *domain.InsufficientStockError
	var unavailableErr *domain.CarrierUnavailableError
	var upstreamErr *domain.UpstreamError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &stockErr):
		return http.StatusConflict
	case errors.As(err, &unavailableErr):
		return http.StatusServiceUnavailable
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrInvalidWebhookSignature):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUserAlreadyExists),
		errors.Is(err, domain.ErrPaymentAmountMismatch):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrGatewayTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &upstreamErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// RespondWithDomainError maps err onto the error envelope. Unexpected errors are logged and
// reported with a generic message.
func RespondWithDomainError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	status := StatusForError(err)

	message := err.Error()
	var details map[string]interface{}

	var validationErr *domain.ValidationError
	var stockErr *domain.InsufficientStockError
	var unavailableErr *domain.CarrierUnavailableError

	switch {
	case errors.As(err, &validationErr):
		message = validationErr.Message
		details = map[string]interface{}{}
		if validationErr.Field != "" {
			details["field"] = validationErr.Field
		}
		for k, v := range validationErr.Details {
			details[k] = v
		}
	case errors.As(err, &stockErr):
		details = map[string]interface{}{"available": stockErr.Available}
	case status == http.StatusBadGateway:
		logger.Warn("Upstream failure", zap.String("path", r.URL.Path), zap.Error(err))
		message = "upstream service unavailable, please try again"
	case status == http.StatusInternalServerError:
		logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
			zap.Error(err),
		)
		message = "internal server error"
	}

	response := ErrorResponse{
		Message: message,
		Error: ErrorDetail{
			Code:      http.StatusText(status),
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	if errors.As(err, &unavailableErr) {
		seconds := int(math.Ceil(unavailableErr.RetryAfter.Seconds()))
		response.RetryAfter = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	writeError(w, status, response)
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// RespondWithSuccess sends payload with success set to true
func RespondWithSuccess(w http.ResponseWriter, statusCode int, payload map[string]interface{}) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["success"] = true
	RespondWithJSON(w, statusCode, payload)
}
