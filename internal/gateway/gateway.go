// Package gateway is the client of the hosted payment gateway: transaction initialization,
// server-side verification and webhook signatures.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/config"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"

	"github.com/shopspring/decimal"
)

// SignatureHeader carries the hex HMAC-SHA512 of a webhook body
const SignatureHeader = "X-Provider-Signature"

const serviceName = "payment gateway"

// Amounts travel in minor units (kobo, cents)
var minorUnits = decimal.NewFromInt(100)

// Client talks to the payment gateway
type Client interface {
	Initialize(ctx context.Context, req InitializeRequest) (*Authorization, error)
	Verify(ctx context.Context, reference string) (*domain.PaymentVerification, error)
	VerifySignature(body []byte, signature string) bool
}

// InitializeRequest starts a hosted payment
type InitializeRequest struct {
	Email       string
	Amount      decimal.Decimal
	Currency    string
	Reference   string
	CallbackURL string
}

// Authorization is where the customer is sent to pay
type Authorization struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// transactionData is the transaction object shared by verify responses and webhook events
type transactionData struct {
	Status          string     `json:"status"`
	Reference       string     `json:"reference"`
	Amount          int64      `json:"amount"`
	Currency        string     `json:"currency"`
	PaidAt          *time.Time `json:"paid_at"`
	GatewayResponse string     `json:"gateway_response"`
}

func (d transactionData) verification() *domain.PaymentVerification {
	return &domain.PaymentVerification{
		Reference:       d.Reference,
		Status:          d.Status,
		Amount:          decimal.NewFromInt(d.Amount).Div(minorUnits),
		Currency:        d.Currency,
		PaidAt:          d.PaidAt,
		GatewayResponse: d.GatewayResponse,
	}
}

type httpClient struct {
	httpClient    *http.Client
	baseURL       string
	secretKey     string
	webhookSecret string
}

// NewClient creates a gateway client with the configured timeout on every call
func NewClient(cfg config.GatewayConfig) Client {
	return &httpClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
	}
}

// Initialize registers a transaction and returns the hosted payment page
func (c *httpClient) Initialize(ctx context.Context, req InitializeRequest) (*Authorization, error) {
	payload := map[string]interface{}{
		"email":        req.Email,
		"amount":       req.Amount.Mul(minorUnits).Round(0).IntPart(),
		"currency":     req.Currency,
		"reference":    req.Reference,
		"callback_url": req.CallbackURL,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode initialize request: %w", err)
	}

	env, err := c.do(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}
	if !env.Status {
		return nil, &domain.UpstreamError{Service: serviceName, Err: errors.New(env.Message)}
	}

	var data initializeData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &domain.UpstreamError{Service: serviceName, Err: fmt.Errorf("decode initialize data: %w", err)}
	}
	if data.AuthorizationURL == "" {
		return nil, &domain.UpstreamError{Service: serviceName, Err: errors.New("missing authorization url")}
	}

	return &Authorization{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

// Verify asks the gateway for the final state of a transaction. A payment is successful only when
// the call succeeds, the transaction status is success and the echoed reference matches.
func (c *httpClient) Verify(ctx context.Context, reference string) (*domain.PaymentVerification, error) {
	env, err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}
	if !env.Status {
		return nil, fmt.Errorf("%w: %s", domain.ErrPaymentFailed, env.Message)
	}

	var data transactionData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &domain.UpstreamError{Service: serviceName, Err: fmt.Errorf("decode verify data: %w", err)}
	}

	verification := data.verification()
	if data.Status != "success" {
		return verification, fmt.Errorf("%w: transaction status %q", domain.ErrPaymentFailed, data.Status)
	}
	if data.Reference != reference {
		return verification, fmt.Errorf("%w: reference mismatch", domain.ErrPaymentFailed)
	}

	return verification, nil
}

// VerifySignature checks the hex HMAC-SHA512 of body under the webhook secret in constant time
func (c *httpClient) VerifySignature(body []byte, signature string) bool {
	return VerifySignature(c.webhookSecret, body, signature)
}

func (c *httpClient) do(ctx context.Context, method, path string, body []byte) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, domain.ErrGatewayTimeout
		}
		return nil, &domain.UpstreamError{Service: serviceName, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if isTimeout(err) {
			return nil, domain.ErrGatewayTimeout
		}
		return nil, &domain.UpstreamError{Service: serviceName, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &domain.UpstreamError{Service: serviceName, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &domain.UpstreamError{Service: serviceName, Err: fmt.Errorf("status %d: undecodable body: %w", resp.StatusCode, err)}
	}

	// 4xx answers carry status=false and a message, which callers report as a failed payment
	if resp.StatusCode >= http.StatusBadRequest {
		env.Status = false
	}

	return &env, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Sign returns the hex HMAC-SHA512 of body under secret
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature is the HMAC-SHA512 of body under secret
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), given)
}

// WebhookEvent is a decoded webhook delivery
type WebhookEvent struct {
	Event       string
	Transaction *domain.PaymentVerification
}

// ErrMalformedWebhook reports a body that is not a gateway event
var ErrMalformedWebhook = errors.New("malformed webhook payload")

// ParseWebhook decodes a webhook body. The event name is required; the transaction is decoded
// when the data object is present.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var raw struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}
	if raw.Event == "" {
		return nil, fmt.Errorf("%w: missing event", ErrMalformedWebhook)
	}

	event := &WebhookEvent{Event: raw.Event}
	if len(raw.Data) > 0 && string(raw.Data) != "null" {
		var data transactionData
		if err := json.Unmarshal(raw.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
		}
		event.Transaction = data.verification()
	}

	return event, nil
}
