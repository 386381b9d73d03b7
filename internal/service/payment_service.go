package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/gateway"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const referencePrefix = "ORD-"

// PaymentService defines checkout, payment verification and the gateway webhook
type PaymentService interface {
	InitiateCheckout(ctx context.Context, owner domain.Owner) (*domain.CheckoutSession, error)
	Verify(ctx context.Context, reference string) (*domain.PaymentResult, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) (outcome string, err error)
}

// PaymentConfig holds the checkout settings
type PaymentConfig struct {
	Currency    string
	CallbackURL string
}

type paymentService struct {
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	webhookRepo repository.WebhookEventRepository
	tx          repository.Transactor
	gateway     gateway.Client
	cfg         PaymentConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewPaymentService creates a new instance of PaymentService
func NewPaymentService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	webhookRepo repository.WebhookEventRepository,
	tx repository.Transactor,
	gw gateway.Client,
	cfg PaymentConfig,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		webhookRepo: webhookRepo,
		tx:          tx,
		gateway:     gw,
		cfg:         cfg,
		logger:      logger.Named("payments"),
		now:         time.Now,
	}
}

// InitiateCheckout turns the user's cart into a pending order and starts a hosted payment for it
func (s *paymentService) InitiateCheckout(ctx context.Context, owner domain.Owner) (*domain.CheckoutSession, error) {
	if !owner.IsUser() {
		return nil, domain.ErrUnauthorized
	}
	if owner.Email == "" {
		return nil, domain.NewValidationError("email", "An email address is required to pay")
	}

	lines, err := s.cartRepo.Lines(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	cart := domain.NewCart(lines)
	if len(cart.Lines) == 0 {
		return nil, domain.NewValidationError("cart", "Your cart is empty")
	}

	reference := referencePrefix + strings.ToUpper(uuid.NewString())
	order := &domain.Order{
		UserID:           owner.UserID,
		PaymentReference: &reference,
		Status:           domain.OrderStatusPending,
		TotalAmount:      cart.Total,
		Currency:         s.cfg.Currency,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.orderRepo.Create(ctx, order); err != nil {
			return err
		}

		items := make([]*domain.OrderItem, 0, len(cart.Lines))
		for _, line := range cart.Lines {
			items = append(items, &domain.OrderItem{
				OrderID:     order.ID,
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Quantity:    line.Quantity,
				UnitPrice:   line.Price,
			})
		}
		return s.orderRepo.CreateItems(ctx, items)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	auth, err := s.gateway.Initialize(ctx, gateway.InitializeRequest{
		Email:       owner.Email,
		Amount:      order.TotalAmount,
		Currency:    order.Currency,
		Reference:   reference,
		CallbackURL: s.cfg.CallbackURL,
	})
	if err != nil {
		if cancelErr := s.orderRepo.UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled); cancelErr != nil {
			s.logger.Warn("failed to cancel unpayable order", zap.Int64("order_id", order.ID), zap.Error(cancelErr))
		}
		return nil, err
	}

	s.logger.Info("checkout started",
		zap.Int64("order_id", order.ID),
		zap.String("reference", reference),
		zap.String("amount", order.TotalAmount.StringFixed(2)),
	)

	return &domain.CheckoutSession{
		OrderID:          order.ID,
		Reference:        reference,
		Amount:           order.TotalAmount,
		AuthorizationURL: auth.AuthorizationURL,
	}, nil
}

// Verify confirms a payment with the gateway and settles the matching order
func (s *paymentService) Verify(ctx context.Context, reference string) (*domain.PaymentResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, domain.NewValidationError("reference", "Payment reference is required")
	}

	verification, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		s.logger.Warn("payment verification failed", zap.String("reference", reference), zap.Error(err))
		return nil, err
	}

	paidAt := s.now()
	if verification.PaidAt != nil {
		paidAt = *verification.PaidAt
	}

	return s.settle(ctx, reference, verification, paidAt)
}

// settle marks the order paid and takes the ordered lines out of its owner's cart. Orders already
// paid are returned unchanged.
func (s *paymentService) settle(ctx context.Context, reference string, verification *domain.PaymentVerification, paidAt time.Time) (*domain.PaymentResult, error) {
	result := &domain.PaymentResult{Amount: verification.Amount}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := s.orderRepo.FindByReferenceForUpdate(ctx, reference)
		if err != nil {
			return err
		}
		result.Order = order

		if order.IsPaid() {
			result.AlreadyPaid = true
			return nil
		}

		if !verification.Amount.Equal(order.TotalAmount) {
			s.logger.Warn("paid amount does not match order",
				zap.String("reference", reference),
				zap.String("paid", verification.Amount.StringFixed(2)),
				zap.String("expected", order.TotalAmount.StringFixed(2)),
			)
			return domain.ErrPaymentAmountMismatch
		}

		if err := s.orderRepo.MarkPaid(ctx, order.ID, paidAt); err != nil {
			return err
		}
		order.Status = domain.OrderStatusProcessing
		order.PaidAt = &paidAt

		items, err := s.orderRepo.Items(ctx, order.ID)
		if err != nil {
			return err
		}
		cleared, err := s.cartRepo.RemoveOrdered(ctx, domain.Owner{UserID: order.UserID}, items)
		if err != nil {
			return err
		}
		result.CartCleared = cleared
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyPaid {
		s.logger.Info("order paid",
			zap.Int64("order_id", result.Order.ID),
			zap.String("reference", reference),
			zap.Int("cart_lines_cleared", result.CartCleared),
		)
	}
	return result, nil
}

// HandleWebhook authenticates and applies a gateway event. Every call is appended to the webhook
// audit log. Once the signature is valid, processing failures are reported through the outcome
// only, so the gateway does not retry an authenticated delivery.
func (s *paymentService) HandleWebhook(ctx context.Context, body []byte, signature string) (string, error) {
	record := &domain.WebhookEvent{
		SignatureValid: s.gateway.VerifySignature(body, signature),
		Payload:        body,
	}
	defer s.audit(ctx, record)

	if !record.SignatureValid {
		record.Outcome = domain.WebhookOutcomeRejected
		return record.Outcome, domain.ErrInvalidWebhookSignature
	}

	event, err := gateway.ParseWebhook(body)
	if err != nil {
		record.Outcome = domain.WebhookOutcomeMalformed
		return record.Outcome, domain.NewValidationError("payload", "Malformed webhook payload")
	}
	record.EventType = event.Event
	if event.Transaction != nil {
		record.Reference = event.Transaction.Reference
	}

	if event.Event != domain.WebhookEventChargeSuccess || event.Transaction == nil ||
		event.Transaction.Status != "success" || event.Transaction.Reference == "" {
		record.Outcome = domain.WebhookOutcomeIgnored
		return record.Outcome, nil
	}

	paidAt := s.now()
	if event.Transaction.PaidAt != nil {
		paidAt = *event.Transaction.PaidAt
	}

	result, err := s.settle(ctx, event.Transaction.Reference, event.Transaction, paidAt)
	switch {
	case err != nil:
		s.logger.Error("failed to apply webhook",
			zap.String("event", event.Event),
			zap.String("reference", record.Reference),
			zap.Error(err),
		)
		record.Outcome = domain.WebhookOutcomeFailed
	case result.AlreadyPaid:
		record.Outcome = domain.WebhookOutcomeIgnored
	default:
		record.Outcome = domain.WebhookOutcomeProcessed
	}

	return record.Outcome, nil
}

func (s *paymentService) audit(ctx context.Context, record *domain.WebhookEvent) {
	// The audit row must survive a cancelled request
	ctx = context.WithoutCancel(ctx)
	if err := s.webhookRepo.Create(ctx, record); err != nil {
		s.logger.Error("failed to record webhook event",
			zap.String("outcome", record.Outcome),
			zap.String("reference", record.Reference),
			zap.Error(err),
		)
	}
}
