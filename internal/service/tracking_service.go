package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/carrier"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/repository"

	"go.uber.org/zap"
)

// RefreshRequest asks for the tracking of an order to be brought up to date
type RefreshRequest struct {
	TrackingNumber string
	OrderID        int64
	LastUpdate     *time.Time
}

// TrackingService defines order tracking reconciliation and standalone tracking lookups
type TrackingService interface {
	Refresh(ctx context.Context, owner domain.Owner, req RefreshRequest) (*domain.TrackingUpdate, error)
	Lookup(ctx context.Context, trackingNumber, carrierName string, forceRefresh bool) (*domain.TrackingLookup, error)
	CarrierStatus(ctx context.Context, carrierName string) ([]*domain.CarrierStatus, error)
}

// TrackingPolicy holds the polling windows of the tracking service
type TrackingPolicy struct {
	RefreshThrottle time.Duration
	LookupTTL       time.Duration
	HistoryLimit    int
	CarrierTimeout  time.Duration
}

type trackingService struct {
	orderRepo    repository.OrderRepository
	trackingRepo repository.TrackingRepository
	tx           repository.Transactor
	carriers     *carrier.Registry
	policy       TrackingPolicy
	logger       *zap.Logger
	now          func() time.Time
}

// NewTrackingService creates a new instance of TrackingService
func NewTrackingService(
	orderRepo repository.OrderRepository,
	trackingRepo repository.TrackingRepository,
	tx repository.Transactor,
	carriers *carrier.Registry,
	policy TrackingPolicy,
	logger *zap.Logger,
) TrackingService {
	return &trackingService{
		orderRepo:    orderRepo,
		trackingRepo: trackingRepo,
		tx:           tx,
		carriers:     carriers,
		policy:       policy,
		logger:       logger.Named("tracking"),
		now:          time.Now,
	}
}

// UnsupportedCarrierError builds the validation error that lists the supported carriers
func UnsupportedCarrierError(name string) *domain.ValidationError {
	return &domain.ValidationError{
		Field:   "carrier",
		Message: fmt.Sprintf("Unsupported carrier %q", name),
		Details: map[string]interface{}{"supported_carriers": carrier.Supported},
	}
}

// Refresh polls the carrier of an order and records any new events. Polls are skipped when the
// caller's last update is inside the throttle window or the carrier has no integration.
func (s *trackingService) Refresh(ctx context.Context, owner domain.Owner, req RefreshRequest) (*domain.TrackingUpdate, error) {
	if !owner.IsUser() {
		return nil, domain.ErrUnauthorized
	}
	if req.OrderID <= 0 {
		return nil, domain.NewValidationError("order_id", "Invalid order")
	}

	order, err := s.orderRepo.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !owner.IsAdmin() && order.UserID != owner.UserID {
		return nil, domain.ErrAccessDenied
	}

	trackingNumber, err := resolveTrackingNumber(order, req.TrackingNumber)
	if err != nil {
		return nil, err
	}
	carrierName := carrier.Detect(trackingNumber)

	now := s.now()
	if req.LastUpdate != nil && now.Sub(*req.LastUpdate) < s.policy.RefreshThrottle {
		return s.currentHistory(ctx, order.ID, trackingNumber, carrierName, 0)
	}
	if !carrier.IsSupported(carrierName) {
		return s.currentHistory(ctx, order.ID, trackingNumber, carrierName, 0)
	}

	client, ok := s.carriers.Get(carrierName)
	if !ok {
		return nil, fmt.Errorf("no client registered for carrier %s", carrierName)
	}

	result, err := s.track(ctx, client, trackingNumber)
	if err != nil {
		return nil, err
	}

	newEvents := 0
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, event := range result.Events {
			inserted, err := s.trackingRepo.InsertEvent(ctx, order.ID, event)
			if err != nil {
				return err
			}
			if inserted {
				newEvents++
			}
		}
		if newEvents == 0 {
			return nil
		}

		if err := s.trackingRepo.UpsertCache(ctx, &domain.ShippingTrackingCache{
			TrackingNumber:    trackingNumber,
			CarrierName:       carrierName,
			Status:            result.Status,
			EstimatedDelivery: result.EstimatedDelivery,
			LastChecked:       now,
			History:           result.Events,
		}); err != nil {
			return err
		}

		latest, _ := result.Latest()
		if status, ok := domain.OrderStatusForTracking(latest.Status); ok && order.Status.CanAdvanceTo(status) {
			if err := s.orderRepo.UpdateStatus(ctx, order.ID, status); err != nil {
				return err
			}
			s.logger.Info("order status updated from tracking",
				zap.Int64("order_id", order.ID),
				zap.String("from", string(order.Status)),
				zap.String("to", string(status)),
			)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record tracking events: %w", err)
	}

	return s.currentHistory(ctx, order.ID, trackingNumber, carrierName, newEvents)
}

func resolveTrackingNumber(order *domain.Order, requested string) (string, error) {
	requested = carrier.Normalize(requested)

	var stored string
	if order.TrackingNumber != nil {
		stored = carrier.Normalize(*order.TrackingNumber)
	}

	switch {
	case requested == "" && stored == "":
		return "", domain.NewValidationError("tracking_number", "Order has no tracking number yet")
	case requested == "":
		return stored, nil
	case stored != "" && requested != stored:
		return "", domain.NewValidationError("tracking_number", "Tracking number does not belong to this order")
	}
	return requested, nil
}

func (s *trackingService) currentHistory(ctx context.Context, orderID int64, trackingNumber, carrierName string, newEvents int) (*domain.TrackingUpdate, error) {
	events, err := s.trackingRepo.RecentEvents(ctx, orderID, s.policy.HistoryLimit)
	if err != nil {
		return nil, err
	}

	update := &domain.TrackingUpdate{
		Updated:   newEvents > 0,
		NewEvents: newEvents,
		Carrier:   carrierName,
		Events:    events,
	}

	entry, err := s.trackingRepo.FindCache(ctx, trackingNumber)
	switch {
	case err == nil:
		update.EstimatedDelivery = entry.EstimatedDelivery
		lastChecked := entry.LastChecked
		update.LastChecked = &lastChecked
	case !errors.Is(err, repository.ErrTrackingNotCached):
		return nil, err
	}

	return update, nil
}

// Lookup serves the cached state of a tracking number while it is fresh, otherwise fetches it
// from the carrier and stores the result.
func (s *trackingService) Lookup(ctx context.Context, trackingNumber, carrierName string, forceRefresh bool) (*domain.TrackingLookup, error) {
	number := carrier.Normalize(trackingNumber)
	if number == "" {
		return nil, domain.NewValidationError("tracking_number", "Tracking number is required")
	}

	carrierName = strings.ToLower(strings.TrimSpace(carrierName))
	if carrierName == "" {
		carrierName = carrier.Detect(number)
	}
	client, ok := s.carriers.Get(carrierName)
	if !ok {
		return nil, UnsupportedCarrierError(carrierName)
	}

	now := s.now()
	if !forceRefresh {
		entry, err := s.trackingRepo.FindCache(ctx, number)
		switch {
		case err == nil && entry.CarrierName == carrierName && now.Sub(entry.LastChecked) < s.policy.LookupTTL:
			return &domain.TrackingLookup{
				TrackingNumber:    entry.TrackingNumber,
				Carrier:           entry.CarrierName,
				Status:            entry.Status,
				EstimatedDelivery: entry.EstimatedDelivery,
				LastChecked:       entry.LastChecked,
				FromCache:         true,
				Events:            entry.History,
			}, nil
		case err != nil && !errors.Is(err, repository.ErrTrackingNotCached):
			return nil, err
		}
	}

	result, err := s.track(ctx, client, number)
	if err != nil {
		return nil, err
	}

	entry := &domain.ShippingTrackingCache{
		TrackingNumber:    number,
		CarrierName:       carrierName,
		Status:            result.Status,
		EstimatedDelivery: result.EstimatedDelivery,
		LastChecked:       now,
		History:           result.Events,
	}
	if err := s.trackingRepo.UpsertCache(ctx, entry); err != nil {
		return nil, err
	}

	return &domain.TrackingLookup{
		TrackingNumber:    number,
		Carrier:           carrierName,
		Status:            result.Status,
		EstimatedDelivery: result.EstimatedDelivery,
		LastChecked:       now,
		Events:            result.Events,
	}, nil
}

// CarrierStatus reports one carrier, or every supported carrier when the name is empty or "all".
// In the aggregate, an unavailable carrier is listed as down instead of failing the call.
func (s *trackingService) CarrierStatus(ctx context.Context, carrierName string) ([]*domain.CarrierStatus, error) {
	carrierName = strings.ToLower(strings.TrimSpace(carrierName))

	if carrierName != "" && carrierName != "all" {
		if !carrier.IsSupported(carrierName) {
			return nil, UnsupportedCarrierError(carrierName)
		}
		client, ok := s.carriers.Get(carrierName)
		if !ok {
			return nil, UnsupportedCarrierError(carrierName)
		}

		status, err := s.status(ctx, client)
		if err != nil {
			return nil, err
		}
		return []*domain.CarrierStatus{status}, nil
	}

	statuses := make([]*domain.CarrierStatus, 0, len(carrier.Supported))
	for _, name := range carrier.Supported {
		client, ok := s.carriers.Get(name)
		if !ok {
			continue
		}

		status, err := s.status(ctx, client)
		if err != nil {
			var unavailable *domain.CarrierUnavailableError
			if !errors.As(err, &unavailable) {
				return nil, err
			}
			status = &domain.CarrierStatus{
				Carrier:   name,
				Name:      carrier.DisplayName(name),
				Available: false,
				CheckedAt: s.now().UTC(),
				Message:   unavailable.Error(),
			}
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

func (s *trackingService) track(ctx context.Context, client carrier.Client, trackingNumber string) (*carrier.Result, error) {
	ctx, cancel := s.withCarrierTimeout(ctx)
	defer cancel()

	result, err := client.Track(ctx, trackingNumber)
	if err != nil {
		s.logger.Warn("carrier tracking failed",
			zap.String("carrier", client.Name()),
			zap.String("tracking_number", trackingNumber),
			zap.Error(err),
		)
		return nil, err
	}
	return result, nil
}

func (s *trackingService) status(ctx context.Context, client carrier.Client) (*domain.CarrierStatus, error) {
	ctx, cancel := s.withCarrierTimeout(ctx)
	defer cancel()
	return client.Status(ctx)
}

func (s *trackingService) withCarrierTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.policy.CarrierTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.policy.CarrierTimeout)
}
