package transport

import (
	"net/http"
	"time"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/middleware"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CarrierStatusRequest asks for the health of one carrier, or all of them when empty
type CarrierStatusRequest struct {
	Carrier string `json:"carrier" form:"carrier"`
}

// TrackRequest represents a standalone tracking lookup
type TrackRequest struct {
	TrackingNumber string `json:"tracking_number" form:"tracking_number" validate:"required"`
	Carrier        string `json:"carrier" form:"carrier"`
	ForceRefresh   bool   `json:"force_refresh" form:"force_refresh"`
}

// TrackingUpdateRequest asks for the tracking of an order to be refreshed
type TrackingUpdateRequest struct {
	TrackingNumber string     `json:"tracking_number" form:"tracking_number" validate:"required"`
	OrderID        int64      `json:"order_id" form:"order_id" validate:"required,gt=0"`
	LastUpdate     *time.Time `json:"last_update" form:"last_update"`
}

// TrackingHandler handles the carrier and order tracking endpoints
type TrackingHandler struct {
	trackingService service.TrackingService
	logger          *zap.Logger
}

// NewTrackingHandler creates a new TrackingHandler
func NewTrackingHandler(trackingService service.TrackingService, logger *zap.Logger) *TrackingHandler {
	return &TrackingHandler{
		trackingService: trackingService,
		logger:          logger,
	}
}

// RegisterRoutes registers the tracking routes. Order refreshes need a logged-in user.
func (h *TrackingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/carriers/status", h.CarrierStatus)
	r.Post("/api/carriers/track", h.Track)

	r.With(middleware.RequireUser(h.logger)).Post("/api/tracking/update", h.UpdateTracking)
}

// CarrierStatus reports the service health of one or all carriers
func (h *TrackingHandler) CarrierStatus(w http.ResponseWriter, r *http.Request) {
	var req CarrierStatusRequest
	if err := middleware.DecodeRequest(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	statuses, err := h.trackingService.CarrierStatus(r.Context(), req.Carrier)
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	payload := map[string]interface{}{"carriers": statuses}
	if len(statuses) == 1 {
		payload["status"] = statuses[0]
	}
	middleware.RespondWithSuccess(w, http.StatusOK, payload)
}

// Track looks up a tracking number, served from the tracking cache while it is fresh
func (h *TrackingHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if err := middleware.DecodeRequest(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	lookup, err := h.trackingService.Lookup(r.Context(), req.TrackingNumber, req.Carrier, req.ForceRefresh)
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{"tracking": lookup})
}

// UpdateTracking reconciles an order's tracking events with its carrier
func (h *TrackingHandler) UpdateTracking(w http.ResponseWriter, r *http.Request) {
	var req TrackingUpdateRequest
	if err := middleware.DecodeRequest(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	owner, _ := middleware.GetOwner(r.Context())
	update, err := h.trackingService.Refresh(r.Context(), owner, service.RefreshRequest{
		TrackingNumber: req.TrackingNumber,
		OrderID:        req.OrderID,
		LastUpdate:     req.LastUpdate,
	})
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	h.logger.Debug("Tracking refreshed",
		zap.Int64("order_id", req.OrderID),
		zap.Bool("updated", update.Updated),
		zap.Int("new_events", update.NewEvents),
	)
	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"updated":            update.Updated,
		"new_events":         update.NewEvents,
		"carrier":            update.Carrier,
		"events":             update.Events,
		"estimated_delivery": update.EstimatedDelivery,
		"last_checked":       update.LastChecked,
	})
}
