package transport

import (
	"net/http"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/middleware"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/service"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/session"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/view"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CartLineRequest represents an add or update request, JSON or form encoded
type CartLineRequest struct {
	ProductID int64 `json:"product_id" form:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" form:"quantity" validate:"gte=1,lte=99"`
}

// CartRemoveRequest represents a remove request
type CartRemoveRequest struct {
	ProductID int64 `json:"product_id" form:"product_id" validate:"required,gt=0"`
}

// CartHandler handles HTTP requests for the cart ledger
type CartHandler struct {
	cartService service.CartService
	pages       pages
	logger      *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cartService service.CartService, sessions *session.Manager, views *view.Renderer, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		pages:       pages{sessions: sessions, views: views, logger: logger},
		logger:      logger,
	}
}

// RegisterRoutes registers all cart routes
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Get("/cart", h.CartPage)

	r.Route("/api/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Post("/add", h.Add)
		r.Post("/update", h.Update)
		r.Post("/remove", h.Remove)
	})
}

func respondWithCart(w http.ResponseWriter, message string, summary domain.CartSummary) {
	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"message": message,
		"cart":    summary,
	})
}

// CartPage renders the owner's cart
func (h *CartHandler) CartPage(w http.ResponseWriter, r *http.Request) {
	owner, _ := middleware.GetOwner(r.Context())

	cart, err := h.cartService.Items(r.Context(), owner)
	if err != nil {
		h.pages.fail(w, r, err)
		return
	}

	h.pages.render(w, r, http.StatusOK, view.PageCart, "Cart", cart)
}

// GetCart returns the owner's cart lines
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	owner, _ := middleware.GetOwner(r.Context())

	cart, err := h.cartService.Items(r.Context(), owner)
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"items": cart.Lines,
		"cart":  cart.Summary,
		"total": cart.Total,
	})
}

// Add reserves stock and adds a product to the cart
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req CartLineRequest
	if err := middleware.DecodeRequest(r, &req); err != nil {
		h.logger.Debug("Add to cart validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	owner, _ := middleware.GetOwner(r.Context())
	summary, err := h.cartService.AddItem(r.Context(), owner, req.ProductID, req.Quantity)
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	respondWithCart(w, "Product added to cart", summary)
}

// Update sets the quantity of a cart line
func (h *CartHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req CartLineRequest
	if err := middleware.DecodeRequest(r, &req); err != nil {
		h.logger.Debug("Cart update validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	owner, _ := middleware.GetOwner(r.Context())
	summary, err := h.cartService.UpdateQuantity(r.Context(), owner, req.ProductID, req.Quantity)
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	respondWithCart(w, "Cart updated", summary)
}

// Remove deletes a cart line and releases its stock
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	var req CartRemoveRequest
	if err := middleware.DecodeRequest(r, &req); err != nil {
		h.logger.Debug("Cart remove validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	owner, _ := middleware.GetOwner(r.Context())
	summary, err := h.cartService.RemoveItem(r.Context(), owner, req.ProductID)
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	respondWithCart(w, "Product removed from cart", summary)
}
