package transport

import (
	"errors"
	"io"
	"net/http"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/gateway"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/middleware"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/service"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/session"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/view"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// PaymentHandler handles checkout, the payment return page and the gateway webhook
type PaymentHandler struct {
	paymentService service.PaymentService
	pages          pages
	logger         *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService service.PaymentService, sessions *session.Manager, views *view.Renderer, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		pages:          pages{sessions: sessions, views: views, logger: logger},
		logger:         logger,
	}
}

// RegisterRoutes registers the shopper facing payment routes
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/checkout", h.Checkout)
	r.Get("/payment/verify", h.VerifyPage)
}

// RegisterWebhook registers the gateway callback. It belongs outside the session and rate limit
// middleware since the gateway retries on anything but 200.
func (h *PaymentHandler) RegisterWebhook(r chi.Router) {
	r.Post("/api/payments/webhook", h.Webhook)
}

// userMessage is the text shown to a shopper for a failed payment step
func userMessage(err error) string {
	switch middleware.StatusForError(err) {
	case http.StatusBadGateway:
		return "We could not reach the payment provider. Please try again."
	case http.StatusInternalServerError:
		return "Something went wrong on our side. Please try again later."
	}
	return err.Error()
}

// Checkout creates a pending order from the cart and sends the browser to the gateway
func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	owner, _ := middleware.GetOwner(r.Context())
	if !owner.IsUser() {
		h.pages.redirect(w, r, session.FlashInfo, "Please log in to check out", "/cart")
		return
	}

	checkout, err := h.paymentService.InitiateCheckout(r.Context(), owner)
	if err != nil {
		if middleware.StatusForError(err) >= http.StatusInternalServerError {
			h.logger.Error("Checkout failed", zap.Int64("user_id", owner.UserID), zap.Error(err))
		}
		h.pages.redirect(w, r, session.FlashError, userMessage(err), "/cart")
		return
	}

	h.logger.Info("Checkout started",
		zap.Int64("order_id", checkout.OrderID),
		zap.String("reference", checkout.Reference),
	)
	http.Redirect(w, r, checkout.AuthorizationURL, http.StatusSeeOther)
}

// VerifyPage is where the gateway returns the shopper. It confirms the payment and shows the outcome.
func (h *PaymentHandler) VerifyPage(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")

	result, err := h.paymentService.Verify(r.Context(), reference)
	if err != nil {
		status := middleware.StatusForError(err)
		if status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout {
			h.logger.Error("Payment verification failed", zap.String("reference", reference), zap.Error(err))
		}

		data := view.PaymentData{Message: userMessage(err)}
		if errors.Is(err, domain.ErrGatewayTimeout) {
			data.Retry = true
			data.RetryURL = r.URL.RequestURI()
		}
		h.pages.render(w, r, status, view.PagePayment, "Payment", data)
		return
	}

	h.pages.render(w, r, http.StatusOK, view.PagePayment, "Payment", view.PaymentData{Result: result})
}

// Webhook receives gateway events. Once the signature checks out the gateway always gets 200.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := h.paymentService.HandleWebhook(r.Context(), body, r.Header.Get(gateway.SignatureHeader))
	if err != nil {
		h.logger.Warn("Webhook rejected", zap.String("outcome", outcome), zap.Error(err))
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	h.logger.Info("Webhook handled", zap.String("outcome", outcome))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
