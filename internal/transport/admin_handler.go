package transport

import (
	"net/http"
	"strconv"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/media"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/middleware"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// multipart overhead allowed on top of the image itself
const uploadSlack = 1 << 20

// CategoryRequest represents a new category
type CategoryRequest struct {
	Name         string `json:"name" form:"name" validate:"required,max=100"`
	DisplayOrder int    `json:"display_order" form:"display_order" validate:"gte=0"`
}

// ProductRequest represents a new product. Prices are decimal strings.
type ProductRequest struct {
	Name          string `json:"name" form:"name" validate:"required,max=200"`
	Description   string `json:"description" form:"description"`
	Price         string `json:"price" form:"price" validate:"required"`
	DiscountPrice string `json:"discount_price" form:"discount_price"`
	Stock         int    `json:"stock" form:"stock" validate:"gte=0"`
	Status        string `json:"status" form:"status"`
	Category      string `json:"category" form:"category"`
	Brand         string `json:"brand" form:"brand" validate:"max=100"`
}

func (req ProductRequest) input() (service.ProductInput, error) {
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return service.ProductInput{}, domain.NewValidationError("price", "Price must be a number")
	}

	input := service.ProductInput{
		Name:         req.Name,
		Description:  req.Description,
		Price:        price,
		Stock:        req.Stock,
		Status:       domain.ProductStatus(req.Status),
		CategorySlug: req.Category,
		Brand:        req.Brand,
	}

	if req.DiscountPrice != "" {
		discount, err := decimal.NewFromString(req.DiscountPrice)
		if err != nil {
			return service.ProductInput{}, domain.NewValidationError("discount_price", "Discount price must be a number")
		}
		input.DiscountPrice = &discount
	}

	return input, nil
}

// ShipRequest attaches a tracking number to an order
type ShipRequest struct {
	TrackingNumber string `json:"tracking_number" form:"tracking_number" validate:"required,max=64"`
}

// AdminHandler serves the back office endpoints. Every route requires the admin role.
type AdminHandler struct {
	adminService service.AdminService
	logger       *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(adminService service.AdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		logger:       logger,
	}
}

// RegisterRoutes registers the admin routes
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(h.logger))

		r.Post("/categories", h.CreateCategory)
		r.Post("/products", h.CreateProduct)
		r.Post("/products/{id}/images", h.UploadImage)
		r.Post("/orders/{id}/ship", h.ShipOrder)
	})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("id", "Invalid id")
	}
	return id, nil
}

// CreateCategory adds a category
func (h *AdminHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := middleware.DecodeRequest(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	category, err := h.adminService.CreateCategory(r.Context(), req.Name, req.DisplayOrder)
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusCreated, map[string]interface{}{"category": category})
}

// CreateProduct adds a product
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := middleware.DecodeRequest(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	input, err := req.input()
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	product, err := h.adminService.CreateProduct(r.Context(), input)
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusCreated, map[string]interface{}{"product": product})
}

// UploadImage stores the multipart "image" file of a product
func (h *AdminHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r)
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, media.MaxImageSize+uploadSlack)
	file, _, err := r.FormFile("image")
	if err != nil {
		h.logger.Debug("Image upload rejected", zap.Error(err))
		middleware.RespondWithDomainError(w, r, domain.NewValidationError("image", "An image file is required"), h.logger)
		return
	}
	defer file.Close()

	image, err := h.adminService.UploadProductImage(r.Context(), productID, file)
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusCreated, map[string]interface{}{"image": image})
}

// ShipOrder marks a paid order as shipped
func (h *AdminHandler) ShipOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r)
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	var req ShipRequest
	if err := middleware.DecodeRequest(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	order, err := h.adminService.ShipOrder(r.Context(), orderID, req.TrackingNumber)
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{"order": order})
}
