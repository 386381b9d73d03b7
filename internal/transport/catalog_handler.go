package transport

import (
	"net/http"
	"strconv"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/media"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/middleware"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/service"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/session"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/view"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CatalogHandler serves the product pages and the JSON catalog reads
type CatalogHandler struct {
	catalog service.CatalogService
	media   media.Store
	pages   pages
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(
	catalog service.CatalogService,
	store media.Store,
	sessions *session.Manager,
	views *view.Renderer,
	logger *zap.Logger,
) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		media:   store,
		pages:   pages{sessions: sessions, views: views, logger: logger},
		logger:  logger,
	}
}

// RegisterRoutes registers the catalog routes
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/products", h.ListPage)
	r.Get("/products/{key}", h.ProductPage)

	r.Get("/api/products", h.ListProducts)
	r.Get("/api/categories", h.Categories)
}

func filterFromQuery(r *http.Request) domain.ProductFilter {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))

	return domain.ProductFilter{
		CategorySlug: q.Get("category"),
		Query:        q.Get("q"),
		Page:         page,
		PageSize:     size,
		SortBy:       q.Get("sort"),
		SortOrder:    q.Get("order"),
	}
}

// ListPage renders the product listing
func (h *CatalogHandler) ListPage(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)

	result, err := h.catalog.ListProducts(r.Context(), filter)
	if err != nil {
		h.pages.fail(w, r, err)
		return
	}

	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.logger.Warn("Failed to load categories", zap.Error(err))
	}

	data := view.ProductsData{
		Page:         result,
		Categories:   categories,
		CategorySlug: filter.CategorySlug,
		Query:        filter.Query,
	}
	if result.Page > 1 {
		data.PrevPage = result.Page - 1
	}
	if result.Page*result.PageSize < result.Total {
		data.NextPage = result.Page + 1
	}

	h.pages.render(w, r, http.StatusOK, view.PageProducts, "Products", data)
}

// ProductPage renders a product by slug. Arriving by numeric id redirects to the slug URL.
func (h *CatalogHandler) ProductPage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	product, byID, err := h.catalog.ProductByKey(r.Context(), key)
	if err != nil {
		if domain.IsNotFound(err) {
			h.pages.redirect(w, r, session.FlashError, "Product not found", "/products")
			return
		}
		h.pages.fail(w, r, err)
		return
	}

	if byID {
		http.Redirect(w, r, "/products/"+product.Slug, http.StatusMovedPermanently)
		return
	}

	h.catalog.RecordView(r.Context(), product.ID)

	images, err := h.catalog.Images(r.Context(), product.ID)
	if err != nil {
		h.logger.Warn("Failed to load product images", zap.Int64("product_id", product.ID), zap.Error(err))
	}

	data := view.ProductData{Product: product, Images: make([]view.ImageView, 0, len(images))}
	for _, img := range images {
		data.Images = append(data.Images, view.ImageView{URL: h.media.URL(img.Filename), IsMain: img.IsMain})
	}

	h.pages.render(w, r, http.StatusOK, view.PageProduct, product.Name, data)
}

// ListProducts returns a page of active products as JSON
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.catalog.ListProducts(r.Context(), filterFromQuery(r))
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"products":  result.Products,
		"total":     result.Total,
		"page":      result.Page,
		"page_size": result.PageSize,
	})
}

// Categories returns the active categories as JSON
func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, map[string]interface{}{"categories": categories})
}
