package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/cache"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/repository"

	"go.uber.org/zap"
)

const categoriesCacheKey = "categories:active"

// CatalogService defines the public read paths of the catalog
type CatalogService interface {
	// ProductByKey resolves a product by slug, falling back to a numeric id. byID reports that the
	// id fallback was used, so the caller can redirect to the canonical slug URL.
	ProductByKey(ctx context.Context, key string) (product *domain.Product, byID bool, err error)
	ListProducts(ctx context.Context, filter domain.ProductFilter) (*domain.ProductPage, error)
	Categories(ctx context.Context) ([]*domain.Category, error)
	Images(ctx context.Context, productID int64) ([]*domain.ProductImage, error)
	RecordView(ctx context.Context, productID int64)
	Invalidate(ctx context.Context)
}

type catalogService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	imageRepo    repository.ProductImageRepository
	cache        cache.Cache
	ttl          time.Duration
	logger       *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	imageRepo repository.ProductImageRepository,
	c cache.Cache,
	ttl time.Duration,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		imageRepo:    imageRepo,
		cache:        c,
		ttl:          ttl,
		logger:       logger.Named("catalog"),
	}
}

func (s *catalogService) ProductByKey(ctx context.Context, key string) (*domain.Product, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, domain.ErrProductNotFound
	}

	product, err := s.productRepo.FindBySlug(ctx, key)
	if err == nil {
		if !product.IsActive() {
			return nil, false, domain.ErrProductNotFound
		}
		return product, false, nil
	}
	if !errors.Is(err, domain.ErrProductNotFound) {
		return nil, false, fmt.Errorf("failed to find product by slug: %w", err)
	}

	id, convErr := strconv.ParseInt(key, 10, 64)
	if convErr != nil || id <= 0 {
		return nil, false, domain.ErrProductNotFound
	}

	product, err = s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("failed to find product by id: %w", err)
	}
	if !product.IsActive() {
		return nil, false, domain.ErrProductNotFound
	}

	return product, true, nil
}

// ListProducts serves listings through the query cache. Stock moves with every cart change, so it
// is read live and overlaid on the cached page.
func (s *catalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) (*domain.ProductPage, error) {
	filter = normalizeFilter(filter)

	page, err := cache.Fetch(ctx, s.cache, s.logger, listingCacheKey(filter), s.ttl, func(ctx context.Context) (*domain.ProductPage, error) {
		products, total, err := s.productRepo.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to list products: %w", err)
		}
		return &domain.ProductPage{
			Products: products,
			Total:    total,
			Page:     filter.Page,
			PageSize: filter.PageSize,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(page.Products))
	for _, p := range page.Products {
		ids = append(ids, p.ID)
	}
	levels, err := s.productRepo.StockLevels(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to read stock levels: %w", err)
	}
	for _, p := range page.Products {
		p.Stock = levels[p.ID]
	}

	return page, nil
}

func (s *catalogService) Categories(ctx context.Context) ([]*domain.Category, error) {
	return cache.Fetch(ctx, s.cache, s.logger, categoriesCacheKey, s.ttl, func(ctx context.Context) ([]*domain.Category, error) {
		categories, err := s.categoryRepo.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list categories: %w", err)
		}
		return categories, nil
	})
}

func (s *catalogService) Images(ctx context.Context, productID int64) ([]*domain.ProductImage, error) {
	images, err := s.imageRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list product images: %w", err)
	}
	return images, nil
}

// RecordView counts a product page view. Failures are logged only.
func (s *catalogService) RecordView(ctx context.Context, productID int64) {
	if err := s.productRepo.IncrementViews(ctx, productID); err != nil {
		s.logger.Warn("failed to record product view", zap.Int64("product_id", productID), zap.Error(err))
	}
}

// Invalidate drops every cached catalog query
func (s *catalogService) Invalidate(ctx context.Context) {
	if err := s.cache.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear catalog cache", zap.Error(err))
	}
}

func normalizeFilter(f domain.ProductFilter) domain.ProductFilter {
	f.CategorySlug = strings.TrimSpace(f.CategorySlug)
	f.Query = strings.TrimSpace(f.Query)
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = repository.DefaultPageSize
	}
	if f.PageSize > repository.MaxPageSize {
		f.PageSize = repository.MaxPageSize
	}
	f.SortBy = strings.ToLower(f.SortBy)
	f.SortOrder = strings.ToLower(f.SortOrder)
	return f
}

func listingCacheKey(f domain.ProductFilter) string {
	return fmt.Sprintf("products:cat=%s:q=%s:page=%d:size=%d:sort=%s:%s",
		f.CategorySlug, strings.ToLower(f.Query), f.Page, f.PageSize, f.SortBy, f.SortOrder)
}
