package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/carrier"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/media"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/repository"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxSlugAttempts = 50

// ProductInput is the admin form for a new product
type ProductInput struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	DiscountPrice *decimal.Decimal
	Stock         int
	Status        domain.ProductStatus
	CategorySlug  string
	Brand         string
}

// AdminService defines the back office operations
type AdminService interface {
	CreateCategory(ctx context.Context, name string, displayOrder int) (*domain.Category, error)
	CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error)
	UploadProductImage(ctx context.Context, productID int64, body io.Reader) (*domain.ProductImage, error)
	ShipOrder(ctx context.Context, orderID int64, trackingNumber string) (*domain.Order, error)
}

type adminService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	imageRepo    repository.ProductImageRepository
	orderRepo    repository.OrderRepository
	store        media.Store
	catalog      CatalogService
	logger       *zap.Logger
}

// NewAdminService creates a new instance of AdminService
func NewAdminService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	imageRepo repository.ProductImageRepository,
	orderRepo repository.OrderRepository,
	store media.Store,
	catalog CatalogService,
	logger *zap.Logger,
) AdminService {
	return &adminService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		imageRepo:    imageRepo,
		orderRepo:    orderRepo,
		store:        store,
		catalog:      catalog,
		logger:       logger.Named("admin"),
	}
}

func (s *adminService) CreateCategory(ctx context.Context, name string, displayOrder int) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	categorySlug := slug.Make(name)
	if categorySlug == "" {
		return nil, domain.NewValidationError("name", "Category name is required")
	}

	category := &domain.Category{
		Name:         name,
		Slug:         categorySlug,
		DisplayOrder: displayOrder,
	}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		if errors.Is(err, repository.ErrCategoryAlreadyExists) {
			return nil, domain.NewValidationError("name", "A category with this name already exists")
		}
		return nil, err
	}

	s.catalog.Invalidate(ctx)
	return category, nil
}

// CreateProduct stores a product under a slug derived from its name. Taken slugs get a numeric suffix.
func (s *adminService) CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error) {
	product, err := s.buildProduct(ctx, input)
	if err != nil {
		return nil, err
	}

	base := slug.Make(product.Name)
	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		candidate := base
		if attempt > 1 {
			candidate = fmt.Sprintf("%s-%d", base, attempt)
		}

		taken, err := s.productRepo.SlugExists(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		product.Slug = candidate
		err = s.productRepo.Create(ctx, product)
		if errors.Is(err, repository.ErrProductSlugTaken) {
			// lost a race for this slug
			continue
		}
		if err != nil {
			return nil, err
		}

		s.catalog.Invalidate(ctx)
		s.logger.Info("product created", zap.Int64("product_id", product.ID), zap.String("slug", product.Slug))
		return product, nil
	}

	return nil, domain.NewValidationError("name", "Could not find a free URL for this product name")
}

func (s *adminService) buildProduct(ctx context.Context, input ProductInput) (*domain.Product, error) {
	name := strings.TrimSpace(input.Name)
	if slug.Make(name) == "" {
		return nil, domain.NewValidationError("name", "Product name is required")
	}
	if !input.Price.IsPositive() {
		return nil, domain.NewValidationError("price", "Price must be greater than zero")
	}
	if input.Stock < 0 {
		return nil, domain.NewValidationError("stock", "Stock cannot be negative")
	}

	status := input.Status
	if status == "" {
		status = domain.ProductStatusActive
	}
	if !status.Valid() {
		return nil, domain.NewValidationError("status", "Unknown product status")
	}

	product := &domain.Product{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Price:       input.Price.Round(2),
		Stock:       input.Stock,
		Status:      status,
		Brand:       strings.TrimSpace(input.Brand),
	}

	if input.DiscountPrice != nil {
		discount := input.DiscountPrice.Round(2)
		if !discount.IsPositive() || !discount.LessThan(product.Price) {
			return nil, domain.NewValidationError("discount_price", "Discount price must be positive and below the price")
		}
		product.DiscountPrice = decimal.NewNullDecimal(discount)
	}

	if categorySlug := strings.TrimSpace(input.CategorySlug); categorySlug != "" {
		category, err := s.categoryRepo.FindBySlug(ctx, categorySlug)
		if err != nil {
			if errors.Is(err, domain.ErrCategoryNotFound) {
				return nil, domain.NewValidationError("category", "Unknown category")
			}
			return nil, err
		}
		product.CategoryID = &category.ID
	}

	return product, nil
}

// UploadProductImage stores an image and attaches it to the product. The first image becomes the main one.
func (s *adminService) UploadProductImage(ctx context.Context, productID int64, body io.Reader) (*domain.ProductImage, error) {
	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		return nil, err
	}

	filename, err := s.store.Put(ctx, productID, body)
	if err != nil {
		return nil, err
	}

	image := &domain.ProductImage{ProductID: productID, Filename: filename}
	if err := s.imageRepo.Create(ctx, image); err != nil {
		return nil, err
	}

	s.logger.Info("product image uploaded",
		zap.Int64("product_id", productID),
		zap.String("filename", filename),
		zap.Bool("main", image.IsMain),
	)
	return image, nil
}

// ShipOrder records the tracking number of a paid order and marks it shipped
func (s *adminService) ShipOrder(ctx context.Context, orderID int64, trackingNumber string) (*domain.Order, error) {
	trackingNumber = carrier.Normalize(trackingNumber)
	if trackingNumber == "" {
		return nil, domain.NewValidationError("tracking_number", "Tracking number is required")
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsPaid() {
		return nil, domain.NewValidationError("order", "Only paid orders can be shipped")
	}
	if order.Status == domain.OrderStatusCancelled || order.Status == domain.OrderStatusDelivered {
		return nil, domain.NewValidationError("order", fmt.Sprintf("A %s order cannot be shipped", order.Status))
	}

	if err := s.orderRepo.SetTrackingNumber(ctx, orderID, trackingNumber); err != nil {
		return nil, err
	}

	s.logger.Info("order shipped",
		zap.Int64("order_id", orderID),
		zap.String("tracking_number", trackingNumber),
		zap.String("carrier", carrier.Detect(trackingNumber)),
	)

	return s.orderRepo.FindByID(ctx, orderID)
}
