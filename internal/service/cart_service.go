package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/repository"

	"go.uber.org/zap"
)

// CartService defines the cart ledger. Every change reserves or releases product stock in the
// same transaction as the cart row it touches.
type CartService interface {
	AddItem(ctx context.Context, owner domain.Owner, productID int64, quantity int) (domain.CartSummary, error)
	Items(ctx context.Context, owner domain.Owner) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, owner domain.Owner, productID int64, quantity int) (domain.CartSummary, error)
	RemoveItem(ctx context.Context, owner domain.Owner, productID int64) (domain.CartSummary, error)
	Summary(ctx context.Context, owner domain.Owner) (domain.CartSummary, error)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	tx          repository.Transactor
	logger      *zap.Logger
}

// NewCartService creates a new instance of CartService
func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	tx repository.Transactor,
	logger *zap.Logger,
) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		tx:          tx,
		logger:      logger.Named("cart"),
	}
}

func validateLine(owner domain.Owner, productID int64, quantity int) error {
	if !owner.Valid() {
		return domain.ErrUnauthorized
	}
	if productID <= 0 {
		return domain.NewValidationError("product_id", "Invalid product")
	}
	if quantity < domain.MinCartQuantity || quantity > domain.MaxCartQuantity {
		return domain.NewValidationError("quantity", fmt.Sprintf("Quantity must be between %d and %d", domain.MinCartQuantity, domain.MaxCartQuantity))
	}
	return nil
}

// AddItem locks the product row, checks stock, merges the quantity into the owner's line and
// decrements stock, all in one transaction.
func (s *cartService) AddItem(ctx context.Context, owner domain.Owner, productID int64, quantity int) (domain.CartSummary, error) {
	if err := validateLine(owner, productID, quantity); err != nil {
		return domain.CartSummary{}, err
	}

	var summary domain.CartSummary
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		product, err := s.lockActiveProduct(ctx, productID)
		if err != nil {
			return err
		}

		if quantity > product.Stock {
			return &domain.InsufficientStockError{ProductID: productID, Available: product.Stock}
		}

		if err := s.cartRepo.Upsert(ctx, owner, productID, quantity, product.EffectivePrice()); err != nil {
			return err
		}

		if err := s.productRepo.ReserveStock(ctx, productID, quantity); err != nil {
			return err
		}

		summary, err = s.cartRepo.Summary(ctx, owner)
		return err
	})
	if err != nil {
		return domain.CartSummary{}, err
	}

	s.logger.Debug("item added to cart",
		zap.String("owner", owner.Key()),
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity),
	)
	return summary, nil
}

func (s *cartService) Items(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, domain.ErrUnauthorized
	}

	lines, err := s.cartRepo.Lines(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return domain.NewCart(lines), nil
}

// UpdateQuantity sets a line to quantity, reserving or releasing the difference
func (s *cartService) UpdateQuantity(ctx context.Context, owner domain.Owner, productID int64, quantity int) (domain.CartSummary, error) {
	if err := validateLine(owner, productID, quantity); err != nil {
		return domain.CartSummary{}, err
	}

	var summary domain.CartSummary
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		product, err := s.productRepo.FindByIDForUpdate(ctx, productID)
		if err != nil {
			return err
		}

		item, err := s.cartRepo.Find(ctx, owner, productID)
		if err != nil {
			return err
		}

		switch diff := quantity - item.Quantity; {
		case diff > 0:
			if diff > product.Stock {
				return &domain.InsufficientStockError{ProductID: productID, Available: product.Stock}
			}
			if err := s.productRepo.ReserveStock(ctx, productID, diff); err != nil {
				return err
			}
		case diff < 0:
			if err := s.productRepo.ReleaseStock(ctx, productID, -diff); err != nil {
				return err
			}
		}

		if err := s.cartRepo.SetQuantity(ctx, owner, productID, quantity); err != nil {
			return err
		}

		summary, err = s.cartRepo.Summary(ctx, owner)
		return err
	})
	if err != nil {
		return domain.CartSummary{}, err
	}

	return summary, nil
}

// RemoveItem deletes a line and returns its quantity to stock
func (s *cartService) RemoveItem(ctx context.Context, owner domain.Owner, productID int64) (domain.CartSummary, error) {
	if !owner.Valid() {
		return domain.CartSummary{}, domain.ErrUnauthorized
	}

	var summary domain.CartSummary
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.productRepo.FindByIDForUpdate(ctx, productID); err != nil {
			return err
		}

		item, err := s.cartRepo.Find(ctx, owner, productID)
		if err != nil {
			return err
		}

		if err := s.cartRepo.Delete(ctx, owner, productID); err != nil {
			return err
		}

		if err := s.productRepo.ReleaseStock(ctx, productID, item.Quantity); err != nil {
			return err
		}

		summary, err = s.cartRepo.Summary(ctx, owner)
		return err
	})
	if err != nil {
		return domain.CartSummary{}, err
	}

	return summary, nil
}

func (s *cartService) Summary(ctx context.Context, owner domain.Owner) (domain.CartSummary, error) {
	if !owner.Valid() {
		return domain.CartSummary{}, nil
	}
	return s.cartRepo.Summary(ctx, owner)
}

func (s *cartService) lockActiveProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	product, err := s.productRepo.FindByIDForUpdate(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}
	if !product.IsActive() {
		return nil, domain.ErrProductNotFound
	}
	return product, nil
}
