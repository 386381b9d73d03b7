package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus is the publication state of a product
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusPending  ProductStatus = "pending"
	ProductStatusDraft    ProductStatus = "draft"
	ProductStatusInactive ProductStatus = "inactive"
)

// Valid reports whether s is a known product status
func (s ProductStatus) Valid() bool {
	switch s {
	case ProductStatusActive, ProductStatusPending, ProductStatusDraft, ProductStatusInactive:
		return true
	}
	return false
}

// Product represents a product in the catalog
type Product struct {
	ID            int64               `json:"id" db:"id"`
	Slug          string              `json:"slug" db:"slug"`
	Name          string              `json:"name" db:"name"`
	Description   string              `json:"description" db:"description"`
	Price         decimal.Decimal     `json:"price" db:"price"`
	DiscountPrice decimal.NullDecimal `json:"discount_price" db:"discount_price"`
	Stock         int                 `json:"stock" db:"stock"`
	Status        ProductStatus       `json:"status" db:"status"`
	CategoryID    *int64              `json:"category_id,omitempty" db:"category_id"`
	Views         int64               `json:"views" db:"views"`
	Brand         string              `json:"brand" db:"brand"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at" db:"updated_at"`
}

// EffectivePrice is the price a customer pays: the discount price when set, otherwise the list price.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice.Valid {
		return p.DiscountPrice.Decimal
	}
	return p.Price
}

// OnSale reports whether a discount price is in effect
func (p *Product) OnSale() bool {
	return p.DiscountPrice.Valid && p.DiscountPrice.Decimal.LessThan(p.Price)
}

// IsActive reports whether the product is publicly visible and purchasable
func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

// ProductImage is an image attached to a product
type ProductImage struct {
	ID           int64     `json:"id" db:"id"`
	ProductID    int64     `json:"product_id" db:"product_id"`
	Filename     string    `json:"filename" db:"filename"`
	IsMain       bool      `json:"is_main" db:"is_main"`
	DisplayOrder int       `json:"display_order" db:"display_order"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Category represents a product category
type Category struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Slug         string `json:"slug" db:"slug"`
	Status       string `json:"status" db:"status"`
	DisplayOrder int    `json:"display_order" db:"display_order"`
}

// ProductFilter narrows a product listing
type ProductFilter struct {
	CategorySlug string
	Query        string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// ProductPage is one page of a product listing
type ProductPage struct {
	Products []*Product `json:"products"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}
