package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents an item the store buys and sells. CurrentStock is owned
// by the stock ledger: outside administrative edits it only ever changes via
// a ledger movement, never directly here.
type Product struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	Barcode       *string         `json:"barcode,omitempty"`
	Name          string          `json:"name"`
	CategoryID    *int64          `json:"category_id,omitempty"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	Unit          string          `json:"unit"`
	CurrentStock  int64           `json:"current_stock"`
	MinStockAlert int64           `json:"min_stock_alert"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Category groups products for listings and reporting.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateProductRequest is the payload for product creation.
type CreateProductRequest struct {
	SKU           string          `json:"sku" validate:"required,max=50"`
	Barcode       *string         `json:"barcode,omitempty" validate:"omitempty,max=64"`
	Name          string          `json:"name" validate:"required,max=200"`
	CategoryID    *int64          `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	Unit          string          `json:"unit" validate:"required,max=20"`
	InitialStock  int64           `json:"initial_stock" validate:"gte=0"`
	MinStockAlert int64           `json:"min_stock_alert" validate:"gte=0"`
}

// UpdateProductRequest carries partial product updates. Stock is absent on
// purpose; it moves only through the ledger.
type UpdateProductRequest struct {
	Barcode       *string          `json:"barcode,omitempty" validate:"omitempty,max=64"`
	Name          *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	CategoryID    *int64           `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	PurchasePrice *decimal.Decimal `json:"purchase_price,omitempty"`
	SellingPrice  *decimal.Decimal `json:"selling_price,omitempty"`
	TaxRate       *decimal.Decimal `json:"tax_rate,omitempty"`
	Unit          *string          `json:"unit,omitempty" validate:"omitempty,max=20"`
	MinStockAlert *int64           `json:"min_stock_alert,omitempty" validate:"omitempty,gte=0"`
	IsActive      *bool            `json:"is_active,omitempty"`
}

// ListFilter filters product listings.
type ListFilter struct {
	Search     string
	CategoryID int64
	ActiveOnly bool
	Limit      int
	Offset     int
}
