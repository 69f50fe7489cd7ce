package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/tillpoint/tillpoint/internal/shared"
)

// Store abstracts catalog persistence for the service.
type Store interface {
	Get(ctx context.Context, id int64) (Product, error)
	GetBySKU(ctx context.Context, sku string) (Product, error)
	GetByBarcode(ctx context.Context, barcode string) (Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, id int64, updates map[string]any) (Product, error)
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, name string) (Category, error)
}

// Service owns product master data reads and validation. It never mutates
// stock; ReserveCheck is advisory only and the ledger re-checks inside the
// transaction that actually debits.
type Service struct {
	store Store
}

// NewService builds Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get returns the product by id.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, fmt.Errorf("%w: product id required", shared.ErrValidation)
	}
	return s.store.Get(ctx, id)
}

// GetBySKU returns the product by SKU.
func (s *Service) GetBySKU(ctx context.Context, sku string) (Product, error) {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return Product{}, fmt.Errorf("%w: sku required", shared.ErrValidation)
	}
	return s.store.GetBySKU(ctx, sku)
}

// GetByBarcode returns the product by barcode.
func (s *Service) GetByBarcode(ctx context.Context, barcode string) (Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return Product{}, fmt.Errorf("%w: barcode required", shared.ErrValidation)
	}
	return s.store.GetByBarcode(ctx, barcode)
}

// List returns products matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	return s.store.List(ctx, filter)
}

// Create inserts a new product. SKU and barcode uniqueness are structural:
// duplicates are rejected, not merged.
func (s *Service) Create(ctx context.Context, req CreateProductRequest) (Product, error) {
	sku := strings.ToUpper(strings.TrimSpace(req.SKU))
	if sku == "" {
		return Product{}, fmt.Errorf("%w: sku required", shared.ErrValidation)
	}
	if req.SellingPrice.IsNegative() || req.PurchasePrice.IsNegative() {
		return Product{}, fmt.Errorf("%w: prices must be >= 0", shared.ErrValidation)
	}
	if req.TaxRate.IsNegative() {
		return Product{}, fmt.Errorf("%w: tax rate must be >= 0", shared.ErrValidation)
	}

	p := Product{
		SKU:           sku,
		Barcode:       req.Barcode,
		Name:          strings.TrimSpace(req.Name),
		CategoryID:    req.CategoryID,
		PurchasePrice: req.PurchasePrice,
		SellingPrice:  req.SellingPrice,
		TaxRate:       req.TaxRate,
		Unit:          req.Unit,
		CurrentStock:  req.InitialStock,
		MinStockAlert: req.MinStockAlert,
		IsActive:      true,
	}
	return s.store.Create(ctx, p)
}

// Update applies a partial update to a product.
func (s *Service) Update(ctx context.Context, id int64, req UpdateProductRequest) (Product, error) {
	if id <= 0 {
		return Product{}, fmt.Errorf("%w: product id required", shared.ErrValidation)
	}
	if _, err := s.store.Get(ctx, id); err != nil {
		return Product{}, err
	}

	updates := map[string]any{}
	if req.Barcode != nil {
		updates["barcode"] = *req.Barcode
	}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.CategoryID != nil {
		updates["category_id"] = *req.CategoryID
	}
	if req.PurchasePrice != nil {
		if req.PurchasePrice.IsNegative() {
			return Product{}, fmt.Errorf("%w: purchase price must be >= 0", shared.ErrValidation)
		}
		updates["purchase_price"] = *req.PurchasePrice
	}
	if req.SellingPrice != nil {
		if req.SellingPrice.IsNegative() {
			return Product{}, fmt.Errorf("%w: selling price must be >= 0", shared.ErrValidation)
		}
		updates["selling_price"] = *req.SellingPrice
	}
	if req.TaxRate != nil {
		if req.TaxRate.IsNegative() {
			return Product{}, fmt.Errorf("%w: tax rate must be >= 0", shared.ErrValidation)
		}
		updates["tax_rate"] = *req.TaxRate
	}
	if req.Unit != nil {
		updates["unit"] = *req.Unit
	}
	if req.MinStockAlert != nil {
		updates["min_stock_alert"] = *req.MinStockAlert
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	return s.store.Update(ctx, id, updates)
}

// ReserveCheck verifies that qty units of the product are available. The
// result is a point-in-time read; the authoritative check happens inside the
// ledger movement.
func (s *Service) ReserveCheck(ctx context.Context, id, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be > 0", shared.ErrValidation)
	}
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.CurrentStock < qty {
		return &shared.InsufficientStockError{ProductID: p.ID, SKU: p.SKU, Available: p.CurrentStock, Requested: qty}
	}
	return nil
}

// ListCategories returns all categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.store.ListCategories(ctx)
}

// CreateCategory inserts a category.
func (s *Service) CreateCategory(ctx context.Context, name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name required", shared.ErrValidation)
	}
	return s.store.CreateCategory(ctx, name)
}
