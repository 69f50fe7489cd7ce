package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tillpoint/tillpoint/internal/shared"
)

type memoryStore struct {
	products   map[int64]Product
	categories map[int64]Category
	nextID     int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		products:   make(map[int64]Product),
		categories: make(map[int64]Category),
	}
}

func (m *memoryStore) Get(_ context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return p, nil
}

func (m *memoryStore) GetBySKU(_ context.Context, sku string) (Product, error) {
	for _, p := range m.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return Product{}, fmt.Errorf("%w: product %s", shared.ErrNotFound, sku)
}

func (m *memoryStore) GetByBarcode(_ context.Context, barcode string) (Product, error) {
	for _, p := range m.products {
		if p.Barcode != nil && *p.Barcode == barcode {
			return p, nil
		}
	}
	return Product{}, fmt.Errorf("%w: barcode %s", shared.ErrNotFound, barcode)
}

func (m *memoryStore) List(_ context.Context, _ ListFilter) ([]Product, int, error) {
	var out []Product
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *memoryStore) Create(_ context.Context, p Product) (Product, error) {
	for _, existing := range m.products {
		if existing.SKU == p.SKU {
			return Product{}, fmt.Errorf("%w: sku %s", shared.ErrConflict, p.SKU)
		}
	}
	m.nextID++
	p.ID = m.nextID
	m.products[p.ID] = p
	return p, nil
}

func (m *memoryStore) Update(_ context.Context, id int64, updates map[string]any) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	for col, v := range updates {
		switch col {
		case "name":
			p.Name = v.(string)
		case "selling_price":
			p.SellingPrice = v.(decimal.Decimal)
		case "purchase_price":
			p.PurchasePrice = v.(decimal.Decimal)
		case "tax_rate":
			p.TaxRate = v.(decimal.Decimal)
		case "min_stock_alert":
			p.MinStockAlert = v.(int64)
		case "is_active":
			p.IsActive = v.(bool)
		case "barcode":
			b := v.(string)
			p.Barcode = &b
		case "unit":
			p.Unit = v.(string)
		case "category_id":
			c := v.(int64)
			p.CategoryID = &c
		}
	}
	m.products[id] = p
	return p, nil
}

func (m *memoryStore) ListCategories(_ context.Context) ([]Category, error) {
	var out []Category
	for _, c := range m.categories {
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryStore) CreateCategory(_ context.Context, name string) (Category, error) {
	m.nextID++
	c := Category{ID: m.nextID, Name: name}
	m.categories[c.ID] = c
	return c, nil
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCreateNormalizesSKU(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)

	p, err := svc.Create(context.Background(), CreateProductRequest{
		SKU:          "  cof-250 ",
		Name:         " Ground Coffee 250g ",
		Unit:         "pcs",
		SellingPrice: price("7.50"),
	})
	require.NoError(t, err)
	require.Equal(t, "COF-250", p.SKU)
	require.Equal(t, "Ground Coffee 250g", p.Name)
	require.True(t, p.IsActive)

	// Lookup by lowercase SKU hits the normalized row.
	found, err := svc.GetBySKU(context.Background(), "cof-250")
	require.NoError(t, err)
	require.Equal(t, p.ID, found.ID)
}

func TestCreateRejectsDuplicateSKU(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)

	req := CreateProductRequest{SKU: "COF-250", Name: "Coffee", Unit: "pcs"}
	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), req)
	require.True(t, errors.Is(err, shared.ErrConflict))
}

func TestCreateValidatesPrices(t *testing.T) {
	svc := NewService(newMemoryStore())

	_, err := svc.Create(context.Background(), CreateProductRequest{
		SKU: "X", Name: "x", Unit: "pcs", SellingPrice: price("-1"),
	})
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.Create(context.Background(), CreateProductRequest{
		SKU: "X", Name: "x", Unit: "pcs", TaxRate: price("-5"),
	})
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.Create(context.Background(), CreateProductRequest{Name: "no sku", Unit: "pcs"})
	require.True(t, errors.Is(err, shared.ErrValidation))
}

func TestUpdateAppliesPartialChanges(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)

	p, err := svc.Create(context.Background(), CreateProductRequest{
		SKU: "COF-250", Name: "Coffee", Unit: "pcs", SellingPrice: price("7.50"),
	})
	require.NoError(t, err)

	newPrice := price("7.95")
	inactive := false
	updated, err := svc.Update(context.Background(), p.ID, UpdateProductRequest{
		SellingPrice: &newPrice,
		IsActive:     &inactive,
	})
	require.NoError(t, err)
	require.True(t, updated.SellingPrice.Equal(newPrice))
	require.False(t, updated.IsActive)
	require.Equal(t, "Coffee", updated.Name)
}

func TestUpdateRejectsNegativePrice(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)
	p, err := svc.Create(context.Background(), CreateProductRequest{
		SKU: "COF-250", Name: "Coffee", Unit: "pcs",
	})
	require.NoError(t, err)

	bad := price("-0.01")
	_, err = svc.Update(context.Background(), p.ID, UpdateProductRequest{SellingPrice: &bad})
	require.True(t, errors.Is(err, shared.ErrValidation))
}

func TestUpdateUnknownProduct(t *testing.T) {
	svc := NewService(newMemoryStore())
	name := "x"
	_, err := svc.Update(context.Background(), 42, UpdateProductRequest{Name: &name})
	require.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestReserveCheck(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)
	p, err := svc.Create(context.Background(), CreateProductRequest{
		SKU: "COF-250", Name: "Coffee", Unit: "pcs", InitialStock: 3,
	})
	require.NoError(t, err)

	require.NoError(t, svc.ReserveCheck(context.Background(), p.ID, 3))

	err = svc.ReserveCheck(context.Background(), p.ID, 4)
	ise, ok := shared.AsInsufficientStock(err)
	require.True(t, ok)
	require.Equal(t, int64(3), ise.Available)
	require.Equal(t, int64(4), ise.Requested)

	err = svc.ReserveCheck(context.Background(), p.ID, 0)
	require.True(t, errors.Is(err, shared.ErrValidation))
}

func TestCreateCategoryTrimsName(t *testing.T) {
	svc := NewService(newMemoryStore())
	c, err := svc.CreateCategory(context.Background(), "  Beverages ")
	require.NoError(t, err)
	require.Equal(t, "Beverages", c.Name)

	_, err = svc.CreateCategory(context.Background(), "   ")
	require.True(t, errors.Is(err, shared.ErrValidation))
}
