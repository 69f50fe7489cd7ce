package suppliers

import (
	"context"
	"fmt"
	"strings"

	"github.com/tillpoint/tillpoint/internal/shared"
)

// Store abstracts supplier persistence.
type Store interface {
	Get(ctx context.Context, id int64) (Supplier, error)
	List(ctx context.Context, filter ListFilter) ([]Supplier, int, error)
	Create(ctx context.Context, s Supplier) (Supplier, error)
	Update(ctx context.Context, id int64, updates map[string]any) (Supplier, error)
}

// Service owns supplier master data. The outstanding balance is never
// touched here; it moves inside the purchasing engine's transactions.
type Service struct {
	store Store
}

// NewService builds Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get returns the supplier by id.
func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, fmt.Errorf("%w: supplier id required", shared.ErrValidation)
	}
	return s.store.Get(ctx, id)
}

// List returns suppliers matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Supplier, int, error) {
	return s.store.List(ctx, filter)
}

// Create inserts a new supplier.
func (s *Service) Create(ctx context.Context, req CreateSupplierRequest) (Supplier, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Supplier{}, fmt.Errorf("%w: supplier name required", shared.ErrValidation)
	}
	return s.store.Create(ctx, Supplier{
		Name:    name,
		Contact: req.Contact,
		Phone:   req.Phone,
		Email:   req.Email,
		Address: req.Address,
	})
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id int64, req UpdateSupplierRequest) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, fmt.Errorf("%w: supplier id required", shared.ErrValidation)
	}
	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Contact != nil {
		updates["contact"] = *req.Contact
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	return s.store.Update(ctx, id, updates)
}
