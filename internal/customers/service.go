package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/tillpoint/tillpoint/internal/shared"
)

// Store abstracts customer persistence.
type Store interface {
	Get(ctx context.Context, id int64) (Customer, error)
	List(ctx context.Context, filter ListFilter) ([]Customer, int, error)
	Create(ctx context.Context, c Customer) (Customer, error)
	Update(ctx context.Context, id int64, updates map[string]any) (Customer, error)
}

// Service owns customer master data. Sale-side counters are out of reach
// here; they move inside the sale engine's transaction.
type Service struct {
	store Store
}

// NewService builds Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get returns the customer by id.
func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	if id <= 0 {
		return Customer{}, fmt.Errorf("%w: customer id required", shared.ErrValidation)
	}
	return s.store.Get(ctx, id)
}

// List returns customers matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Customer, int, error) {
	return s.store.List(ctx, filter)
}

// Create inserts a new customer.
func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Customer{}, fmt.Errorf("%w: customer name required", shared.ErrValidation)
	}
	return s.store.Create(ctx, Customer{
		Name:    name,
		Phone:   req.Phone,
		Email:   req.Email,
		Address: req.Address,
	})
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (Customer, error) {
	if id <= 0 {
		return Customer{}, fmt.Errorf("%w: customer id required", shared.ErrValidation)
	}
	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
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
