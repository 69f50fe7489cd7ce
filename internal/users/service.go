package users

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/tillpoint/tillpoint/internal/shared"
)

// Service handles account management rules.
type Service struct {
	store Store
}

// NewService builds Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.store.List(ctx)
}

// Get loads one account.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	if id <= 0 {
		return User{}, fmt.Errorf("%w: user id required", shared.ErrValidation)
	}
	return s.store.Get(ctx, id)
}

// Create adds an account with a freshly hashed password.
func (s *Service) Create(ctx context.Context, req CreateUserRequest) (User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return User{}, fmt.Errorf("%w: email required", shared.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.store.Insert(ctx, User{
		Email: email,
		Name:  strings.TrimSpace(req.Name),
		Role:  req.Role,
	}, string(hash))
}

// Update applies partial changes, rehashing the password when one is given.
func (s *Service) Update(ctx context.Context, id int64, req UpdateUserRequest) (User, error) {
	if id <= 0 {
		return User{}, fmt.Errorf("%w: user id required", shared.ErrValidation)
	}
	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Role != nil {
		fields["role"] = *req.Role
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, err
		}
		fields["password_hash"] = string(hash)
	}
	if len(fields) == 0 {
		return User{}, fmt.Errorf("%w: nothing to update", shared.ErrValidation)
	}
	return s.store.Update(ctx, id, fields)
}
