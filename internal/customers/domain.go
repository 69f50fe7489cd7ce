package customers

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a loyalty customer. TotalOrders, TotalSpent and LoyaltyPoints
// are running counters mutated only as a side effect of a committed or
// voided sale, never through this package's update path.
type Customer struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Phone         *string         `json:"phone,omitempty"`
	Email         *string         `json:"email,omitempty"`
	Address       *string         `json:"address,omitempty"`
	TotalOrders   int64           `json:"total_orders"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	LoyaltyPoints int64           `json:"loyalty_points"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CreateCustomerRequest is the payload for customer creation.
type CreateCustomerRequest struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=500"`
}

// UpdateCustomerRequest carries partial customer updates.
type UpdateCustomerRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Address  *string `json:"address,omitempty" validate:"omitempty,max=500"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// ListFilter filters customer listings.
type ListFilter struct {
	Search string
	Limit  int
	Offset int
}
