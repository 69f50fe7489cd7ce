package suppliers

import (
	"time"

	"github.com/shopspring/decimal"
)

// Supplier is a goods supplier. Balance is the outstanding amount owed; it
// moves only inside purchase and supplier-payment transactions.
type Supplier struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Contact   *string         `json:"contact,omitempty"`
	Phone     *string         `json:"phone,omitempty"`
	Email     *string         `json:"email,omitempty"`
	Address   *string         `json:"address,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CreateSupplierRequest is the payload for supplier creation.
type CreateSupplierRequest struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Contact *string `json:"contact,omitempty" validate:"omitempty,max=200"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=500"`
}

// UpdateSupplierRequest carries partial supplier updates.
type UpdateSupplierRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Contact  *string `json:"contact,omitempty" validate:"omitempty,max=200"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Address  *string `json:"address,omitempty" validate:"omitempty,max=500"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// ListFilter filters supplier listings.
type ListFilter struct {
	Search string
	Limit  int
	Offset int
}
