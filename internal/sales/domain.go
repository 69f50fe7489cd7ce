package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleStatus is the lifecycle state of a sale. A sale transitions
// PAID -> CANCELLED exactly once, via the void flow, and never back.
type SaleStatus string

const (
	SaleStatusPaid      SaleStatus = "PAID"
	SaleStatusCancelled SaleStatus = "CANCELLED"
)

// Sale is a committed point-of-sale transaction.
type Sale struct {
	ID            int64           `json:"id"`
	InvoiceNo     string          `json:"invoice_no"`
	CustomerID    *int64          `json:"customer_id,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	PointsEarned  int64           `json:"points_earned"`
	PaymentMethod string          `json:"payment_method"`
	Status        SaleStatus      `json:"status"`
	CancelReason  *string         `json:"cancel_reason,omitempty"`
	CashierID     int64           `json:"cashier_id"`
	CreatedAt     time.Time       `json:"created_at"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	Items         []SaleItem      `json:"items,omitempty"`
	Payments      []Payment       `json:"payments,omitempty"`
}

// SaleItem is one sold line. Immutable once the sale commits; prices and the
// product name are snapshots taken at sale time. MeasuredWeight is the value
// captured from the scale when the line was created; it is authoritative and
// not re-read at commit.
type SaleItem struct {
	ID             int64            `json:"id"`
	SaleID         int64            `json:"sale_id"`
	ProductID      int64            `json:"product_id"`
	ProductName    string           `json:"product_name"`
	Quantity       int64            `json:"quantity"`
	UnitPrice      decimal.Decimal  `json:"unit_price"`
	TaxAmount      decimal.Decimal  `json:"tax_amount"`
	LineTotal      decimal.Decimal  `json:"line_total"`
	MeasuredWeight *decimal.Decimal `json:"measured_weight,omitempty"`
}

// Payment is money received against a sale.
type Payment struct {
	ID        int64           `json:"id"`
	SaleID    int64           `json:"sale_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
	CreatedAt time.Time       `json:"created_at"`
}

// SaleLineRequest is one requested line.
type SaleLineRequest struct {
	ProductID         int64            `json:"product_id" validate:"required,gt=0"`
	Quantity          int64            `json:"quantity" validate:"required,gt=0"`
	UnitPriceOverride *decimal.Decimal `json:"unit_price_override,omitempty"`
	MeasuredWeight    *decimal.Decimal `json:"measured_weight,omitempty"`
}

// CreateSaleRequest is the payload for sale creation.
type CreateSaleRequest struct {
	Lines         []SaleLineRequest `json:"lines" validate:"required,min=1,dive"`
	Discount      decimal.Decimal   `json:"discount"`
	PaymentMethod string            `json:"payment_method" validate:"required,oneof=CASH CARD QR CREDIT"`
	CustomerID    *int64            `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
}

// VoidSaleRequest is the payload for voiding a sale.
type VoidSaleRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// ListFilter filters sale listings.
type ListFilter struct {
	Status     SaleStatus
	CustomerID int64
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// ProductInfo is the catalog view the engine prices lines from. Stock is not
// trusted here; the ledger re-checks it under lock at debit time.
type ProductInfo struct {
	ID           int64
	SKU          string
	Name         string
	SellingPrice decimal.Decimal
	TaxRate      decimal.Decimal
	CurrentStock int64
	IsActive     bool
}

// CustomerStats is the slice of a customer the engine mutates.
type CustomerStats struct {
	ID            int64
	TotalOrders   int64
	TotalSpent    decimal.Decimal
	LoyaltyPoints int64
}
