package purchasing

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus tracks how much of a purchase has been paid.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPartial PaymentStatus = "PARTIAL"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

// Purchase is a committed goods receipt from a supplier.
type Purchase struct {
	ID            int64             `json:"id"`
	InvoiceNo     string            `json:"invoice_no"`
	SupplierID    int64             `json:"supplier_id"`
	Total         decimal.Decimal   `json:"total"`
	Discount      decimal.Decimal   `json:"discount"`
	Tax           decimal.Decimal   `json:"tax"`
	NetAmount     decimal.Decimal   `json:"net_amount"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
	CreatedBy     int64             `json:"created_by"`
	CreatedAt     time.Time         `json:"created_at"`
	Items         []PurchaseItem    `json:"items,omitempty"`
	Payments      []SupplierPayment `json:"payments,omitempty"`
}

// PurchaseItem is one received line.
type PurchaseItem struct {
	ID            int64            `json:"id"`
	PurchaseID    int64            `json:"purchase_id"`
	ProductID     int64            `json:"product_id"`
	ProductName   string           `json:"product_name"`
	Quantity      int64            `json:"quantity"`
	PurchasePrice decimal.Decimal  `json:"purchase_price"`
	SellingPrice  *decimal.Decimal `json:"selling_price,omitempty"`
	LineTotal     decimal.Decimal  `json:"line_total"`
}

// SupplierPayment is money paid to a supplier, optionally against a
// specific purchase.
type SupplierPayment struct {
	ID         int64           `json:"id"`
	SupplierID int64           `json:"supplier_id"`
	PurchaseID *int64          `json:"purchase_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	ActorID    int64           `json:"actor_id"`
	CreatedAt  time.Time       `json:"created_at"`
}

// PurchaseLineRequest is one requested receipt line.
type PurchaseLineRequest struct {
	ProductID            int64            `json:"product_id" validate:"required,gt=0"`
	Quantity             int64            `json:"quantity" validate:"required,gt=0"`
	PurchasePrice        decimal.Decimal  `json:"purchase_price"`
	SellingPriceOverride *decimal.Decimal `json:"selling_price_override,omitempty"`
}

// CreatePurchaseRequest is the payload for purchase creation.
type CreatePurchaseRequest struct {
	SupplierID    int64                 `json:"supplier_id" validate:"required,gt=0"`
	Lines         []PurchaseLineRequest `json:"lines" validate:"required,min=1,dive"`
	Discount      decimal.Decimal       `json:"discount"`
	Tax           decimal.Decimal       `json:"tax"`
	PaymentStatus PaymentStatus         `json:"payment_status" validate:"required,oneof=PENDING PARTIAL PAID"`
}

// AddPaymentRequest is the payload for paying against a purchase.
type AddPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method" validate:"required,oneof=CASH BANK CHEQUE"`
}

// ListFilter filters purchase listings.
type ListFilter struct {
	SupplierID    int64
	PaymentStatus PaymentStatus
	From          time.Time
	To            time.Time
	Limit         int
	Offset        int
}

// ProductInfo is the catalog view the engine receives against.
type ProductInfo struct {
	ID   int64
	SKU  string
	Name string
}

// SupplierInfo is the supplier slice the engine mutates, read under lock.
type SupplierInfo struct {
	ID      int64
	Name    string
	Balance decimal.Decimal
}
