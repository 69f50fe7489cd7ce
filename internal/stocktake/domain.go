package stocktake

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a stock take.
type Status string

const (
	// StatusOpen means the count is recorded but stock is untouched.
	StatusOpen Status = "OPEN"
	// StatusReconciled means adjustments have been posted to the ledger.
	StatusReconciled Status = "RECONCILED"
)

// StockTake is one physical count session. Recording a count never moves
// stock; only reconciliation does, through ledger adjustments.
type StockTake struct {
	ID           int64            `json:"id"`
	Reference    string           `json:"reference"`
	Status       Status           `json:"status"`
	Notes        string           `json:"notes,omitempty"`
	ThresholdQty *int64           `json:"threshold_qty,omitempty"`
	ThresholdPct *decimal.Decimal `json:"threshold_pct,omitempty"`
	CreatedBy    int64            `json:"created_by"`
	CreatedAt    time.Time        `json:"created_at"`
	ReconciledBy *int64           `json:"reconciled_by,omitempty"`
	ReconciledAt *time.Time       `json:"reconciled_at,omitempty"`
	Items        []Item           `json:"items,omitempty"`
}

// Item is one counted product with its computed variance. Variance is
// counted minus system: positive means more on the shelf than on the books.
type Item struct {
	ID          int64           `json:"id"`
	StockTakeID int64           `json:"stock_take_id"`
	ProductID   int64           `json:"product_id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	SystemQty   int64           `json:"system_qty"`
	CountedQty  int64           `json:"counted_qty"`
	Variance    int64           `json:"variance"`
	VariancePct decimal.Decimal `json:"variance_pct"`
	Flagged     bool            `json:"flagged"`
}

// CountLine is one counted product in a create request.
type CountLine struct {
	ProductID  int64 `json:"product_id" validate:"gt=0"`
	CountedQty int64 `json:"counted_qty" validate:"gte=0"`
}

// CreateRequest is the payload for recording a stock take.
type CreateRequest struct {
	Notes        string           `json:"notes,omitempty" validate:"max=500"`
	ThresholdQty *int64           `json:"threshold_qty,omitempty" validate:"omitempty,gt=0"`
	ThresholdPct *decimal.Decimal `json:"threshold_pct,omitempty"`
	Lines        []CountLine      `json:"lines" validate:"required,min=1,dive"`
}

// ListFilter filters stock take listings.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

// ProductCount is the product view a count line is checked against.
type ProductCount struct {
	ID           int64
	SKU          string
	Name         string
	CurrentStock int64
}
