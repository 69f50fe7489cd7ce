package ledger

import (
	"time"
)

// MovementType classifies a stock movement.
type MovementType string

const (
	// MovementPurchase credits stock from a goods receipt.
	MovementPurchase MovementType = "PURCHASE"
	// MovementSale debits stock for a committed sale.
	MovementSale MovementType = "SALE"
	// MovementReturn credits stock back when a sale is voided.
	MovementReturn MovementType = "RETURN"
	// MovementAdjustment records a SET-style administrative correction.
	MovementAdjustment MovementType = "ADJUSTMENT"
	// MovementWastage debits stock written off as waste.
	MovementWastage MovementType = "WASTAGE"
)

// AlertStatus is the lifecycle state of a stock alert.
type AlertStatus string

const (
	AlertStatusActive   AlertStatus = "ACTIVE"
	AlertStatusResolved AlertStatus = "RESOLVED"
)

// Entry is one immutable stock movement. BeforeStock and AfterStock are
// snapshots taken inside the same transaction as the product update, so
// AfterStock = BeforeStock + Quantity always holds at committed states.
type Entry struct {
	ID          int64        `json:"id"`
	ProductID   int64        `json:"product_id"`
	Type        MovementType `json:"type"`
	Quantity    int64        `json:"quantity"`
	BeforeStock int64        `json:"before_stock"`
	AfterStock  int64        `json:"after_stock"`
	Reference   string       `json:"reference"`
	ActorID     int64        `json:"actor_id"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Alert flags a product whose stock fell to or below its reorder threshold.
// At most one ACTIVE alert exists per product, except at zero stock where a
// fresh alert is raised on every occurrence.
type Alert struct {
	ID           int64       `json:"id"`
	ProductID    int64       `json:"product_id"`
	StockAtRaise int64       `json:"stock_at_raise"`
	Threshold    int64       `json:"threshold"`
	Status       AlertStatus `json:"status"`
	ResolvedBy   *int64      `json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time  `json:"resolved_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// MovementInput describes one requested movement. Quantity is signed.
type MovementInput struct {
	ProductID int64
	Type      MovementType
	Quantity  int64
	Reference string
	ActorID   int64
}

// AdjustMode selects how a direct stock adjustment is interpreted.
type AdjustMode string

const (
	AdjustModeAdd    AdjustMode = "ADD"
	AdjustModeRemove AdjustMode = "REMOVE"
	AdjustModeSet    AdjustMode = "SET"
	AdjustModeWaste  AdjustMode = "WASTE"
)

// AdjustmentInput is a direct stock adjustment request.
type AdjustmentInput struct {
	ProductID int64
	Quantity  int64
	Mode      AdjustMode
	Notes     string
	ActorID   int64
}

// EntryFilter filters ledger listings.
type EntryFilter struct {
	ProductID int64
	Type      MovementType
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}
