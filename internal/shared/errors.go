package shared

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engines. Services wrap these with
// fmt.Errorf("%w: ...") so handlers can classify via errors.Is while still
// carrying the offending detail.
var (
	// ErrValidation indicates malformed or missing input, rejected before
	// any lookup.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates an unknown product/sale/purchase/supplier id.
	ErrNotFound = errors.New("not found")
	// ErrConflict covers duplicate invoice numbers, duplicate SKU/barcode,
	// double-void and payments exceeding the outstanding amount.
	ErrConflict = errors.New("conflict")
	// ErrPersistence indicates an underlying store failure; the unit of
	// work has been rolled back in full.
	ErrPersistence = errors.New("persistence failure")
	// ErrUnauthorized indicates a missing or invalid actor identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// InsufficientStockError is a business rule violation, not a bug: the
// requested quantity exceeds what the ledger holds for the product.
type InsufficientStockError struct {
	ProductID int64
	SKU       string
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (%s): available %d, requested %d",
		e.ProductID, e.SKU, e.Available, e.Requested)
}

// AsInsufficientStock unwraps err into an InsufficientStockError if present.
func AsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}
