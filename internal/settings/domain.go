package settings

import (
	"context"

	"github.com/shopspring/decimal"
)

// Settings is store-level configuration resolved once per request. It is
// injected, never held as ambient global state.
type Settings struct {
	StoreName      string          `json:"store_name"`
	Currency       string          `json:"currency"`
	DefaultTaxRate decimal.Decimal `json:"default_tax_rate"`
	LoyaltyDivisor int64           `json:"loyalty_divisor"`
}

// Default returns the settings used when nothing has been configured yet.
func Default() Settings {
	return Settings{
		StoreName:      "Tillpoint",
		Currency:       "USD",
		DefaultTaxRate: decimal.Zero,
		LoyaltyDivisor: 100,
	}
}

// Provider resolves the current settings.
type Provider interface {
	Resolve(ctx context.Context) (Settings, error)
}

// UpdateRequest carries partial settings updates.
type UpdateRequest struct {
	StoreName      *string          `json:"store_name,omitempty" validate:"omitempty,max=200"`
	Currency       *string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	DefaultTaxRate *decimal.Decimal `json:"default_tax_rate,omitempty"`
	LoyaltyDivisor *int64           `json:"loyalty_divisor,omitempty" validate:"omitempty,gt=0"`
}
