package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillpoint/tillpoint/internal/shared"
)

// Repository persists the single settings row in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Load reads the settings row.
func (r *Repository) Load(ctx context.Context) (Settings, error) {
	var s Settings
	err := r.pool.QueryRow(ctx,
		`SELECT store_name, currency, default_tax_rate, loyalty_divisor FROM store_settings WHERE id=1`).
		Scan(&s.StoreName, &s.Currency, &s.DefaultTaxRate, &s.LoyaltyDivisor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Settings{}, fmt.Errorf("%w: settings", shared.ErrNotFound)
		}
		return Settings{}, err
	}
	return s, nil
}

// Save upserts the settings row.
func (r *Repository) Save(ctx context.Context, s Settings) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO store_settings (id, store_name, currency, default_tax_rate, loyalty_divisor, updated_at)
		 VALUES (1, $1, $2, $3, $4, NOW())
		 ON CONFLICT (id) DO UPDATE SET store_name=$1, currency=$2, default_tax_rate=$3, loyalty_divisor=$4, updated_at=NOW()`,
		s.StoreName, s.Currency, s.DefaultTaxRate, s.LoyaltyDivisor)
	return err
}
