package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillpoint/tillpoint/internal/shared"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxStore implements MovementStore on a pgx transaction. The sale and
// purchase repositories embed it so every engine shares the same movement
// primitives.
type TxStore struct {
	tx pgx.Tx
}

// NewTxStore wraps a transaction in a MovementStore.
func NewTxStore(tx pgx.Tx) *TxStore {
	return &TxStore{tx: tx}
}

// WithMovementTx runs fn inside a repeatable-read transaction with a
// MovementStore bound to it.
func (r *Repository) WithMovementTx(ctx context.Context, fn func(context.Context, MovementStore) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", shared.ErrPersistence, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(ctx, NewTxStore(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", shared.ErrPersistence, err)
	}
	return nil
}

// GetProductForUpdate locks the product row and returns the ledger view.
func (s *TxStore) GetProductForUpdate(ctx context.Context, productID int64) (ProductState, error) {
	var state ProductState
	err := s.tx.QueryRow(ctx,
		`SELECT id, sku, current_stock, min_stock_alert FROM products WHERE id=$1 FOR UPDATE`,
		productID).Scan(&state.ID, &state.SKU, &state.CurrentStock, &state.MinStockAlert)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductState{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, productID)
		}
		return ProductState{}, err
	}
	return state, nil
}

// SetProductStock writes the post-movement stock value.
func (s *TxStore) SetProductStock(ctx context.Context, productID, stock int64) error {
	tag, err := s.tx.Exec(ctx,
		`UPDATE products SET current_stock=$2, updated_at=NOW() WHERE id=$1`, productID, stock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", shared.ErrNotFound, productID)
	}
	return nil
}

// InsertEntry appends an immutable ledger entry.
func (s *TxStore) InsertEntry(ctx context.Context, entry Entry) (Entry, error) {
	err := s.tx.QueryRow(ctx,
		`INSERT INTO stock_ledger (product_id, movement_type, quantity, before_stock, after_stock, reference, actor_id)
		 VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at`,
		entry.ProductID, entry.Type, entry.Quantity, entry.BeforeStock, entry.AfterStock,
		entry.Reference, entry.ActorID).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// HasActiveAlert reports whether the product has an ACTIVE alert.
func (s *TxStore) HasActiveAlert(ctx context.Context, productID int64) (bool, error) {
	var exists bool
	err := s.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM stock_alerts WHERE product_id=$1 AND status=$2)`,
		productID, AlertStatusActive).Scan(&exists)
	return exists, err
}

// InsertAlert raises a new alert.
func (s *TxStore) InsertAlert(ctx context.Context, alert Alert) (Alert, error) {
	err := s.tx.QueryRow(ctx,
		`INSERT INTO stock_alerts (product_id, stock_at_raise, threshold, status)
		 VALUES ($1,$2,$3,$4) RETURNING id, created_at`,
		alert.ProductID, alert.StockAtRaise, alert.Threshold, alert.Status).
		Scan(&alert.ID, &alert.CreatedAt)
	if err != nil {
		return Alert{}, err
	}
	return alert, nil
}

// ResolveActiveAlerts marks every ACTIVE alert for the product RESOLVED.
func (s *TxStore) ResolveActiveAlerts(ctx context.Context, productID, actorID int64, at time.Time) error {
	_, err := s.tx.Exec(ctx,
		`UPDATE stock_alerts SET status=$3, resolved_by=$4, resolved_at=$5
		 WHERE product_id=$1 AND status=$2`,
		productID, AlertStatusActive, AlertStatusResolved, actorID, at)
	return err
}

// ListEntries returns ledger entries matching the filter, newest first.
func (r *Repository) ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	conds := []string{"1=1"}
	args := []any{}
	idx := 1
	if filter.ProductID > 0 {
		conds = append(conds, fmt.Sprintf("product_id = $%d", idx))
		args = append(args, filter.ProductID)
		idx++
	}
	if filter.Type != "" {
		conds = append(conds, fmt.Sprintf("movement_type = $%d", idx))
		args = append(args, filter.Type)
		idx++
	}
	if !filter.From.IsZero() {
		conds = append(conds, fmt.Sprintf("created_at >= $%d", idx))
		args = append(args, filter.From)
		idx++
	}
	if !filter.To.IsZero() {
		conds = append(conds, fmt.Sprintf("created_at <= $%d", idx))
		args = append(args, filter.To)
		idx++
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	query := fmt.Sprintf(`SELECT id, product_id, movement_type, quantity, before_stock, after_stock, reference, actor_id, created_at
		FROM stock_ledger WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		strings.Join(conds, " AND "), idx, idx+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Type, &e.Quantity, &e.BeforeStock,
			&e.AfterStock, &e.Reference, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListAlerts returns alerts, optionally filtered by status, newest first.
func (r *Repository) ListAlerts(ctx context.Context, status AlertStatus) ([]Alert, error) {
	query := `SELECT id, product_id, stock_at_raise, threshold, status, resolved_by, resolved_at, created_at
		FROM stock_alerts`
	args := []any{}
	if status != "" {
		query += ` WHERE status=$1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT 500`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.ProductID, &a.StockAtRaise, &a.Threshold, &a.Status,
			&a.ResolvedBy, &a.ResolvedAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
