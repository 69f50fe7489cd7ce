package stocktake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillpoint/tillpoint/internal/ledger"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// TxRepository exposes the transactional operations the stock take engine
// needs. It embeds the ledger movement surface so reconciliation posts its
// adjustments in the same transaction that flips the status.
type TxRepository interface {
	ledger.MovementStore
	NextDocNumber(ctx context.Context, scope string, day time.Time) (int64, error)
	GetProductForCount(ctx context.Context, productID int64) (ProductCount, error)
	InsertStockTake(ctx context.Context, st StockTake) (int64, error)
	InsertItems(ctx context.Context, stockTakeID int64, items []Item) error
	GetStockTakeForUpdate(ctx context.Context, id int64) (StockTake, error)
	SetReconciled(ctx context.Context, id, actorID int64, at time.Time) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (StockTake, error)
	List(ctx context.Context, filter ListFilter) ([]StockTake, int, error)
}

// Repository persists stock takes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	*ledger.TxStore
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", shared.ErrPersistence, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(ctx, &txRepository{TxStore: ledger.NewTxStore(tx), tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", shared.ErrPersistence, err)
	}
	return nil
}

// NextDocNumber allocates the next per-day sequence number for scope inside
// the transaction.
func (t *txRepository) NextDocNumber(ctx context.Context, scope string, day time.Time) (int64, error) {
	var next int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO doc_sequences (scope, seq_date, last_no) VALUES ($1, $2, 1)
		 ON CONFLICT (scope, seq_date) DO UPDATE SET last_no = doc_sequences.last_no + 1
		 RETURNING last_no`,
		scope, day.Format("2006-01-02")).Scan(&next)
	return next, err
}

// GetProductForCount locks the product row so the system quantity written to
// the count is stable within the transaction.
func (t *txRepository) GetProductForCount(ctx context.Context, productID int64) (ProductCount, error) {
	var p ProductCount
	err := t.tx.QueryRow(ctx,
		`SELECT id, sku, name, current_stock FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&p.ID, &p.SKU, &p.Name, &p.CurrentStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductCount{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, productID)
		}
		return ProductCount{}, err
	}
	return p, nil
}

func (t *txRepository) InsertStockTake(ctx context.Context, st StockTake) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO stock_takes (reference, status, notes, threshold_qty, threshold_pct, created_by)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		st.Reference, st.Status, st.Notes, st.ThresholdQty, st.ThresholdPct, st.CreatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("%w: reference %s", shared.ErrConflict, st.Reference)
		}
		return 0, err
	}
	return id, nil
}

func (t *txRepository) InsertItems(ctx context.Context, stockTakeID int64, items []Item) error {
	for _, item := range items {
		_, err := t.tx.Exec(ctx,
			`INSERT INTO stock_take_items (stock_take_id, product_id, sku, name, system_qty, counted_qty, variance, variance_pct, flagged)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			stockTakeID, item.ProductID, item.SKU, item.Name,
			item.SystemQty, item.CountedQty, item.Variance, item.VariancePct, item.Flagged)
		if err != nil {
			return err
		}
	}
	return nil
}

const stockTakeColumns = `id, reference, status, notes, threshold_qty, threshold_pct, created_by, created_at, reconciled_by, reconciled_at`

func (t *txRepository) GetStockTakeForUpdate(ctx context.Context, id int64) (StockTake, error) {
	var st StockTake
	err := t.tx.QueryRow(ctx,
		`SELECT `+stockTakeColumns+` FROM stock_takes WHERE id=$1 FOR UPDATE`, id).
		Scan(&st.ID, &st.Reference, &st.Status, &st.Notes, &st.ThresholdQty, &st.ThresholdPct,
			&st.CreatedBy, &st.CreatedAt, &st.ReconciledBy, &st.ReconciledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockTake{}, fmt.Errorf("%w: stock take %d", shared.ErrNotFound, id)
		}
		return StockTake{}, err
	}
	st.Items, err = loadItems(ctx, t.tx, id)
	return st, err
}

func (t *txRepository) SetReconciled(ctx context.Context, id, actorID int64, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE stock_takes SET status=$2, reconciled_by=$3, reconciled_at=$4 WHERE id=$1`,
		id, StatusReconciled, actorID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: stock take %d", shared.ErrNotFound, id)
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, stockTakeID int64) ([]Item, error) {
	rows, err := q.Query(ctx,
		`SELECT id, stock_take_id, product_id, sku, name, system_qty, counted_qty, variance, variance_pct, flagged
		 FROM stock_take_items WHERE stock_take_id=$1 ORDER BY ABS(variance) DESC, sku`, stockTakeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.StockTakeID, &item.ProductID, &item.SKU, &item.Name,
			&item.SystemQty, &item.CountedQty, &item.Variance, &item.VariancePct, &item.Flagged); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get loads a stock take with its items.
func (r *Repository) Get(ctx context.Context, id int64) (StockTake, error) {
	var st StockTake
	err := r.pool.QueryRow(ctx,
		`SELECT `+stockTakeColumns+` FROM stock_takes WHERE id=$1`, id).
		Scan(&st.ID, &st.Reference, &st.Status, &st.Notes, &st.ThresholdQty, &st.ThresholdPct,
			&st.CreatedBy, &st.CreatedAt, &st.ReconciledBy, &st.ReconciledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockTake{}, fmt.Errorf("%w: stock take %d", shared.ErrNotFound, id)
		}
		return StockTake{}, err
	}
	st.Items, err = loadItems(ctx, r.pool, id)
	return st, err
}

// List returns stock takes matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]StockTake, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_takes`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)
	rows, err := r.pool.Query(ctx,
		`SELECT `+stockTakeColumns+` FROM stock_takes`+clause+
			fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []StockTake
	for rows.Next() {
		var st StockTake
		if err := rows.Scan(&st.ID, &st.Reference, &st.Status, &st.Notes, &st.ThresholdQty, &st.ThresholdPct,
			&st.CreatedBy, &st.CreatedAt, &st.ReconciledBy, &st.ReconciledAt); err != nil {
			return nil, 0, err
		}
		out = append(out, st)
	}
	return out, total, rows.Err()
}
