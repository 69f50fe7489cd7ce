package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tillpoint/tillpoint/internal/ledger"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// TxRepository exposes the transactional operations the sale engine needs.
// It embeds the ledger movement surface so stock debits, the sale insert and
// the customer counters commit or roll back as one unit.
type TxRepository interface {
	ledger.MovementStore
	NextDocNumber(ctx context.Context, scope string, day time.Time) (int64, error)
	GetProductForSale(ctx context.Context, productID int64) (ProductInfo, error)
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertSaleItems(ctx context.Context, saleID int64, items []SaleItem) error
	InsertPayment(ctx context.Context, payment Payment) (int64, error)
	GetSaleForUpdate(ctx context.Context, id int64) (Sale, error)
	MarkSaleCancelled(ctx context.Context, id int64, reason string, at time.Time) error
	AdjustCustomerStats(ctx context.Context, customerID, ordersDelta int64, spentDelta decimal.Decimal, pointsDelta int64) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSale(ctx context.Context, id int64) (Sale, error)
	GetSaleByInvoice(ctx context.Context, invoiceNo string) (Sale, error)
	ListSales(ctx context.Context, filter ListFilter) ([]Sale, int, error)
}

// Repository persists sales in PostgreSQL.
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
// the transaction, so allocation and the document insert commit together.
func (t *txRepository) NextDocNumber(ctx context.Context, scope string, day time.Time) (int64, error) {
	var next int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO doc_sequences (scope, seq_date, last_no) VALUES ($1, $2, 1)
		 ON CONFLICT (scope, seq_date) DO UPDATE SET last_no = doc_sequences.last_no + 1
		 RETURNING last_no`,
		scope, day.Format("2006-01-02")).Scan(&next)
	return next, err
}

func (t *txRepository) GetProductForSale(ctx context.Context, productID int64) (ProductInfo, error) {
	var p ProductInfo
	err := t.tx.QueryRow(ctx,
		`SELECT id, sku, name, selling_price, tax_rate, current_stock, is_active FROM products WHERE id=$1`,
		productID).Scan(&p.ID, &p.SKU, &p.Name, &p.SellingPrice, &p.TaxRate, &p.CurrentStock, &p.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductInfo{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, productID)
		}
		return ProductInfo{}, err
	}
	return p, nil
}

func (t *txRepository) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO sales (invoice_no, customer_id, subtotal, discount, tax, total, points_earned, payment_method, status, cashier_id)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		sale.InvoiceNo, sale.CustomerID, sale.Subtotal, sale.Discount, sale.Tax, sale.Total,
		sale.PointsEarned, sale.PaymentMethod, sale.Status, sale.CashierID).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("%w: invoice %s", shared.ErrConflict, sale.InvoiceNo)
		}
		return 0, err
	}
	return id, nil
}

func (t *txRepository) InsertSaleItems(ctx context.Context, saleID int64, items []SaleItem) error {
	for _, item := range items {
		_, err := t.tx.Exec(ctx,
			`INSERT INTO sale_items (sale_id, product_id, product_name, quantity, unit_price, tax_amount, line_total, measured_weight)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			saleID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice,
			item.TaxAmount, item.LineTotal, item.MeasuredWeight)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepository) InsertPayment(ctx context.Context, payment Payment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO sale_payments (sale_id, amount, method, reference) VALUES ($1,$2,$3,$4) RETURNING id`,
		payment.SaleID, payment.Amount, payment.Method, payment.Reference).Scan(&id)
	return id, err
}

func (t *txRepository) GetSaleForUpdate(ctx context.Context, id int64) (Sale, error) {
	var sale Sale
	err := t.tx.QueryRow(ctx,
		`SELECT id, invoice_no, customer_id, subtotal, discount, tax, total, points_earned, payment_method, status, cancel_reason, cashier_id, created_at, cancelled_at
		 FROM sales WHERE id=$1 FOR UPDATE`, id).
		Scan(&sale.ID, &sale.InvoiceNo, &sale.CustomerID, &sale.Subtotal, &sale.Discount,
			&sale.Tax, &sale.Total, &sale.PointsEarned, &sale.PaymentMethod, &sale.Status, &sale.CancelReason,
			&sale.CashierID, &sale.CreatedAt, &sale.CancelledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, fmt.Errorf("%w: sale %d", shared.ErrNotFound, id)
		}
		return Sale{}, err
	}
	items, err := loadItems(ctx, t.tx, id)
	if err != nil {
		return Sale{}, err
	}
	sale.Items = items
	return sale, nil
}

func (t *txRepository) MarkSaleCancelled(ctx context.Context, id int64, reason string, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE sales SET status=$2, cancel_reason=$3, cancelled_at=$4 WHERE id=$1`,
		id, SaleStatusCancelled, reason, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: sale %d", shared.ErrNotFound, id)
	}
	return nil
}

func (t *txRepository) AdjustCustomerStats(ctx context.Context, customerID, ordersDelta int64, spentDelta decimal.Decimal, pointsDelta int64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE customers SET total_orders = total_orders + $2, total_spent = total_spent + $3,
		 loyalty_points = loyalty_points + $4, updated_at = NOW() WHERE id=$1`,
		customerID, ordersDelta, spentDelta, pointsDelta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: customer %d", shared.ErrNotFound, customerID)
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, saleID int64) ([]SaleItem, error) {
	rows, err := q.Query(ctx,
		`SELECT id, sale_id, product_id, product_name, quantity, unit_price, tax_amount, line_total, measured_weight
		 FROM sale_items WHERE sale_id=$1 ORDER BY id ASC`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SaleItem
	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductName, &it.Quantity,
			&it.UnitPrice, &it.TaxAmount, &it.LineTotal, &it.MeasuredWeight); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func loadPayments(ctx context.Context, q querier, saleID int64) ([]Payment, error) {
	rows, err := q.Query(ctx,
		`SELECT id, sale_id, amount, method, reference, created_at FROM sale_payments WHERE sale_id=$1 ORDER BY id ASC`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.SaleID, &p.Amount, &p.Method, &p.Reference, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

const saleColumns = `id, invoice_no, customer_id, subtotal, discount, tax, total, points_earned, payment_method, status, cancel_reason, cashier_id, created_at, cancelled_at`

func (r *Repository) getSale(ctx context.Context, cond string, arg any) (Sale, error) {
	var sale Sale
	err := r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE `+cond, arg).
		Scan(&sale.ID, &sale.InvoiceNo, &sale.CustomerID, &sale.Subtotal, &sale.Discount,
			&sale.Tax, &sale.Total, &sale.PointsEarned, &sale.PaymentMethod, &sale.Status, &sale.CancelReason,
			&sale.CashierID, &sale.CreatedAt, &sale.CancelledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, fmt.Errorf("%w: sale", shared.ErrNotFound)
		}
		return Sale{}, err
	}
	if sale.Items, err = loadItems(ctx, r.pool, sale.ID); err != nil {
		return Sale{}, err
	}
	if sale.Payments, err = loadPayments(ctx, r.pool, sale.ID); err != nil {
		return Sale{}, err
	}
	return sale, nil
}

// GetSale loads a sale with items and payments.
func (r *Repository) GetSale(ctx context.Context, id int64) (Sale, error) {
	return r.getSale(ctx, "id=$1", id)
}

// GetSaleByInvoice loads a sale by its invoice number.
func (r *Repository) GetSaleByInvoice(ctx context.Context, invoiceNo string) (Sale, error) {
	return r.getSale(ctx, "invoice_no=$1", invoiceNo)
}

// ListSales lists sale headers matching the filter, newest first.
func (r *Repository) ListSales(ctx context.Context, filter ListFilter) ([]Sale, int, error) {
	conds := []string{"1=1"}
	args := []any{}
	idx := 1
	if filter.Status != "" {
		conds = append(conds, fmt.Sprintf("status = $%d", idx))
		args = append(args, filter.Status)
		idx++
	}
	if filter.CustomerID > 0 {
		conds = append(conds, fmt.Sprintf("customer_id = $%d", idx))
		args = append(args, filter.CustomerID)
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
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM sales WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		saleColumns, where, idx, idx+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		var sale Sale
		if err := rows.Scan(&sale.ID, &sale.InvoiceNo, &sale.CustomerID, &sale.Subtotal,
			&sale.Discount, &sale.Tax, &sale.Total, &sale.PointsEarned, &sale.PaymentMethod, &sale.Status,
			&sale.CancelReason, &sale.CashierID, &sale.CreatedAt, &sale.CancelledAt); err != nil {
			return nil, 0, err
		}
		sales = append(sales, sale)
	}
	return sales, total, rows.Err()
}
