package purchasing

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

// TxRepository exposes the transactional operations the receiving engine
// needs. It embeds the ledger movement surface so stock credits, the
// purchase insert and the supplier balance commit or roll back as one unit.
type TxRepository interface {
	ledger.MovementStore
	NextDocNumber(ctx context.Context, scope string, day time.Time) (int64, error)
	GetProductForPurchase(ctx context.Context, productID int64) (ProductInfo, error)
	GetSupplierForUpdate(ctx context.Context, supplierID int64) (SupplierInfo, error)
	InsertPurchase(ctx context.Context, purchase Purchase) (int64, error)
	InsertPurchaseItems(ctx context.Context, purchaseID int64, items []PurchaseItem) error
	UpdateProductPrices(ctx context.Context, productID int64, purchasePrice decimal.Decimal, sellingPrice *decimal.Decimal) error
	AdjustSupplierBalance(ctx context.Context, supplierID int64, delta decimal.Decimal) error
	GetPurchaseForUpdate(ctx context.Context, id int64) (Purchase, error)
	InsertSupplierPayment(ctx context.Context, payment SupplierPayment) (int64, error)
	SumPayments(ctx context.Context, purchaseID int64) (decimal.Decimal, error)
	SetPaymentStatus(ctx context.Context, id int64, status PaymentStatus) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPurchase(ctx context.Context, id int64) (Purchase, error)
	ListPurchases(ctx context.Context, filter ListFilter) ([]Purchase, int, error)
}

// Repository persists purchases in PostgreSQL.
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

func (t *txRepository) GetProductForPurchase(ctx context.Context, productID int64) (ProductInfo, error) {
	var p ProductInfo
	err := t.tx.QueryRow(ctx,
		`SELECT id, sku, name FROM products WHERE id=$1`, productID).Scan(&p.ID, &p.SKU, &p.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductInfo{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, productID)
		}
		return ProductInfo{}, err
	}
	return p, nil
}

func (t *txRepository) GetSupplierForUpdate(ctx context.Context, supplierID int64) (SupplierInfo, error) {
	var s SupplierInfo
	err := t.tx.QueryRow(ctx,
		`SELECT id, name, balance FROM suppliers WHERE id=$1 FOR UPDATE`, supplierID).
		Scan(&s.ID, &s.Name, &s.Balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SupplierInfo{}, fmt.Errorf("%w: supplier %d", shared.ErrNotFound, supplierID)
		}
		return SupplierInfo{}, err
	}
	return s, nil
}

func (t *txRepository) InsertPurchase(ctx context.Context, purchase Purchase) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO purchases (invoice_no, supplier_id, total, discount, tax, net_amount, payment_status, created_by)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		purchase.InvoiceNo, purchase.SupplierID, purchase.Total, purchase.Discount,
		purchase.Tax, purchase.NetAmount, purchase.PaymentStatus, purchase.CreatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("%w: invoice %s", shared.ErrConflict, purchase.InvoiceNo)
		}
		return 0, err
	}
	return id, nil
}

func (t *txRepository) InsertPurchaseItems(ctx context.Context, purchaseID int64, items []PurchaseItem) error {
	for _, item := range items {
		_, err := t.tx.Exec(ctx,
			`INSERT INTO purchase_items (purchase_id, product_id, product_name, quantity, purchase_price, selling_price, line_total)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			purchaseID, item.ProductID, item.ProductName, item.Quantity,
			item.PurchasePrice, item.SellingPrice, item.LineTotal)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepository) UpdateProductPrices(ctx context.Context, productID int64, purchasePrice decimal.Decimal, sellingPrice *decimal.Decimal) error {
	var err error
	if sellingPrice != nil {
		_, err = t.tx.Exec(ctx,
			`UPDATE products SET purchase_price=$2, selling_price=$3, updated_at=NOW() WHERE id=$1`,
			productID, purchasePrice, *sellingPrice)
	} else {
		_, err = t.tx.Exec(ctx,
			`UPDATE products SET purchase_price=$2, updated_at=NOW() WHERE id=$1`,
			productID, purchasePrice)
	}
	return err
}

func (t *txRepository) AdjustSupplierBalance(ctx context.Context, supplierID int64, delta decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE suppliers SET balance = balance + $2, updated_at = NOW() WHERE id=$1`,
		supplierID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: supplier %d", shared.ErrNotFound, supplierID)
	}
	return nil
}

func (t *txRepository) GetPurchaseForUpdate(ctx context.Context, id int64) (Purchase, error) {
	var p Purchase
	err := t.tx.QueryRow(ctx,
		`SELECT id, invoice_no, supplier_id, total, discount, tax, net_amount, payment_status, created_by, created_at
		 FROM purchases WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.InvoiceNo, &p.SupplierID, &p.Total, &p.Discount, &p.Tax,
			&p.NetAmount, &p.PaymentStatus, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchase{}, fmt.Errorf("%w: purchase %d", shared.ErrNotFound, id)
		}
		return Purchase{}, err
	}
	return p, nil
}

func (t *txRepository) InsertSupplierPayment(ctx context.Context, payment SupplierPayment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO supplier_payments (supplier_id, purchase_id, amount, method, actor_id)
		 VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		payment.SupplierID, payment.PurchaseID, payment.Amount, payment.Method, payment.ActorID).Scan(&id)
	return id, err
}

func (t *txRepository) SumPayments(ctx context.Context, purchaseID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := t.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM supplier_payments WHERE purchase_id=$1`, purchaseID).Scan(&sum)
	return sum, err
}

func (t *txRepository) SetPaymentStatus(ctx context.Context, id int64, status PaymentStatus) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE purchases SET payment_status=$2 WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: purchase %d", shared.ErrNotFound, id)
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, purchaseID int64) ([]PurchaseItem, error) {
	rows, err := q.Query(ctx,
		`SELECT id, purchase_id, product_id, product_name, quantity, purchase_price, selling_price, line_total
		 FROM purchase_items WHERE purchase_id=$1 ORDER BY id ASC`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PurchaseItem
	for rows.Next() {
		var it PurchaseItem
		if err := rows.Scan(&it.ID, &it.PurchaseID, &it.ProductID, &it.ProductName,
			&it.Quantity, &it.PurchasePrice, &it.SellingPrice, &it.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func loadPayments(ctx context.Context, q querier, purchaseID int64) ([]SupplierPayment, error) {
	rows, err := q.Query(ctx,
		`SELECT id, supplier_id, purchase_id, amount, method, actor_id, created_at
		 FROM supplier_payments WHERE purchase_id=$1 ORDER BY id ASC`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []SupplierPayment
	for rows.Next() {
		var p SupplierPayment
		if err := rows.Scan(&p.ID, &p.SupplierID, &p.PurchaseID, &p.Amount, &p.Method,
			&p.ActorID, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

const purchaseColumns = `id, invoice_no, supplier_id, total, discount, tax, net_amount, payment_status, created_by, created_at`

// GetPurchase loads a purchase with items and payments.
func (r *Repository) GetPurchase(ctx context.Context, id int64) (Purchase, error) {
	var p Purchase
	err := r.pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id=$1`, id).
		Scan(&p.ID, &p.InvoiceNo, &p.SupplierID, &p.Total, &p.Discount, &p.Tax,
			&p.NetAmount, &p.PaymentStatus, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchase{}, fmt.Errorf("%w: purchase %d", shared.ErrNotFound, id)
		}
		return Purchase{}, err
	}
	if p.Items, err = loadItems(ctx, r.pool, p.ID); err != nil {
		return Purchase{}, err
	}
	if p.Payments, err = loadPayments(ctx, r.pool, p.ID); err != nil {
		return Purchase{}, err
	}
	return p, nil
}

// ListPurchases lists purchase headers matching the filter, newest first.
func (r *Repository) ListPurchases(ctx context.Context, filter ListFilter) ([]Purchase, int, error) {
	conds := []string{"1=1"}
	args := []any{}
	idx := 1
	if filter.SupplierID > 0 {
		conds = append(conds, fmt.Sprintf("supplier_id = $%d", idx))
		args = append(args, filter.SupplierID)
		idx++
	}
	if filter.PaymentStatus != "" {
		conds = append(conds, fmt.Sprintf("payment_status = $%d", idx))
		args = append(args, filter.PaymentStatus)
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
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchases WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM purchases WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		purchaseColumns, where, idx, idx+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var purchases []Purchase
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.InvoiceNo, &p.SupplierID, &p.Total, &p.Discount,
			&p.Tax, &p.NetAmount, &p.PaymentStatus, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		purchases = append(purchases, p)
	}
	return purchases, total, rows.Err()
}
