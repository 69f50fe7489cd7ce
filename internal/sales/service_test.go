package sales

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tillpoint/tillpoint/internal/ledger"
	"github.com/tillpoint/tillpoint/internal/shared"
)

type memProduct struct {
	info     ProductInfo
	minAlert int64
}

type memCustomer struct {
	orders int64
	spent  decimal.Decimal
	points int64
}

type memState struct {
	products  map[int64]*memProduct
	customers map[int64]*memCustomer
	sales     map[int64]*Sale
	payments  []Payment
	entries   []ledger.Entry
	alerts    []ledger.Alert
	seq       map[string]int64
	nextID    int64
}

func newMemState() *memState {
	return &memState{
		products:  make(map[int64]*memProduct),
		customers: make(map[int64]*memCustomer),
		sales:     make(map[int64]*Sale),
		seq:       make(map[string]int64),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for id, p := range s.products {
		cp := *p
		c.products[id] = &cp
	}
	for id, cust := range s.customers {
		cc := *cust
		c.customers[id] = &cc
	}
	for id, sale := range s.sales {
		cs := *sale
		cs.Items = append([]SaleItem(nil), sale.Items...)
		cs.Payments = append([]Payment(nil), sale.Payments...)
		c.sales[id] = &cs
	}
	c.payments = append([]Payment(nil), s.payments...)
	c.entries = append([]ledger.Entry(nil), s.entries...)
	c.alerts = append([]ledger.Alert(nil), s.alerts...)
	for k, v := range s.seq {
		c.seq[k] = v
	}
	c.nextID = s.nextID
	return c
}

type memRepo struct {
	state *memState
}

// WithTx emulates transactional behaviour: on error every mutation made by
// fn is discarded.
func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := r.state.clone()
	if err := fn(ctx, &memTx{state: r.state}); err != nil {
		*r.state = *snapshot
		return err
	}
	return nil
}

func (r *memRepo) GetSale(_ context.Context, id int64) (Sale, error) {
	sale, ok := r.state.sales[id]
	if !ok {
		return Sale{}, fmt.Errorf("%w: sale %d", shared.ErrNotFound, id)
	}
	return *sale, nil
}

func (r *memRepo) GetSaleByInvoice(_ context.Context, invoiceNo string) (Sale, error) {
	for _, sale := range r.state.sales {
		if sale.InvoiceNo == invoiceNo {
			return *sale, nil
		}
	}
	return Sale{}, fmt.Errorf("%w: sale %s", shared.ErrNotFound, invoiceNo)
}

func (r *memRepo) ListSales(_ context.Context, _ ListFilter) ([]Sale, int, error) {
	var out []Sale
	for _, sale := range r.state.sales {
		out = append(out, *sale)
	}
	return out, len(out), nil
}

type memTx struct {
	state *memState
}

func (t *memTx) NextDocNumber(_ context.Context, scope string, day time.Time) (int64, error) {
	key := scope + day.Format("20060102")
	t.state.seq[key]++
	return t.state.seq[key], nil
}

func (t *memTx) GetProductForSale(_ context.Context, productID int64) (ProductInfo, error) {
	p, ok := t.state.products[productID]
	if !ok {
		return ProductInfo{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, productID)
	}
	return p.info, nil
}

func (t *memTx) InsertSale(_ context.Context, sale Sale) (int64, error) {
	for _, existing := range t.state.sales {
		if existing.InvoiceNo == sale.InvoiceNo {
			return 0, fmt.Errorf("%w: invoice %s", shared.ErrConflict, sale.InvoiceNo)
		}
	}
	t.state.nextID++
	sale.ID = t.state.nextID
	t.state.sales[sale.ID] = &sale
	return sale.ID, nil
}

func (t *memTx) InsertSaleItems(_ context.Context, saleID int64, items []SaleItem) error {
	sale := t.state.sales[saleID]
	for i := range items {
		items[i].SaleID = saleID
	}
	sale.Items = append([]SaleItem(nil), items...)
	return nil
}

func (t *memTx) InsertPayment(_ context.Context, payment Payment) (int64, error) {
	t.state.nextID++
	payment.ID = t.state.nextID
	t.state.payments = append(t.state.payments, payment)
	sale := t.state.sales[payment.SaleID]
	sale.Payments = append(sale.Payments, payment)
	return payment.ID, nil
}

func (t *memTx) GetSaleForUpdate(_ context.Context, id int64) (Sale, error) {
	sale, ok := t.state.sales[id]
	if !ok {
		return Sale{}, fmt.Errorf("%w: sale %d", shared.ErrNotFound, id)
	}
	return *sale, nil
}

func (t *memTx) MarkSaleCancelled(_ context.Context, id int64, reason string, at time.Time) error {
	sale, ok := t.state.sales[id]
	if !ok {
		return fmt.Errorf("%w: sale %d", shared.ErrNotFound, id)
	}
	sale.Status = SaleStatusCancelled
	sale.CancelReason = &reason
	sale.CancelledAt = &at
	return nil
}

func (t *memTx) AdjustCustomerStats(_ context.Context, customerID, ordersDelta int64, spentDelta decimal.Decimal, pointsDelta int64) error {
	cust, ok := t.state.customers[customerID]
	if !ok {
		return fmt.Errorf("%w: customer %d", shared.ErrNotFound, customerID)
	}
	cust.orders += ordersDelta
	cust.spent = cust.spent.Add(spentDelta)
	cust.points += pointsDelta
	return nil
}

// ledger.MovementStore

func (t *memTx) GetProductForUpdate(_ context.Context, productID int64) (ledger.ProductState, error) {
	p, ok := t.state.products[productID]
	if !ok {
		return ledger.ProductState{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, productID)
	}
	return ledger.ProductState{
		ID:            p.info.ID,
		SKU:           p.info.SKU,
		CurrentStock:  p.info.CurrentStock,
		MinStockAlert: p.minAlert,
	}, nil
}

func (t *memTx) SetProductStock(_ context.Context, productID, stock int64) error {
	t.state.products[productID].info.CurrentStock = stock
	return nil
}

func (t *memTx) InsertEntry(_ context.Context, entry ledger.Entry) (ledger.Entry, error) {
	t.state.nextID++
	entry.ID = t.state.nextID
	t.state.entries = append(t.state.entries, entry)
	return entry, nil
}

func (t *memTx) HasActiveAlert(_ context.Context, productID int64) (bool, error) {
	for _, a := range t.state.alerts {
		if a.ProductID == productID && a.Status == ledger.AlertStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertAlert(_ context.Context, alert ledger.Alert) (ledger.Alert, error) {
	t.state.nextID++
	alert.ID = t.state.nextID
	t.state.alerts = append(t.state.alerts, alert)
	return alert, nil
}

func (t *memTx) ResolveActiveAlerts(_ context.Context, productID, actorID int64, at time.Time) error {
	for i := range t.state.alerts {
		if t.state.alerts[i].ProductID == productID && t.state.alerts[i].Status == ledger.AlertStatusActive {
			t.state.alerts[i].Status = ledger.AlertStatusResolved
			t.state.alerts[i].ResolvedBy = &actorID
			t.state.alerts[i].ResolvedAt = &at
		}
	}
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newSaleFixture() (*memState, *Service) {
	state := newMemState()
	state.products[1] = &memProduct{
		info: ProductInfo{
			ID: 1, SKU: "COF-250", Name: "Ground Coffee 250g",
			SellingPrice: dec("7.50"), TaxRate: dec("10"),
			CurrentStock: 20, IsActive: true,
		},
		minAlert: 5,
	}
	state.products[2] = &memProduct{
		info: ProductInfo{
			ID: 2, SKU: "BRD-STD", Name: "Sourdough Loaf",
			SellingPrice: dec("120.00"), TaxRate: dec("0"),
			CurrentStock: 3, IsActive: true,
		},
		minAlert: 1,
	}
	state.customers[7] = &memCustomer{spent: decimal.Zero}
	svc := NewService(&memRepo{state: state}, nil, nil, nil, nil)
	return state, svc
}

func TestCreateSaleComputesTotalsAndDebitsStock(t *testing.T) {
	state, svc := newSaleFixture()
	customerID := int64(7)

	sale, err := svc.CreateSale(context.Background(), CreateSaleRequest{
		Lines: []SaleLineRequest{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
		Discount:      dec("1.00"),
		PaymentMethod: "CASH",
		CustomerID:    &customerID,
	}, 9)
	require.NoError(t, err)

	// 2 x 7.50 + 1 x 120 = 135.00; tax = 15.00 * 10% = 1.50
	require.True(t, sale.Subtotal.Equal(dec("135.00")), sale.Subtotal.String())
	require.True(t, sale.Tax.Equal(dec("1.50")), sale.Tax.String())
	require.True(t, sale.Total.Equal(dec("135.50")), sale.Total.String())
	require.Equal(t, int64(1), sale.PointsEarned) // floor(135.50 / 100)
	require.Equal(t, SaleStatusPaid, sale.Status)
	require.Regexp(t, `^INV-\d{8}-0001$`, sale.InvoiceNo)

	require.Equal(t, int64(18), state.products[1].info.CurrentStock)
	require.Equal(t, int64(2), state.products[2].info.CurrentStock)
	require.Len(t, state.entries, 2)
	for _, entry := range state.entries {
		require.Equal(t, ledger.MovementSale, entry.Type)
		require.Equal(t, sale.InvoiceNo, entry.Reference)
		require.Equal(t, entry.BeforeStock+entry.Quantity, entry.AfterStock)
	}

	cust := state.customers[7]
	require.Equal(t, int64(1), cust.orders)
	require.True(t, cust.spent.Equal(dec("135.50")))
	require.Equal(t, int64(1), cust.points)

	require.Len(t, sale.Payments, 1)
	require.True(t, sale.Payments[0].Amount.Equal(sale.Total))
}

func TestCreateSaleInvoiceNumbersIncrement(t *testing.T) {
	_, svc := newSaleFixture()
	req := CreateSaleRequest{
		Lines:         []SaleLineRequest{{ProductID: 1, Quantity: 1}},
		PaymentMethod: "CASH",
	}
	first, err := svc.CreateSale(context.Background(), req, 1)
	require.NoError(t, err)
	second, err := svc.CreateSale(context.Background(), req, 1)
	require.NoError(t, err)
	require.NotEqual(t, first.InvoiceNo, second.InvoiceNo)
	require.Regexp(t, `-0002$`, second.InvoiceNo)
}

func TestCreateSaleIsAtomicOnInsufficientStock(t *testing.T) {
	state, svc := newSaleFixture()
	customerID := int64(7)

	_, err := svc.CreateSale(context.Background(), CreateSaleRequest{
		Lines: []SaleLineRequest{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 5}, // only 3 available
		},
		PaymentMethod: "CASH",
		CustomerID:    &customerID,
	}, 9)
	ise, ok := shared.AsInsufficientStock(err)
	require.True(t, ok)
	require.Equal(t, "BRD-STD", ise.SKU)

	// The failed sale left no trace: no stock change, no sale, no ledger
	// entries, no counter movement, and the sequence was not consumed.
	require.Equal(t, int64(20), state.products[1].info.CurrentStock)
	require.Equal(t, int64(3), state.products[2].info.CurrentStock)
	require.Empty(t, state.sales)
	require.Empty(t, state.entries)
	require.Equal(t, int64(0), state.customers[7].orders)
	require.Empty(t, state.seq)
}

func TestCreateSaleRejectsInactiveProduct(t *testing.T) {
	state, svc := newSaleFixture()
	state.products[1].info.IsActive = false

	_, err := svc.CreateSale(context.Background(), CreateSaleRequest{
		Lines:         []SaleLineRequest{{ProductID: 1, Quantity: 1}},
		PaymentMethod: "CASH",
	}, 9)
	require.True(t, errors.Is(err, shared.ErrValidation))
}

func TestCreateSaleRejectsExcessDiscount(t *testing.T) {
	_, svc := newSaleFixture()
	_, err := svc.CreateSale(context.Background(), CreateSaleRequest{
		Lines:         []SaleLineRequest{{ProductID: 1, Quantity: 1}},
		Discount:      dec("1000.00"),
		PaymentMethod: "CASH",
	}, 9)
	require.True(t, errors.Is(err, shared.ErrValidation))
}

func TestCreateSaleUnitPriceOverrideAndWeight(t *testing.T) {
	_, svc := newSaleFixture()
	override := dec("6.00")
	weight := dec("0.480")

	sale, err := svc.CreateSale(context.Background(), CreateSaleRequest{
		Lines: []SaleLineRequest{
			{ProductID: 1, Quantity: 1, UnitPriceOverride: &override, MeasuredWeight: &weight},
		},
		PaymentMethod: "CARD",
	}, 9)
	require.NoError(t, err)
	require.True(t, sale.Items[0].UnitPrice.Equal(override))
	require.NotNil(t, sale.Items[0].MeasuredWeight)
	require.True(t, sale.Items[0].MeasuredWeight.Equal(weight))
}

func TestVoidSaleCompensatesExactly(t *testing.T) {
	state, svc := newSaleFixture()
	customerID := int64(7)

	sale, err := svc.CreateSale(context.Background(), CreateSaleRequest{
		Lines: []SaleLineRequest{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
		PaymentMethod: "CASH",
		CustomerID:    &customerID,
	}, 9)
	require.NoError(t, err)

	require.NoError(t, svc.VoidSale(context.Background(), sale.ID, "customer changed mind", 10))

	// Stock is back to the originals through RETURN movements, not deletes.
	require.Equal(t, int64(20), state.products[1].info.CurrentStock)
	require.Equal(t, int64(3), state.products[2].info.CurrentStock)
	require.Len(t, state.entries, 4)
	returns := 0
	for _, entry := range state.entries {
		if entry.Type == ledger.MovementReturn {
			returns++
			require.Equal(t, sale.InvoiceNo, entry.Reference)
			require.Positive(t, entry.Quantity)
		}
	}
	require.Equal(t, 2, returns)

	// Counters net to zero.
	cust := state.customers[7]
	require.Equal(t, int64(0), cust.orders)
	require.True(t, cust.spent.IsZero(), cust.spent.String())
	require.Equal(t, int64(0), cust.points)

	// The sale record survives as CANCELLED with its items intact.
	voided := state.sales[sale.ID]
	require.Equal(t, SaleStatusCancelled, voided.Status)
	require.NotNil(t, voided.CancelReason)
	require.Len(t, voided.Items, 2)
}

func TestVoidSaleTwiceConflicts(t *testing.T) {
	state, svc := newSaleFixture()

	sale, err := svc.CreateSale(context.Background(), CreateSaleRequest{
		Lines:         []SaleLineRequest{{ProductID: 1, Quantity: 1}},
		PaymentMethod: "CASH",
	}, 9)
	require.NoError(t, err)

	require.NoError(t, svc.VoidSale(context.Background(), sale.ID, "mistake", 9))
	err = svc.VoidSale(context.Background(), sale.ID, "again", 9)
	require.True(t, errors.Is(err, shared.ErrConflict))

	// Second void restored nothing twice.
	require.Equal(t, int64(20), state.products[1].info.CurrentStock)
}

func TestVoidSaleRequiresReason(t *testing.T) {
	_, svc := newSaleFixture()
	err := svc.VoidSale(context.Background(), 1, "", 9)
	require.True(t, errors.Is(err, shared.ErrValidation))
}

func TestLoyaltyPoints(t *testing.T) {
	require.Equal(t, int64(2), loyaltyPoints(dec("250.00"), 100))
	require.Equal(t, int64(0), loyaltyPoints(dec("99.99"), 100))
	require.Equal(t, int64(0), loyaltyPoints(dec("50"), 0))
	require.Equal(t, int64(0), loyaltyPoints(dec("-5"), 100))
}
