package purchasing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tillpoint/tillpoint/internal/ledger"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

const docScopePurchase = "purchase"

// Service is the purchase receiving engine: it validates a goods receipt,
// credits stock through the ledger, refreshes product costs, and moves the
// supplier balance as payments come in.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// CreatePurchase commits a goods receipt as one atomic unit: header, line
// items, per-line stock credit with the ledger as the authority, product
// price refresh and the supplier balance all succeed or fail together. A
// receipt created as PENDING or PARTIAL adds its full net amount to the
// supplier's outstanding balance; one created as PAID records a settling
// payment instead.
func (s *Service) CreatePurchase(ctx context.Context, req CreatePurchaseRequest, actorID int64) (Purchase, error) {
	if req.SupplierID <= 0 {
		return Purchase{}, fmt.Errorf("%w: supplier required", shared.ErrValidation)
	}
	if len(req.Lines) == 0 {
		return Purchase{}, fmt.Errorf("%w: purchase requires at least one line", shared.ErrValidation)
	}
	if req.Discount.IsNegative() || req.Tax.IsNegative() {
		return Purchase{}, fmt.Errorf("%w: discount and tax must be >= 0", shared.ErrValidation)
	}
	switch req.PaymentStatus {
	case PaymentStatusPending, PaymentStatusPartial, PaymentStatusPaid:
	default:
		return Purchase{}, fmt.Errorf("%w: invalid payment status %q", shared.ErrValidation, req.PaymentStatus)
	}
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return Purchase{}, fmt.Errorf("%w: line quantity must be > 0", shared.ErrValidation)
		}
		if line.PurchasePrice.IsNegative() {
			return Purchase{}, fmt.Errorf("%w: purchase price must be >= 0", shared.ErrValidation)
		}
		if line.SellingPriceOverride != nil && line.SellingPriceOverride.IsNegative() {
			return Purchase{}, fmt.Errorf("%w: selling price override must be >= 0", shared.ErrValidation)
		}
	}

	now := time.Now().UTC()

	var purchase Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		supplier, err := tx.GetSupplierForUpdate(ctx, req.SupplierID)
		if err != nil {
			return err
		}

		seq, err := tx.NextDocNumber(ctx, docScopePurchase, now)
		if err != nil {
			return err
		}
		invoiceNo := fmt.Sprintf("PUR-%s-%04d", now.Format("20060102"), seq)

		var (
			items []PurchaseItem
			total = decimal.Zero
		)
		for _, line := range req.Lines {
			product, err := tx.GetProductForPurchase(ctx, line.ProductID)
			if err != nil {
				return err
			}
			lineTotal := line.PurchasePrice.Mul(decimal.NewFromInt(line.Quantity))
			items = append(items, PurchaseItem{
				ProductID:     product.ID,
				ProductName:   product.Name,
				Quantity:      line.Quantity,
				PurchasePrice: line.PurchasePrice,
				SellingPrice:  line.SellingPriceOverride,
				LineTotal:     lineTotal,
			})
			total = total.Add(lineTotal)
		}

		netAmount := total.Sub(req.Discount).Add(req.Tax)
		if netAmount.IsNegative() {
			return fmt.Errorf("%w: discount exceeds purchase amount", shared.ErrValidation)
		}

		purchase = Purchase{
			InvoiceNo:     invoiceNo,
			SupplierID:    supplier.ID,
			Total:         total,
			Discount:      req.Discount,
			Tax:           req.Tax,
			NetAmount:     netAmount,
			PaymentStatus: req.PaymentStatus,
			CreatedBy:     actorID,
			CreatedAt:     now,
		}
		purchaseID, err := tx.InsertPurchase(ctx, purchase)
		if err != nil {
			return err
		}
		purchase.ID = purchaseID

		if err := tx.InsertPurchaseItems(ctx, purchaseID, items); err != nil {
			return err
		}
		for i := range items {
			items[i].PurchaseID = purchaseID
		}
		purchase.Items = items

		for _, item := range items {
			if _, _, err := ledger.Apply(ctx, tx, ledger.MovementInput{
				ProductID: item.ProductID,
				Type:      ledger.MovementPurchase,
				Quantity:  item.Quantity,
				Reference: invoiceNo,
				ActorID:   actorID,
			}); err != nil {
				return err
			}
			if err := tx.UpdateProductPrices(ctx, item.ProductID, item.PurchasePrice, item.SellingPrice); err != nil {
				return err
			}
		}

		switch req.PaymentStatus {
		case PaymentStatusPending, PaymentStatusPartial:
			if err := tx.AdjustSupplierBalance(ctx, supplier.ID, netAmount); err != nil {
				return err
			}
		case PaymentStatusPaid:
			payment := SupplierPayment{
				SupplierID: supplier.ID,
				PurchaseID: &purchaseID,
				Amount:     netAmount,
				Method:     "CASH",
				ActorID:    actorID,
				CreatedAt:  now,
			}
			if _, err := tx.InsertSupplierPayment(ctx, payment); err != nil {
				return err
			}
			purchase.Payments = []SupplierPayment{payment}
		}
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}

	s.recordAudit(ctx, actorID, "purchase:create", purchase.ID, map[string]any{
		"invoice_no": purchase.InvoiceNo,
		"net_amount": purchase.NetAmount.String(),
		"lines":      len(purchase.Items),
	})
	return purchase, nil
}

// AddPayment records a payment against a purchase and decrements the
// supplier's outstanding balance. Paying more than the remaining amount is
// a conflict; the moment cumulative payments reach the net amount the
// purchase flips to PAID.
func (s *Service) AddPayment(ctx context.Context, purchaseID int64, req AddPaymentRequest, actorID int64) (Purchase, error) {
	if !req.Amount.IsPositive() {
		return Purchase{}, fmt.Errorf("%w: payment amount must be > 0", shared.ErrValidation)
	}
	if req.Method == "" {
		return Purchase{}, fmt.Errorf("%w: payment method required", shared.ErrValidation)
	}

	var purchase Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		purchase, err = tx.GetPurchaseForUpdate(ctx, purchaseID)
		if err != nil {
			return err
		}
		if purchase.PaymentStatus == PaymentStatusPaid {
			return fmt.Errorf("%w: purchase %s already paid", shared.ErrConflict, purchase.InvoiceNo)
		}

		paid, err := tx.SumPayments(ctx, purchaseID)
		if err != nil {
			return err
		}
		remaining := purchase.NetAmount.Sub(paid)
		if req.Amount.GreaterThan(remaining) {
			return fmt.Errorf("%w: payment %s exceeds remaining %s on %s",
				shared.ErrConflict, req.Amount, remaining, purchase.InvoiceNo)
		}

		payment := SupplierPayment{
			SupplierID: purchase.SupplierID,
			PurchaseID: &purchaseID,
			Amount:     req.Amount,
			Method:     req.Method,
			ActorID:    actorID,
		}
		if _, err := tx.InsertSupplierPayment(ctx, payment); err != nil {
			return err
		}
		if err := tx.AdjustSupplierBalance(ctx, purchase.SupplierID, req.Amount.Neg()); err != nil {
			return err
		}

		status := PaymentStatusPartial
		if paid.Add(req.Amount).Equal(purchase.NetAmount) {
			status = PaymentStatusPaid
		}
		if err := tx.SetPaymentStatus(ctx, purchaseID, status); err != nil {
			return err
		}
		purchase.PaymentStatus = status
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}

	s.recordAudit(ctx, actorID, "purchase:payment", purchaseID, map[string]any{
		"invoice_no": purchase.InvoiceNo,
		"amount":     req.Amount.String(),
		"status":     string(purchase.PaymentStatus),
	})
	return purchase, nil
}

// GetPurchase loads a purchase with items and payments.
func (s *Service) GetPurchase(ctx context.Context, id int64) (Purchase, error) {
	if id <= 0 {
		return Purchase{}, fmt.Errorf("%w: purchase id required", shared.ErrValidation)
	}
	return s.repo.GetPurchase(ctx, id)
}

// ListPurchases lists purchases matching the filter.
func (s *Service) ListPurchases(ctx context.Context, filter ListFilter) ([]Purchase, int, error) {
	return s.repo.ListPurchases(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, purchaseID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "purchase",
		EntityID: fmt.Sprintf("%d", purchaseID),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
