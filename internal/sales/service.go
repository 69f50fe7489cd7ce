package sales

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tillpoint/tillpoint/internal/ledger"
	"github.com/tillpoint/tillpoint/internal/settings"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

const docScopeSale = "sale"

var oneHundred = decimal.NewFromInt(100)

// Service is the sale transaction engine: it validates a proposed sale,
// computes totals, debits stock through the ledger, records the payment and
// customer counters, and reverses all of it when a sale is voided.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier ledger.Notifier
	settings settings.Provider
	logger   *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, notifier ledger.Notifier, provider settings.Provider, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, notifier: notifier, settings: provider, logger: logger}
}

// CreateSale commits a sale as one atomic unit: header, line items, payment,
// per-line stock debit with the ledger as the authority, customer counters
// and the invoice sequence all succeed or fail together.
func (s *Service) CreateSale(ctx context.Context, req CreateSaleRequest, actorID int64) (Sale, error) {
	if len(req.Lines) == 0 {
		return Sale{}, fmt.Errorf("%w: sale requires at least one line", shared.ErrValidation)
	}
	if req.Discount.IsNegative() {
		return Sale{}, fmt.Errorf("%w: discount must be >= 0", shared.ErrValidation)
	}
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return Sale{}, fmt.Errorf("%w: line quantity must be > 0", shared.ErrValidation)
		}
		if line.UnitPriceOverride != nil && line.UnitPriceOverride.IsNegative() {
			return Sale{}, fmt.Errorf("%w: unit price override must be >= 0", shared.ErrValidation)
		}
	}

	cfg := s.resolveSettings(ctx)
	now := time.Now().UTC()

	var (
		sale   Sale
		raised []ledger.Alert
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seq, err := tx.NextDocNumber(ctx, docScopeSale, now)
		if err != nil {
			return err
		}
		invoiceNo := fmt.Sprintf("INV-%s-%04d", now.Format("20060102"), seq)

		var (
			items    []SaleItem
			subtotal = decimal.Zero
			tax      = decimal.Zero
		)
		for _, line := range req.Lines {
			product, err := tx.GetProductForSale(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if !product.IsActive {
				return fmt.Errorf("%w: product %s is inactive", shared.ErrValidation, product.SKU)
			}
			if product.CurrentStock < line.Quantity {
				return &shared.InsufficientStockError{
					ProductID: product.ID,
					SKU:       product.SKU,
					Available: product.CurrentStock,
					Requested: line.Quantity,
				}
			}
			unitPrice := product.SellingPrice
			if line.UnitPriceOverride != nil {
				unitPrice = *line.UnitPriceOverride
			}
			qty := decimal.NewFromInt(line.Quantity)
			lineTotal := unitPrice.Mul(qty)
			lineTax := lineTotal.Mul(product.TaxRate).Div(oneHundred)

			items = append(items, SaleItem{
				ProductID:      product.ID,
				ProductName:    product.Name,
				Quantity:       line.Quantity,
				UnitPrice:      unitPrice,
				TaxAmount:      lineTax,
				LineTotal:      lineTotal,
				MeasuredWeight: line.MeasuredWeight,
			})
			subtotal = subtotal.Add(lineTotal)
			tax = tax.Add(lineTax)
		}

		total := subtotal.Sub(req.Discount).Add(tax)
		if total.IsNegative() {
			return fmt.Errorf("%w: discount exceeds sale amount", shared.ErrValidation)
		}
		points := loyaltyPoints(total, cfg.LoyaltyDivisor)

		sale = Sale{
			InvoiceNo:     invoiceNo,
			CustomerID:    req.CustomerID,
			Subtotal:      subtotal,
			Discount:      req.Discount,
			Tax:           tax,
			Total:         total,
			PointsEarned:  points,
			PaymentMethod: req.PaymentMethod,
			Status:        SaleStatusPaid,
			CashierID:     actorID,
			CreatedAt:     now,
		}
		saleID, err := tx.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		sale.ID = saleID

		if err := tx.InsertSaleItems(ctx, saleID, items); err != nil {
			return err
		}
		for i := range items {
			items[i].SaleID = saleID
		}
		sale.Items = items

		payment := Payment{
			SaleID:    saleID,
			Amount:    total,
			Method:    req.PaymentMethod,
			Reference: uuid.NewString(),
		}
		if _, err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}
		sale.Payments = []Payment{payment}

		// The ledger is the authority on stock: it re-reads under lock and
		// rejects anything the earlier availability check raced against.
		for _, item := range items {
			_, alert, err := ledger.Apply(ctx, tx, ledger.MovementInput{
				ProductID: item.ProductID,
				Type:      ledger.MovementSale,
				Quantity:  -item.Quantity,
				Reference: invoiceNo,
				ActorID:   actorID,
			})
			if err != nil {
				return err
			}
			if alert != nil {
				raised = append(raised, *alert)
			}
		}

		if req.CustomerID != nil {
			if err := tx.AdjustCustomerStats(ctx, *req.CustomerID, 1, total, points); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Sale{}, err
	}

	s.recordAudit(ctx, actorID, "sale:create", sale.ID, map[string]any{
		"invoice_no": sale.InvoiceNo,
		"total":      sale.Total.String(),
		"lines":      len(sale.Items),
	})
	s.notifyAlerts(ctx, raised)
	return sale, nil
}

// VoidSale is the compensating action for a committed sale: it restores
// every debited unit through RETURN movements, reverses the customer
// counters by the recorded amounts, and marks the sale CANCELLED. The sale
// and its items are never deleted. Voiding a cancelled sale is an error, not
// a no-op; masking a double void would hide operator mistakes.
func (s *Service) VoidSale(ctx context.Context, saleID int64, reason string, actorID int64) error {
	if reason == "" {
		return fmt.Errorf("%w: void reason required", shared.ErrValidation)
	}

	var (
		sale   Sale
		raised []ledger.Alert
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		sale, err = tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status == SaleStatusCancelled {
			return fmt.Errorf("%w: sale %s already cancelled", shared.ErrConflict, sale.InvoiceNo)
		}

		if err := tx.MarkSaleCancelled(ctx, saleID, reason, time.Now().UTC()); err != nil {
			return err
		}

		for _, item := range sale.Items {
			_, alert, err := ledger.Apply(ctx, tx, ledger.MovementInput{
				ProductID: item.ProductID,
				Type:      ledger.MovementReturn,
				Quantity:  item.Quantity,
				Reference: sale.InvoiceNo,
				ActorID:   actorID,
			})
			if err != nil {
				return err
			}
			if alert != nil {
				raised = append(raised, *alert)
			}
		}

		if sale.CustomerID != nil {
			// Points are reversed by the amount recorded on the sale, so the
			// compensation is exact even if the loyalty policy changed since.
			if err := tx.AdjustCustomerStats(ctx, *sale.CustomerID, -1, sale.Total.Neg(), -sale.PointsEarned); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, actorID, "sale:void", saleID, map[string]any{
		"invoice_no": sale.InvoiceNo,
		"reason":     reason,
	})
	s.notifyAlerts(ctx, raised)
	return nil
}

// GetSale loads a sale with its items and payments.
func (s *Service) GetSale(ctx context.Context, id int64) (Sale, error) {
	if id <= 0 {
		return Sale{}, fmt.Errorf("%w: sale id required", shared.ErrValidation)
	}
	return s.repo.GetSale(ctx, id)
}

// GetSaleByInvoice loads a sale by invoice number.
func (s *Service) GetSaleByInvoice(ctx context.Context, invoiceNo string) (Sale, error) {
	if invoiceNo == "" {
		return Sale{}, fmt.Errorf("%w: invoice number required", shared.ErrValidation)
	}
	return s.repo.GetSaleByInvoice(ctx, invoiceNo)
}

// ListSales lists sales matching the filter.
func (s *Service) ListSales(ctx context.Context, filter ListFilter) ([]Sale, int, error) {
	return s.repo.ListSales(ctx, filter)
}

func loyaltyPoints(total decimal.Decimal, divisor int64) int64 {
	if divisor <= 0 || total.IsNegative() {
		return 0
	}
	return total.Div(decimal.NewFromInt(divisor)).Floor().IntPart()
}

func (s *Service) resolveSettings(ctx context.Context) settings.Settings {
	if s.settings == nil {
		return settings.Default()
	}
	cfg, err := s.settings.Resolve(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("settings resolution failed, using defaults", slog.Any("error", err))
		}
		return settings.Default()
	}
	return cfg
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, saleID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "sale",
		EntityID: fmt.Sprintf("%d", saleID),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}

func (s *Service) notifyAlerts(ctx context.Context, alerts []ledger.Alert) {
	if s.notifier == nil {
		return
	}
	for _, alert := range alerts {
		if err := s.notifier.LowStock(ctx, alert); err != nil && s.logger != nil {
			s.logger.Warn("low stock notification failed", slog.Int64("product_id", alert.ProductID), slog.Any("error", err))
		}
	}
}
