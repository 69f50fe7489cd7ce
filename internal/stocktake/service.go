package stocktake

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tillpoint/tillpoint/internal/ledger"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

const docScopeStockTake = "stocktake"

// Service owns physical count sessions. Recording a count is a pure snapshot
// of shelf vs book quantities; reconciling posts one ADJUSTMENT per drifted
// product through the ledger and can never be repeated.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier ledger.Notifier
	logger   *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, notifier ledger.Notifier, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, notifier: notifier, logger: logger}
}

// Create records a count session. Product rows are locked while the system
// quantities are read so every line in the session reflects one moment.
func (s *Service) Create(ctx context.Context, req CreateRequest, actorID int64) (StockTake, error) {
	if len(req.Lines) == 0 {
		return StockTake{}, fmt.Errorf("%w: stock take requires at least one line", shared.ErrValidation)
	}
	if req.ThresholdQty != nil && *req.ThresholdQty <= 0 {
		return StockTake{}, fmt.Errorf("%w: threshold qty must be > 0", shared.ErrValidation)
	}
	if req.ThresholdPct != nil && req.ThresholdPct.IsNegative() {
		return StockTake{}, fmt.Errorf("%w: threshold pct must be >= 0", shared.ErrValidation)
	}
	counted := make(map[int64]int64, len(req.Lines))
	for _, line := range req.Lines {
		if line.CountedQty < 0 {
			return StockTake{}, fmt.Errorf("%w: counted quantity must be >= 0", shared.ErrValidation)
		}
		if _, dup := counted[line.ProductID]; dup {
			return StockTake{}, fmt.Errorf("%w: product %d counted twice", shared.ErrValidation, line.ProductID)
		}
		counted[line.ProductID] = line.CountedQty
	}

	now := time.Now().UTC()
	var st StockTake
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seq, err := tx.NextDocNumber(ctx, docScopeStockTake, now)
		if err != nil {
			return err
		}

		system := make(map[int64]ProductCount, len(counted))
		for productID := range counted {
			product, err := tx.GetProductForCount(ctx, productID)
			if err != nil {
				return err
			}
			system[productID] = product
		}

		st = StockTake{
			Reference:    fmt.Sprintf("STK-%s-%04d", now.Format("20060102"), seq),
			Status:       StatusOpen,
			Notes:        req.Notes,
			ThresholdQty: req.ThresholdQty,
			ThresholdPct: req.ThresholdPct,
			CreatedBy:    actorID,
			CreatedAt:    now,
		}
		id, err := tx.InsertStockTake(ctx, st)
		if err != nil {
			return err
		}
		st.ID = id

		st.Items = ComputeVariance(system, counted, req.ThresholdQty, req.ThresholdPct)
		for i := range st.Items {
			st.Items[i].StockTakeID = id
		}
		return tx.InsertItems(ctx, id, st.Items)
	})
	if err != nil {
		return StockTake{}, err
	}

	s.recordAudit(ctx, actorID, "stocktake:create", st.ID, map[string]any{
		"reference": st.Reference,
		"lines":     len(st.Items),
	})
	return st, nil
}

// Reconcile sets each counted product's stock to its counted quantity via an
// ADJUSTMENT movement. Stock may have moved since the count, so the delta is
// taken against the live quantity under lock, not the recorded system
// quantity. Reconciling twice is a conflict.
func (s *Service) Reconcile(ctx context.Context, id, actorID int64) (StockTake, error) {
	var (
		st      StockTake
		raised  []ledger.Alert
		adjusts int
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		st, err = tx.GetStockTakeForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if st.Status == StatusReconciled {
			return fmt.Errorf("%w: stock take %s already reconciled", shared.ErrConflict, st.Reference)
		}

		for _, item := range st.Items {
			state, err := tx.GetProductForUpdate(ctx, item.ProductID)
			if err != nil {
				return err
			}
			delta := item.CountedQty - state.CurrentStock
			if delta == 0 {
				continue
			}
			_, alert, err := ledger.Apply(ctx, tx, ledger.MovementInput{
				ProductID: item.ProductID,
				Type:      ledger.MovementAdjustment,
				Quantity:  delta,
				Reference: st.Reference,
				ActorID:   actorID,
			})
			if err != nil {
				return err
			}
			adjusts++
			if alert != nil {
				raised = append(raised, *alert)
			}
		}

		now := time.Now().UTC()
		if err := tx.SetReconciled(ctx, id, actorID, now); err != nil {
			return err
		}
		st.Status = StatusReconciled
		st.ReconciledBy = &actorID
		st.ReconciledAt = &now
		return nil
	})
	if err != nil {
		return StockTake{}, err
	}

	s.recordAudit(ctx, actorID, "stocktake:reconcile", id, map[string]any{
		"reference":   st.Reference,
		"adjustments": adjusts,
	})
	s.notifyAlerts(ctx, raised)
	return st, nil
}

// Get loads a stock take with its items.
func (s *Service) Get(ctx context.Context, id int64) (StockTake, error) {
	if id <= 0 {
		return StockTake{}, fmt.Errorf("%w: stock take id required", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// List returns stock takes matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]StockTake, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "stock_take",
		EntityID: fmt.Sprintf("%d", id),
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
