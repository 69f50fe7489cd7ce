package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tillpoint/tillpoint/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithMovementTx(ctx context.Context, fn func(context.Context, MovementStore) error) error
	ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error)
	ListAlerts(ctx context.Context, status AlertStatus) ([]Alert, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Notifier receives alerts raised by committed movements. Implementations
// must be cheap; they run after commit and their failure never propagates.
type Notifier interface {
	LowStock(ctx context.Context, alert Alert) error
}

// Service coordinates direct stock adjustments and ledger queries.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier Notifier
	logger   *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, notifier: notifier, logger: logger}
}

// Adjust applies a direct stock adjustment. ADD, REMOVE and WASTE take a
// positive quantity and the mode determines the sign; SET takes the target
// absolute value and the delta is computed under the row lock.
func (s *Service) Adjust(ctx context.Context, input AdjustmentInput) (Entry, error) {
	switch input.Mode {
	case AdjustModeAdd, AdjustModeRemove, AdjustModeWaste:
		if input.Quantity <= 0 {
			return Entry{}, fmt.Errorf("%w: quantity must be > 0", shared.ErrValidation)
		}
	case AdjustModeSet:
		if input.Quantity < 0 {
			return Entry{}, fmt.Errorf("%w: target stock must be >= 0", shared.ErrValidation)
		}
	default:
		return Entry{}, fmt.Errorf("%w: unknown adjustment mode %q", shared.ErrValidation, input.Mode)
	}

	var (
		entry  Entry
		raised *Alert
	)
	err := s.repo.WithMovementTx(ctx, func(ctx context.Context, store MovementStore) error {
		movement := MovementInput{
			ProductID: input.ProductID,
			Reference: input.Notes,
			ActorID:   input.ActorID,
		}
		switch input.Mode {
		case AdjustModeAdd:
			movement.Type = MovementPurchase
			movement.Quantity = input.Quantity
		case AdjustModeRemove:
			movement.Type = MovementSale
			movement.Quantity = -input.Quantity
		case AdjustModeWaste:
			movement.Type = MovementWastage
			movement.Quantity = -input.Quantity
		case AdjustModeSet:
			state, err := store.GetProductForUpdate(ctx, input.ProductID)
			if err != nil {
				return err
			}
			delta := input.Quantity - state.CurrentStock
			if delta == 0 {
				return fmt.Errorf("%w: stock already at %d", shared.ErrValidation, input.Quantity)
			}
			movement.Type = MovementAdjustment
			movement.Quantity = delta
		}

		var err error
		entry, raised, err = Apply(ctx, store, movement)
		return err
	})
	if err != nil {
		return Entry{}, err
	}

	s.recordAudit(ctx, input, entry)
	s.notify(ctx, raised)
	return entry, nil
}

// ListEntries lists ledger entries.
func (s *Service) ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	return s.repo.ListEntries(ctx, filter)
}

// ListAlerts lists alerts by status.
func (s *Service) ListAlerts(ctx context.Context, status AlertStatus) ([]Alert, error) {
	if status != "" && status != AlertStatusActive && status != AlertStatusResolved {
		return nil, fmt.Errorf("%w: unknown alert status %q", shared.ErrValidation, status)
	}
	return s.repo.ListAlerts(ctx, status)
}

func (s *Service) recordAudit(ctx context.Context, input AdjustmentInput, entry Entry) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  input.ActorID,
		Action:   fmt.Sprintf("stock:%s", input.Mode),
		Entity:   "product",
		EntityID: fmt.Sprintf("%d", input.ProductID),
		Meta: map[string]any{
			"mode":         string(input.Mode),
			"quantity":     input.Quantity,
			"before_stock": entry.BeforeStock,
			"after_stock":  entry.AfterStock,
			"notes":        input.Notes,
		},
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, alert *Alert) {
	if alert == nil || s.notifier == nil {
		return
	}
	if err := s.notifier.LowStock(ctx, *alert); err != nil && s.logger != nil {
		s.logger.Warn("low stock notification failed", slog.Int64("product_id", alert.ProductID), slog.Any("error", err))
	}
}
