// Package audit exposes the read side of the audit trail. Writes happen
// through shared.AuditLogger inside each engine.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is one persisted audit entry.
type Record struct {
	ID         int64          `json:"id"`
	ActorID    int64          `json:"actor_id"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entity_id"`
	Meta       map[string]any `json:"meta"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Filter narrows audit listings.
type Filter struct {
	Entity   string
	EntityID string
	ActorID  int64
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// Reader lists audit entries.
type Reader struct {
	pool *pgxpool.Pool
}

// NewReader constructs Reader.
func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{pool: pool}
}

// List returns entries matching the filter, newest first.
func (r *Reader) List(ctx context.Context, filter Filter) ([]Record, error) {
	conds := []string{"1=1"}
	args := []any{}
	idx := 1
	if filter.Entity != "" {
		conds = append(conds, fmt.Sprintf("entity = $%d", idx))
		args = append(args, filter.Entity)
		idx++
	}
	if filter.EntityID != "" {
		conds = append(conds, fmt.Sprintf("entity_id = $%d", idx))
		args = append(args, filter.EntityID)
		idx++
	}
	if filter.ActorID > 0 {
		conds = append(conds, fmt.Sprintf("actor_id = $%d", idx))
		args = append(args, filter.ActorID)
		idx++
	}
	if !filter.From.IsZero() {
		conds = append(conds, fmt.Sprintf("occurred_at >= $%d", idx))
		args = append(args, filter.From)
		idx++
	}
	if !filter.To.IsZero() {
		conds = append(conds, fmt.Sprintf("occurred_at <= $%d", idx))
		args = append(args, filter.To)
		idx++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(
		`SELECT id, actor_id, action, entity, entity_id, meta, occurred_at
		 FROM audit_logs WHERE %s ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		strings.Join(conds, " AND "), idx, idx+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.ActorID, &rec.Action, &rec.Entity, &rec.EntityID,
			&rec.Meta, &rec.OccurredAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
