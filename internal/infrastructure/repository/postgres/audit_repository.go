package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/castaway-league/internal/domain/audit"
	qb "github.com/riskibarqy/castaway-league/internal/platform/querybuilder"
)

type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry audit.Entry) error {
	return appendAudit(ctx, r.db, entry)
}

func (r *AuditRepository) ListByTarget(ctx context.Context, targetType, targetID string) ([]audit.Entry, error) {
	query, args, err := qb.Select("*").From("audit_log").
		Where(qb.Eq("target_type", targetType), qb.Eq("target_id", targetID)).
		OrderBy("created_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select audit entries query: %w", err)
	}

	var rows []auditTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrapStoreError(err, "select audit entries")
	}
	out := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, audit.Entry{
			ID:         row.ID,
			ActorID:    row.ActorID,
			Action:     row.Action,
			TargetType: row.TargetType,
			TargetID:   row.TargetID,
			Before:     bytesValue(row.Before),
			After:      bytesValue(row.After),
			CreatedAt:  row.CreatedAt.UTC(),
		})
	}
	return out, nil
}

func appendAudit(ctx context.Context, exec sqlx.ExecerContext, entry audit.Entry) error {
	query, args, err := qb.InsertModel("audit_log", auditTableModel{
		ID:         entry.ID,
		ActorID:    entry.ActorID,
		Action:     entry.Action,
		TargetType: entry.TargetType,
		TargetID:   entry.TargetID,
		Before:     jsonOrNil(entry.Before),
		After:      jsonOrNil(entry.After),
		CreatedAt:  entry.CreatedAt.UTC(),
	}, "")
	if err != nil {
		return fmt.Errorf("build insert audit entry query: %w", err)
	}
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return wrapStoreError(err, "insert audit entry")
	}
	return nil
}

// jsonOrNil keeps empty snapshots as SQL NULL instead of invalid JSONB.
func jsonOrNil(raw []byte) *string {
	if len(raw) == 0 {
		return nil
	}
	value := string(raw)
	return &value
}

func bytesValue(value *string) []byte {
	if value == nil {
		return nil
	}
	return []byte(*value)
}
