package memory

import (
	"context"
	"slices"

	"github.com/riskibarqy/castaway-league/internal/domain/audit"
)

type AuditRepository struct {
	store *Store
}

func NewAuditRepository(store *Store) *AuditRepository {
	return &AuditRepository{store: store}
}

func (r *AuditRepository) Append(_ context.Context, entry audit.Entry) error {
	return r.store.update(func(t *tables) error {
		t.audit = append(t.audit, entry)
		return nil
	})
}

func (r *AuditRepository) ListByTarget(_ context.Context, targetType, targetID string) ([]audit.Entry, error) {
	out := make([]audit.Entry, 0)
	r.store.view(func(t *tables) {
		for _, entry := range t.audit {
			if entry.TargetType == targetType && entry.TargetID == targetID {
				out = append(out, entry)
			}
		}
	})
	slices.Reverse(out)
	return out, nil
}
