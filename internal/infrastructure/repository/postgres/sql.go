package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/riskibarqy/castaway-league/internal/usecase"
)

const (
	pqUniqueViolation      pq.ErrorCode = "23505"
	pqSerializationFailure pq.ErrorCode = "40001"
	pqDeadlockDetected     pq.ErrorCode = "40P01"
	pqLockNotAvailable     pq.ErrorCode = "55P03"
	pqQueryCanceled        pq.ErrorCode = "57014"
)

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func pqCode(err error) (pq.ErrorCode, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return "", false
	}
	return pqErr.Code, true
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// isTransient reports errors a caller may retry: lock contention, aborted
// serializable transactions and dropped connections.
func isTransient(err error) bool {
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	code, ok := pqCode(err)
	if !ok {
		return false
	}
	switch code {
	case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable, pqQueryCanceled:
		return true
	}
	return code.Class() == "08"
}

func wrapStoreError(err error, op string) error {
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return fmt.Errorf("%w: %s: %v", usecase.ErrDependencyUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// withinTx runs fn in one transaction, rolling back on error or panic.
func withinTx(ctx context.Context, db *sqlx.DB, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapStoreError(err, "begin tx "+op)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		if isTransient(err) {
			return wrapStoreError(err, op)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapStoreError(err, "commit tx "+op)
	}
	return nil
}

func marshalJSON(value any) ([]byte, error) {
	if value == nil {
		return []byte("null"), nil
	}
	return sonic.Marshal(value)
}

func unmarshalJSONMap(raw []byte) map[string]any {
	out := map[string]any{}
	if len(raw) == 0 {
		return out
	}
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	t := value.UTC()
	return &t
}

func stringSliceToAny(items []string) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out
}
