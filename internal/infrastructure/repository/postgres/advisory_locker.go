package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/castaway-league/internal/platform/logging"
)

// AdvisoryLocker keeps a job single-flight across replicas. Session level
// advisory locks are bound to one connection, so each held lock pins a
// pooled connection until unlock.
type AdvisoryLocker struct {
	db     *sqlx.DB
	logger *logging.Logger
}

func NewAdvisoryLocker(db *sqlx.DB, logger *logging.Logger) *AdvisoryLocker {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdvisoryLocker{db: db, logger: logger}
}

func (l *AdvisoryLocker) TryLock(ctx context.Context, jobName string) (func(), bool, error) {
	conn, err := l.db.Connx(ctx)
	if err != nil {
		return nil, false, wrapStoreError(err, "acquire lock connection")
	}

	var acquired bool
	if err := conn.GetContext(ctx, &acquired, `SELECT pg_try_advisory_lock(hashtext($1))`, jobName); err != nil {
		_ = conn.Close()
		return nil, false, wrapStoreError(err, fmt.Sprintf("try advisory lock %s", jobName))
	}
	if !acquired {
		_ = conn.Close()
		return nil, false, nil
	}

	unlock := func() {
		defer conn.Close()
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock(hashtext($1))`, jobName); err != nil {
			l.logger.WarnContext(ctx, "release advisory lock failed", "job", jobName, "error", err)
		}
	}
	return unlock, true, nil
}
