package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/castaway-league/internal/domain/notification"
	qb "github.com/riskibarqy/castaway-league/internal/platform/querybuilder"
)

type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// ClaimDue skips rows another dispatcher has locked and leases the claimed
// rows before committing.
func (r *NotificationRepository) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]notification.Message, error) {
	var out []notification.Message
	err := withinTx(ctx, r.db, "claim outbox", func(tx *sqlx.Tx) error {
		builder := qb.Select("*").From("notification_outbox").
			Where(
				qb.Eq("status", string(notification.StatusPending)),
				qb.Expr("next_attempt_at <= ?", now.UTC()),
			).
			OrderBy("created_at", "id").
			ForUpdate("SKIP LOCKED")
		if limit > 0 {
			builder = builder.Limit(limit)
		}
		query, args, err := builder.ToSQL()
		if err != nil {
			return fmt.Errorf("build claim outbox query: %w", err)
		}

		var rows []outboxTableModel
		if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
			return fmt.Errorf("select due outbox: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]any, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
			out = append(out, messageFromRow(row))
		}
		leaseQuery, leaseArgs, err := qb.Update("notification_outbox").
			Set("next_attempt_at", now.Add(lease).UTC()).
			Where(qb.In("id", ids)).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build lease outbox query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, leaseQuery, leaseArgs...); err != nil {
			return fmt.Errorf("lease outbox: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *NotificationRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, "mark outbox sent", qb.Update("notification_outbox").
		Set("status", string(notification.StatusSent)).
		SetExpr("attempts", "attempts + 1").
		Set("sent_at", at.UTC()).
		Set("last_error", nil))
}

func (r *NotificationRepository) MarkRetry(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error {
	return r.update(ctx, id, "mark outbox retry", qb.Update("notification_outbox").
		Set("attempts", attempts).
		Set("next_attempt_at", nextAttemptAt.UTC()).
		Set("last_error", optionalString(lastError)))
}

func (r *NotificationRepository) MarkFailed(ctx context.Context, id string, attempts int, lastError string) error {
	return r.update(ctx, id, "mark outbox failed", qb.Update("notification_outbox").
		Set("status", string(notification.StatusFailed)).
		Set("attempts", attempts).
		Set("last_error", optionalString(lastError)))
}

func (r *NotificationRepository) update(ctx context.Context, id, op string, builder *qb.UpdateBuilder) error {
	query, args, err := builder.Where(qb.Eq("id", id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build %s query: %w", op, err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapStoreError(err, op)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("%s: outbox message %s not found", op, id)
	}
	return nil
}

func enqueueOutbox(ctx context.Context, exec sqlx.ExecerContext, message notification.Message) error {
	if message.ID == "" {
		return fmt.Errorf("outbox message id is required")
	}
	payload, err := marshalJSON(message.Payload)
	if err != nil {
		return fmt.Errorf("encode outbox payload: %w", err)
	}
	status := message.Status
	if status == "" {
		status = notification.StatusPending
	}
	query, args, err := qb.InsertModel("notification_outbox", outboxTableModel{
		ID:            message.ID,
		Kind:          string(message.Kind),
		RecipientID:   message.RecipientID,
		Subject:       message.Subject,
		Payload:       string(payload),
		Status:        string(status),
		Attempts:      message.Attempts,
		NextAttemptAt: message.NextAttemptAt.UTC(),
		LastError:     optionalString(message.LastError),
		CreatedAt:     message.CreatedAt.UTC(),
		SentAt:        utcPtr(message.SentAt),
	}, "")
	if err != nil {
		return fmt.Errorf("build insert outbox query: %w", err)
	}
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return wrapStoreError(err, "insert outbox")
	}
	return nil
}

func messageFromRow(row outboxTableModel) notification.Message {
	return notification.Message{
		ID:            row.ID,
		Kind:          notification.Kind(row.Kind),
		RecipientID:   row.RecipientID,
		Subject:       row.Subject,
		Payload:       unmarshalJSONMap([]byte(row.Payload)),
		Status:        notification.Status(row.Status),
		Attempts:      row.Attempts,
		NextAttemptAt: row.NextAttemptAt.UTC(),
		LastError:     stringValue(row.LastError),
		CreatedAt:     row.CreatedAt.UTC(),
		SentAt:        utcPtr(row.SentAt),
	}
}
