package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/riskibarqy/castaway-league/internal/domain/notification"
)

type NotificationRepository struct {
	store *Store
}

func NewNotificationRepository(store *Store) *NotificationRepository {
	return &NotificationRepository{store: store}
}

func (r *NotificationRepository) ClaimDue(_ context.Context, now time.Time, limit int, lease time.Duration) ([]notification.Message, error) {
	var out []notification.Message
	err := r.store.update(func(t *tables) error {
		due := make([]notification.Message, 0)
		for _, msg := range t.outbox {
			if msg.Status == notification.StatusPending && !msg.NextAttemptAt.After(now) {
				due = append(due, msg)
			}
		}
		slices.SortFunc(due, func(a, b notification.Message) int { return a.CreatedAt.Compare(b.CreatedAt) })
		if limit > 0 && len(due) > limit {
			due = due[:limit]
		}
		for _, msg := range due {
			claimed := t.outbox[msg.ID]
			claimed.NextAttemptAt = now.Add(lease)
			t.outbox[msg.ID] = claimed
			out = append(out, cloneMessage(msg))
		}
		return nil
	})
	return out, err
}

func (r *NotificationRepository) MarkSent(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(msg *notification.Message) {
		msg.Status = notification.StatusSent
		msg.Attempts++
		msg.SentAt = &at
		msg.LastError = ""
	})
}

func (r *NotificationRepository) MarkRetry(_ context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error {
	return r.mutate(id, func(msg *notification.Message) {
		msg.Attempts = attempts
		msg.NextAttemptAt = nextAttemptAt
		msg.LastError = lastError
	})
}

func (r *NotificationRepository) MarkFailed(_ context.Context, id string, attempts int, lastError string) error {
	return r.mutate(id, func(msg *notification.Message) {
		msg.Status = notification.StatusFailed
		msg.Attempts = attempts
		msg.LastError = lastError
	})
}

// List returns every outbox message, oldest first.
func (r *NotificationRepository) List() []notification.Message {
	out := make([]notification.Message, 0)
	r.store.view(func(t *tables) {
		for _, msg := range t.outbox {
			out = append(out, cloneMessage(msg))
		}
	})
	slices.SortFunc(out, func(a, b notification.Message) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

func (r *NotificationRepository) mutate(id string, fn func(msg *notification.Message)) error {
	return r.store.update(func(t *tables) error {
		msg, ok := t.outbox[id]
		if !ok {
			return fmt.Errorf("outbox message %s not found", id)
		}
		fn(&msg)
		t.outbox[id] = msg
		return nil
	})
}

func enqueue(t *tables, message notification.Message) error {
	if message.ID == "" {
		return fmt.Errorf("outbox message id is required")
	}
	if _, exists := t.outbox[message.ID]; exists {
		return fmt.Errorf("outbox message %s already exists", message.ID)
	}
	t.outbox[message.ID] = cloneMessage(message)
	return nil
}
