package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/castaway-league/internal/domain/notification"
	"github.com/riskibarqy/castaway-league/internal/platform/logging"
)

// ErrNotificationRejected marks a send failure that retrying cannot fix.
var ErrNotificationRejected = errors.New("notification rejected")

type NotificationSender interface {
	Send(ctx context.Context, message notification.Message) error
}

type OutboxConfig struct {
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
	MaxRetryDelay  time.Duration
	Lease          time.Duration
	Workers        int
}

type DispatchSummary struct {
	Claimed int
	Sent    int
	Retried int
	Failed  int
}

// NotificationDispatcher drains the outbox. Messages were written in the
// same transaction as the change they announce, so a crash between commit
// and send only delays delivery.
type NotificationDispatcher struct {
	repo   notification.Repository
	sender NotificationSender
	cfg    OutboxConfig
	logger *logging.Logger
	now    func() time.Time
}

func NewNotificationDispatcher(
	repo notification.Repository,
	sender NotificationSender,
	cfg OutboxConfig,
	logger *logging.Logger,
) *NotificationDispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 30 * time.Second
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = time.Hour
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 2 * time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &NotificationDispatcher{repo: repo, sender: sender, cfg: cfg, logger: logger, now: time.Now}
}

func (d *NotificationDispatcher) DispatchDue(ctx context.Context) (DispatchSummary, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.NotificationDispatcher.DispatchDue")
	defer span.End()

	messages, err := d.repo.ClaimDue(ctx, d.now().UTC(), d.cfg.BatchSize, d.cfg.Lease)
	if err != nil {
		return DispatchSummary{}, fmt.Errorf("claim outbox messages: %w", err)
	}
	summary := DispatchSummary{Claimed: len(messages)}
	if len(messages) == 0 {
		return summary, nil
	}

	pool, err := ants.NewPool(min(d.cfg.Workers, len(messages)))
	if err != nil {
		return summary, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var sent, retried, failed atomic.Int32
	var workers sync.WaitGroup
	for _, msg := range messages {
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			switch d.deliver(ctx, msg) {
			case notification.StatusSent:
				sent.Add(1)
			case notification.StatusFailed:
				failed.Add(1)
			default:
				retried.Add(1)
			}
		}); err != nil {
			workers.Done()
			retried.Add(1)
			d.logger.WarnContext(ctx, "submit outbox message to worker pool failed", "message_id", msg.ID, "error", err)
		}
	}
	workers.Wait()

	summary.Sent = int(sent.Load())
	summary.Retried = int(retried.Load())
	summary.Failed = int(failed.Load())
	return summary, nil
}

func (d *NotificationDispatcher) deliver(ctx context.Context, msg notification.Message) notification.Status {
	sendErr := d.sender.Send(ctx, msg)
	now := d.now().UTC()
	if sendErr == nil {
		if err := d.repo.MarkSent(ctx, msg.ID, now); err != nil {
			d.logger.WarnContext(ctx, "mark outbox message sent failed", "message_id", msg.ID, "error", err)
		}
		return notification.StatusSent
	}

	attempts := msg.Attempts + 1
	if errors.Is(sendErr, ErrNotificationRejected) || attempts >= d.cfg.MaxAttempts {
		d.logger.WarnContext(ctx, "notification dropped",
			"message_id", msg.ID,
			"kind", msg.Kind,
			"attempts", attempts,
			"error", sendErr,
		)
		if err := d.repo.MarkFailed(ctx, msg.ID, attempts, sendErr.Error()); err != nil {
			d.logger.WarnContext(ctx, "mark outbox message failed failed", "message_id", msg.ID, "error", err)
		}
		return notification.StatusFailed
	}

	next := now.Add(d.backoff(attempts))
	d.logger.WarnContext(ctx, "notification send failed, will retry",
		"message_id", msg.ID,
		"kind", msg.Kind,
		"attempts", attempts,
		"next_attempt_at", next,
		"error", sendErr,
	)
	if err := d.repo.MarkRetry(ctx, msg.ID, attempts, next, sendErr.Error()); err != nil {
		d.logger.WarnContext(ctx, "mark outbox message retry failed", "message_id", msg.ID, "error", err)
	}
	return notification.StatusPending
}

func (d *NotificationDispatcher) backoff(attempts int) time.Duration {
	delay := d.cfg.RetryBaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= d.cfg.MaxRetryDelay {
			return d.cfg.MaxRetryDelay
		}
	}
	return delay
}
