package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/castaway-league/internal/domain/notification"
	"github.com/riskibarqy/castaway-league/internal/infrastructure/repository/memory"
)

type scriptedSender struct {
	mu    sync.Mutex
	sent  []string
	fails map[string]error
}

func (s *scriptedSender) Send(_ context.Context, message notification.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fails[message.ID]; ok {
		return err
	}
	s.sent = append(s.sent, message.ID)
	return nil
}

func seedOutbox(t *testing.T, ids ...string) *memory.NotificationRepository {
	t.Helper()
	store := memory.NewStore()
	for i, id := range ids {
		store.SeedNotifications(newOutboxMessage(id, notification.KindDraftYourTurn, "user-a", "You are on the clock", map[string]any{"n": i}, testNow.Add(time.Duration(i)*time.Second)))
	}
	return memory.NewNotificationRepository(store)
}

func messagesByID(repo *memory.NotificationRepository) map[string]notification.Message {
	out := map[string]notification.Message{}
	for _, msg := range repo.List() {
		out[msg.ID] = msg
	}
	return out
}

func TestNotificationDispatcher_DispatchDue(t *testing.T) {
	t.Parallel()

	repo := seedOutbox(t, "msg-1", "msg-2", "msg-3")
	sender := &scriptedSender{fails: map[string]error{
		"msg-2": errors.New("smtp timeout"),
		"msg-3": fmt.Errorf("%w: mailbox does not exist", ErrNotificationRejected),
	}}

	dispatcher := NewNotificationDispatcher(repo, sender, OutboxConfig{RetryBaseDelay: time.Minute, Workers: 2}, nil)
	now := testNow.Add(time.Minute)
	dispatcher.now = func() time.Time { return now }

	summary, err := dispatcher.DispatchDue(t.Context())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if summary.Claimed != 3 || summary.Sent != 1 || summary.Retried != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	got := messagesByID(repo)
	if got["msg-1"].Status != notification.StatusSent || got["msg-1"].SentAt == nil {
		t.Fatalf("msg-1 should be sent: %+v", got["msg-1"])
	}
	retry := got["msg-2"]
	if retry.Status != notification.StatusPending || retry.Attempts != 1 || !retry.NextAttemptAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("msg-2 should be rescheduled one minute out: %+v", retry)
	}
	if got["msg-3"].Status != notification.StatusFailed {
		t.Fatalf("rejected message should fail permanently: %+v", got["msg-3"])
	}

	// Nothing is due until the retry delay passes.
	summary, err = dispatcher.DispatchDue(t.Context())
	if err != nil || summary.Claimed != 0 {
		t.Fatalf("expected nothing due, got %+v err=%v", summary, err)
	}

	sender.mu.Lock()
	delete(sender.fails, "msg-2")
	sender.mu.Unlock()
	now = now.Add(2 * time.Minute)
	summary, err = dispatcher.DispatchDue(t.Context())
	if err != nil || summary.Sent != 1 {
		t.Fatalf("expected retry to succeed, got %+v err=%v", summary, err)
	}
}

func TestNotificationDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	repo := seedOutbox(t, "msg-1")
	sender := &scriptedSender{fails: map[string]error{"msg-1": errors.New("connection refused")}}

	dispatcher := NewNotificationDispatcher(repo, sender, OutboxConfig{MaxAttempts: 3, RetryBaseDelay: time.Second}, nil)
	now := testNow
	dispatcher.now = func() time.Time { return now }

	for attempt := 1; attempt <= 3; attempt++ {
		now = now.Add(time.Hour)
		if _, err := dispatcher.DispatchDue(t.Context()); err != nil {
			t.Fatalf("dispatch attempt %d: %v", attempt, err)
		}
	}

	msg := messagesByID(repo)["msg-1"]
	if msg.Status != notification.StatusFailed || msg.Attempts != 3 || msg.LastError == "" {
		t.Fatalf("expected message to fail after 3 attempts, got %+v", msg)
	}
}

func TestNotificationDispatcher_Backoff(t *testing.T) {
	t.Parallel()

	dispatcher := NewNotificationDispatcher(nil, nil, OutboxConfig{RetryBaseDelay: 30 * time.Second, MaxRetryDelay: 5 * time.Minute}, nil)
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{attempts: 1, want: 30 * time.Second},
		{attempts: 2, want: time.Minute},
		{attempts: 4, want: 4 * time.Minute},
		{attempts: 5, want: 5 * time.Minute},
		{attempts: 12, want: 5 * time.Minute},
	}
	for _, tc := range tests {
		if got := dispatcher.backoff(tc.attempts); got != tc.want {
			t.Fatalf("backoff(%d): got=%s want=%s", tc.attempts, got, tc.want)
		}
	}
}
