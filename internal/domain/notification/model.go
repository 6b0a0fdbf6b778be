package notification

import (
	"context"
	"time"
)

type Kind string

const (
	KindDraftYourTurn Kind = "draft.your_turn"
	KindDraftComplete Kind = "draft.complete"
	KindEpisodeScored Kind = "episode.scored"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Message is an outbox row recorded in the same transaction as the state
// change it announces.
type Message struct {
	ID            string
	Kind          Kind
	RecipientID   string
	Subject       string
	Payload       map[string]any
	Status        Status
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	SentAt        *time.Time
}

type Repository interface {
	// ClaimDue returns up to limit pending messages whose next attempt is due
	// and pushes their next attempt out by lease so concurrent dispatchers skip them.
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]Message, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkRetry(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, id string, attempts int, lastError string) error
}
