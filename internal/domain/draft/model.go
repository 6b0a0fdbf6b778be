package draft

import "time"

type AcquiredVia string

const (
	AcquiredViaDraft     AcquiredVia = "draft"
	AcquiredViaAutoDraft AcquiredVia = "auto_draft"
	AcquiredViaWaiver    AcquiredVia = "waiver"
)

type RosterEntry struct {
	ID          string
	LeagueID    string
	UserID      string
	CastawayID  string
	DraftRound  int
	DraftPick   int
	AcquiredVia AcquiredVia
	AcquiredAt  time.Time
	ReleasedAt  *time.Time
}

func (e RosterEntry) Active() bool {
	return e.ReleasedAt == nil
}

// Receipt is the outcome of one committed pick. It is stored with the
// idempotency token so a retried request returns the same receipt.
type Receipt struct {
	Entry         RosterEntry
	DraftComplete bool
	NextPicker    *string
}

type IdempotencyKey struct {
	LeagueID string
	UserID   string
	Token    string
}
