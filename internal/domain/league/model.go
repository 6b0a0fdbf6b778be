package league

import (
	"fmt"
	"time"
)

// DraftStatus is the closed set of draft lifecycle states.
type DraftStatus string

const (
	DraftPending    DraftStatus = "pending"
	DraftInProgress DraftStatus = "in_progress"
	DraftCompleted  DraftStatus = "completed"
)

func ParseDraftStatus(v string) (DraftStatus, error) {
	switch DraftStatus(v) {
	case DraftPending, DraftInProgress, DraftCompleted:
		return DraftStatus(v), nil
	default:
		return "", fmt.Errorf("unknown draft status %q", v)
	}
}

// CanTransitionTo reports whether the draft may move from s to next.
// The draft only ever moves forward: pending -> in_progress -> completed.
func (s DraftStatus) CanTransitionTo(next DraftStatus) bool {
	switch s {
	case DraftPending:
		return next == DraftInProgress
	case DraftInProgress:
		return next == DraftCompleted
	case DraftCompleted:
		return false
	default:
		return false
	}
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

func ParseStatus(v string) (Status, error) {
	switch Status(v) {
	case StatusDraft, StatusActive, StatusCompleted:
		return Status(v), nil
	default:
		return "", fmt.Errorf("unknown league status %q", v)
	}
}

type League struct {
	ID              string
	Name            string
	CommissionerID  string
	DraftStatus     DraftStatus
	DraftOrder      []string
	Status          Status
	DraftDeadlineAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DeadlinePassed reports whether the season draft deadline is at or before now.
func (l League) DeadlinePassed(now time.Time) bool {
	return l.DraftDeadlineAt != nil && !now.Before(*l.DraftDeadlineAt)
}

// AdvanceDraft moves the league to next, rejecting any backward or skipped edge.
func (l *League) AdvanceDraft(next DraftStatus) error {
	if !l.DraftStatus.CanTransitionTo(next) {
		return fmt.Errorf("draft status cannot move from %s to %s", l.DraftStatus, next)
	}
	l.DraftStatus = next
	switch next {
	case DraftInProgress:
		l.Status = StatusDraft
	case DraftCompleted:
		l.Status = StatusActive
	}
	return nil
}

type Member struct {
	LeagueID      string
	UserID        string
	DraftPosition int
	TotalPoints   int
	JoinedAt      time.Time
}

// Validate rejects rows that fall outside the closed status enums.
func (l League) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("league id is required")
	}
	if l.Name == "" {
		return fmt.Errorf("league name is required")
	}
	if _, err := ParseDraftStatus(string(l.DraftStatus)); err != nil {
		return err
	}
	if _, err := ParseStatus(string(l.Status)); err != nil {
		return err
	}

	return nil
}
