package scoring

import (
	"fmt"
	"sort"
	"time"
)

// SessionState is the closed set of per-episode scoring states.
type SessionState string

const (
	SessionNotStarted SessionState = "NOT_STARTED"
	SessionInProgress SessionState = "IN_PROGRESS"
	SessionFinalized  SessionState = "FINALIZED"
)

func (s SessionState) CanTransitionTo(next SessionState) bool {
	switch s {
	case SessionNotStarted:
		return next == SessionInProgress || next == SessionFinalized
	case SessionInProgress:
		return next == SessionFinalized
	case SessionFinalized:
		return false
	default:
		return false
	}
}

// StateOf derives the session state from the stored episode flags.
func StateOf(isScored bool, session *Session) SessionState {
	switch {
	case isScored:
		return SessionFinalized
	case session != nil:
		return SessionInProgress
	default:
		return SessionNotStarted
	}
}

type Session struct {
	EpisodeID string
	StartedBy string
	StartedAt time.Time
	UpdatedAt time.Time
}

type Category string

const (
	CategoryChallenge Category = "challenge"
	CategoryStrategy  Category = "strategy"
	CategorySocial    Category = "social"
	CategoryTribal    Category = "tribal"
	CategoryBonus     Category = "bonus"
)

type Rule struct {
	ID       string
	Name     string
	Category Category
	Points   int
}

type StagedScore struct {
	EpisodeID  string
	CastawayID string
	RuleID     string
	Quantity   int
	UpdatedBy  string
	UpdatedAt  time.Time
}

func (s StagedScore) Validate() error {
	if s.CastawayID == "" {
		return fmt.Errorf("castaway id is required")
	}
	if s.RuleID == "" {
		return fmt.Errorf("rule id is required")
	}
	if s.Quantity < 0 {
		return fmt.Errorf("quantity must be >= 0")
	}
	return nil
}

type CastawayPoints struct {
	EpisodeID  string
	CastawayID string
	Points     int
}

type WeeklyPick struct {
	ID           string
	LeagueID     string
	UserID       string
	EpisodeID    string
	CastawayID   string
	PointsEarned *int
}

// Aggregate sums quantity x rule points per castaway. Rows with unknown
// rules are reported through the returned slice of rule ids.
func Aggregate(episodeID string, staged []StagedScore, rules map[string]Rule) ([]CastawayPoints, []string) {
	totals := make(map[string]int)
	var unknown []string
	for _, item := range staged {
		rule, ok := rules[item.RuleID]
		if !ok {
			unknown = append(unknown, item.RuleID)
			continue
		}
		totals[item.CastawayID] += item.Quantity * rule.Points
	}

	out := make([]CastawayPoints, 0, len(totals))
	for castawayID, points := range totals {
		out = append(out, CastawayPoints{EpisodeID: episodeID, CastawayID: castawayID, Points: points})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CastawayID < out[j].CastawayID })
	return out, unknown
}
