package postgres

import (
	"time"

	"github.com/lib/pq"
)

type leagueTableModel struct {
	ID              string         `db:"id"`
	Name            string         `db:"name"`
	CommissionerID  string         `db:"commissioner_id"`
	DraftStatus     string         `db:"draft_status"`
	DraftOrder      pq.StringArray `db:"draft_order"`
	Status          string         `db:"status"`
	DraftDeadlineAt *time.Time     `db:"draft_deadline_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

type leagueMemberTableModel struct {
	LeagueID      string    `db:"league_id"`
	UserID        string    `db:"user_id"`
	DraftPosition int       `db:"draft_position"`
	TotalPoints   int       `db:"total_points"`
	JoinedAt      time.Time `db:"joined_at"`
}

type castawayTableModel struct {
	ID                  string  `db:"id"`
	Name                string  `db:"name"`
	Tribe               string  `db:"tribe"`
	Status              string  `db:"status"`
	EliminatedEpisodeID *string `db:"eliminated_episode_id"`
}

type rosterEntryTableModel struct {
	ID          string     `db:"id"`
	LeagueID    string     `db:"league_id"`
	UserID      string     `db:"user_id"`
	CastawayID  string     `db:"castaway_id"`
	DraftRound  int        `db:"draft_round"`
	DraftPick   int        `db:"draft_pick"`
	AcquiredVia string     `db:"acquired_via"`
	AcquiredAt  time.Time  `db:"acquired_at"`
	ReleasedAt  *time.Time `db:"released_at"`
}

type draftPickRequestInsertModel struct {
	LeagueID  string    `db:"league_id"`
	UserID    string    `db:"user_id"`
	Token     string    `db:"token"`
	Receipt   string    `db:"receipt"`
	CreatedAt time.Time `db:"created_at"`
}

type episodeTableModel struct {
	ID          string     `db:"id"`
	Number      int        `db:"number"`
	Title       string     `db:"title"`
	AirAt       time.Time  `db:"air_at"`
	IsScored    bool       `db:"is_scored"`
	PicksLocked bool       `db:"picks_locked"`
	ScoredAt    *time.Time `db:"scored_at"`
}

type scoringRuleTableModel struct {
	ID       string `db:"id"`
	Name     string `db:"name"`
	Category string `db:"category"`
	Points   int    `db:"points"`
}

type scoringSessionTableModel struct {
	EpisodeID string    `db:"episode_id"`
	StartedBy string    `db:"started_by"`
	StartedAt time.Time `db:"started_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type stagedScoreTableModel struct {
	EpisodeID  string    `db:"episode_id"`
	CastawayID string    `db:"castaway_id"`
	RuleID     string    `db:"rule_id"`
	Quantity   int       `db:"quantity"`
	UpdatedBy  string    `db:"updated_by"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type castawayPointsTableModel struct {
	EpisodeID  string `db:"episode_id"`
	CastawayID string `db:"castaway_id"`
	Points     int    `db:"points"`
}

type weeklyPickTableModel struct {
	ID           string `db:"id"`
	LeagueID     string `db:"league_id"`
	UserID       string `db:"user_id"`
	EpisodeID    string `db:"episode_id"`
	CastawayID   string `db:"castaway_id"`
	PointsEarned *int   `db:"points_earned"`
}

type auditTableModel struct {
	ID         string    `db:"id"`
	ActorID    string    `db:"actor_id"`
	Action     string    `db:"action"`
	TargetType string    `db:"target_type"`
	TargetID   string    `db:"target_id"`
	Before     *string   `db:"before"`
	After      *string   `db:"after"`
	CreatedAt  time.Time `db:"created_at"`
}

type outboxTableModel struct {
	ID            string     `db:"id"`
	Kind          string     `db:"kind"`
	RecipientID   string     `db:"recipient_id"`
	Subject       string     `db:"subject"`
	Payload       string     `db:"payload"`
	Status        string     `db:"status"`
	Attempts      int        `db:"attempts"`
	NextAttemptAt time.Time  `db:"next_attempt_at"`
	LastError     *string    `db:"last_error"`
	CreatedAt     time.Time  `db:"created_at"`
	SentAt        *time.Time `db:"sent_at"`
}

type jobExecutionTableModel struct {
	ID         string    `db:"id"`
	JobName    string    `db:"job_name"`
	Trigger    string    `db:"trigger"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
	Outcome    string    `db:"outcome"`
	Summary    string    `db:"summary"`
	Errors     string    `db:"errors"`
	TraceID    *string   `db:"trace_id"`
}
