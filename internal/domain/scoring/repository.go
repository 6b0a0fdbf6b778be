package scoring

import (
	"context"
	"errors"
	"time"

	"github.com/riskibarqy/castaway-league/internal/domain/audit"
	"github.com/riskibarqy/castaway-league/internal/domain/castaway"
	"github.com/riskibarqy/castaway-league/internal/domain/episode"
	"github.com/riskibarqy/castaway-league/internal/domain/notification"
)

var ErrEpisodeNotFound = errors.New("episode not found")

// MemberRef identifies a league member whose cached total must be refreshed.
type MemberRef struct {
	LeagueID string
	UserID   string
}

// Tx is the unit of work for one episode. Implementations hold an exclusive
// lock on the episode row for the lifetime of the Tx.
type Tx interface {
	Episode(ctx context.Context) (episode.Episode, error)
	Session(ctx context.Context) (*Session, error)
	CreateSession(ctx context.Context, session Session) error
	TouchSession(ctx context.Context, at time.Time) error
	StagedScores(ctx context.Context) ([]StagedScore, error)
	UpsertStagedScore(ctx context.Context, score StagedScore) error
	DeleteStagedScore(ctx context.Context, castawayID, ruleID string) error
	ClearStagedScores(ctx context.Context) error
	Castaways(ctx context.Context, castawayIDs []string) ([]castaway.Castaway, error)
	UpdateCastawayStatus(ctx context.Context, castawayID string, status castaway.Status, episodeID string) error
	SaveCastawayPoints(ctx context.Context, points []CastawayPoints) error
	WeeklyPicks(ctx context.Context) ([]WeeklyPick, error)
	UpdateWeeklyPickPoints(ctx context.Context, pickID string, points int) error
	MarkScored(ctx context.Context, at time.Time) error
	// SumFinalizedPoints sums points_earned over the member's picks on scored episodes.
	SumFinalizedPoints(ctx context.Context, member MemberRef) (int, error)
	UpdateMemberTotal(ctx context.Context, member MemberRef, total int) error
	AppendAudit(ctx context.Context, entry audit.Entry) error
	EnqueueNotification(ctx context.Context, message notification.Message) error
}

type Repository interface {
	WithinEpisode(ctx context.Context, episodeID string, fn func(tx Tx) error) error
	GetSession(ctx context.Context, episodeID string) (*Session, error)
	ListStagedScores(ctx context.Context, episodeID string) ([]StagedScore, error)
	ListRules(ctx context.Context) ([]Rule, error)
	ListWeeklyPicks(ctx context.Context, episodeID string) ([]WeeklyPick, error)
	ListCastawayPoints(ctx context.Context, episodeID string) ([]CastawayPoints, error)
}
