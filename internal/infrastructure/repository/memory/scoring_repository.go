package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/riskibarqy/castaway-league/internal/domain/audit"
	"github.com/riskibarqy/castaway-league/internal/domain/castaway"
	"github.com/riskibarqy/castaway-league/internal/domain/episode"
	"github.com/riskibarqy/castaway-league/internal/domain/notification"
	"github.com/riskibarqy/castaway-league/internal/domain/scoring"
)

type ScoringRepository struct {
	store *Store
}

func NewScoringRepository(store *Store) *ScoringRepository {
	return &ScoringRepository{store: store}
}

func (r *ScoringRepository) WithinEpisode(ctx context.Context, episodeID string, fn func(tx scoring.Tx) error) error {
	return r.store.update(func(t *tables) error {
		if _, ok := t.episodes[episodeID]; !ok {
			return fmt.Errorf("%w: %s", scoring.ErrEpisodeNotFound, episodeID)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(&scoringTx{t: t, episodeID: episodeID})
	})
}

func (r *ScoringRepository) GetSession(_ context.Context, episodeID string) (*scoring.Session, error) {
	var out *scoring.Session
	r.store.view(func(t *tables) {
		if session, ok := t.sessions[episodeID]; ok {
			out = &session
		}
	})
	return out, nil
}

func (r *ScoringRepository) ListStagedScores(_ context.Context, episodeID string) ([]scoring.StagedScore, error) {
	var out []scoring.StagedScore
	r.store.view(func(t *tables) {
		out = sortedStaged(t.staged[episodeID])
	})
	return out, nil
}

func (r *ScoringRepository) ListRules(_ context.Context) ([]scoring.Rule, error) {
	out := make([]scoring.Rule, 0)
	r.store.view(func(t *tables) {
		for _, rule := range t.rules {
			out = append(out, rule)
		}
	})
	slices.SortFunc(out, func(a, b scoring.Rule) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *ScoringRepository) ListWeeklyPicks(_ context.Context, episodeID string) ([]scoring.WeeklyPick, error) {
	var out []scoring.WeeklyPick
	r.store.view(func(t *tables) {
		out = episodePicks(t, episodeID)
	})
	return out, nil
}

func (r *ScoringRepository) ListCastawayPoints(_ context.Context, episodeID string) ([]scoring.CastawayPoints, error) {
	var out []scoring.CastawayPoints
	r.store.view(func(t *tables) {
		out = slices.Clone(t.points[episodeID])
	})
	if out == nil {
		out = []scoring.CastawayPoints{}
	}
	return out, nil
}

// MemberTotal exposes the cached total for assertions and local tooling.
func (r *ScoringRepository) MemberTotal(leagueID, userID string) int {
	total := 0
	r.store.view(func(t *tables) {
		total = t.members[memberKey{leagueID: leagueID, userID: userID}].TotalPoints
	})
	return total
}

type scoringTx struct {
	t         *tables
	episodeID string
}

func (tx *scoringTx) Episode(_ context.Context) (episode.Episode, error) {
	return cloneEpisode(tx.t.episodes[tx.episodeID]), nil
}

func (tx *scoringTx) Session(_ context.Context) (*scoring.Session, error) {
	session, ok := tx.t.sessions[tx.episodeID]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (tx *scoringTx) CreateSession(_ context.Context, session scoring.Session) error {
	if _, ok := tx.t.sessions[tx.episodeID]; ok {
		return nil
	}
	session.EpisodeID = tx.episodeID
	tx.t.sessions[tx.episodeID] = session
	return nil
}

func (tx *scoringTx) TouchSession(_ context.Context, at time.Time) error {
	session, ok := tx.t.sessions[tx.episodeID]
	if !ok {
		return nil
	}
	session.UpdatedAt = at
	tx.t.sessions[tx.episodeID] = session
	return nil
}

func (tx *scoringTx) StagedScores(_ context.Context) ([]scoring.StagedScore, error) {
	return sortedStaged(tx.t.staged[tx.episodeID]), nil
}

func (tx *scoringTx) UpsertStagedScore(_ context.Context, score scoring.StagedScore) error {
	rows, ok := tx.t.staged[tx.episodeID]
	if !ok {
		rows = make(map[stagedKey]scoring.StagedScore)
		tx.t.staged[tx.episodeID] = rows
	}
	score.EpisodeID = tx.episodeID
	rows[stagedKey{castawayID: score.CastawayID, ruleID: score.RuleID}] = score
	return nil
}

func (tx *scoringTx) DeleteStagedScore(_ context.Context, castawayID, ruleID string) error {
	delete(tx.t.staged[tx.episodeID], stagedKey{castawayID: castawayID, ruleID: ruleID})
	return nil
}

func (tx *scoringTx) ClearStagedScores(_ context.Context) error {
	delete(tx.t.staged, tx.episodeID)
	return nil
}

func (tx *scoringTx) Castaways(_ context.Context, castawayIDs []string) ([]castaway.Castaway, error) {
	out := make([]castaway.Castaway, 0, len(castawayIDs))
	for _, castawayID := range castawayIDs {
		if item, ok := tx.t.castaways[castawayID]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (tx *scoringTx) UpdateCastawayStatus(_ context.Context, castawayID string, status castaway.Status, episodeID string) error {
	item, ok := tx.t.castaways[castawayID]
	if !ok {
		return fmt.Errorf("castaway %s not found", castawayID)
	}
	item.Status = status
	item.EliminatedEpisodeID = episodeID
	tx.t.castaways[castawayID] = item
	return nil
}

func (tx *scoringTx) SaveCastawayPoints(_ context.Context, points []scoring.CastawayPoints) error {
	tx.t.points[tx.episodeID] = slices.Clone(points)
	return nil
}

func (tx *scoringTx) WeeklyPicks(_ context.Context) ([]scoring.WeeklyPick, error) {
	return episodePicks(tx.t, tx.episodeID), nil
}

func (tx *scoringTx) UpdateWeeklyPickPoints(_ context.Context, pickID string, points int) error {
	pick, ok := tx.t.picks[pickID]
	if !ok {
		return fmt.Errorf("weekly pick %s not found", pickID)
	}
	pick.PointsEarned = &points
	tx.t.picks[pickID] = pick
	return nil
}

func (tx *scoringTx) MarkScored(_ context.Context, at time.Time) error {
	item := tx.t.episodes[tx.episodeID]
	item.IsScored = true
	item.ScoredAt = &at
	tx.t.episodes[tx.episodeID] = item
	return nil
}

func (tx *scoringTx) SumFinalizedPoints(_ context.Context, member scoring.MemberRef) (int, error) {
	total := 0
	for _, pick := range tx.t.picks {
		if pick.LeagueID != member.LeagueID || pick.UserID != member.UserID || pick.PointsEarned == nil {
			continue
		}
		if tx.t.episodes[pick.EpisodeID].IsScored {
			total += *pick.PointsEarned
		}
	}
	return total, nil
}

func (tx *scoringTx) UpdateMemberTotal(_ context.Context, member scoring.MemberRef, total int) error {
	key := memberKey{leagueID: member.LeagueID, userID: member.UserID}
	m, ok := tx.t.members[key]
	if !ok {
		return fmt.Errorf("member %s not in league %s", member.UserID, member.LeagueID)
	}
	m.TotalPoints = total
	tx.t.members[key] = m
	return nil
}

func (tx *scoringTx) AppendAudit(_ context.Context, entry audit.Entry) error {
	tx.t.audit = append(tx.t.audit, entry)
	return nil
}

func (tx *scoringTx) EnqueueNotification(_ context.Context, message notification.Message) error {
	return enqueue(tx.t, message)
}

func sortedStaged(rows map[stagedKey]scoring.StagedScore) []scoring.StagedScore {
	out := make([]scoring.StagedScore, 0, len(rows))
	for _, row := range rows {
		out = append(out, row)
	}
	slices.SortFunc(out, func(a, b scoring.StagedScore) int {
		if c := strings.Compare(a.CastawayID, b.CastawayID); c != 0 {
			return c
		}
		return strings.Compare(a.RuleID, b.RuleID)
	})
	return out
}

func episodePicks(t *tables, episodeID string) []scoring.WeeklyPick {
	out := make([]scoring.WeeklyPick, 0)
	for _, pick := range t.picks {
		if pick.EpisodeID == episodeID {
			out = append(out, clonePick(pick))
		}
	}
	slices.SortFunc(out, func(a, b scoring.WeeklyPick) int { return strings.Compare(a.ID, b.ID) })
	return out
}
