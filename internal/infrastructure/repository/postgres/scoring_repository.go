package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/castaway-league/internal/domain/audit"
	"github.com/riskibarqy/castaway-league/internal/domain/castaway"
	"github.com/riskibarqy/castaway-league/internal/domain/episode"
	"github.com/riskibarqy/castaway-league/internal/domain/notification"
	"github.com/riskibarqy/castaway-league/internal/domain/scoring"
	qb "github.com/riskibarqy/castaway-league/internal/platform/querybuilder"
)

type ScoringRepository struct {
	db *sqlx.DB
}

func NewScoringRepository(db *sqlx.DB) *ScoringRepository {
	return &ScoringRepository{db: db}
}

// WithinEpisode holds the episode row lock for the whole unit of work, which
// serializes staging writes against finalize.
func (r *ScoringRepository) WithinEpisode(ctx context.Context, episodeID string, fn func(tx scoring.Tx) error) error {
	return withinTx(ctx, r.db, "scoring unit of work", func(tx *sqlx.Tx) error {
		ep, found, err := getEpisode(ctx, tx, episodeID, true)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", scoring.ErrEpisodeNotFound, episodeID)
		}
		return fn(&scoringTx{tx: tx, episode: ep})
	})
}

func (r *ScoringRepository) GetSession(ctx context.Context, episodeID string) (*scoring.Session, error) {
	return getSession(ctx, r.db, episodeID)
}

func (r *ScoringRepository) ListStagedScores(ctx context.Context, episodeID string) ([]scoring.StagedScore, error) {
	return listStagedScores(ctx, r.db, episodeID)
}

func (r *ScoringRepository) ListRules(ctx context.Context) ([]scoring.Rule, error) {
	query, args, err := qb.Select("*").From("scoring_rules").
		OrderBy("category", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select scoring rules query: %w", err)
	}

	var rows []scoringRuleTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrapStoreError(err, "select scoring rules")
	}
	out := make([]scoring.Rule, 0, len(rows))
	for _, row := range rows {
		out = append(out, scoring.Rule{
			ID:       row.ID,
			Name:     row.Name,
			Category: scoring.Category(row.Category),
			Points:   row.Points,
		})
	}
	return out, nil
}

func (r *ScoringRepository) ListWeeklyPicks(ctx context.Context, episodeID string) ([]scoring.WeeklyPick, error) {
	return listWeeklyPicks(ctx, r.db, episodeID)
}

func (r *ScoringRepository) ListCastawayPoints(ctx context.Context, episodeID string) ([]scoring.CastawayPoints, error) {
	query, args, err := qb.Select("*").From("castaway_episode_points").
		Where(qb.Eq("episode_id", episodeID)).
		OrderBy("castaway_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select castaway points query: %w", err)
	}

	var rows []castawayPointsTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrapStoreError(err, "select castaway points")
	}
	out := make([]scoring.CastawayPoints, 0, len(rows))
	for _, row := range rows {
		out = append(out, scoring.CastawayPoints{EpisodeID: row.EpisodeID, CastawayID: row.CastawayID, Points: row.Points})
	}
	return out, nil
}

type scoringTx struct {
	tx      *sqlx.Tx
	episode episode.Episode
}

func (t *scoringTx) Episode(_ context.Context) (episode.Episode, error) {
	return t.episode, nil
}

func (t *scoringTx) Session(ctx context.Context) (*scoring.Session, error) {
	return getSession(ctx, t.tx, t.episode.ID)
}

func (t *scoringTx) CreateSession(ctx context.Context, session scoring.Session) error {
	query, args, err := qb.InsertModel("scoring_sessions", scoringSessionTableModel{
		EpisodeID: t.episode.ID,
		StartedBy: session.StartedBy,
		StartedAt: session.StartedAt.UTC(),
		UpdatedAt: session.UpdatedAt.UTC(),
	}, "ON CONFLICT (episode_id) DO NOTHING")
	if err != nil {
		return fmt.Errorf("build insert scoring session query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert scoring session: %w", err)
	}
	return nil
}

func (t *scoringTx) TouchSession(ctx context.Context, at time.Time) error {
	query, args, err := qb.Update("scoring_sessions").
		Set("updated_at", at.UTC()).
		Where(qb.Eq("episode_id", t.episode.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build touch scoring session query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("touch scoring session: %w", err)
	}
	return nil
}

func (t *scoringTx) StagedScores(ctx context.Context) ([]scoring.StagedScore, error) {
	return listStagedScores(ctx, t.tx, t.episode.ID)
}

func (t *scoringTx) UpsertStagedScore(ctx context.Context, score scoring.StagedScore) error {
	query, args, err := qb.InsertModel("staged_scores", stagedScoreTableModel{
		EpisodeID:  t.episode.ID,
		CastawayID: score.CastawayID,
		RuleID:     score.RuleID,
		Quantity:   score.Quantity,
		UpdatedBy:  score.UpdatedBy,
		UpdatedAt:  score.UpdatedAt.UTC(),
	}, `ON CONFLICT (episode_id, castaway_id, rule_id) DO UPDATE
SET quantity = EXCLUDED.quantity,
    updated_by = EXCLUDED.updated_by,
    updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return fmt.Errorf("build upsert staged score query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert staged score: %w", err)
	}
	return nil
}

func (t *scoringTx) DeleteStagedScore(ctx context.Context, castawayID, ruleID string) error {
	query, args, err := qb.DeleteFrom("staged_scores").
		Where(
			qb.Eq("episode_id", t.episode.ID),
			qb.Eq("castaway_id", castawayID),
			qb.Eq("rule_id", ruleID),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete staged score query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete staged score: %w", err)
	}
	return nil
}

func (t *scoringTx) ClearStagedScores(ctx context.Context) error {
	query, args, err := qb.DeleteFrom("staged_scores").
		Where(qb.Eq("episode_id", t.episode.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build clear staged scores query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear staged scores: %w", err)
	}
	return nil
}

func (t *scoringTx) Castaways(ctx context.Context, castawayIDs []string) ([]castaway.Castaway, error) {
	if len(castawayIDs) == 0 {
		return nil, nil
	}
	query, args, err := qb.Select("*").From("castaways").
		Where(qb.In("id", stringSliceToAny(castawayIDs))).
		OrderBy("id").
		ForUpdate().
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select castaways by ids query: %w", err)
	}

	var rows []castawayTableModel
	if err := t.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select castaways by ids: %w", err)
	}
	return castawaysFromRows(rows), nil
}

func (t *scoringTx) UpdateCastawayStatus(ctx context.Context, castawayID string, status castaway.Status, episodeID string) error {
	query, args, err := qb.Update("castaways").
		Set("status", string(status)).
		Set("eliminated_episode_id", optionalString(episodeID)).
		Where(qb.Eq("id", castawayID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update castaway status query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update castaway status: %w", err)
	}
	return nil
}

func (t *scoringTx) SaveCastawayPoints(ctx context.Context, points []scoring.CastawayPoints) error {
	for _, item := range points {
		query, args, err := qb.InsertModel("castaway_episode_points", castawayPointsTableModel{
			EpisodeID:  t.episode.ID,
			CastawayID: item.CastawayID,
			Points:     item.Points,
		}, "ON CONFLICT (episode_id, castaway_id) DO UPDATE SET points = EXCLUDED.points")
		if err != nil {
			return fmt.Errorf("build upsert castaway points query: %w", err)
		}
		if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert castaway points: %w", err)
		}
	}
	return nil
}

func (t *scoringTx) WeeklyPicks(ctx context.Context) ([]scoring.WeeklyPick, error) {
	return listWeeklyPicks(ctx, t.tx, t.episode.ID)
}

func (t *scoringTx) UpdateWeeklyPickPoints(ctx context.Context, pickID string, points int) error {
	query, args, err := qb.Update("weekly_picks").
		Set("points_earned", points).
		Where(qb.Eq("id", pickID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update weekly pick points query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update weekly pick points: %w", err)
	}
	return nil
}

func (t *scoringTx) MarkScored(ctx context.Context, at time.Time) error {
	query, args, err := qb.Update("episodes").
		SetExpr("is_scored", "TRUE").
		Set("scored_at", at.UTC()).
		Where(qb.Eq("id", t.episode.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build mark episode scored query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark episode scored: %w", err)
	}
	scoredAt := at.UTC()
	t.episode.IsScored = true
	t.episode.ScoredAt = &scoredAt
	return nil
}

func (t *scoringTx) SumFinalizedPoints(ctx context.Context, member scoring.MemberRef) (int, error) {
	query, args, err := qb.Select("COALESCE(SUM(wp.points_earned), 0)").
		From("weekly_picks wp JOIN episodes e ON e.id = wp.episode_id").
		Where(
			qb.Eq("wp.league_id", member.LeagueID),
			qb.Eq("wp.user_id", member.UserID),
			qb.Expr("e.is_scored = TRUE"),
		).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build sum finalized points query: %w", err)
	}

	var total int
	if err := t.tx.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("sum finalized points: %w", err)
	}
	return total, nil
}

func (t *scoringTx) UpdateMemberTotal(ctx context.Context, member scoring.MemberRef, total int) error {
	query, args, err := qb.Update("league_members").
		Set("total_points", total).
		Where(qb.Eq("league_id", member.LeagueID), qb.Eq("user_id", member.UserID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update member total query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update member total: %w", err)
	}
	return nil
}

func (t *scoringTx) AppendAudit(ctx context.Context, entry audit.Entry) error {
	return appendAudit(ctx, t.tx, entry)
}

func (t *scoringTx) EnqueueNotification(ctx context.Context, message notification.Message) error {
	return enqueueOutbox(ctx, t.tx, message)
}

func getSession(ctx context.Context, q sqlx.QueryerContext, episodeID string) (*scoring.Session, error) {
	query, args, err := qb.Select("*").From("scoring_sessions").
		Where(qb.Eq("episode_id", episodeID)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get scoring session query: %w", err)
	}

	var row scoringSessionTableModel
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, wrapStoreError(err, "get scoring session")
	}
	return &scoring.Session{
		EpisodeID: row.EpisodeID,
		StartedBy: row.StartedBy,
		StartedAt: row.StartedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}, nil
}

func listStagedScores(ctx context.Context, q sqlx.QueryerContext, episodeID string) ([]scoring.StagedScore, error) {
	query, args, err := qb.Select("*").From("staged_scores").
		Where(qb.Eq("episode_id", episodeID)).
		OrderBy("castaway_id", "rule_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select staged scores query: %w", err)
	}

	var rows []stagedScoreTableModel
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, wrapStoreError(err, "select staged scores")
	}
	out := make([]scoring.StagedScore, 0, len(rows))
	for _, row := range rows {
		out = append(out, scoring.StagedScore{
			EpisodeID:  row.EpisodeID,
			CastawayID: row.CastawayID,
			RuleID:     row.RuleID,
			Quantity:   row.Quantity,
			UpdatedBy:  row.UpdatedBy,
			UpdatedAt:  row.UpdatedAt.UTC(),
		})
	}
	return out, nil
}

func listWeeklyPicks(ctx context.Context, q sqlx.QueryerContext, episodeID string) ([]scoring.WeeklyPick, error) {
	query, args, err := qb.Select("*").From("weekly_picks").
		Where(qb.Eq("episode_id", episodeID)).
		OrderBy("league_id", "user_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select weekly picks query: %w", err)
	}

	var rows []weeklyPickTableModel
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, wrapStoreError(err, "select weekly picks")
	}
	out := make([]scoring.WeeklyPick, 0, len(rows))
	for _, row := range rows {
		out = append(out, scoring.WeeklyPick{
			ID:           row.ID,
			LeagueID:     row.LeagueID,
			UserID:       row.UserID,
			EpisodeID:    row.EpisodeID,
			CastawayID:   row.CastawayID,
			PointsEarned: row.PointsEarned,
		})
	}
	return out, nil
}
