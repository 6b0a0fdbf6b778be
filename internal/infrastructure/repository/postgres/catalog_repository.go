package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/castaway-league/internal/domain/castaway"
	"github.com/riskibarqy/castaway-league/internal/domain/episode"
	qb "github.com/riskibarqy/castaway-league/internal/platform/querybuilder"
)

type CastawayRepository struct {
	db *sqlx.DB
}

func NewCastawayRepository(db *sqlx.DB) *CastawayRepository {
	return &CastawayRepository{db: db}
}

func (r *CastawayRepository) List(ctx context.Context) ([]castaway.Castaway, error) {
	return r.list(ctx)
}

func (r *CastawayRepository) ListActive(ctx context.Context) ([]castaway.Castaway, error) {
	return r.list(ctx, qb.Eq("status", string(castaway.StatusActive)))
}

func (r *CastawayRepository) GetByID(ctx context.Context, castawayID string) (castaway.Castaway, bool, error) {
	return getCastaway(ctx, r.db, castawayID)
}

func (r *CastawayRepository) list(ctx context.Context, conditions ...qb.Condition) ([]castaway.Castaway, error) {
	query, args, err := qb.Select("*").From("castaways").
		Where(conditions...).
		OrderBy("name", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select castaways query: %w", err)
	}

	var rows []castawayTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrapStoreError(err, "select castaways")
	}
	return castawaysFromRows(rows), nil
}

func getCastaway(ctx context.Context, q sqlx.QueryerContext, castawayID string) (castaway.Castaway, bool, error) {
	query, args, err := qb.Select("*").From("castaways").
		Where(qb.Eq("id", castawayID)).
		ToSQL()
	if err != nil {
		return castaway.Castaway{}, false, fmt.Errorf("build get castaway query: %w", err)
	}

	var row castawayTableModel
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if isNotFound(err) {
			return castaway.Castaway{}, false, nil
		}
		return castaway.Castaway{}, false, wrapStoreError(err, "get castaway")
	}
	return castawayFromRow(row), true, nil
}

func castawayFromRow(row castawayTableModel) castaway.Castaway {
	return castaway.Castaway{
		ID:                  row.ID,
		Name:                row.Name,
		Tribe:               row.Tribe,
		Status:              castaway.Status(row.Status),
		EliminatedEpisodeID: stringValue(row.EliminatedEpisodeID),
	}
}

func castawaysFromRows(rows []castawayTableModel) []castaway.Castaway {
	out := make([]castaway.Castaway, 0, len(rows))
	for _, row := range rows {
		out = append(out, castawayFromRow(row))
	}
	return out
}

type EpisodeRepository struct {
	db *sqlx.DB
}

func NewEpisodeRepository(db *sqlx.DB) *EpisodeRepository {
	return &EpisodeRepository{db: db}
}

func (r *EpisodeRepository) GetByID(ctx context.Context, episodeID string) (episode.Episode, bool, error) {
	return getEpisode(ctx, r.db, episodeID, false)
}

func (r *EpisodeRepository) ListPicksDue(ctx context.Context, now time.Time) ([]episode.Episode, error) {
	query, args, err := qb.Select("*").From("episodes").
		Where(
			qb.Expr("picks_locked = FALSE"),
			qb.Expr("air_at <= ?", now.UTC()),
		).
		OrderBy("number").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select episodes with open picks query: %w", err)
	}

	var rows []episodeTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrapStoreError(err, "select episodes with open picks")
	}
	out := make([]episode.Episode, 0, len(rows))
	for _, row := range rows {
		out = append(out, episodeFromRow(row))
	}
	return out, nil
}

// LockPicks flips picks_locked once; it reports false when another caller
// already did.
func (r *EpisodeRepository) LockPicks(ctx context.Context, episodeID string) (bool, error) {
	query, args, err := qb.Update("episodes").
		SetExpr("picks_locked", "TRUE").
		Where(qb.Eq("id", episodeID), qb.Expr("picks_locked = FALSE")).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build lock picks query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, wrapStoreError(err, "lock picks")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("lock picks rows affected: %w", err)
	}
	return affected > 0, nil
}

func getEpisode(ctx context.Context, q sqlx.QueryerContext, episodeID string, forUpdate bool) (episode.Episode, bool, error) {
	builder := qb.Select("*").From("episodes").Where(qb.Eq("id", episodeID))
	if forUpdate {
		builder = builder.ForUpdate()
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return episode.Episode{}, false, fmt.Errorf("build get episode query: %w", err)
	}

	var row episodeTableModel
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if isNotFound(err) {
			return episode.Episode{}, false, nil
		}
		return episode.Episode{}, false, wrapStoreError(err, "get episode")
	}
	return episodeFromRow(row), true, nil
}

func episodeFromRow(row episodeTableModel) episode.Episode {
	return episode.Episode{
		ID:          row.ID,
		Number:      row.Number,
		Title:       row.Title,
		AirAt:       row.AirAt.UTC(),
		IsScored:    row.IsScored,
		PicksLocked: row.PicksLocked,
		ScoredAt:    utcPtr(row.ScoredAt),
	}
}
