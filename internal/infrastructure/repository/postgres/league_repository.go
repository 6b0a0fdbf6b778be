package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/castaway-league/internal/domain/league"
	qb "github.com/riskibarqy/castaway-league/internal/platform/querybuilder"
)

type LeagueRepository struct {
	db *sqlx.DB
}

func NewLeagueRepository(db *sqlx.DB) *LeagueRepository {
	return &LeagueRepository{db: db}
}

func (r *LeagueRepository) GetByID(ctx context.Context, leagueID string) (league.League, bool, error) {
	query, args, err := qb.Select("*").From("leagues").
		Where(qb.Eq("id", leagueID)).
		ToSQL()
	if err != nil {
		return league.League{}, false, fmt.Errorf("build get league by id query: %w", err)
	}

	var row leagueTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return league.League{}, false, nil
		}
		return league.League{}, false, wrapStoreError(err, "get league by id")
	}
	item, err := leagueFromRow(row)
	if err != nil {
		return league.League{}, false, err
	}
	return item, true, nil
}

func (r *LeagueRepository) ListDraftsDue(ctx context.Context, now time.Time) ([]league.League, error) {
	query, args, err := qb.Select("*").From("leagues").
		Where(
			qb.Eq("draft_status", string(league.DraftInProgress)),
			qb.Expr("draft_deadline_at IS NOT NULL"),
			qb.Expr("draft_deadline_at <= ?", now.UTC()),
		).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select due drafts query: %w", err)
	}

	var rows []leagueTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrapStoreError(err, "select due drafts")
	}
	out := make([]league.League, 0, len(rows))
	for _, row := range rows {
		item, err := leagueFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func listMembers(ctx context.Context, q sqlx.QueryerContext, leagueID string) ([]league.Member, error) {
	query, args, err := qb.Select("*").From("league_members").
		Where(qb.Eq("league_id", leagueID)).
		OrderBy("draft_position", "user_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select league members query: %w", err)
	}

	var rows []leagueMemberTableModel
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, wrapStoreError(err, "select league members")
	}
	out := make([]league.Member, 0, len(rows))
	for _, row := range rows {
		out = append(out, league.Member{
			LeagueID:      row.LeagueID,
			UserID:        row.UserID,
			DraftPosition: row.DraftPosition,
			TotalPoints:   row.TotalPoints,
			JoinedAt:      row.JoinedAt,
		})
	}
	return out, nil
}

func leagueFromRow(row leagueTableModel) (league.League, error) {
	item := league.League{
		ID:              row.ID,
		Name:            row.Name,
		CommissionerID:  row.CommissionerID,
		DraftStatus:     league.DraftStatus(row.DraftStatus),
		DraftOrder:      append([]string(nil), row.DraftOrder...),
		Status:          league.Status(row.Status),
		DraftDeadlineAt: utcPtr(row.DraftDeadlineAt),
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if err := item.Validate(); err != nil {
		return league.League{}, fmt.Errorf("decode league %s: %w", row.ID, err)
	}
	return item, nil
}
