package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/riskibarqy/castaway-league/internal/domain/castaway"
	"github.com/riskibarqy/castaway-league/internal/domain/draft"
	"github.com/riskibarqy/castaway-league/internal/domain/league"
	"github.com/riskibarqy/castaway-league/internal/domain/notification"
	qb "github.com/riskibarqy/castaway-league/internal/platform/querybuilder"
)

const (
	activeCastawayConstraint = "roster_entries_active_castaway_key"
	draftPickConstraint      = "roster_entries_draft_pick_key"
)

// DraftRepository serializes draft writes per league by locking the league
// row for the whole unit of work.
type DraftRepository struct {
	db *sqlx.DB
}

func NewDraftRepository(db *sqlx.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

func (r *DraftRepository) WithinLeague(ctx context.Context, leagueID string, fn func(tx draft.Tx) error) error {
	return withinTx(ctx, r.db, "draft unit of work", func(tx *sqlx.Tx) error {
		query, args, err := qb.Select("*").From("leagues").
			Where(qb.Eq("id", leagueID)).
			ForUpdate().
			ToSQL()
		if err != nil {
			return fmt.Errorf("build lock league query: %w", err)
		}
		var row leagueTableModel
		if err := tx.GetContext(ctx, &row, query, args...); err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: %s", draft.ErrLeagueNotFound, leagueID)
			}
			return fmt.Errorf("lock league: %w", err)
		}
		locked, err := leagueFromRow(row)
		if err != nil {
			return err
		}
		return fn(&draftTx{tx: tx, league: locked})
	})
}

func (r *DraftRepository) ListRosterEntries(ctx context.Context, leagueID string) ([]draft.RosterEntry, error) {
	return listRosterEntries(ctx, r.db, leagueID)
}

type draftTx struct {
	tx     *sqlx.Tx
	league league.League
}

func (t *draftTx) League(_ context.Context) (league.League, error) {
	return t.league, nil
}

func (t *draftTx) Members(ctx context.Context) ([]league.Member, error) {
	return listMembers(ctx, t.tx, t.league.ID)
}

func (t *draftTx) RosterEntries(ctx context.Context) ([]draft.RosterEntry, error) {
	return listRosterEntries(ctx, t.tx, t.league.ID)
}

func (t *draftTx) AvailableCastaways(ctx context.Context) ([]castaway.Castaway, error) {
	query, args, err := qb.Select("*").From("castaways c").
		Where(
			qb.Eq("c.status", string(castaway.StatusActive)),
			qb.Expr(`NOT EXISTS (
    SELECT 1 FROM roster_entries re
    WHERE re.league_id = ? AND re.castaway_id = c.id AND re.released_at IS NULL
)`, t.league.ID),
		).
		OrderBy("c.id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select available castaways query: %w", err)
	}

	var rows []castawayTableModel
	if err := t.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select available castaways: %w", err)
	}
	return castawaysFromRows(rows), nil
}

func (t *draftTx) Castaway(ctx context.Context, castawayID string) (castaway.Castaway, bool, error) {
	return getCastaway(ctx, t.tx, castawayID)
}

func (t *draftTx) InsertRosterEntry(ctx context.Context, entry draft.RosterEntry) error {
	query, args, err := qb.InsertModel("roster_entries", rosterEntryTableModel{
		ID:          entry.ID,
		LeagueID:    entry.LeagueID,
		UserID:      entry.UserID,
		CastawayID:  entry.CastawayID,
		DraftRound:  entry.DraftRound,
		DraftPick:   entry.DraftPick,
		AcquiredVia: string(entry.AcquiredVia),
		AcquiredAt:  entry.AcquiredAt.UTC(),
		ReleasedAt:  utcPtr(entry.ReleasedAt),
	}, "")
	if err != nil {
		return fmt.Errorf("build insert roster entry query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err, activeCastawayConstraint) || isUniqueViolation(err, draftPickConstraint) {
			return fmt.Errorf("%w: castaway=%s: %v", draft.ErrCastawayTaken, entry.CastawayID, err)
		}
		return fmt.Errorf("insert roster entry: %w", err)
	}
	return nil
}

func (t *draftTx) UpdateDraftStatus(ctx context.Context, status league.DraftStatus, leagueStatus league.Status, at time.Time) error {
	query, args, err := qb.Update("leagues").
		Set("draft_status", string(status)).
		Set("status", string(leagueStatus)).
		Set("updated_at", at.UTC()).
		Where(qb.Eq("id", t.league.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update draft status query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update draft status: %w", err)
	}
	t.league.DraftStatus = status
	t.league.Status = leagueStatus
	return nil
}

func (t *draftTx) UpdateDraftOrder(ctx context.Context, order []string, at time.Time) error {
	query, args, err := qb.Update("leagues").
		Set("draft_order", pq.StringArray(order)).
		Set("updated_at", at.UTC()).
		Where(qb.Eq("id", t.league.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update draft order query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update draft order: %w", err)
	}

	for i, userID := range order {
		memberQuery, memberArgs, err := qb.Update("league_members").
			Set("draft_position", i+1).
			Where(qb.Eq("league_id", t.league.ID), qb.Eq("user_id", userID)).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build update draft position query: %w", err)
		}
		if _, err := t.tx.ExecContext(ctx, memberQuery, memberArgs...); err != nil {
			return fmt.Errorf("update draft position: %w", err)
		}
	}
	t.league.DraftOrder = append([]string(nil), order...)
	return nil
}

func (t *draftTx) Receipt(ctx context.Context, key draft.IdempotencyKey) (draft.Receipt, bool, error) {
	query, args, err := qb.Select("receipt").From("draft_pick_requests").
		Where(
			qb.Eq("league_id", key.LeagueID),
			qb.Eq("user_id", key.UserID),
			qb.Eq("token", key.Token),
		).
		ToSQL()
	if err != nil {
		return draft.Receipt{}, false, fmt.Errorf("build select pick receipt query: %w", err)
	}

	var raw string
	if err := t.tx.GetContext(ctx, &raw, query, args...); err != nil {
		if isNotFound(err) {
			return draft.Receipt{}, false, nil
		}
		return draft.Receipt{}, false, fmt.Errorf("select pick receipt: %w", err)
	}
	var receipt draft.Receipt
	if err := sonic.UnmarshalString(raw, &receipt); err != nil {
		return draft.Receipt{}, false, fmt.Errorf("decode pick receipt: %w", err)
	}
	return receipt, true, nil
}

func (t *draftTx) SaveReceipt(ctx context.Context, key draft.IdempotencyKey, receipt draft.Receipt) error {
	raw, err := sonic.MarshalString(receipt)
	if err != nil {
		return fmt.Errorf("encode pick receipt: %w", err)
	}
	query, args, err := qb.InsertModel("draft_pick_requests", draftPickRequestInsertModel{
		LeagueID:  key.LeagueID,
		UserID:    key.UserID,
		Token:     key.Token,
		Receipt:   raw,
		CreatedAt: receipt.Entry.AcquiredAt.UTC(),
	}, "ON CONFLICT (league_id, user_id, token) DO NOTHING")
	if err != nil {
		return fmt.Errorf("build insert pick receipt query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert pick receipt: %w", err)
	}
	return nil
}

func (t *draftTx) EnqueueNotification(ctx context.Context, message notification.Message) error {
	return enqueueOutbox(ctx, t.tx, message)
}

func listRosterEntries(ctx context.Context, q sqlx.QueryerContext, leagueID string) ([]draft.RosterEntry, error) {
	query, args, err := qb.Select("*").From("roster_entries").
		Where(qb.Eq("league_id", leagueID)).
		OrderBy("draft_pick", "acquired_at").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select roster entries query: %w", err)
	}

	var rows []rosterEntryTableModel
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, wrapStoreError(err, "select roster entries")
	}
	out := make([]draft.RosterEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, draft.RosterEntry{
			ID:          row.ID,
			LeagueID:    row.LeagueID,
			UserID:      row.UserID,
			CastawayID:  row.CastawayID,
			DraftRound:  row.DraftRound,
			DraftPick:   row.DraftPick,
			AcquiredVia: draft.AcquiredVia(row.AcquiredVia),
			AcquiredAt:  row.AcquiredAt.UTC(),
			ReleasedAt:  utcPtr(row.ReleasedAt),
		})
	}
	return out, nil
}
