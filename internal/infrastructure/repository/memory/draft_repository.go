package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/riskibarqy/castaway-league/internal/domain/castaway"
	"github.com/riskibarqy/castaway-league/internal/domain/draft"
	"github.com/riskibarqy/castaway-league/internal/domain/league"
	"github.com/riskibarqy/castaway-league/internal/domain/notification"
)

type DraftRepository struct {
	store *Store
}

func NewDraftRepository(store *Store) *DraftRepository {
	return &DraftRepository{store: store}
}

func (r *DraftRepository) WithinLeague(ctx context.Context, leagueID string, fn func(tx draft.Tx) error) error {
	return r.store.update(func(t *tables) error {
		if _, ok := t.leagues[leagueID]; !ok {
			return fmt.Errorf("%w: %s", draft.ErrLeagueNotFound, leagueID)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(&draftTx{t: t, leagueID: leagueID})
	})
}

func (r *DraftRepository) ListRosterEntries(_ context.Context, leagueID string) ([]draft.RosterEntry, error) {
	var out []draft.RosterEntry
	r.store.view(func(t *tables) {
		out = slices.Clone(t.roster[leagueID])
	})
	if out == nil {
		out = []draft.RosterEntry{}
	}
	return out, nil
}

type draftTx struct {
	t        *tables
	leagueID string
}

func (tx *draftTx) League(_ context.Context) (league.League, error) {
	return cloneLeague(tx.t.leagues[tx.leagueID]), nil
}

func (tx *draftTx) Members(_ context.Context) ([]league.Member, error) {
	return tx.t.leagueMembers(tx.leagueID), nil
}

func (tx *draftTx) RosterEntries(_ context.Context) ([]draft.RosterEntry, error) {
	return slices.Clone(tx.t.roster[tx.leagueID]), nil
}

func (tx *draftTx) AvailableCastaways(_ context.Context) ([]castaway.Castaway, error) {
	taken := make(map[string]struct{})
	for _, entry := range tx.t.roster[tx.leagueID] {
		if entry.Active() {
			taken[entry.CastawayID] = struct{}{}
		}
	}
	out := make([]castaway.Castaway, 0)
	for _, item := range tx.t.castaways {
		if _, ok := taken[item.ID]; ok || !item.Draftable() {
			continue
		}
		out = append(out, item)
	}
	slices.SortFunc(out, func(a, b castaway.Castaway) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (tx *draftTx) Castaway(_ context.Context, castawayID string) (castaway.Castaway, bool, error) {
	item, ok := tx.t.castaways[castawayID]
	return item, ok, nil
}

func (tx *draftTx) InsertRosterEntry(_ context.Context, entry draft.RosterEntry) error {
	for _, existing := range tx.t.roster[tx.leagueID] {
		if existing.Active() && existing.CastawayID == entry.CastawayID {
			return fmt.Errorf("%w: castaway=%s", draft.ErrCastawayTaken, entry.CastawayID)
		}
	}
	tx.t.roster[tx.leagueID] = append(tx.t.roster[tx.leagueID], entry)
	return nil
}

func (tx *draftTx) UpdateDraftStatus(_ context.Context, status league.DraftStatus, leagueStatus league.Status, at time.Time) error {
	item := tx.t.leagues[tx.leagueID]
	item.DraftStatus = status
	item.Status = leagueStatus
	item.UpdatedAt = at
	tx.t.leagues[tx.leagueID] = item
	return nil
}

func (tx *draftTx) UpdateDraftOrder(_ context.Context, order []string, at time.Time) error {
	item := tx.t.leagues[tx.leagueID]
	item.DraftOrder = slices.Clone(order)
	item.UpdatedAt = at
	tx.t.leagues[tx.leagueID] = item

	for position, userID := range order {
		key := memberKey{leagueID: tx.leagueID, userID: userID}
		m, ok := tx.t.members[key]
		if !ok {
			return fmt.Errorf("member %s not in league %s", userID, tx.leagueID)
		}
		m.DraftPosition = position + 1
		tx.t.members[key] = m
	}
	return nil
}

func (tx *draftTx) Receipt(_ context.Context, key draft.IdempotencyKey) (draft.Receipt, bool, error) {
	receipt, ok := tx.t.receipts[key]
	if !ok {
		return draft.Receipt{}, false, nil
	}
	return cloneReceipt(receipt), true, nil
}

func (tx *draftTx) SaveReceipt(_ context.Context, key draft.IdempotencyKey, receipt draft.Receipt) error {
	tx.t.receipts[key] = cloneReceipt(receipt)
	return nil
}

func (tx *draftTx) EnqueueNotification(_ context.Context, message notification.Message) error {
	return enqueue(tx.t, message)
}
