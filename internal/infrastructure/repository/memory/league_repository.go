package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/riskibarqy/castaway-league/internal/domain/league"
)

type LeagueRepository struct {
	store *Store
}

func NewLeagueRepository(store *Store) *LeagueRepository {
	return &LeagueRepository{store: store}
}

func (r *LeagueRepository) GetByID(_ context.Context, leagueID string) (league.League, bool, error) {
	var (
		out   league.League
		found bool
	)
	r.store.view(func(t *tables) {
		item, ok := t.leagues[leagueID]
		if ok {
			out, found = cloneLeague(item), true
		}
	})
	return out, found, nil
}

func (r *LeagueRepository) ListDraftsDue(_ context.Context, now time.Time) ([]league.League, error) {
	out := make([]league.League, 0)
	r.store.view(func(t *tables) {
		for _, item := range t.leagues {
			if item.DraftStatus == league.DraftInProgress && item.DeadlinePassed(now) {
				out = append(out, cloneLeague(item))
			}
		}
	})
	slices.SortFunc(out, func(a, b league.League) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}
