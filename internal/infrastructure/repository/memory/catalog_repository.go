package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/riskibarqy/castaway-league/internal/domain/castaway"
	"github.com/riskibarqy/castaway-league/internal/domain/episode"
)

type CastawayRepository struct {
	store *Store
}

func NewCastawayRepository(store *Store) *CastawayRepository {
	return &CastawayRepository{store: store}
}

func (r *CastawayRepository) List(_ context.Context) ([]castaway.Castaway, error) {
	return r.filter(func(castaway.Castaway) bool { return true }), nil
}

func (r *CastawayRepository) ListActive(_ context.Context) ([]castaway.Castaway, error) {
	return r.filter(func(c castaway.Castaway) bool { return c.Status == castaway.StatusActive }), nil
}

func (r *CastawayRepository) GetByID(_ context.Context, castawayID string) (castaway.Castaway, bool, error) {
	var (
		out   castaway.Castaway
		found bool
	)
	r.store.view(func(t *tables) {
		out, found = t.castaways[castawayID]
	})
	return out, found, nil
}

func (r *CastawayRepository) filter(keep func(castaway.Castaway) bool) []castaway.Castaway {
	out := make([]castaway.Castaway, 0)
	r.store.view(func(t *tables) {
		for _, item := range t.castaways {
			if keep(item) {
				out = append(out, item)
			}
		}
	})
	slices.SortFunc(out, func(a, b castaway.Castaway) int { return strings.Compare(a.ID, b.ID) })
	return out
}

type EpisodeRepository struct {
	store *Store
}

func NewEpisodeRepository(store *Store) *EpisodeRepository {
	return &EpisodeRepository{store: store}
}

func (r *EpisodeRepository) GetByID(_ context.Context, episodeID string) (episode.Episode, bool, error) {
	var (
		out   episode.Episode
		found bool
	)
	r.store.view(func(t *tables) {
		item, ok := t.episodes[episodeID]
		if ok {
			out, found = cloneEpisode(item), true
		}
	})
	return out, found, nil
}

func (r *EpisodeRepository) ListPicksDue(_ context.Context, now time.Time) ([]episode.Episode, error) {
	out := make([]episode.Episode, 0)
	r.store.view(func(t *tables) {
		for _, item := range t.episodes {
			if !item.PicksLocked && !item.AirAt.IsZero() && !item.AirAt.After(now) {
				out = append(out, cloneEpisode(item))
			}
		}
	})
	slices.SortFunc(out, func(a, b episode.Episode) int { return a.Number - b.Number })
	return out, nil
}

func (r *EpisodeRepository) LockPicks(_ context.Context, episodeID string) (bool, error) {
	locked := false
	err := r.store.update(func(t *tables) error {
		item, ok := t.episodes[episodeID]
		if !ok || item.PicksLocked {
			return nil
		}
		item.PicksLocked = true
		t.episodes[episodeID] = item
		locked = true
		return nil
	})
	return locked, err
}
