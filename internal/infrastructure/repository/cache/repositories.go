package cache

import (
	"context"

	"github.com/riskibarqy/castaway-league/internal/domain/castaway"
	basecache "github.com/riskibarqy/castaway-league/internal/platform/cache"
)

const castawayKeyPrefix = "castaway:"

// CastawayRepository reads castaways through the process cache. Elimination
// changes statuses, so finalize must call Invalidate after it commits.
type CastawayRepository struct {
	next  castaway.Repository
	cache *basecache.Store
}

func NewCastawayRepository(next castaway.Repository, cache *basecache.Store) *CastawayRepository {
	return &CastawayRepository{next: next, cache: cache}
}

func (r *CastawayRepository) List(ctx context.Context) ([]castaway.Castaway, error) {
	return r.list(ctx, castawayKeyPrefix+"list", r.next.List)
}

func (r *CastawayRepository) ListActive(ctx context.Context) ([]castaway.Castaway, error) {
	return r.list(ctx, castawayKeyPrefix+"list:active", r.next.ListActive)
}

func (r *CastawayRepository) GetByID(ctx context.Context, castawayID string) (castaway.Castaway, bool, error) {
	key := castawayKeyPrefix + "id:" + castawayID
	v, err := r.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		item, exists, err := r.next.GetByID(ctx, castawayID)
		if err != nil {
			return nil, err
		}
		return cachedCastawayByID{value: item, exists: exists}, nil
	})
	if err != nil {
		return castaway.Castaway{}, false, err
	}

	cached, _ := v.(cachedCastawayByID)
	return cached.value, cached.exists, nil
}

func (r *CastawayRepository) Invalidate(ctx context.Context) int {
	return r.cache.InvalidatePrefix(ctx, castawayKeyPrefix)
}

func (r *CastawayRepository) list(
	ctx context.Context,
	key string,
	load func(context.Context) ([]castaway.Castaway, error),
) ([]castaway.Castaway, error) {
	v, err := r.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		items, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return append([]castaway.Castaway(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]castaway.Castaway)
	return append([]castaway.Castaway(nil), items...), nil
}

type cachedCastawayByID struct {
	value  castaway.Castaway
	exists bool
}
