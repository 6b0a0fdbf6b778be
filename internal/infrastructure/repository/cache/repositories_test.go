package cache

import (
	"context"
	"testing"
	"time"

	"github.com/riskibarqy/castaway-league/internal/domain/castaway"
	basecache "github.com/riskibarqy/castaway-league/internal/platform/cache"
)

type countingCastawayRepo struct {
	calls int
	items []castaway.Castaway
}

func (r *countingCastawayRepo) List(context.Context) ([]castaway.Castaway, error) {
	r.calls++
	return r.items, nil
}

func (r *countingCastawayRepo) ListActive(context.Context) ([]castaway.Castaway, error) {
	r.calls++
	out := make([]castaway.Castaway, 0, len(r.items))
	for _, item := range r.items {
		if item.Status == castaway.StatusActive {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *countingCastawayRepo) GetByID(_ context.Context, castawayID string) (castaway.Castaway, bool, error) {
	r.calls++
	for _, item := range r.items {
		if item.ID == castawayID {
			return item, true, nil
		}
	}
	return castaway.Castaway{}, false, nil
}

func TestCastawayRepository_CachesUntilInvalidated(t *testing.T) {
	t.Parallel()

	next := &countingCastawayRepo{items: []castaway.Castaway{
		{ID: "c1", Name: "Andy", Status: castaway.StatusActive},
		{ID: "c2", Name: "Sue", Status: castaway.StatusEliminated},
	}}
	repo := NewCastawayRepository(next, basecache.NewStore(time.Minute))
	ctx := t.Context()

	for range 3 {
		active, err := repo.ListActive(ctx)
		if err != nil {
			t.Fatalf("list active: %v", err)
		}
		if len(active) != 1 {
			t.Fatalf("expected one active castaway, got %d", len(active))
		}
	}
	if next.calls != 1 {
		t.Fatalf("expected one load, got %d", next.calls)
	}

	next.items[0].Status = castaway.StatusEliminated
	if dropped := repo.Invalidate(ctx); dropped != 1 {
		t.Fatalf("expected one dropped key, got %d", dropped)
	}
	active, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active after invalidate: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected reload to see elimination, got %+v", active)
	}
}

func TestCastawayRepository_CachesMisses(t *testing.T) {
	t.Parallel()

	next := &countingCastawayRepo{}
	repo := NewCastawayRepository(next, basecache.NewStore(time.Minute))

	for range 2 {
		_, found, err := repo.GetByID(t.Context(), "missing")
		if err != nil {
			t.Fatalf("get by id: %v", err)
		}
		if found {
			t.Fatalf("expected miss")
		}
	}
	if next.calls != 1 {
		t.Fatalf("expected one load, got %d", next.calls)
	}
}
