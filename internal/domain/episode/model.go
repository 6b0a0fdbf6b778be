package episode

import (
	"context"
	"time"
)

type Episode struct {
	ID          string
	Number      int
	Title       string
	AirAt       time.Time
	IsScored    bool
	PicksLocked bool
	ScoredAt    *time.Time
}

type Repository interface {
	GetByID(ctx context.Context, episodeID string) (Episode, bool, error)
	// ListPicksDue returns aired episodes whose weekly picks are still open.
	ListPicksDue(ctx context.Context, now time.Time) ([]Episode, error)
	LockPicks(ctx context.Context, episodeID string) (bool, error)
}
