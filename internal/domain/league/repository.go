package league

import (
	"context"
	"time"
)

// Repository describes league persistence needs from use cases.
// Draft mutations go through draft.Repository so they share the league lock.
type Repository interface {
	GetByID(ctx context.Context, leagueID string) (League, bool, error)
	ListDraftsDue(ctx context.Context, now time.Time) ([]League, error)
}
