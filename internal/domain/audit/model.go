package audit

import (
	"context"
	"time"
)

const (
	ActionDraftPick         = "draft.pick"
	ActionDraftSetOrder     = "draft.set_order"
	ActionDraftStart        = "draft.start"
	ActionDraftAutoComplete = "draft.auto_complete"
	ActionScoringStart      = "scoring.start"
	ActionScoringFinalize   = "scoring.finalize"
)

const (
	TargetLeague  = "league"
	TargetEpisode = "episode"
)

// Entry is an append-only record of a state change. Before and After hold
// JSON snapshots.
type Entry struct {
	ID         string
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Before     []byte
	After      []byte
	CreatedAt  time.Time
}

type Repository interface {
	Append(ctx context.Context, entry Entry) error
	ListByTarget(ctx context.Context, targetType, targetID string) ([]Entry, error)
}
