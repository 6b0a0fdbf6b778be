package draft

import (
	"context"
	"errors"
	"time"

	"github.com/riskibarqy/castaway-league/internal/domain/castaway"
	"github.com/riskibarqy/castaway-league/internal/domain/league"
	"github.com/riskibarqy/castaway-league/internal/domain/notification"
)

var (
	ErrLeagueNotFound = errors.New("league not found")
	// ErrCastawayTaken is returned by stores that enforce the active roster
	// uniqueness constraint themselves.
	ErrCastawayTaken = errors.New("castaway already on an active roster")
)

// Tx is the unit of work for one league. Implementations hold an exclusive
// lock on the league for the lifetime of the Tx.
type Tx interface {
	League(ctx context.Context) (league.League, error)
	Members(ctx context.Context) ([]league.Member, error)
	RosterEntries(ctx context.Context) ([]RosterEntry, error)
	// AvailableCastaways returns active castaways without an active roster
	// entry in the league, ordered by id.
	AvailableCastaways(ctx context.Context) ([]castaway.Castaway, error)
	Castaway(ctx context.Context, castawayID string) (castaway.Castaway, bool, error)
	InsertRosterEntry(ctx context.Context, entry RosterEntry) error
	UpdateDraftStatus(ctx context.Context, status league.DraftStatus, leagueStatus league.Status, at time.Time) error
	UpdateDraftOrder(ctx context.Context, order []string, at time.Time) error
	Receipt(ctx context.Context, key IdempotencyKey) (Receipt, bool, error)
	SaveReceipt(ctx context.Context, key IdempotencyKey, receipt Receipt) error
	EnqueueNotification(ctx context.Context, message notification.Message) error
}

// Repository opens league-scoped units of work. fn's error rolls back
// every write made through the Tx.
type Repository interface {
	WithinLeague(ctx context.Context, leagueID string, fn func(tx Tx) error) error
	ListRosterEntries(ctx context.Context, leagueID string) ([]RosterEntry, error)
}
