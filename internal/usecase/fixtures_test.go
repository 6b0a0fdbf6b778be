package usecase

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riskibarqy/castaway-league/internal/domain/castaway"
	"github.com/riskibarqy/castaway-league/internal/domain/league"
	"github.com/riskibarqy/castaway-league/internal/domain/scoring"
	"github.com/riskibarqy/castaway-league/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/castaway-league/internal/platform/cache"
)

const testLeagueID = "league-test"

var testNow = time.Date(2026, 3, 4, 20, 0, 0, 0, time.UTC)

// sequenceIDs issues predictable ids so assertions can name them.
type sequenceIDs struct {
	prefix string
	next   atomic.Int64
}

func (g *sequenceIDs) NewID() (string, error) {
	return fmt.Sprintf("%s-%04d", g.prefix, g.next.Add(1)), nil
}

type draftFixture struct {
	store     *memory.Store
	leagues   *memory.LeagueRepository
	drafts    *memory.DraftRepository
	audits    *memory.AuditRepository
	outbox    *memory.NotificationRepository
	service   *DraftService
	autoDraft *AutoDraftService
}

func fixedClock() func() time.Time {
	return func() time.Time { return testNow }
}

// newDraftFixture seeds a league whose members pick in the given order.
func newDraftFixture(t *testing.T, status league.DraftStatus, order ...string) *draftFixture {
	t.Helper()

	store := memory.NewStore()
	store.SeedCastaways(memory.SeedCastaways()...)

	deadline := testNow.Add(time.Hour)
	members := make([]league.Member, 0, len(order))
	for i, userID := range order {
		members = append(members, league.Member{UserID: userID, DraftPosition: i + 1})
	}
	store.SeedLeague(league.League{
		ID:              testLeagueID,
		Name:            "Test League",
		CommissionerID:  order[0],
		DraftStatus:     status,
		DraftOrder:      order,
		Status:          league.StatusDraft,
		DraftDeadlineAt: &deadline,
	}, members...)

	f := &draftFixture{
		store:   store,
		leagues: memory.NewLeagueRepository(store),
		drafts:  memory.NewDraftRepository(store),
		audits:  memory.NewAuditRepository(store),
		outbox:  memory.NewNotificationRepository(store),
	}
	f.service = NewDraftService(f.leagues, f.drafts, f.audits, &sequenceIDs{prefix: "id"}, nil)
	f.service.now = fixedClock()
	f.service.auditLog.now = fixedClock()
	f.autoDraft = NewAutoDraftService(f.leagues, f.drafts, f.service, AutoDraftConfig{Workers: 2}, nil)
	f.autoDraft.now = fixedClock()
	return f
}

// pastDeadline moves the fixture clock beyond the draft deadline.
func (f *draftFixture) pastDeadline() {
	later := func() time.Time { return testNow.Add(2 * time.Hour) }
	f.service.now = later
	f.autoDraft.now = later
}

type scoringFixture struct {
	store     *memory.Store
	scoring   *memory.ScoringRepository
	episodes  *memory.EpisodeRepository
	audits    *memory.AuditRepository
	outbox    *memory.NotificationRepository
	rules     *ScoringRuleCatalog
	sessions  *ScoringSessionService
	finalizer *ScoringFinalizerService
}

const testEpisodeID = "episode-01"

// newScoringFixture seeds six active castaways, one episode and two league
// members with weekly picks on it.
func newScoringFixture(t *testing.T) *scoringFixture {
	t.Helper()

	store := memory.NewStore()
	store.SeedRules(memory.SeedRules()...)
	castaways := memory.SeedCastaways()[:6]
	store.SeedCastaways(castaways...)
	store.SeedCastaways(castaway.Castaway{ID: "castaway-gone", Name: "Zed", Status: castaway.StatusEliminated})
	store.SeedEpisodes(memory.SeedEpisodes(testNow.Add(-time.Hour))[:2]...)
	store.SeedLeague(league.League{
		ID:             testLeagueID,
		Name:           "Test League",
		CommissionerID: "user-a",
		DraftStatus:    league.DraftCompleted,
		DraftOrder:     []string{"user-a", "user-b"},
		Status:         league.StatusActive,
	}, league.Member{UserID: "user-a", DraftPosition: 1}, league.Member{UserID: "user-b", DraftPosition: 2})
	store.SeedWeeklyPicks(
		scoringPick("pick-a", "user-a", testEpisodeID, castaways[0].ID),
		scoringPick("pick-b", "user-b", testEpisodeID, castaways[1].ID),
	)

	f := &scoringFixture{
		store:   store,
		scoring:  memory.NewScoringRepository(store),
		episodes: memory.NewEpisodeRepository(store),
		audits:   memory.NewAuditRepository(store),
		outbox:   memory.NewNotificationRepository(store),
	}
	ids := &sequenceIDs{prefix: "id"}
	f.rules = NewScoringRuleCatalog(f.scoring, cache.NewStore(time.Minute))
	f.sessions = NewScoringSessionService(
		f.episodes,
		memory.NewCastawayRepository(store),
		f.scoring,
		f.audits,
		f.rules,
		ids,
		nil,
	)
	f.sessions.now = fixedClock()
	f.sessions.auditLog.now = fixedClock()
	f.finalizer = NewScoringFinalizerService(f.episodes, f.scoring, f.rules, ids, nil)
	f.finalizer.now = fixedClock()
	return f
}

func scoringPick(id, userID, episodeID, castawayID string) scoring.WeeklyPick {
	return scoring.WeeklyPick{ID: id, LeagueID: testLeagueID, UserID: userID, EpisodeID: episodeID, CastawayID: castawayID}
}
