package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/riskibarqy/castaway-league/internal/domain/audit"
	"github.com/riskibarqy/castaway-league/internal/domain/castaway"
	"github.com/riskibarqy/castaway-league/internal/domain/notification"
	"github.com/riskibarqy/castaway-league/internal/domain/scoring"
)

func TestScoringFinalizerService_Finalize(t *testing.T) {
	t.Parallel()

	f := newScoringFixture(t)
	stageFinalizeScores(t, f)

	result, err := f.finalizer.Finalize(t.Context(), FinalizeInput{
		EpisodeID:             testEpisodeID,
		ActorID:               "admin-1",
		EliminatedCastawayIDs: []string{"castaway-02"},
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !result.StandingsUpdated || result.PicksUpdated != 2 || result.MembersUpdated != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.NewlyEliminated) != 1 || result.NewlyEliminated[0].ID != "castaway-02" {
		t.Fatalf("unexpected eliminations %+v", result.NewlyEliminated)
	}

	if got := f.scoring.MemberTotal(testLeagueID, "user-a"); got != 13 {
		t.Fatalf("unexpected user-a total %d", got)
	}
	if got := f.scoring.MemberTotal(testLeagueID, "user-b"); got != -2 {
		t.Fatalf("unexpected user-b total %d", got)
	}

	picks, _ := f.scoring.ListWeeklyPicks(t.Context(), testEpisodeID)
	for _, pick := range picks {
		if pick.PointsEarned == nil {
			t.Fatalf("pick %s has no points after finalize", pick.ID)
		}
	}

	staged, _ := f.scoring.ListStagedScores(t.Context(), testEpisodeID)
	if len(staged) != 0 {
		t.Fatalf("staged rows should be cleared, got %d", len(staged))
	}

	status, err := f.sessions.Status(t.Context(), testEpisodeID)
	if err != nil {
		t.Fatalf("status after finalize: %v", err)
	}
	if status.State != scoring.SessionFinalized {
		t.Fatalf("unexpected state %s", status.State)
	}
	// castaway-02 is now eliminated, so only castaway-01 counts among actives.
	if status.TotalActive != 5 || status.ScoredCount != 1 {
		t.Fatalf("unexpected status after finalize %+v", status)
	}

	entries, _ := f.audits.ListByTarget(t.Context(), audit.TargetEpisode, testEpisodeID)
	var finalizeAudits int
	for _, entry := range entries {
		if entry.Action == audit.ActionScoringFinalize {
			finalizeAudits++
			if len(entry.Before) == 0 || len(entry.After) == 0 {
				t.Fatalf("finalize audit should carry both snapshots")
			}
		}
	}
	if finalizeAudits != 1 {
		t.Fatalf("expected one finalize audit, got %d", finalizeAudits)
	}

	scored := 0
	for _, msg := range f.outbox.List() {
		if msg.Kind == notification.KindEpisodeScored {
			scored++
		}
	}
	if scored != 2 {
		t.Fatalf("expected an episode-scored message per member, got %d", scored)
	}
}

func TestScoringFinalizerService_Finalize_TwiceKeepsTotals(t *testing.T) {
	t.Parallel()

	f := newScoringFixture(t)
	stageFinalizeScores(t, f)

	if _, err := f.finalizer.Finalize(t.Context(), FinalizeInput{EpisodeID: testEpisodeID, ActorID: "admin-1"}); err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	before := f.scoring.MemberTotal(testLeagueID, "user-a")

	_, err := f.finalizer.Finalize(t.Context(), FinalizeInput{EpisodeID: testEpisodeID, ActorID: "admin-1"})
	if !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
	if after := f.scoring.MemberTotal(testLeagueID, "user-a"); after != before {
		t.Fatalf("totals changed on second finalize: %d -> %d", before, after)
	}

	if _, err := f.sessions.Save(t.Context(), SaveScoresInput{
		EpisodeID: testEpisodeID,
		Scores:    []ScoreInput{{CastawayID: "castaway-03", RuleID: "reward", Quantity: 1}},
	}); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized when editing a finalized episode, got %v", err)
	}
}

func TestScoringFinalizerService_Finalize_ConcurrentCallersOneWins(t *testing.T) {
	t.Parallel()

	f := newScoringFixture(t)
	stageFinalizeScores(t, f)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		finalized int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.finalizer.Finalize(t.Context(), FinalizeInput{EpisodeID: testEpisodeID, ActorID: "admin-1"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrAlreadyFinalized):
				finalized++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || finalized != callers-1 {
		t.Fatalf("expected one winner, got successes=%d already_finalized=%d", successes, finalized)
	}
	if got := f.scoring.MemberTotal(testLeagueID, "user-a"); got != 13 {
		t.Fatalf("unexpected total after concurrent finalize %d", got)
	}
}

func TestScoringFinalizerService_Finalize_WinnerAndValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   FinalizeInput
		wantErr error
	}{
		{
			name:    "castaway both eliminated and winner",
			input:   FinalizeInput{EpisodeID: testEpisodeID, EliminatedCastawayIDs: []string{"castaway-03"}, WinnerCastawayID: "castaway-03"},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "already eliminated castaway",
			input:   FinalizeInput{EpisodeID: testEpisodeID, EliminatedCastawayIDs: []string{"castaway-gone"}},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "unknown castaway",
			input:   FinalizeInput{EpisodeID: testEpisodeID, EliminatedCastawayIDs: []string{"castaway-99"}},
			wantErr: ErrCastawayNotFound,
		},
		{
			name:    "unknown episode",
			input:   FinalizeInput{EpisodeID: "episode-99"},
			wantErr: ErrEpisodeNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newScoringFixture(t)
			_, err := f.finalizer.Finalize(t.Context(), tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if ep, _, _ := f.episodes.GetByID(t.Context(), testEpisodeID); ep.IsScored {
				t.Fatal("failed finalize must not mark the episode scored")
			}
		})
	}

	t.Run("winner crowned", func(t *testing.T) {
		t.Parallel()

		f := newScoringFixture(t)
		result, err := f.finalizer.Finalize(t.Context(), FinalizeInput{
			EpisodeID:             testEpisodeID,
			EliminatedCastawayIDs: []string{"castaway-04", "castaway-04"},
			WinnerCastawayID:      "castaway-05",
		})
		if err != nil {
			t.Fatalf("finalize with winner: %v", err)
		}
		if result.Winner == nil || result.Winner.Status != castaway.StatusWinner {
			t.Fatalf("unexpected winner %+v", result.Winner)
		}
		if len(result.NewlyEliminated) != 1 {
			t.Fatalf("duplicate eliminations should collapse, got %d", len(result.NewlyEliminated))
		}
	})
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(context.Context) int {
	c.calls++
	return 0
}

func TestScoringFinalizerService_InvalidatesCachesOnlyOnCommit(t *testing.T) {
	t.Parallel()

	f := newScoringFixture(t)
	inv := &countingInvalidator{}
	f.finalizer.InvalidateOnFinalize(inv)
	stageFinalizeScores(t, f)

	if _, err := f.finalizer.Finalize(t.Context(), FinalizeInput{EpisodeID: testEpisodeID, ActorID: "admin-1"}); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := f.finalizer.Finalize(t.Context(), FinalizeInput{EpisodeID: testEpisodeID, ActorID: "admin-1"}); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
	if inv.calls != 1 {
		t.Fatalf("expected one invalidation, got %d", inv.calls)
	}
}
