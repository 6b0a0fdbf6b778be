package usecase

import (
	"errors"
	"testing"

	"github.com/riskibarqy/castaway-league/internal/domain/audit"
	"github.com/riskibarqy/castaway-league/internal/domain/scoring"
)

func TestScoringSessionService_Status_ReportsUnscoredCastaways(t *testing.T) {
	t.Parallel()

	f := newScoringFixture(t)
	if _, err := f.sessions.Start(t.Context(), testEpisodeID, "admin-1"); err != nil {
		t.Fatalf("start session: %v", err)
	}

	scores := []ScoreInput{
		{CastawayID: "castaway-01", RuleID: "confessional", Quantity: 2},
		{CastawayID: "castaway-02", RuleID: "survived", Quantity: 1},
		{CastawayID: "castaway-03", RuleID: "survived", Quantity: 1},
		{CastawayID: "castaway-04", RuleID: "vote-correct", Quantity: 1},
		{CastawayID: "castaway-05", RuleID: "reward", Quantity: 1},
	}
	if _, err := f.sessions.Save(t.Context(), SaveScoresInput{EpisodeID: testEpisodeID, ActorID: "admin-1", Scores: scores}); err != nil {
		t.Fatalf("save scores: %v", err)
	}

	status, err := f.sessions.Status(t.Context(), testEpisodeID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != scoring.SessionInProgress {
		t.Fatalf("unexpected state %s", status.State)
	}
	if status.TotalActive != 6 || status.ScoredCount != 5 || status.IsComplete {
		t.Fatalf("unexpected status %+v", status)
	}
	if len(status.Unscored) != 1 || status.Unscored[0].ID != "castaway-06" {
		t.Fatalf("expected castaway-06 to be unscored, got %+v", status.Unscored)
	}
}

func TestScoringSessionService_Start_IsIdempotent(t *testing.T) {
	t.Parallel()

	f := newScoringFixture(t)
	first, err := f.sessions.Start(t.Context(), testEpisodeID, "admin-1")
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	second, err := f.sessions.Start(t.Context(), testEpisodeID, "admin-2")
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if second.Session.StartedBy != first.Session.StartedBy || second.State != scoring.SessionInProgress {
		t.Fatalf("second start should return the existing session, got %+v", second.Session)
	}

	entries, _ := f.audits.ListByTarget(t.Context(), audit.TargetEpisode, testEpisodeID)
	if len(entries) != 1 || entries[0].Action != audit.ActionScoringStart {
		t.Fatalf("expected a single scoring.start audit, got %+v", entries)
	}
}

func TestScoringSessionService_Save(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		scores  []ScoreInput
		episode string
		wantErr error
		wantLen int
	}{
		{
			name:    "later rows for the same key win",
			episode: testEpisodeID,
			scores: []ScoreInput{
				{CastawayID: "castaway-01", RuleID: "confessional", Quantity: 1},
				{CastawayID: "castaway-01", RuleID: "confessional", Quantity: 4},
			},
			wantLen: 1,
		},
		{
			name:    "zero quantity clears a row",
			episode: testEpisodeID,
			scores: []ScoreInput{
				{CastawayID: "castaway-01", RuleID: "confessional", Quantity: 0},
			},
			wantLen: 0,
		},
		{
			name:    "unknown rule",
			episode: testEpisodeID,
			scores:  []ScoreInput{{CastawayID: "castaway-01", RuleID: "made-up", Quantity: 1}},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "unknown castaway",
			episode: testEpisodeID,
			scores:  []ScoreInput{{CastawayID: "castaway-77", RuleID: "confessional", Quantity: 1}},
			wantErr: ErrCastawayNotFound,
		},
		{
			name:    "negative quantity",
			episode: testEpisodeID,
			scores:  []ScoreInput{{CastawayID: "castaway-01", RuleID: "confessional", Quantity: -1}},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "unknown episode",
			episode: "episode-99",
			scores:  []ScoreInput{{CastawayID: "castaway-01", RuleID: "confessional", Quantity: 1}},
			wantErr: ErrEpisodeNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newScoringFixture(t)
			view, err := f.sessions.Save(t.Context(), SaveScoresInput{EpisodeID: tc.episode, ActorID: "admin-1", Scores: tc.scores})
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("save scores: %v", err)
			}
			if len(view.Staged) != tc.wantLen {
				t.Fatalf("unexpected staged rows: got=%d want=%d", len(view.Staged), tc.wantLen)
			}
			if tc.wantLen == 1 && view.Staged[0].Quantity != 4 {
				t.Fatalf("unexpected quantity %d", view.Staged[0].Quantity)
			}
		})
	}
}

func TestScoringSessionService_Preview(t *testing.T) {
	t.Parallel()

	f := newScoringFixture(t)
	stageFinalizeScores(t, f)

	preview, err := f.sessions.Preview(t.Context(), testEpisodeID)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(preview.Castaways) != 2 || preview.Castaways[0].Points != 13 || preview.Castaways[1].Points != -2 {
		t.Fatalf("unexpected castaway preview %+v", preview.Castaways)
	}
	if len(preview.Picks) != 2 {
		t.Fatalf("unexpected pick preview %+v", preview.Picks)
	}
	if f.scoring.MemberTotal(testLeagueID, "user-a") != 0 {
		t.Fatal("preview must not write member totals")
	}
}

// stageFinalizeScores stages 13 points for castaway-01 and -2 for castaway-02.
func stageFinalizeScores(t *testing.T, f *scoringFixture) {
	t.Helper()

	_, err := f.sessions.Save(t.Context(), SaveScoresInput{
		EpisodeID: testEpisodeID,
		ActorID:   "admin-1",
		Scores: []ScoreInput{
			{CastawayID: "castaway-01", RuleID: "individual-immunity", Quantity: 1},
			{CastawayID: "castaway-01", RuleID: "confessional", Quantity: 3},
			{CastawayID: "castaway-02", RuleID: "votes-received", Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("stage scores: %v", err)
	}
}
