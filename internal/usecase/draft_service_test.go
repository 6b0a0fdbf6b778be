package usecase

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/riskibarqy/castaway-league/internal/domain/audit"
	"github.com/riskibarqy/castaway-league/internal/domain/draft"
	"github.com/riskibarqy/castaway-league/internal/domain/league"
	"github.com/riskibarqy/castaway-league/internal/domain/notification"
	"github.com/riskibarqy/castaway-league/internal/domain/user"
)

func TestDraftService_SubmitPick_SnakeOrder(t *testing.T) {
	t.Parallel()

	f := newDraftFixture(t, league.DraftInProgress, "A", "B", "C", "D")
	want := []string{"A", "B", "C", "D", "D", "C", "B", "A"}

	for i, userID := range want {
		receipt, err := f.service.SubmitPick(t.Context(), SubmitPickInput{
			LeagueID:   testLeagueID,
			UserID:     userID,
			CastawayID: fmt.Sprintf("castaway-%02d", i+1),
		})
		if err != nil {
			t.Fatalf("pick %d by %s: %v", i+1, userID, err)
		}
		if receipt.Entry.DraftPick != i+1 {
			t.Fatalf("unexpected draft pick: got=%d want=%d", receipt.Entry.DraftPick, i+1)
		}
		wantRound := 1
		if i >= 4 {
			wantRound = 2
		}
		if receipt.Entry.DraftRound != wantRound {
			t.Fatalf("pick %d: unexpected round %d", i+1, receipt.Entry.DraftRound)
		}
		last := i == len(want)-1
		if receipt.DraftComplete != last {
			t.Fatalf("pick %d: unexpected draft_complete=%v", i+1, receipt.DraftComplete)
		}
		if !last && (receipt.NextPicker == nil || *receipt.NextPicker != want[i+1]) {
			t.Fatalf("pick %d: unexpected next picker %v", i+1, receipt.NextPicker)
		}
	}

	item, _, err := f.leagues.GetByID(t.Context(), testLeagueID)
	if err != nil {
		t.Fatalf("get league: %v", err)
	}
	if item.DraftStatus != league.DraftCompleted || item.Status != league.StatusActive {
		t.Fatalf("unexpected league state after draft: %s/%s", item.DraftStatus, item.Status)
	}

	_, err = f.service.SubmitPick(t.Context(), SubmitPickInput{LeagueID: testLeagueID, UserID: "A", CastawayID: "castaway-10"})
	if !errors.Is(err, ErrDraftNotOpen) {
		t.Fatalf("expected ErrDraftNotOpen after completion, got %v", err)
	}
}

func TestDraftService_SubmitPick_NotYourTurn(t *testing.T) {
	t.Parallel()

	f := newDraftFixture(t, league.DraftInProgress, "A", "B", "C", "D")
	if _, err := f.service.SubmitPick(t.Context(), SubmitPickInput{LeagueID: testLeagueID, UserID: "A", CastawayID: "castaway-01"}); err != nil {
		t.Fatalf("first pick: %v", err)
	}

	_, err := f.service.SubmitPick(t.Context(), SubmitPickInput{LeagueID: testLeagueID, UserID: "C", CastawayID: "castaway-02"})
	if !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected NOT_YOUR_TURN to be a conflict, got %v", err)
	}

	entries, _ := f.drafts.ListRosterEntries(t.Context(), testLeagueID)
	if len(entries) != 1 {
		t.Fatalf("rejected pick must not write, got %d entries", len(entries))
	}
}

func TestDraftService_SubmitPick_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   SubmitPickInput
		wantErr error
	}{
		{
			name:    "castaway already taken",
			input:   SubmitPickInput{LeagueID: testLeagueID, UserID: "B", CastawayID: "castaway-01"},
			wantErr: ErrCastawayTaken,
		},
		{
			name:    "unknown castaway",
			input:   SubmitPickInput{LeagueID: testLeagueID, UserID: "B", CastawayID: "castaway-99"},
			wantErr: ErrCastawayNotFound,
		},
		{
			name:    "unknown league",
			input:   SubmitPickInput{LeagueID: "missing", UserID: "B", CastawayID: "castaway-02"},
			wantErr: ErrLeagueNotFound,
		},
		{
			name:    "missing castaway id",
			input:   SubmitPickInput{LeagueID: testLeagueID, UserID: "B"},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newDraftFixture(t, league.DraftInProgress, "A", "B")
			if _, err := f.service.SubmitPick(t.Context(), SubmitPickInput{LeagueID: testLeagueID, UserID: "A", CastawayID: "castaway-01"}); err != nil {
				t.Fatalf("seed pick: %v", err)
			}
			_, err := f.service.SubmitPick(t.Context(), tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestDraftService_SubmitPick_TurnCheckedBeforeAvailability(t *testing.T) {
	t.Parallel()

	f := newDraftFixture(t, league.DraftInProgress, "A", "B", "C")
	if _, err := f.service.SubmitPick(t.Context(), SubmitPickInput{LeagueID: testLeagueID, UserID: "A", CastawayID: "castaway-01"}); err != nil {
		t.Fatalf("first pick: %v", err)
	}

	_, err := f.service.SubmitPick(t.Context(), SubmitPickInput{LeagueID: testLeagueID, UserID: "C", CastawayID: "castaway-01"})
	if !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn to win over ErrCastawayTaken, got %v", err)
	}
}

func TestDraftService_SubmitPick_IdempotentReplay(t *testing.T) {
	t.Parallel()

	f := newDraftFixture(t, league.DraftInProgress, "A", "B")
	input := SubmitPickInput{LeagueID: testLeagueID, UserID: "A", CastawayID: "castaway-03", IdempotencyToken: "tap-1"}

	first, err := f.service.SubmitPick(t.Context(), input)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := f.service.SubmitPick(t.Context(), input)
	if err != nil {
		t.Fatalf("replayed submit: %v", err)
	}
	if first.Entry.ID != second.Entry.ID {
		t.Fatalf("replay returned a different roster id: %s vs %s", first.Entry.ID, second.Entry.ID)
	}

	entries, _ := f.drafts.ListRosterEntries(t.Context(), testLeagueID)
	if len(entries) != 1 {
		t.Fatalf("expected exactly one roster row, got %d", len(entries))
	}
	pickAudits, _ := f.audits.ListByTarget(t.Context(), audit.TargetLeague, testLeagueID)
	if len(pickAudits) != 1 {
		t.Fatalf("replay must not write a second audit entry, got %d", len(pickAudits))
	}

	// Reusing the token for a different castaway is a client bug, not a replay.
	changed := input
	changed.CastawayID = "castaway-04"
	if _, err := f.service.SubmitPick(t.Context(), changed); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for reused token, got %v", err)
	}
	if entries, _ := f.drafts.ListRosterEntries(t.Context(), testLeagueID); len(entries) != 1 {
		t.Fatalf("mismatched replay must not write a roster row, got %d", len(entries))
	}

	// Without a token the same request is evaluated again and now fails.
	input.IdempotencyToken = ""
	if _, err := f.service.SubmitPick(t.Context(), input); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn without token, got %v", err)
	}
}

func TestDraftService_SubmitPick_ConcurrentSamePick(t *testing.T) {
	t.Parallel()

	f := newDraftFixture(t, league.DraftInProgress, "A", "B", "C", "D")

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.SubmitPick(t.Context(), SubmitPickInput{
				LeagueID:   testLeagueID,
				UserID:     "A",
				CastawayID: fmt.Sprintf("castaway-%02d", i%3+1),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrNotYourTurn), errors.Is(err, ErrCastawayTaken):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || rejected != attempts-1 {
		t.Fatalf("expected exactly one success, got successes=%d rejected=%d", successes, rejected)
	}
	entries, _ := f.drafts.ListRosterEntries(t.Context(), testLeagueID)
	if len(entries) != 1 {
		t.Fatalf("expected one roster entry, got %d", len(entries))
	}
}

func TestDraftService_SubmitPick_EnqueuesNotifications(t *testing.T) {
	t.Parallel()

	f := newDraftFixture(t, league.DraftInProgress, "A", "B")
	picks := []SubmitPickInput{
		{LeagueID: testLeagueID, UserID: "A", CastawayID: "castaway-01"},
		{LeagueID: testLeagueID, UserID: "B", CastawayID: "castaway-02"},
		{LeagueID: testLeagueID, UserID: "B", CastawayID: "castaway-03"},
		{LeagueID: testLeagueID, UserID: "A", CastawayID: "castaway-04"},
	}
	for _, input := range picks {
		if _, err := f.service.SubmitPick(t.Context(), input); err != nil {
			t.Fatalf("submit pick: %v", err)
		}
	}

	counts := map[notification.Kind]int{}
	for _, msg := range f.outbox.List() {
		counts[msg.Kind]++
		if msg.Status != notification.StatusPending {
			t.Fatalf("outbox message should be pending, got %s", msg.Status)
		}
	}
	if counts[notification.KindDraftYourTurn] != 3 {
		t.Fatalf("expected 3 your-turn messages, got %d", counts[notification.KindDraftYourTurn])
	}
	if counts[notification.KindDraftComplete] != 2 {
		t.Fatalf("expected a completion message per member, got %d", counts[notification.KindDraftComplete])
	}
}

func TestDraftService_SetDraftOrderAndStart(t *testing.T) {
	t.Parallel()

	f := newDraftFixture(t, league.DraftPending, "A", "B", "C")
	commissioner := user.Principal{UserID: "A", Role: user.RoleMember}

	if _, err := f.service.SetDraftOrder(t.Context(), SetDraftOrderInput{
		LeagueID: testLeagueID,
		Actor:    user.Principal{UserID: "B", Role: user.RoleMember},
		Order:    []string{"B", "A", "C"},
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-commissioner, got %v", err)
	}

	if _, err := f.service.SetDraftOrder(t.Context(), SetDraftOrderInput{
		LeagueID: testLeagueID,
		Actor:    commissioner,
		Order:    []string{"B", "A", "A"},
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for duplicate member, got %v", err)
	}

	updated, err := f.service.SetDraftOrder(t.Context(), SetDraftOrderInput{
		LeagueID: testLeagueID,
		Actor:    commissioner,
		Order:    []string{"C", "A", "B"},
	})
	if err != nil {
		t.Fatalf("set draft order: %v", err)
	}
	if got := fmt.Sprint(updated.DraftOrder); got != "[C A B]" {
		t.Fatalf("unexpected draft order %s", got)
	}

	if _, err := f.service.SubmitPick(t.Context(), SubmitPickInput{LeagueID: testLeagueID, UserID: "C", CastawayID: "castaway-01"}); !errors.Is(err, ErrDraftNotOpen) {
		t.Fatalf("expected ErrDraftNotOpen before start, got %v", err)
	}

	started, err := f.service.StartDraft(t.Context(), testLeagueID, user.Principal{UserID: "admin-1", Role: user.RoleAdmin})
	if err != nil {
		t.Fatalf("start draft: %v", err)
	}
	if started.DraftStatus != league.DraftInProgress {
		t.Fatalf("unexpected draft status %s", started.DraftStatus)
	}
	if _, err := f.service.StartDraft(t.Context(), testLeagueID, commissioner); !errors.Is(err, ErrDraftStarted) {
		t.Fatalf("expected ErrDraftStarted on second start, got %v", err)
	}
	if _, err := f.service.SetDraftOrder(t.Context(), SetDraftOrderInput{LeagueID: testLeagueID, Actor: commissioner, Randomize: true}); !errors.Is(err, ErrDraftStarted) {
		t.Fatalf("expected ErrDraftStarted when reordering a live draft, got %v", err)
	}

	receipt, err := f.service.SubmitPick(t.Context(), SubmitPickInput{LeagueID: testLeagueID, UserID: "C", CastawayID: "castaway-01"})
	if err != nil {
		t.Fatalf("first pick after start: %v", err)
	}
	if receipt.NextPicker == nil || *receipt.NextPicker != "A" {
		t.Fatalf("unexpected next picker %v", receipt.NextPicker)
	}

	entries, _ := f.audits.ListByTarget(t.Context(), audit.TargetLeague, testLeagueID)
	actions := map[string]int{}
	for _, entry := range entries {
		actions[entry.Action]++
	}
	if actions[audit.ActionDraftSetOrder] != 1 || actions[audit.ActionDraftStart] != 1 || actions[audit.ActionDraftPick] != 1 {
		t.Fatalf("unexpected audit actions %v", actions)
	}
}

func TestDraftService_SetDraftOrder_Randomize(t *testing.T) {
	t.Parallel()

	f := newDraftFixture(t, league.DraftPending, "A", "B", "C")
	f.service.shuffle = func(n int, swap func(i, j int)) {
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}

	updated, err := f.service.SetDraftOrder(t.Context(), SetDraftOrderInput{
		LeagueID:  testLeagueID,
		Actor:     user.Principal{UserID: "A"},
		Randomize: true,
	})
	if err != nil {
		t.Fatalf("randomize draft order: %v", err)
	}
	if got := fmt.Sprint(updated.DraftOrder); got != "[C B A]" {
		t.Fatalf("unexpected randomized order %s", got)
	}
}

func TestDraftService_GetDraftState(t *testing.T) {
	t.Parallel()

	f := newDraftFixture(t, league.DraftInProgress, "A", "B", "C")
	for _, input := range []SubmitPickInput{
		{LeagueID: testLeagueID, UserID: "A", CastawayID: "castaway-01"},
		{LeagueID: testLeagueID, UserID: "B", CastawayID: "castaway-02"},
		{LeagueID: testLeagueID, UserID: "C", CastawayID: "castaway-03"},
	} {
		if _, err := f.service.SubmitPick(t.Context(), input); err != nil {
			t.Fatalf("submit pick: %v", err)
		}
	}

	state, err := f.service.GetDraftState(t.Context(), testLeagueID)
	if err != nil {
		t.Fatalf("get draft state: %v", err)
	}
	if state.PickNumber != 3 || state.TotalPicks != 6 || state.Round != 2 {
		t.Fatalf("unexpected draft state %+v", state)
	}
	if state.NextPicker == nil || *state.NextPicker != "C" {
		t.Fatalf("expected C to pick again at the turn, got %v", state.NextPicker)
	}

	if _, err := f.service.GetDraftState(t.Context(), "missing"); !errors.Is(err, ErrLeagueNotFound) {
		t.Fatalf("expected ErrLeagueNotFound, got %v", err)
	}
}

func TestDraftService_SubmitPick_RosterEntryFields(t *testing.T) {
	t.Parallel()

	f := newDraftFixture(t, league.DraftInProgress, "A", "B")
	receipt, err := f.service.SubmitPick(t.Context(), SubmitPickInput{LeagueID: testLeagueID, UserID: "A", CastawayID: "castaway-05"})
	if err != nil {
		t.Fatalf("submit pick: %v", err)
	}
	entry := receipt.Entry
	if entry.AcquiredVia != draft.AcquiredViaDraft || entry.ReleasedAt != nil || !entry.AcquiredAt.Equal(testNow) {
		t.Fatalf("unexpected roster entry %+v", entry)
	}
}
