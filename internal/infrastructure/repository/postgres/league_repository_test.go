package postgres

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/riskibarqy/castaway-league/internal/domain/league"
)

func TestLeagueFromRow(t *testing.T) {
	t.Parallel()

	deadline := time.Date(2026, 3, 4, 20, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	row := leagueTableModel{
		ID:              "league-1",
		Name:            "Island Rivals",
		CommissionerID:  "user-a",
		DraftStatus:     "in_progress",
		DraftOrder:      pq.StringArray{"user-a", "user-b"},
		Status:          "draft",
		DraftDeadlineAt: &deadline,
	}

	got, err := leagueFromRow(row)
	if err != nil {
		t.Fatalf("decode league: %v", err)
	}
	if got.DraftStatus != league.DraftInProgress || got.Status != league.StatusDraft || len(got.DraftOrder) != 2 {
		t.Fatalf("unexpected league %+v", got)
	}
	if got.DraftDeadlineAt == nil || got.DraftDeadlineAt.Location() != time.UTC {
		t.Fatalf("deadline should be normalized to UTC, got %v", got.DraftDeadlineAt)
	}

	row.DraftStatus = "drafting"
	if _, err := leagueFromRow(row); err == nil {
		t.Fatal("expected unknown draft status to be rejected")
	}
}
