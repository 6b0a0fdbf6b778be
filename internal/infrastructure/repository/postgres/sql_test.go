package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/riskibarqy/castaway-league/internal/usecase"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "serialization failure", err: &pq.Error{Code: "40001"}, want: true},
		{name: "deadlock", err: fmt.Errorf("insert: %w", &pq.Error{Code: "40P01"}), want: true},
		{name: "connection failure class", err: &pq.Error{Code: "08006"}, want: true},
		{name: "conn done", err: sql.ErrConnDone, want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "unique violation", err: &pq.Error{Code: "23505"}, want: false},
		{name: "no rows", err: sql.ErrNoRows, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := isTransient(tc.err); got != tc.want {
				t.Fatalf("isTransient(%v): got=%v want=%v", tc.err, got, tc.want)
			}
		})
	}
}

func TestWrapStoreError(t *testing.T) {
	t.Parallel()

	if err := wrapStoreError(&pq.Error{Code: "40001"}, "insert roster entry"); !errors.Is(err, usecase.ErrDependencyUnavailable) {
		t.Fatalf("expected transient error to map to ErrDependencyUnavailable, got %v", err)
	}
	unique := &pq.Error{Code: "23505", Constraint: "roster_entries_active_castaway_key"}
	err := wrapStoreError(unique, "insert roster entry")
	if errors.Is(err, usecase.ErrDependencyUnavailable) {
		t.Fatalf("unique violation is not transient: %v", err)
	}
	if !isUniqueViolation(err, "roster_entries_active_castaway_key") {
		t.Fatalf("wrapped unique violation should still be detectable: %v", err)
	}
	if isUniqueViolation(err, "other_key") {
		t.Fatal("constraint name should be matched")
	}
	if wrapStoreError(nil, "noop") != nil {
		t.Fatal("nil error should stay nil")
	}
}

func TestUnmarshalJSONMap(t *testing.T) {
	t.Parallel()

	got := unmarshalJSONMap([]byte(`{"league_id":"l-1","draft_pick":3}`))
	if got["league_id"] != "l-1" {
		t.Fatalf("unexpected payload %v", got)
	}
	if len(unmarshalJSONMap([]byte("not json"))) != 0 {
		t.Fatal("invalid json should decode to an empty map")
	}
	if len(unmarshalJSONMap(nil)) != 0 {
		t.Fatal("nil payload should decode to an empty map")
	}
}

func TestOptionalString(t *testing.T) {
	t.Parallel()

	if optionalString("  ") != nil {
		t.Fatal("blank string should be nil")
	}
	if v := optionalString(" x "); v == nil || *v != "x" {
		t.Fatalf("unexpected value %v", v)
	}
	if stringValue(nil) != "" {
		t.Fatal("nil pointer should read as empty")
	}
}

func TestUTCPtr(t *testing.T) {
	t.Parallel()

	local := time.Date(2026, 3, 4, 20, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	got := utcPtr(&local)
	if got == nil || got.Location() != time.UTC || !got.Equal(local) {
		t.Fatalf("unexpected utc conversion %v", got)
	}
	if utcPtr(nil) != nil {
		t.Fatal("nil should stay nil")
	}
}
