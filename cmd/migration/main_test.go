package main

import (
	"errors"
	"testing"

	"github.com/riskibarqy/castaway-league/internal/platform/logging"
)

func TestParseSteps(t *testing.T) {
	tests := []struct {
		args    []string
		want    int
		wantErr bool
	}{
		{args: nil, want: 1},
		{args: []string{"3"}, want: 3},
		{args: []string{"0"}, wantErr: true},
		{args: []string{"x"}, wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseSteps(tt.args)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseSteps(%v) err=%v, wantErr=%v", tt.args, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Fatalf("parseSteps(%v) = %d, want %d", tt.args, got, tt.want)
		}
	}
}

func TestParseVersionRejectsNegative(t *testing.T) {
	if _, err := parseVersion("-1"); err == nil {
		t.Fatalf("expected error for negative version")
	}
	if v, err := parseVersion(" 7 "); err != nil || v != 7 {
		t.Fatalf("unexpected parse result %d, %v", v, err)
	}
}

func TestRun_RequiresCommandAndDBURL(t *testing.T) {
	if err := run(nil, logging.NewNop()); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}

	t.Setenv("DB_URL", "")
	if err := run([]string{"up"}, logging.NewNop()); err == nil {
		t.Fatalf("expected error without DB_URL")
	}
}
