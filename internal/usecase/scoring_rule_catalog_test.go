package usecase

import (
	"testing"

	"github.com/riskibarqy/castaway-league/internal/domain/scoring"
)

func TestScoringRuleCatalog_CachesUntilInvalidated(t *testing.T) {
	t.Parallel()

	f := newScoringFixture(t)
	rules, err := f.rules.Rules(t.Context())
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if rules["confessional"].Points != 1 {
		t.Fatalf("unexpected confessional rule %+v", rules["confessional"])
	}

	f.store.SeedRules(scoring.Rule{ID: "confessional", Name: "Confessional", Category: scoring.CategorySocial, Points: 3})
	cached, _ := f.rules.Rules(t.Context())
	if cached["confessional"].Points != 1 {
		t.Fatal("catalog should serve the cached rule table")
	}

	if dropped := f.rules.Invalidate(t.Context()); dropped != 1 {
		t.Fatalf("expected one cache entry dropped, got %d", dropped)
	}
	reloaded, _ := f.rules.Rules(t.Context())
	if reloaded["confessional"].Points != 3 {
		t.Fatalf("expected reloaded rule, got %+v", reloaded["confessional"])
	}
}
