package usecase

import (
	"context"
	"fmt"

	"github.com/riskibarqy/castaway-league/internal/domain/scoring"
	"github.com/riskibarqy/castaway-league/internal/platform/cache"
)

const scoringRulesCacheKey = "scoring:rules"

// ScoringRuleCatalog serves the static rule table from the process cache.
type ScoringRuleCatalog struct {
	repo  scoring.Repository
	cache *cache.Store
}

func NewScoringRuleCatalog(repo scoring.Repository, store *cache.Store) *ScoringRuleCatalog {
	return &ScoringRuleCatalog{repo: repo, cache: store}
}

func (c *ScoringRuleCatalog) Rules(ctx context.Context) (map[string]scoring.Rule, error) {
	load := func(ctx context.Context) (any, error) {
		rules, err := c.repo.ListRules(ctx)
		if err != nil {
			return nil, fmt.Errorf("list scoring rules: %w", err)
		}
		out := make(map[string]scoring.Rule, len(rules))
		for _, rule := range rules {
			out[rule.ID] = rule
		}
		return out, nil
	}
	if c.cache == nil {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return v.(map[string]scoring.Rule), nil
	}

	v, err := c.cache.GetOrLoad(ctx, scoringRulesCacheKey, load)
	if err != nil {
		return nil, err
	}
	rules, ok := v.(map[string]scoring.Rule)
	if !ok {
		c.cache.Delete(ctx, scoringRulesCacheKey)
		return nil, fmt.Errorf("unexpected cached rules type %T", v)
	}
	return rules, nil
}

// Invalidate drops cached rules; the next read reloads them from the store.
func (c *ScoringRuleCatalog) Invalidate(ctx context.Context) int {
	if c.cache == nil {
		return 0
	}
	return c.cache.InvalidatePrefix(ctx, "scoring:")
}
