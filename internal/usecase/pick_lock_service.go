package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/riskibarqy/castaway-league/internal/domain/episode"
	"github.com/riskibarqy/castaway-league/internal/platform/logging"
)

type PickLockSummary struct {
	Locked []string
	Errors []string
}

// PickLockService closes weekly picks for episodes that have started airing.
type PickLockService struct {
	episodeRepo episode.Repository
	logger      *logging.Logger
	now         func() time.Time
}

func NewPickLockService(episodeRepo episode.Repository, logger *logging.Logger) *PickLockService {
	if logger == nil {
		logger = logging.Default()
	}
	return &PickLockService{episodeRepo: episodeRepo, logger: logger, now: time.Now}
}

func (s *PickLockService) LockDuePicks(ctx context.Context) (PickLockSummary, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PickLockService.LockDuePicks")
	defer span.End()

	due, err := s.episodeRepo.ListPicksDue(ctx, s.now().UTC())
	if err != nil {
		return PickLockSummary{}, fmt.Errorf("list episodes with open picks: %w", err)
	}

	summary := PickLockSummary{Locked: make([]string, 0, len(due))}
	for _, ep := range due {
		locked, err := s.episodeRepo.LockPicks(ctx, ep.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "lock weekly picks failed", "episode_id", ep.ID, "error", err)
			summary.Errors = append(summary.Errors, fmt.Sprintf("episode %s: %v", ep.ID, err))
			continue
		}
		if locked {
			summary.Locked = append(summary.Locked, ep.ID)
		}
	}
	if len(summary.Errors) > 0 {
		return summary, fmt.Errorf("lock picks failed for %d episodes", len(summary.Errors))
	}
	return summary, nil
}
