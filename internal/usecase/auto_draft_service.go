package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/castaway-league/internal/domain/audit"
	"github.com/riskibarqy/castaway-league/internal/domain/draft"
	"github.com/riskibarqy/castaway-league/internal/domain/league"
	"github.com/riskibarqy/castaway-league/internal/platform/logging"
)

const systemActorID = "system"

type AutoDraftConfig struct {
	Workers int
}

type AutoDraftLeagueResult struct {
	LeagueID      string
	PicksAssigned int
	Completed     bool
	Skipped       bool
	Error         string
}

type AutoDraftSummary struct {
	LeaguesConsidered int
	LeaguesFinalized  int
	LeaguesSkipped    int
	PicksAssigned     int
	Leagues           []AutoDraftLeagueResult
	Errors            []string
}

// AutoDraftService fills drafts whose deadline has passed. Every pick goes
// through DraftService.placePick so turn order has a single implementation.
type AutoDraftService struct {
	leagueRepo league.Repository
	draftRepo  draft.Repository
	drafts     *DraftService
	cfg        AutoDraftConfig
	logger     *logging.Logger
	now        func() time.Time
}

func NewAutoDraftService(
	leagueRepo league.Repository,
	draftRepo draft.Repository,
	drafts *DraftService,
	cfg AutoDraftConfig,
	logger *logging.Logger,
) *AutoDraftService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &AutoDraftService{
		leagueRepo: leagueRepo,
		draftRepo:  draftRepo,
		drafts:     drafts,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *AutoDraftService) CompleteDueDrafts(ctx context.Context) (AutoDraftSummary, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AutoDraftService.CompleteDueDrafts")
	defer span.End()

	now := s.now().UTC()
	due, err := s.leagueRepo.ListDraftsDue(ctx, now)
	if err != nil {
		return AutoDraftSummary{}, fmt.Errorf("list leagues with due drafts: %w", err)
	}

	summary := AutoDraftSummary{LeaguesConsidered: len(due)}
	if len(due) == 0 {
		return summary, nil
	}

	workerCount := s.cfg.Workers
	if workerCount > len(due) {
		workerCount = len(due)
	}
	pool, err := ants.NewPool(workerCount)
	if err != nil {
		return AutoDraftSummary{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	results := make(chan AutoDraftLeagueResult, len(due))
	var failed atomic.Int32
	var workers sync.WaitGroup
	for _, item := range due {
		leagueID := item.ID
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			row := s.completeLeague(ctx, leagueID)
			if row.Error != "" {
				failed.Add(1)
			}
			results <- row
		}); err != nil {
			workers.Done()
			failed.Add(1)
			results <- AutoDraftLeagueResult{LeagueID: leagueID, Error: fmt.Sprintf("submit to worker pool: %v", err)}
		}
	}

	workers.Wait()
	close(results)

	for row := range results {
		summary.Leagues = append(summary.Leagues, row)
		summary.PicksAssigned += row.PicksAssigned
		switch {
		case row.Error != "":
			summary.Errors = append(summary.Errors, fmt.Sprintf("league %s: %s", row.LeagueID, row.Error))
		case row.Skipped:
			summary.LeaguesSkipped++
		case row.Completed:
			summary.LeaguesFinalized++
		}
	}
	sort.Slice(summary.Leagues, func(i, j int) bool { return summary.Leagues[i].LeagueID < summary.Leagues[j].LeagueID })
	sort.Strings(summary.Errors)

	if n := failed.Load(); n > 0 {
		return summary, fmt.Errorf("auto-draft failed for %d of %d leagues", n, len(due))
	}
	return summary, nil
}

func (s *AutoDraftService) completeLeague(ctx context.Context, leagueID string) AutoDraftLeagueResult {
	row := AutoDraftLeagueResult{LeagueID: leagueID}
	var assigned []draft.RosterEntry

	err := s.draftRepo.WithinLeague(ctx, leagueID, func(tx draft.Tx) error {
		assigned = assigned[:0]
		current, err := tx.League(ctx)
		if err != nil {
			return fmt.Errorf("get league: %w", err)
		}
		if current.DraftStatus != league.DraftInProgress || !current.DeadlinePassed(s.now().UTC()) {
			row.Skipped = true
			return nil
		}

		b, err := loadBoard(ctx, tx)
		if err != nil {
			return err
		}
		available, err := tx.AvailableCastaways(ctx)
		if err != nil {
			return fmt.Errorf("list available castaways: %w", err)
		}
		sort.Slice(available, func(i, j int) bool { return available[i].ID < available[j].ID })

		total := draft.TotalPicks(len(b.league.DraftOrder))
		next := 0
		for b.picks < total && next < len(available) {
			candidate := available[next]
			next++
			if _, taken := b.taken[candidate.ID]; taken {
				continue
			}
			picker, _ := draft.PickerFor(b.league.DraftOrder, b.picks)
			receipt, err := s.drafts.placePick(ctx, tx, b, picker, candidate.ID, draft.AcquiredViaAutoDraft)
			if err != nil {
				return err
			}
			assigned = append(assigned, receipt.Entry)
		}

		// Castaways ran out before every slot was filled.
		if b.league.DraftStatus == league.DraftInProgress {
			if err := s.drafts.completeDraft(ctx, tx, b, s.now().UTC()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		err = mapDraftStoreError(err)
		s.logger.WarnContext(ctx, "auto-draft league failed", "league_id", leagueID, "error", err)
		row.Error = err.Error()
		return row
	}
	if row.Skipped {
		return row
	}

	row.Completed = true
	row.PicksAssigned = len(assigned)
	picks := make([]map[string]any, 0, len(assigned))
	for _, entry := range assigned {
		picks = append(picks, map[string]any{
			"user_id":     entry.UserID,
			"castaway_id": entry.CastawayID,
			"draft_pick":  entry.DraftPick,
		})
	}
	s.drafts.auditLog.record(ctx, systemActorID, audit.ActionDraftAutoComplete, audit.TargetLeague, leagueID,
		map[string]any{"draft_status": league.DraftInProgress},
		map[string]any{"draft_status": league.DraftCompleted, "auto_picks": picks},
	)
	return row
}

// JobHandler adapts CompleteDueDrafts to the scheduler. The typed summary
// rides along in JobReport.Result for manual triggers.
func (s *AutoDraftService) JobHandler() JobHandler {
	return func(ctx context.Context) (JobReport, error) {
		summary, err := s.CompleteDueDrafts(ctx)
		return JobReport{
			Summary: fmt.Sprintf("leagues_considered=%d leagues_finalized=%d picks_assigned=%d",
				summary.LeaguesConsidered, summary.LeaguesFinalized, summary.PicksAssigned),
			Errors: summary.Errors,
			Result: summary,
		}, err
	}
}
