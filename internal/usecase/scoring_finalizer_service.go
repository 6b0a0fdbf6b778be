package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/riskibarqy/castaway-league/internal/domain/audit"
	"github.com/riskibarqy/castaway-league/internal/domain/castaway"
	"github.com/riskibarqy/castaway-league/internal/domain/episode"
	"github.com/riskibarqy/castaway-league/internal/domain/notification"
	"github.com/riskibarqy/castaway-league/internal/domain/scoring"
	idgen "github.com/riskibarqy/castaway-league/internal/platform/id"
	"github.com/riskibarqy/castaway-league/internal/platform/logging"
)

// FinalizeInput carries the commissioner's elimination decisions. Nothing
// is eliminated unless it is listed here.
type FinalizeInput struct {
	EpisodeID             string
	ActorID               string
	EliminatedCastawayIDs []string
	WinnerCastawayID      string
}

type FinalizeResult struct {
	EpisodeID        string
	NewlyEliminated  []castaway.Castaway
	Winner           *castaway.Castaway
	CastawayPoints   []scoring.CastawayPoints
	PicksUpdated     int
	MembersUpdated   int
	StandingsUpdated bool
	ScoredAt         time.Time
}

// CacheInvalidator drops cached reads that a committed change made stale.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) int
}

type ScoringFinalizerService struct {
	episodeRepo episode.Repository
	scoringRepo scoring.Repository
	rules       *ScoringRuleCatalog
	idGen       idgen.Generator
	logger      *logging.Logger
	now         func() time.Time
	caches      []CacheInvalidator
}

func NewScoringFinalizerService(
	episodeRepo episode.Repository,
	scoringRepo scoring.Repository,
	rules *ScoringRuleCatalog,
	idGen idgen.Generator,
	logger *logging.Logger,
) *ScoringFinalizerService {
	if logger == nil {
		logger = logging.Default()
	}
	return &ScoringFinalizerService{
		episodeRepo: episodeRepo,
		scoringRepo: scoringRepo,
		rules:       rules,
		idGen:       idGen,
		logger:      logger,
		now:         time.Now,
	}
}

// InvalidateOnFinalize registers caches that hold castaway statuses.
func (s *ScoringFinalizerService) InvalidateOnFinalize(caches ...CacheInvalidator) {
	s.caches = append(s.caches, caches...)
}

// Finalize commits staged scores exactly once. Concurrent callers serialize
// on the episode lock; every loser observes ErrAlreadyFinalized.
func (s *ScoringFinalizerService) Finalize(ctx context.Context, input FinalizeInput) (FinalizeResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoringFinalizerService.Finalize")
	defer span.End()

	input.EpisodeID = strings.TrimSpace(input.EpisodeID)
	input.WinnerCastawayID = strings.TrimSpace(input.WinnerCastawayID)
	if input.EpisodeID == "" {
		return FinalizeResult{}, fmt.Errorf("%w: episode id is required", ErrInvalidInput)
	}
	eliminated, err := normalizeEliminations(input.EliminatedCastawayIDs, input.WinnerCastawayID)
	if err != nil {
		return FinalizeResult{}, err
	}

	ep, found, err := s.episodeRepo.GetByID(ctx, input.EpisodeID)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("get episode: %w", err)
	}
	if !found {
		return FinalizeResult{}, fmt.Errorf("%w: episode=%s", ErrEpisodeNotFound, input.EpisodeID)
	}
	if ep.IsScored {
		return FinalizeResult{}, fmt.Errorf("%w: episode=%s", ErrAlreadyFinalized, input.EpisodeID)
	}

	rules, err := s.rules.Rules(ctx)
	if err != nil {
		return FinalizeResult{}, err
	}

	var result FinalizeResult
	err = s.scoringRepo.WithinEpisode(ctx, input.EpisodeID, func(tx scoring.Tx) error {
		result, err = s.finalizeTx(ctx, tx, input, eliminated, rules)
		return err
	})
	if err != nil {
		return FinalizeResult{}, mapScoringStoreError(err)
	}
	for _, c := range s.caches {
		c.Invalidate(ctx)
	}

	s.logger.InfoContext(ctx, "episode finalized",
		"episode_id", input.EpisodeID,
		"eliminated", len(result.NewlyEliminated),
		"picks_updated", result.PicksUpdated,
		"members_updated", result.MembersUpdated,
	)
	return result, nil
}

func (s *ScoringFinalizerService) finalizeTx(
	ctx context.Context,
	tx scoring.Tx,
	input FinalizeInput,
	eliminated []string,
	rules map[string]scoring.Rule,
) (FinalizeResult, error) {
	ep, err := tx.Episode(ctx)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("get episode: %w", err)
	}
	if ep.IsScored {
		return FinalizeResult{}, fmt.Errorf("%w: episode=%s", ErrAlreadyFinalized, ep.ID)
	}
	session, err := tx.Session(ctx)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("get scoring session: %w", err)
	}
	state := scoring.StateOf(ep.IsScored, session)
	if !state.CanTransitionTo(scoring.SessionFinalized) {
		return FinalizeResult{}, fmt.Errorf("%w: scoring session is %s", ErrConflict, state)
	}

	staged, err := tx.StagedScores(ctx)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("list staged scores: %w", err)
	}
	totals, unknown := scoring.Aggregate(ep.ID, staged, rules)
	if len(unknown) > 0 {
		return FinalizeResult{}, fmt.Errorf("%w: staged scores reference unknown rules %v", ErrInvalidInput, unknown)
	}

	now := s.now().UTC()
	result := FinalizeResult{EpisodeID: ep.ID, CastawayPoints: totals, ScoredAt: now}

	statusIDs := eliminated
	if input.WinnerCastawayID != "" {
		statusIDs = append(append([]string(nil), eliminated...), input.WinnerCastawayID)
	}
	if len(statusIDs) > 0 {
		castaways, err := tx.Castaways(ctx, statusIDs)
		if err != nil {
			return FinalizeResult{}, fmt.Errorf("get castaways: %w", err)
		}
		byID := make(map[string]castaway.Castaway, len(castaways))
		for _, item := range castaways {
			byID[item.ID] = item
		}
		for _, castawayID := range eliminated {
			item, ok := byID[castawayID]
			if !ok {
				return FinalizeResult{}, fmt.Errorf("%w: castaway=%s", ErrCastawayNotFound, castawayID)
			}
			if item.Status != castaway.StatusActive {
				return FinalizeResult{}, fmt.Errorf("%w: castaway %s is already %s", ErrInvalidInput, castawayID, item.Status)
			}
			if err := tx.UpdateCastawayStatus(ctx, castawayID, castaway.StatusEliminated, ep.ID); err != nil {
				return FinalizeResult{}, fmt.Errorf("eliminate castaway: %w", err)
			}
			item.Status = castaway.StatusEliminated
			item.EliminatedEpisodeID = ep.ID
			result.NewlyEliminated = append(result.NewlyEliminated, item)
		}
		if input.WinnerCastawayID != "" {
			item, ok := byID[input.WinnerCastawayID]
			if !ok {
				return FinalizeResult{}, fmt.Errorf("%w: castaway=%s", ErrCastawayNotFound, input.WinnerCastawayID)
			}
			if item.Status != castaway.StatusActive {
				return FinalizeResult{}, fmt.Errorf("%w: castaway %s is already %s", ErrInvalidInput, item.ID, item.Status)
			}
			if err := tx.UpdateCastawayStatus(ctx, item.ID, castaway.StatusWinner, ""); err != nil {
				return FinalizeResult{}, fmt.Errorf("crown winner: %w", err)
			}
			item.Status = castaway.StatusWinner
			result.Winner = &item
		}
	}

	if err := tx.SaveCastawayPoints(ctx, totals); err != nil {
		return FinalizeResult{}, fmt.Errorf("save castaway points: %w", err)
	}

	pointsByCastaway := make(map[string]int, len(totals))
	for _, item := range totals {
		pointsByCastaway[item.CastawayID] = item.Points
	}
	picks, err := tx.WeeklyPicks(ctx)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("list weekly picks: %w", err)
	}
	members := make(map[scoring.MemberRef]struct{}, len(picks))
	for _, pick := range picks {
		if err := tx.UpdateWeeklyPickPoints(ctx, pick.ID, pointsByCastaway[pick.CastawayID]); err != nil {
			return FinalizeResult{}, fmt.Errorf("update weekly pick points: %w", err)
		}
		members[scoring.MemberRef{LeagueID: pick.LeagueID, UserID: pick.UserID}] = struct{}{}
	}
	result.PicksUpdated = len(picks)

	if err := tx.MarkScored(ctx, now); err != nil {
		return FinalizeResult{}, fmt.Errorf("mark episode scored: %w", err)
	}
	if err := tx.ClearStagedScores(ctx); err != nil {
		return FinalizeResult{}, fmt.Errorf("clear staged scores: %w", err)
	}

	refs := make([]scoring.MemberRef, 0, len(members))
	for ref := range members {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].LeagueID != refs[j].LeagueID {
			return refs[i].LeagueID < refs[j].LeagueID
		}
		return refs[i].UserID < refs[j].UserID
	})
	memberTotals := make(map[string]int, len(refs))
	for _, ref := range refs {
		total, err := tx.SumFinalizedPoints(ctx, ref)
		if err != nil {
			return FinalizeResult{}, fmt.Errorf("sum finalized points: %w", err)
		}
		if err := tx.UpdateMemberTotal(ctx, ref, total); err != nil {
			return FinalizeResult{}, fmt.Errorf("update member total: %w", err)
		}
		memberTotals[ref.LeagueID+"/"+ref.UserID] = total

		messageID, err := s.idGen.NewID()
		if err != nil {
			return FinalizeResult{}, fmt.Errorf("generate outbox id: %w", err)
		}
		msg := newOutboxMessage(messageID, notification.KindEpisodeScored, ref.UserID,
			fmt.Sprintf("Episode %d has been scored", ep.Number),
			map[string]any{
				"league_id":    ref.LeagueID,
				"episode_id":   ep.ID,
				"total_points": total,
			}, now)
		if err := tx.EnqueueNotification(ctx, msg); err != nil {
			return FinalizeResult{}, fmt.Errorf("enqueue episode scored notification: %w", err)
		}
	}
	result.MembersUpdated = len(refs)
	result.StandingsUpdated = true

	eliminatedIDs := make([]string, 0, len(result.NewlyEliminated))
	for _, item := range result.NewlyEliminated {
		eliminatedIDs = append(eliminatedIDs, item.ID)
	}
	entry, err := buildAuditEntry(s.idGen, now, input.ActorID, audit.ActionScoringFinalize, audit.TargetEpisode, ep.ID,
		map[string]any{
			"is_scored":   false,
			"state":       state,
			"staged_rows": len(staged),
		},
		map[string]any{
			"is_scored":       true,
			"state":           scoring.SessionFinalized,
			"castaway_points": totals,
			"eliminated":      eliminatedIDs,
			"winner":          input.WinnerCastawayID,
			"picks_updated":   len(picks),
			"member_totals":   memberTotals,
		},
	)
	if err != nil {
		return FinalizeResult{}, err
	}
	if err := tx.AppendAudit(ctx, entry); err != nil {
		return FinalizeResult{}, fmt.Errorf("append audit entry: %w", err)
	}
	return result, nil
}

func normalizeEliminations(ids []string, winnerID string) ([]string, error) {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for i, raw := range ids {
		castawayID := strings.TrimSpace(raw)
		if castawayID == "" {
			return nil, fmt.Errorf("%w: eliminated_castaway_ids[%d] is empty", ErrInvalidInput, i)
		}
		if castawayID == winnerID {
			return nil, fmt.Errorf("%w: castaway %s cannot be both eliminated and winner", ErrInvalidInput, castawayID)
		}
		if _, dup := seen[castawayID]; dup {
			continue
		}
		seen[castawayID] = struct{}{}
		out = append(out, castawayID)
	}
	return out, nil
}
