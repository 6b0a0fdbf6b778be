package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/riskibarqy/castaway-league/internal/domain/audit"
	"github.com/riskibarqy/castaway-league/internal/domain/castaway"
	"github.com/riskibarqy/castaway-league/internal/domain/episode"
	"github.com/riskibarqy/castaway-league/internal/domain/scoring"
	idgen "github.com/riskibarqy/castaway-league/internal/platform/id"
	"github.com/riskibarqy/castaway-league/internal/platform/logging"
)

type ScoreInput struct {
	CastawayID string
	RuleID     string
	Quantity   int
}

type SaveScoresInput struct {
	EpisodeID string
	ActorID   string
	Scores    []ScoreInput
}

type SessionView struct {
	EpisodeID string
	State     scoring.SessionState
	Session   *scoring.Session
	Staged    []scoring.StagedScore
}

type ScoringStatus struct {
	EpisodeID   string
	State       scoring.SessionState
	TotalActive int
	ScoredCount int
	Unscored    []castaway.Castaway
	IsComplete  bool
}

type CastawayPointsPreview struct {
	CastawayID string
	Name       string
	Points     int
}

type WeeklyPickPreview struct {
	PickID     string
	LeagueID   string
	UserID     string
	CastawayID string
	Points     int
}

type ScoringPreview struct {
	EpisodeID string
	State     scoring.SessionState
	Castaways []CastawayPointsPreview
	Picks     []WeeklyPickPreview
}

// ScoringSessionService manages the staged side of episode scoring. It never
// writes finalized totals.
type ScoringSessionService struct {
	episodeRepo  episode.Repository
	castawayRepo castaway.Repository
	scoringRepo  scoring.Repository
	auditRepo    audit.Repository
	rules        *ScoringRuleCatalog
	auditLog     *auditRecorder
	logger       *logging.Logger
	now          func() time.Time
}

func NewScoringSessionService(
	episodeRepo episode.Repository,
	castawayRepo castaway.Repository,
	scoringRepo scoring.Repository,
	auditRepo audit.Repository,
	rules *ScoringRuleCatalog,
	idGen idgen.Generator,
	logger *logging.Logger,
) *ScoringSessionService {
	if logger == nil {
		logger = logging.Default()
	}
	return &ScoringSessionService{
		episodeRepo:  episodeRepo,
		castawayRepo: castawayRepo,
		scoringRepo:  scoringRepo,
		auditRepo:    auditRepo,
		rules:        rules,
		auditLog:     newAuditRecorder(auditRepo, idGen, logger),
		logger:       logger,
		now:          time.Now,
	}
}

func (s *ScoringSessionService) Start(ctx context.Context, episodeID, actorID string) (SessionView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoringSessionService.Start")
	defer span.End()

	episodeID = strings.TrimSpace(episodeID)
	if episodeID == "" {
		return SessionView{}, fmt.Errorf("%w: episode id is required", ErrInvalidInput)
	}

	var (
		view    SessionView
		created bool
	)
	err := s.scoringRepo.WithinEpisode(ctx, episodeID, func(tx scoring.Tx) error {
		ep, err := tx.Episode(ctx)
		if err != nil {
			return fmt.Errorf("get episode: %w", err)
		}
		if ep.IsScored {
			return fmt.Errorf("%w: episode=%s", ErrAlreadyFinalized, episodeID)
		}

		session, err := tx.Session(ctx)
		if err != nil {
			return fmt.Errorf("get scoring session: %w", err)
		}
		if session == nil {
			now := s.now().UTC()
			session = &scoring.Session{EpisodeID: episodeID, StartedBy: actorID, StartedAt: now, UpdatedAt: now}
			if err := tx.CreateSession(ctx, *session); err != nil {
				return fmt.Errorf("create scoring session: %w", err)
			}
			created = true
		}

		staged, err := tx.StagedScores(ctx)
		if err != nil {
			return fmt.Errorf("list staged scores: %w", err)
		}
		view = SessionView{
			EpisodeID: episodeID,
			State:     scoring.StateOf(false, session),
			Session:   session,
			Staged:    staged,
		}
		return nil
	})
	if err != nil {
		return SessionView{}, mapScoringStoreError(err)
	}

	if created {
		s.auditLog.record(ctx, actorID, audit.ActionScoringStart, audit.TargetEpisode, episodeID,
			map[string]any{"state": scoring.SessionNotStarted},
			map[string]any{"state": scoring.SessionInProgress},
		)
	}
	return view, nil
}

func (s *ScoringSessionService) Save(ctx context.Context, input SaveScoresInput) (SessionView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoringSessionService.Save")
	defer span.End()

	input.EpisodeID = strings.TrimSpace(input.EpisodeID)
	if input.EpisodeID == "" {
		return SessionView{}, fmt.Errorf("%w: episode id is required", ErrInvalidInput)
	}
	if len(input.Scores) == 0 {
		return SessionView{}, fmt.Errorf("%w: at least one score is required", ErrInvalidInput)
	}

	rules, err := s.rules.Rules(ctx)
	if err != nil {
		return SessionView{}, err
	}

	// Later rows for the same (castaway, rule) win.
	type scoreKey struct{ castawayID, ruleID string }
	merged := make(map[scoreKey]int, len(input.Scores))
	castawayIDs := make([]string, 0, len(input.Scores))
	for i, item := range input.Scores {
		row := scoring.StagedScore{
			CastawayID: strings.TrimSpace(item.CastawayID),
			RuleID:     strings.TrimSpace(item.RuleID),
			Quantity:   item.Quantity,
		}
		if err := row.Validate(); err != nil {
			return SessionView{}, fmt.Errorf("%w: scores[%d]: %v", ErrInvalidInput, i, err)
		}
		if _, ok := rules[row.RuleID]; !ok {
			return SessionView{}, fmt.Errorf("%w: scores[%d]: unknown rule %q", ErrInvalidInput, i, row.RuleID)
		}
		key := scoreKey{castawayID: row.CastawayID, ruleID: row.RuleID}
		if _, seen := merged[key]; !seen {
			castawayIDs = append(castawayIDs, row.CastawayID)
		}
		merged[key] = row.Quantity
	}

	var view SessionView
	err = s.scoringRepo.WithinEpisode(ctx, input.EpisodeID, func(tx scoring.Tx) error {
		ep, err := tx.Episode(ctx)
		if err != nil {
			return fmt.Errorf("get episode: %w", err)
		}
		if ep.IsScored {
			return fmt.Errorf("%w: episode=%s", ErrAlreadyFinalized, input.EpisodeID)
		}

		known, err := tx.Castaways(ctx, castawayIDs)
		if err != nil {
			return fmt.Errorf("get castaways: %w", err)
		}
		knownSet := make(map[string]struct{}, len(known))
		for _, item := range known {
			knownSet[item.ID] = struct{}{}
		}
		for _, castawayID := range castawayIDs {
			if _, ok := knownSet[castawayID]; !ok {
				return fmt.Errorf("%w: castaway=%s", ErrCastawayNotFound, castawayID)
			}
		}

		now := s.now().UTC()
		session, err := tx.Session(ctx)
		if err != nil {
			return fmt.Errorf("get scoring session: %w", err)
		}
		if session == nil {
			session = &scoring.Session{EpisodeID: input.EpisodeID, StartedBy: input.ActorID, StartedAt: now, UpdatedAt: now}
			if err := tx.CreateSession(ctx, *session); err != nil {
				return fmt.Errorf("create scoring session: %w", err)
			}
		} else if err := tx.TouchSession(ctx, now); err != nil {
			return fmt.Errorf("touch scoring session: %w", err)
		}

		for key, quantity := range merged {
			if quantity == 0 {
				if err := tx.DeleteStagedScore(ctx, key.castawayID, key.ruleID); err != nil {
					return fmt.Errorf("delete staged score: %w", err)
				}
				continue
			}
			if err := tx.UpsertStagedScore(ctx, scoring.StagedScore{
				EpisodeID:  input.EpisodeID,
				CastawayID: key.castawayID,
				RuleID:     key.ruleID,
				Quantity:   quantity,
				UpdatedBy:  input.ActorID,
				UpdatedAt:  now,
			}); err != nil {
				return fmt.Errorf("upsert staged score: %w", err)
			}
		}

		staged, err := tx.StagedScores(ctx)
		if err != nil {
			return fmt.Errorf("list staged scores: %w", err)
		}
		session.UpdatedAt = now
		view = SessionView{
			EpisodeID: input.EpisodeID,
			State:     scoring.SessionInProgress,
			Session:   session,
			Staged:    staged,
		}
		return nil
	})
	if err != nil {
		return SessionView{}, mapScoringStoreError(err)
	}
	return view, nil
}

func (s *ScoringSessionService) Status(ctx context.Context, episodeID string) (ScoringStatus, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoringSessionService.Status")
	defer span.End()

	ep, session, err := s.loadEpisode(ctx, episodeID)
	if err != nil {
		return ScoringStatus{}, err
	}

	scored := make(map[string]struct{})
	if ep.IsScored {
		points, err := s.scoringRepo.ListCastawayPoints(ctx, ep.ID)
		if err != nil {
			return ScoringStatus{}, fmt.Errorf("list castaway points: %w", err)
		}
		for _, item := range points {
			scored[item.CastawayID] = struct{}{}
		}
	} else {
		staged, err := s.scoringRepo.ListStagedScores(ctx, ep.ID)
		if err != nil {
			return ScoringStatus{}, fmt.Errorf("list staged scores: %w", err)
		}
		for _, item := range staged {
			scored[item.CastawayID] = struct{}{}
		}
	}

	active, err := s.castawayRepo.ListActive(ctx)
	if err != nil {
		return ScoringStatus{}, fmt.Errorf("list active castaways: %w", err)
	}

	status := ScoringStatus{
		EpisodeID:   ep.ID,
		State:       scoring.StateOf(ep.IsScored, session),
		TotalActive: len(active),
		Unscored:    make([]castaway.Castaway, 0),
	}
	for _, item := range active {
		if _, ok := scored[item.ID]; ok {
			status.ScoredCount++
			continue
		}
		status.Unscored = append(status.Unscored, item)
	}
	sort.Slice(status.Unscored, func(i, j int) bool { return status.Unscored[i].Name < status.Unscored[j].Name })
	status.IsComplete = status.TotalActive > 0 && len(status.Unscored) == 0
	return status, nil
}

// Preview computes the totals finalize would commit, without writing.
func (s *ScoringSessionService) Preview(ctx context.Context, episodeID string) (ScoringPreview, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoringSessionService.Preview")
	defer span.End()

	ep, session, err := s.loadEpisode(ctx, episodeID)
	if err != nil {
		return ScoringPreview{}, err
	}

	var totals []scoring.CastawayPoints
	if ep.IsScored {
		totals, err = s.scoringRepo.ListCastawayPoints(ctx, ep.ID)
		if err != nil {
			return ScoringPreview{}, fmt.Errorf("list castaway points: %w", err)
		}
	} else {
		rules, err := s.rules.Rules(ctx)
		if err != nil {
			return ScoringPreview{}, err
		}
		staged, err := s.scoringRepo.ListStagedScores(ctx, ep.ID)
		if err != nil {
			return ScoringPreview{}, fmt.Errorf("list staged scores: %w", err)
		}
		var unknown []string
		totals, unknown = scoring.Aggregate(ep.ID, staged, rules)
		if len(unknown) > 0 {
			s.logger.WarnContext(ctx, "staged scores reference unknown rules", "episode_id", ep.ID, "rule_ids", unknown)
		}
	}

	castaways, err := s.castawayRepo.List(ctx)
	if err != nil {
		return ScoringPreview{}, fmt.Errorf("list castaways: %w", err)
	}
	names := make(map[string]string, len(castaways))
	for _, item := range castaways {
		names[item.ID] = item.Name
	}

	preview := ScoringPreview{
		EpisodeID: ep.ID,
		State:     scoring.StateOf(ep.IsScored, session),
		Castaways: make([]CastawayPointsPreview, 0, len(totals)),
	}
	pointsByCastaway := make(map[string]int, len(totals))
	for _, item := range totals {
		pointsByCastaway[item.CastawayID] = item.Points
		preview.Castaways = append(preview.Castaways, CastawayPointsPreview{
			CastawayID: item.CastawayID,
			Name:       names[item.CastawayID],
			Points:     item.Points,
		})
	}

	picks, err := s.scoringRepo.ListWeeklyPicks(ctx, ep.ID)
	if err != nil {
		return ScoringPreview{}, fmt.Errorf("list weekly picks: %w", err)
	}
	preview.Picks = make([]WeeklyPickPreview, 0, len(picks))
	for _, pick := range picks {
		preview.Picks = append(preview.Picks, WeeklyPickPreview{
			PickID:     pick.ID,
			LeagueID:   pick.LeagueID,
			UserID:     pick.UserID,
			CastawayID: pick.CastawayID,
			Points:     pointsByCastaway[pick.CastawayID],
		})
	}
	return preview, nil
}

func (s *ScoringSessionService) Audit(ctx context.Context, episodeID string) ([]audit.Entry, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoringSessionService.Audit")
	defer span.End()

	ep, _, err := s.loadEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	entries, err := s.auditRepo.ListByTarget(ctx, audit.TargetEpisode, ep.ID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}

func (s *ScoringSessionService) loadEpisode(ctx context.Context, episodeID string) (episode.Episode, *scoring.Session, error) {
	episodeID = strings.TrimSpace(episodeID)
	if episodeID == "" {
		return episode.Episode{}, nil, fmt.Errorf("%w: episode id is required", ErrInvalidInput)
	}
	ep, found, err := s.episodeRepo.GetByID(ctx, episodeID)
	if err != nil {
		return episode.Episode{}, nil, fmt.Errorf("get episode: %w", err)
	}
	if !found {
		return episode.Episode{}, nil, fmt.Errorf("%w: episode=%s", ErrEpisodeNotFound, episodeID)
	}
	session, err := s.scoringRepo.GetSession(ctx, episodeID)
	if err != nil {
		return episode.Episode{}, nil, fmt.Errorf("get scoring session: %w", err)
	}
	return ep, session, nil
}

func mapScoringStoreError(err error) error {
	if errors.Is(err, scoring.ErrEpisodeNotFound) {
		return fmt.Errorf("%w: %v", ErrEpisodeNotFound, err)
	}
	return err
}
