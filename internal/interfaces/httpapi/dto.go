package httpapi

import (
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/castaway-league/internal/domain/audit"
	"github.com/riskibarqy/castaway-league/internal/domain/castaway"
	"github.com/riskibarqy/castaway-league/internal/domain/draft"
	"github.com/riskibarqy/castaway-league/internal/domain/jobscheduler"
	"github.com/riskibarqy/castaway-league/internal/domain/league"
	"github.com/riskibarqy/castaway-league/internal/domain/scoring"
	"github.com/riskibarqy/castaway-league/internal/usecase"
)

type submitPickRequest struct {
	CastawayID       string `json:"castaway_id" validate:"required,max=64"`
	IdempotencyToken string `json:"idempotency_token" validate:"omitempty,max=128"`
}

type setDraftOrderRequest struct {
	Order     []string `json:"order" validate:"omitempty,max=64,dive,required"`
	Randomize bool     `json:"randomize"`
}

type saveScoresRequest struct {
	Scores []scoreRecord `json:"scores" validate:"required,min=1,dive"`
}

type scoreRecord struct {
	CastawayID string `json:"castaway_id" validate:"required"`
	RuleID     string `json:"rule_id" validate:"required"`
	Quantity   int    `json:"quantity" validate:"gte=0,lte=100"`
}

type finalizeRequest struct {
	EliminatedCastawayIDs []string `json:"eliminated_castaway_ids" validate:"omitempty,dive,required"`
	WinnerCastawayID      string   `json:"winner_castaway_id" validate:"omitempty,max=64"`
}

type invalidateCacheRequest struct {
	Cache string `json:"cache" validate:"omitempty,max=64"`
}

type pickReceiptDTO struct {
	RosterID      string  `json:"roster_id"`
	CastawayID    string  `json:"castaway_id"`
	DraftRound    int     `json:"draft_round"`
	DraftPick     int     `json:"draft_pick"`
	DraftComplete bool    `json:"draft_complete"`
	NextPicker    *string `json:"next_picker"`
}

func pickReceiptFromDomain(receipt draft.Receipt) pickReceiptDTO {
	return pickReceiptDTO{
		RosterID:      receipt.Entry.ID,
		CastawayID:    receipt.Entry.CastawayID,
		DraftRound:    receipt.Entry.DraftRound,
		DraftPick:     receipt.Entry.DraftPick,
		DraftComplete: receipt.DraftComplete,
		NextPicker:    receipt.NextPicker,
	}
}

type leagueDraftDTO struct {
	LeagueID        string     `json:"league_id"`
	Name            string     `json:"name"`
	CommissionerID  string     `json:"commissioner_id"`
	DraftStatus     string     `json:"draft_status"`
	Status          string     `json:"status"`
	DraftOrder      []string   `json:"draft_order"`
	DraftDeadlineAt *time.Time `json:"draft_deadline_at,omitempty"`
}

func leagueDraftFromDomain(item league.League) leagueDraftDTO {
	order := item.DraftOrder
	if order == nil {
		order = []string{}
	}
	return leagueDraftDTO{
		LeagueID:        item.ID,
		Name:            item.Name,
		CommissionerID:  item.CommissionerID,
		DraftStatus:     string(item.DraftStatus),
		Status:          string(item.Status),
		DraftOrder:      order,
		DraftDeadlineAt: item.DraftDeadlineAt,
	}
}

type rosterEntryDTO struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CastawayID  string    `json:"castaway_id"`
	DraftRound  int       `json:"draft_round"`
	DraftPick   int       `json:"draft_pick"`
	AcquiredVia string    `json:"acquired_via"`
	AcquiredAt  time.Time `json:"acquired_at"`
}

type draftStateDTO struct {
	League      leagueDraftDTO   `json:"league"`
	PickNumber  int              `json:"pick_number"`
	Round       int              `json:"round"`
	TotalPicks  int              `json:"total_picks"`
	MemberCount int              `json:"member_count"`
	NextPicker  *string          `json:"next_picker"`
	Picks       []rosterEntryDTO `json:"picks"`
}

func draftStateFromDomain(state usecase.DraftState) draftStateDTO {
	picks := make([]rosterEntryDTO, 0, len(state.Entries))
	for _, entry := range state.Entries {
		picks = append(picks, rosterEntryDTO{
			ID:          entry.ID,
			UserID:      entry.UserID,
			CastawayID:  entry.CastawayID,
			DraftRound:  entry.DraftRound,
			DraftPick:   entry.DraftPick,
			AcquiredVia: string(entry.AcquiredVia),
			AcquiredAt:  entry.AcquiredAt,
		})
	}
	return draftStateDTO{
		League:      leagueDraftFromDomain(state.League),
		PickNumber:  state.PickNumber,
		Round:       state.Round,
		TotalPicks:  state.TotalPicks,
		MemberCount: state.MemberCount,
		NextPicker:  state.NextPicker,
		Picks:       picks,
	}
}

type autoDraftSummaryDTO struct {
	ExecutionID       string   `json:"execution_id"`
	Outcome           string   `json:"outcome"`
	LeaguesConsidered int      `json:"leagues_considered"`
	LeaguesFinalized  int      `json:"leagues_finalized"`
	PicksAssigned     int      `json:"picks_assigned"`
	LeaguesSkipped    int      `json:"leagues_skipped"`
	Errors            []string `json:"errors"`
}

// autoDraftRunFromDomain reports a skipped run with a zero summary.
func autoDraftRunFromDomain(execution jobscheduler.Execution, summary usecase.AutoDraftSummary) autoDraftSummaryDTO {
	errs := summary.Errors
	if errs == nil {
		errs = []string{}
	}
	return autoDraftSummaryDTO{
		ExecutionID:       execution.ID,
		Outcome:           string(execution.Outcome),
		LeaguesConsidered: summary.LeaguesConsidered,
		LeaguesFinalized:  summary.LeaguesFinalized,
		PicksAssigned:     summary.PicksAssigned,
		LeaguesSkipped:    summary.LeaguesSkipped,
		Errors:            errs,
	}
}

type stagedScoreDTO struct {
	CastawayID string    `json:"castaway_id"`
	RuleID     string    `json:"rule_id"`
	Quantity   int       `json:"quantity"`
	UpdatedBy  string    `json:"updated_by"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type sessionDTO struct {
	EpisodeID string           `json:"episode_id"`
	State     string           `json:"state"`
	StartedBy string           `json:"started_by,omitempty"`
	StartedAt *time.Time       `json:"started_at,omitempty"`
	Staged    []stagedScoreDTO `json:"staged"`
}

func sessionFromDomain(view usecase.SessionView) sessionDTO {
	out := sessionDTO{
		EpisodeID: view.EpisodeID,
		State:     string(view.State),
		Staged:    make([]stagedScoreDTO, 0, len(view.Staged)),
	}
	if view.Session != nil {
		startedAt := view.Session.StartedAt
		out.StartedBy = view.Session.StartedBy
		out.StartedAt = &startedAt
	}
	for _, item := range view.Staged {
		out.Staged = append(out.Staged, stagedScoreDTO{
			CastawayID: item.CastawayID,
			RuleID:     item.RuleID,
			Quantity:   item.Quantity,
			UpdatedBy:  item.UpdatedBy,
			UpdatedAt:  item.UpdatedAt,
		})
	}
	return out
}

type castawayDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Tribe  string `json:"tribe"`
	Status string `json:"status"`
}

func castawayFromDomain(item castaway.Castaway) castawayDTO {
	return castawayDTO{ID: item.ID, Name: item.Name, Tribe: item.Tribe, Status: string(item.Status)}
}

func castawaysFromDomain(items []castaway.Castaway) []castawayDTO {
	out := make([]castawayDTO, 0, len(items))
	for _, item := range items {
		out = append(out, castawayFromDomain(item))
	}
	return out
}

type scoringStatusDTO struct {
	EpisodeID   string        `json:"episode_id"`
	State       string        `json:"state"`
	TotalActive int           `json:"total_active"`
	ScoredCount int           `json:"scored_count"`
	IsComplete  bool          `json:"is_complete"`
	Unscored    []castawayDTO `json:"unscored"`
}

func scoringStatusFromDomain(status usecase.ScoringStatus) scoringStatusDTO {
	return scoringStatusDTO{
		EpisodeID:   status.EpisodeID,
		State:       string(status.State),
		TotalActive: status.TotalActive,
		ScoredCount: status.ScoredCount,
		IsComplete:  status.IsComplete,
		Unscored:    castawaysFromDomain(status.Unscored),
	}
}

type castawayPointsDTO struct {
	CastawayID string `json:"castaway_id"`
	Name       string `json:"name,omitempty"`
	Points     int    `json:"points"`
}

type weeklyPickPointsDTO struct {
	PickID     string `json:"pick_id"`
	LeagueID   string `json:"league_id"`
	UserID     string `json:"user_id"`
	CastawayID string `json:"castaway_id"`
	Points     int    `json:"points"`
}

type scoringPreviewDTO struct {
	EpisodeID string                `json:"episode_id"`
	State     string                `json:"state"`
	Castaways []castawayPointsDTO   `json:"castaways"`
	Picks     []weeklyPickPointsDTO `json:"picks"`
}

func scoringPreviewFromDomain(preview usecase.ScoringPreview) scoringPreviewDTO {
	out := scoringPreviewDTO{
		EpisodeID: preview.EpisodeID,
		State:     string(preview.State),
		Castaways: make([]castawayPointsDTO, 0, len(preview.Castaways)),
		Picks:     make([]weeklyPickPointsDTO, 0, len(preview.Picks)),
	}
	for _, item := range preview.Castaways {
		out.Castaways = append(out.Castaways, castawayPointsDTO{CastawayID: item.CastawayID, Name: item.Name, Points: item.Points})
	}
	for _, item := range preview.Picks {
		out.Picks = append(out.Picks, weeklyPickPointsDTO{
			PickID:     item.PickID,
			LeagueID:   item.LeagueID,
			UserID:     item.UserID,
			CastawayID: item.CastawayID,
			Points:     item.Points,
		})
	}
	return out
}

type finalizeResultDTO struct {
	EpisodeID        string              `json:"episode_id"`
	StandingsUpdated bool                `json:"standings_updated"`
	PicksUpdated     int                 `json:"picks_updated"`
	MembersUpdated   int                 `json:"members_updated"`
	NewlyEliminated  []castawayDTO       `json:"newly_eliminated"`
	Winner           *castawayDTO        `json:"winner,omitempty"`
	CastawayPoints   []castawayPointsDTO `json:"castaway_points"`
	ScoredAt         time.Time           `json:"scored_at"`
}

func finalizeResultFromDomain(result usecase.FinalizeResult) finalizeResultDTO {
	out := finalizeResultDTO{
		EpisodeID:        result.EpisodeID,
		StandingsUpdated: result.StandingsUpdated,
		PicksUpdated:     result.PicksUpdated,
		MembersUpdated:   result.MembersUpdated,
		NewlyEliminated:  castawaysFromDomain(result.NewlyEliminated),
		CastawayPoints:   castawayPointsFromDomain(result.CastawayPoints),
		ScoredAt:         result.ScoredAt,
	}
	if result.Winner != nil {
		winner := castawayFromDomain(*result.Winner)
		out.Winner = &winner
	}
	return out
}

func castawayPointsFromDomain(items []scoring.CastawayPoints) []castawayPointsDTO {
	out := make([]castawayPointsDTO, 0, len(items))
	for _, item := range items {
		out = append(out, castawayPointsDTO{CastawayID: item.CastawayID, Points: item.Points})
	}
	return out
}

type auditEntryDTO struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	Before     any       `json:"before"`
	After      any       `json:"after"`
	CreatedAt  time.Time `json:"created_at"`
}

func auditEntriesFromDomain(entries []audit.Entry) []auditEntryDTO {
	out := make([]auditEntryDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, auditEntryDTO{
			ID:         entry.ID,
			ActorID:    entry.ActorID,
			Action:     entry.Action,
			TargetType: entry.TargetType,
			TargetID:   entry.TargetID,
			Before:     decodeSnapshot(entry.Before),
			After:      decodeSnapshot(entry.After),
			CreatedAt:  entry.CreatedAt,
		})
	}
	return out
}

func decodeSnapshot(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var out any
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return string(raw)
	}
	return out
}

type jobStatsDTO struct {
	TotalRuns     int        `json:"total_runs"`
	Successes     int        `json:"successes"`
	Failures      int        `json:"failures"`
	Skipped       int        `json:"skipped"`
	SuccessRate   float64    `json:"success_rate"`
	AvgDurationMS int64      `json:"avg_duration_ms"`
	LastOutcome   string     `json:"last_outcome,omitempty"`
	LastStartedAt *time.Time `json:"last_started_at,omitempty"`
}

type jobInfoDTO struct {
	Name      string      `json:"name"`
	Schedule  string      `json:"schedule"`
	Running   bool        `json:"running"`
	NextRunAt *time.Time  `json:"next_run_at,omitempty"`
	Stats     jobStatsDTO `json:"stats"`
}

func jobInfosFromDomain(items []usecase.JobInfo) []jobInfoDTO {
	out := make([]jobInfoDTO, 0, len(items))
	for _, item := range items {
		out = append(out, jobInfoDTO{
			Name:      item.Name,
			Schedule:  item.Schedule,
			Running:   item.Running,
			NextRunAt: item.NextRunAt,
			Stats: jobStatsDTO{
				TotalRuns:     item.Stats.TotalRuns,
				Successes:     item.Stats.Successes,
				Failures:      item.Stats.Failures,
				Skipped:       item.Stats.Skipped,
				SuccessRate:   item.Stats.SuccessRate,
				AvgDurationMS: item.Stats.AvgDuration.Milliseconds(),
				LastOutcome:   string(item.Stats.LastOutcome),
				LastStartedAt: item.Stats.LastStartedAt,
			},
		})
	}
	return out
}

type jobExecutionDTO struct {
	ID         string    `json:"id"`
	JobName    string    `json:"job_name"`
	Trigger    string    `json:"trigger"`
	Outcome    string    `json:"outcome"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
	Summary    string    `json:"summary"`
	Errors     []string  `json:"errors"`
	TraceID    string    `json:"trace_id,omitempty"`
}

func jobExecutionFromDomain(item jobscheduler.Execution) jobExecutionDTO {
	errs := item.Errors
	if errs == nil {
		errs = []string{}
	}
	return jobExecutionDTO{
		ID:         item.ID,
		JobName:    item.JobName,
		Trigger:    string(item.Trigger),
		Outcome:    string(item.Outcome),
		StartedAt:  item.StartedAt,
		FinishedAt: item.FinishedAt,
		DurationMS: item.Duration().Milliseconds(),
		Summary:    item.Summary,
		Errors:     errs,
		TraceID:    item.TraceID,
	}
}

func jobExecutionsFromDomain(items []jobscheduler.Execution) []jobExecutionDTO {
	out := make([]jobExecutionDTO, 0, len(items))
	for _, item := range items {
		out = append(out, jobExecutionFromDomain(item))
	}
	return out
}
