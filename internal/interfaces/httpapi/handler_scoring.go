package httpapi

import (
	"net/http"

	"github.com/riskibarqy/castaway-league/internal/usecase"
)

func (h *Handler) StartScoring(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.StartScoring")
	defer span.End()

	episodeID := r.PathValue("episodeID")
	view, err := h.sessionService.Start(ctx, episodeID, actorID(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "start scoring failed", "episode_id", episodeID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, sessionFromDomain(view))
}

func (h *Handler) SaveScores(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SaveScores")
	defer span.End()

	var req saveScoresRequest
	if err := h.decodeBody(ctx, w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	scores := make([]usecase.ScoreInput, 0, len(req.Scores))
	for _, item := range req.Scores {
		scores = append(scores, usecase.ScoreInput{
			CastawayID: item.CastawayID,
			RuleID:     item.RuleID,
			Quantity:   item.Quantity,
		})
	}

	episodeID := r.PathValue("episodeID")
	view, err := h.sessionService.Save(ctx, usecase.SaveScoresInput{
		EpisodeID: episodeID,
		ActorID:   actorID(ctx),
		Scores:    scores,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "save scores failed", "episode_id", episodeID, "rows", len(scores), "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, sessionFromDomain(view))
}

func (h *Handler) FinalizeScoring(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.FinalizeScoring")
	defer span.End()

	var req finalizeRequest
	if err := h.decodeBody(ctx, w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	episodeID := r.PathValue("episodeID")
	result, err := h.finalizer.Finalize(ctx, usecase.FinalizeInput{
		EpisodeID:             episodeID,
		ActorID:               actorID(ctx),
		EliminatedCastawayIDs: req.EliminatedCastawayIDs,
		WinnerCastawayID:      req.WinnerCastawayID,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "finalize scoring failed", "episode_id", episodeID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, finalizeResultFromDomain(result))
}

func (h *Handler) GetScoringStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetScoringStatus")
	defer span.End()

	status, err := h.sessionService.Status(ctx, r.PathValue("episodeID"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, scoringStatusFromDomain(status))
}

func (h *Handler) PreviewScoring(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.PreviewScoring")
	defer span.End()

	preview, err := h.sessionService.Preview(ctx, r.PathValue("episodeID"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, scoringPreviewFromDomain(preview))
}

func (h *Handler) GetScoringAudit(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetScoringAudit")
	defer span.End()

	entries, err := h.sessionService.Audit(ctx, r.PathValue("episodeID"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, auditEntriesFromDomain(entries))
}
