package httpapi

import (
	"net/http"
	"strings"

	"github.com/riskibarqy/castaway-league/internal/usecase"
)

func (h *Handler) SubmitPick(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SubmitPick")
	defer span.End()

	principal, err := requirePrincipal(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var req submitPickRequest
	if err := h.decodeBody(ctx, w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	token := strings.TrimSpace(req.IdempotencyToken)
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	}

	leagueID := r.PathValue("leagueID")
	receipt, err := h.draftService.SubmitPick(ctx, usecase.SubmitPickInput{
		LeagueID:         leagueID,
		UserID:           principal.UserID,
		CastawayID:       req.CastawayID,
		IdempotencyToken: token,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "submit pick failed", "league_id", leagueID, "user_id", principal.UserID, "castaway_id", req.CastawayID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, pickReceiptFromDomain(receipt))
}

func (h *Handler) SetDraftOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SetDraftOrder")
	defer span.End()

	principal, err := requirePrincipal(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var req setDraftOrderRequest
	if err := h.decodeBody(ctx, w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	leagueID := r.PathValue("leagueID")
	updated, err := h.draftService.SetDraftOrder(ctx, usecase.SetDraftOrderInput{
		LeagueID:  leagueID,
		Actor:     principal,
		Order:     req.Order,
		Randomize: req.Randomize,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "set draft order failed", "league_id", leagueID, "actor_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, leagueDraftFromDomain(updated))
}

func (h *Handler) StartDraft(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.StartDraft")
	defer span.End()

	principal, err := requirePrincipal(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	leagueID := r.PathValue("leagueID")
	started, err := h.draftService.StartDraft(ctx, leagueID, principal)
	if err != nil {
		h.logger.WarnContext(ctx, "start draft failed", "league_id", leagueID, "actor_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, leagueDraftFromDomain(started))
}

func (h *Handler) GetDraftState(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetDraftState")
	defer span.End()

	state, err := h.draftService.GetDraftState(ctx, r.PathValue("leagueID"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, draftStateFromDomain(state))
}

func (h *Handler) FinalizeAllDrafts(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.FinalizeAllDrafts")
	defer span.End()

	run, err := h.scheduler.Trigger(ctx, usecase.JobAutoCompleteDrafts)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	summary, _ := run.Report.Result.(usecase.AutoDraftSummary)
	if run.Err != nil && summary.LeaguesConsidered == 0 {
		h.logger.WarnContext(ctx, "finalize all drafts failed", "execution_id", run.Execution.ID, "error", run.Err)
		writeError(ctx, w, run.Err)
		return
	}
	if run.Err != nil {
		// Per-league failures are reported in the summary.
		h.logger.WarnContext(ctx, "finalize all drafts partially failed",
			"execution_id", run.Execution.ID,
			"errors", len(summary.Errors),
			"error", run.Err,
		)
	}

	writeSuccess(ctx, w, http.StatusOK, autoDraftRunFromDomain(run.Execution, summary))
}
