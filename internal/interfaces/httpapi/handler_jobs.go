package httpapi

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/riskibarqy/castaway-league/internal/domain/jobscheduler"
	"github.com/riskibarqy/castaway-league/internal/usecase"
)

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListJobs")
	defer span.End()

	jobs, err := h.scheduler.Jobs(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, jobInfosFromDomain(jobs))
}

func (h *Handler) ListJobHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListJobHistory")
	defer span.End()

	query := r.URL.Query()
	filter := jobscheduler.HistoryFilter{JobName: strings.TrimSpace(query.Get("job"))}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(ctx, w, fmt.Errorf("%w: limit must be a positive integer", usecase.ErrInvalidInput))
			return
		}
		filter.Limit = limit
	}

	items, err := h.scheduler.History(ctx, filter)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, jobExecutionsFromDomain(items))
}

func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunJob")
	defer span.End()

	name := r.PathValue("name")
	execution, err := h.scheduler.RunNow(ctx, name)
	if err != nil {
		h.logger.WarnContext(ctx, "run job failed", "job", name, "error", err)
		writeError(ctx, w, err)
		return
	}
	if execution.Outcome == jobscheduler.OutcomeFailure {
		h.logger.WarnContext(ctx, "manual job run failed", "job", name, "errors", execution.Errors)
	}

	writeSuccess(ctx, w, http.StatusOK, jobExecutionFromDomain(execution))
}

func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.InvalidateCache")
	defer span.End()

	var req invalidateCacheRequest
	if err := h.decodeBody(ctx, w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	target := strings.TrimSpace(req.Cache)
	if target != "" {
		if _, ok := h.caches[target]; !ok {
			writeError(ctx, w, fmt.Errorf("%w: unknown cache %q", usecase.ErrInvalidInput, target))
			return
		}
	}

	names := make([]string, 0, len(h.caches))
	for name := range h.caches {
		if target == "" || name == target {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	dropped := make(map[string]int, len(names))
	for _, name := range names {
		dropped[name] = h.caches[name].Invalidate(ctx)
	}
	h.logger.InfoContext(ctx, "cache invalidated", "actor_id", actorID(ctx), "caches", names)

	writeSuccess(ctx, w, http.StatusOK, map[string]any{"invalidated": dropped})
}
