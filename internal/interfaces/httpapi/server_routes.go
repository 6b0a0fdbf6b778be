package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, swaggerEnabled bool) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	if !swaggerEnabled {
		return
	}

	mux.HandleFunc("GET /openapi.yaml", handler.OpenAPI)
	mux.HandleFunc("GET /docs", handler.SwaggerUI)
	mux.HandleFunc("GET /docs/", handler.SwaggerUI)
}

func registerDraftRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier) {
	mux.Handle("GET /v1/leagues/{leagueID}/draft", RequireAuth(verifier, http.HandlerFunc(handler.GetDraftState)))
	mux.Handle("POST /v1/leagues/{leagueID}/draft/pick", RequireAuth(verifier, http.HandlerFunc(handler.SubmitPick)))
	mux.Handle("POST /v1/leagues/{leagueID}/draft/set-order", RequireAuth(verifier, http.HandlerFunc(handler.SetDraftOrder)))
	mux.Handle("POST /v1/leagues/{leagueID}/draft/start", RequireAuth(verifier, http.HandlerFunc(handler.StartDraft)))
}

func registerScoringRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier) {
	mux.Handle("POST /v1/episodes/{episodeID}/scoring/start", RequireAdmin(verifier, http.HandlerFunc(handler.StartScoring)))
	mux.Handle("POST /v1/episodes/{episodeID}/scoring/save", RequireAdmin(verifier, http.HandlerFunc(handler.SaveScores)))
	mux.Handle("POST /v1/episodes/{episodeID}/scoring/finalize", RequireAdmin(verifier, http.HandlerFunc(handler.FinalizeScoring)))
	mux.Handle("GET /v1/episodes/{episodeID}/scoring/status", RequireAdmin(verifier, http.HandlerFunc(handler.GetScoringStatus)))
	mux.Handle("GET /v1/episodes/{episodeID}/scoring/preview", RequireAdmin(verifier, http.HandlerFunc(handler.PreviewScoring)))
	mux.Handle("GET /v1/episodes/{episodeID}/scoring/audit", RequireAdmin(verifier, http.HandlerFunc(handler.GetScoringAudit)))
}

func registerAdminRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier) {
	mux.Handle("GET /v1/admin/jobs", RequireAdmin(verifier, http.HandlerFunc(handler.ListJobs)))
	mux.Handle("GET /v1/admin/jobs/history", RequireAdmin(verifier, http.HandlerFunc(handler.ListJobHistory)))
	mux.Handle("POST /v1/admin/jobs/{name}/run", RequireAdmin(verifier, http.HandlerFunc(handler.RunJob)))
	mux.Handle("POST /v1/admin/cache/invalidate", RequireAdmin(verifier, http.HandlerFunc(handler.InvalidateCache)))
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier, internalJobToken string) {
	mux.Handle("POST /v1/draft/finalize-all", RequireJobTokenOrAdmin(internalJobToken, verifier, http.HandlerFunc(handler.FinalizeAllDrafts)))
}
