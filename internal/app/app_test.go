package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/riskibarqy/castaway-league/internal/config"
	"github.com/riskibarqy/castaway-league/internal/platform/logging"
)

func memoryConfig() config.Config {
	return config.Config{
		AppEnv:                           config.EnvDev,
		HTTPAddr:                         ":0",
		CORSAllowedOrigins:               []string{"*"},
		AnubisBaseURL:                    "http://127.0.0.1:1",
		AnubisTimeout:                    time.Second,
		JobLockPicksSchedule:             "1m",
		JobAutoDraftSchedule:             "5m",
		JobDispatchNotificationsSchedule: "30s",
		JobTimeout:                       time.Minute,
		AutoDraftWorkers:                 2,
		OutboxBatchSize:                  10,
		OutboxMaxAttempts:                3,
		OutboxRetryBaseDelay:             time.Second,
		OutboxWorkers:                    1,
		ScoringRulesCacheTTL:             time.Minute,
		InternalJobToken:                 "job-token",
	}
}

func TestNew_MemoryBackedServerServesHealthz(t *testing.T) {
	t.Parallel()

	a, err := New(t.Context(), memoryConfig(), logging.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(t.Context()) })

	rec := httptest.NewRecorder()
	a.Server().Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /healthz, got %d", rec.Code)
	}
}

func TestNew_InternalJobRouteRunsAgainstSeededStore(t *testing.T) {
	t.Parallel()

	a, err := New(t.Context(), memoryConfig(), logging.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(t.Context()) })

	req := httptest.NewRequest(http.MethodPost, "/v1/draft/finalize-all", nil)
	req.Header.Set("X-Internal-Job-Token", "job-token")
	rec := httptest.NewRecorder()
	a.Server().Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestNew_RejectsInvalidJobSchedule(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig()
	cfg.JobAutoDraftSchedule = "every now and then"
	if _, err := New(t.Context(), cfg, logging.NewNop()); err == nil {
		t.Fatalf("expected error for invalid schedule")
	}
}

func TestNew_RejectsEmptyAddr(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig()
	cfg.HTTPAddr = " "
	if _, err := New(t.Context(), cfg, logging.NewNop()); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

func TestStart_SchedulerDisabledIsNoop(t *testing.T) {
	t.Parallel()

	a, err := New(t.Context(), memoryConfig(), logging.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if err := a.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.Shutdown(t.Context()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
