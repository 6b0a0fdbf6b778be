package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riskibarqy/castaway-league/internal/domain/jobscheduler"
	"github.com/riskibarqy/castaway-league/internal/infrastructure/repository/memory"
	jobschedulermock "github.com/riskibarqy/castaway-league/internal/mocks/domain/jobscheduler"
	"github.com/stretchr/testify/mock"
)

func newTestScheduler(t *testing.T, locker jobscheduler.Locker) (*JobScheduler, *memory.JobExecutionRepository) {
	t.Helper()

	repo := memory.NewJobExecutionRepository(memory.NewStore())
	scheduler := NewJobScheduler(repo, locker, &sequenceIDs{prefix: "exec"}, nil)
	return scheduler, repo
}

func TestJobScheduler_RunNow_SkipsWhileRunning(t *testing.T) {
	t.Parallel()

	scheduler, repo := newTestScheduler(t, nil)
	started := make(chan struct{})
	unblock := make(chan struct{})
	err := scheduler.Register(JobDefinition{
		Name:     JobLockPicks,
		Schedule: "1h",
		Handler: func(ctx context.Context) (JobReport, error) {
			close(started)
			<-unblock
			return JobReport{Summary: "locked 1 episode"}, nil
		},
	})
	if err != nil {
		t.Fatalf("register job: %v", err)
	}

	job, err := scheduler.lookup(JobLockPicks)
	if err != nil {
		t.Fatalf("lookup job: %v", err)
	}
	firstDone := make(chan jobscheduler.Execution, 1)
	go func() {
		firstDone <- scheduler.execute(t.Context(), job, jobscheduler.TriggerScheduled).Execution
	}()
	<-started

	manual, err := scheduler.RunNow(t.Context(), JobLockPicks)
	if err != nil {
		t.Fatalf("run now: %v", err)
	}
	if manual.Outcome != jobscheduler.OutcomeSkipped || manual.Trigger != jobscheduler.TriggerManual {
		t.Fatalf("expected skipped manual run, got %+v", manual)
	}

	close(unblock)
	first := <-firstDone
	if first.Outcome != jobscheduler.OutcomeSuccess || first.Summary != "locked 1 episode" {
		t.Fatalf("unexpected scheduled run %+v", first)
	}

	history, err := repo.ListByJob(t.Context(), JobLockPicks)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected both runs recorded, got %d", len(history))
	}
	stats := jobscheduler.ComputeStats(JobLockPicks, history)
	if stats.Skipped != 1 || stats.Successes != 1 || stats.SuccessRate != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestJobScheduler_RunNow_Outcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		handler     JobHandler
		wantOutcome jobscheduler.Outcome
		wantErrors  int
	}{
		{
			name: "success",
			handler: func(context.Context) (JobReport, error) {
				return JobReport{Summary: "ok"}, nil
			},
			wantOutcome: jobscheduler.OutcomeSuccess,
		},
		{
			name: "handler error",
			handler: func(context.Context) (JobReport, error) {
				return JobReport{Errors: []string{"league x: boom"}}, errors.New("1 league failed")
			},
			wantOutcome: jobscheduler.OutcomeFailure,
			wantErrors:  2,
		},
		{
			name: "panic",
			handler: func(context.Context) (JobReport, error) {
				panic("nil map write")
			},
			wantOutcome: jobscheduler.OutcomeFailure,
			wantErrors:  1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			scheduler, _ := newTestScheduler(t, nil)
			if err := scheduler.Register(JobDefinition{Name: "job", Schedule: "@every 1m", Handler: tc.handler}); err != nil {
				t.Fatalf("register: %v", err)
			}
			execution, err := scheduler.RunNow(t.Context(), "job")
			if err != nil {
				t.Fatalf("run now: %v", err)
			}
			if execution.Outcome != tc.wantOutcome || len(execution.Errors) != tc.wantErrors {
				t.Fatalf("unexpected execution %+v", execution)
			}
			if execution.ID == "" {
				t.Fatal("execution was not recorded")
			}
			if scheduler.guard.Held("job") {
				t.Fatal("single-flight lock leaked after run")
			}
		})
	}
}

func TestJobScheduler_RunNow_UnknownJob(t *testing.T) {
	t.Parallel()

	scheduler, _ := newTestScheduler(t, nil)
	if _, err := scheduler.RunNow(t.Context(), "nope"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if _, err := scheduler.History(t.Context(), jobscheduler.HistoryFilter{JobName: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from history, got %v", err)
	}
}

func TestJobScheduler_Register_Validation(t *testing.T) {
	t.Parallel()

	noop := func(context.Context) (JobReport, error) { return JobReport{}, nil }
	tests := []struct {
		name string
		def  JobDefinition
	}{
		{name: "missing name", def: JobDefinition{Schedule: "1m", Handler: noop}},
		{name: "missing handler", def: JobDefinition{Name: "a", Schedule: "1m"}},
		{name: "bad schedule", def: JobDefinition{Name: "a", Schedule: "every tuesday", Handler: noop}},
		{name: "negative interval", def: JobDefinition{Name: "a", Schedule: "-1m", Handler: noop}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			scheduler, _ := newTestScheduler(t, nil)
			if err := scheduler.Register(tc.def); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	scheduler, _ := newTestScheduler(t, nil)
	if err := scheduler.Register(JobDefinition{Name: "a", Schedule: "*/5 * * * *", Handler: noop}); err != nil {
		t.Fatalf("register cron job: %v", err)
	}
	if err := scheduler.Register(JobDefinition{Name: "a", Schedule: "1m", Handler: noop}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate name, got %v", err)
	}
}

func TestJobScheduler_StartRunsOnSchedule(t *testing.T) {
	t.Parallel()

	scheduler, repo := newTestScheduler(t, nil)
	var runs atomic.Int32
	if err := scheduler.Register(JobDefinition{
		Name:     JobDispatchNotifications,
		Schedule: "20ms",
		Handler: func(context.Context) (JobReport, error) {
			runs.Add(1)
			return JobReport{}, nil
		},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := scheduler.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	jobs, err := scheduler.Jobs(t.Context())
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].NextRunAt == nil {
		t.Fatalf("expected next run to be scheduled, got %+v", jobs)
	}
	scheduler.Stop()

	if runs.Load() < 2 {
		t.Fatalf("expected at least two scheduled runs, got %d", runs.Load())
	}
	history, _ := repo.List(t.Context(), jobscheduler.HistoryFilter{JobName: JobDispatchNotifications})
	for _, item := range history {
		if item.Trigger != jobscheduler.TriggerScheduled {
			t.Fatalf("unexpected trigger %s", item.Trigger)
		}
	}
}

func TestJobScheduler_DistributedLock(t *testing.T) {
	t.Parallel()

	ctxMatcher := mock.MatchedBy(func(context.Context) bool { return true })

	t.Run("held elsewhere", func(t *testing.T) {
		t.Parallel()

		locker := jobschedulermock.NewLocker(t)
		locker.On("TryLock", ctxMatcher, JobAutoCompleteDrafts).Return(nil, false, nil).Once()

		scheduler, _ := newTestScheduler(t, locker)
		var ran bool
		_ = scheduler.Register(JobDefinition{Name: JobAutoCompleteDrafts, Schedule: "1m", Handler: func(context.Context) (JobReport, error) {
			ran = true
			return JobReport{}, nil
		}})

		execution, err := scheduler.RunNow(t.Context(), JobAutoCompleteDrafts)
		if err != nil {
			t.Fatalf("run now: %v", err)
		}
		if execution.Outcome != jobscheduler.OutcomeSkipped || ran {
			t.Fatalf("expected skip without running, got %+v ran=%v", execution, ran)
		}
	})

	t.Run("acquired and released", func(t *testing.T) {
		t.Parallel()

		var unlocked atomic.Bool
		locker := jobschedulermock.NewLocker(t)
		locker.On("TryLock", ctxMatcher, JobAutoCompleteDrafts).
			Return(func() { unlocked.Store(true) }, true, nil).
			Once()

		scheduler, _ := newTestScheduler(t, locker)
		_ = scheduler.Register(JobDefinition{Name: JobAutoCompleteDrafts, Schedule: "1m", Handler: func(context.Context) (JobReport, error) {
			return JobReport{Summary: "done"}, nil
		}})

		execution, err := scheduler.RunNow(t.Context(), JobAutoCompleteDrafts)
		if err != nil {
			t.Fatalf("run now: %v", err)
		}
		if execution.Outcome != jobscheduler.OutcomeSuccess || !unlocked.Load() {
			t.Fatalf("expected success and unlock, got %+v unlocked=%v", execution, unlocked.Load())
		}
	})

	t.Run("lock error", func(t *testing.T) {
		t.Parallel()

		locker := jobschedulermock.NewLocker(t)
		locker.On("TryLock", ctxMatcher, JobAutoCompleteDrafts).Return(nil, false, errors.New("connection reset")).Once()

		scheduler, _ := newTestScheduler(t, locker)
		_ = scheduler.Register(JobDefinition{Name: JobAutoCompleteDrafts, Schedule: "1m", Handler: func(context.Context) (JobReport, error) {
			return JobReport{}, nil
		}})

		execution, _ := scheduler.RunNow(t.Context(), JobAutoCompleteDrafts)
		if execution.Outcome != jobscheduler.OutcomeFailure {
			t.Fatalf("expected failure when the lock store is down, got %+v", execution)
		}
	})
}

func TestJobScheduler_Trigger_ReturnsReportAndError(t *testing.T) {
	t.Parallel()

	scheduler, repo := newTestScheduler(t, nil)
	failure := errors.New("list leagues: connection refused")
	calls := 0
	err := scheduler.Register(JobDefinition{
		Name:     JobAutoCompleteDrafts,
		Schedule: "1h",
		Handler: func(context.Context) (JobReport, error) {
			calls++
			if calls == 1 {
				return JobReport{Summary: "leagues=2", Result: AutoDraftSummary{LeaguesFinalized: 2}}, nil
			}
			return JobReport{}, failure
		},
	})
	if err != nil {
		t.Fatalf("register job: %v", err)
	}

	run, err := scheduler.Trigger(t.Context(), JobAutoCompleteDrafts)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	summary, ok := run.Report.Result.(AutoDraftSummary)
	if !ok || summary.LeaguesFinalized != 2 || run.Err != nil {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.Execution.Outcome != jobscheduler.OutcomeSuccess || run.Execution.ID == "" {
		t.Fatalf("expected recorded success, got %+v", run.Execution)
	}

	run, err = scheduler.Trigger(t.Context(), JobAutoCompleteDrafts)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if !errors.Is(run.Err, failure) || run.Execution.Outcome != jobscheduler.OutcomeFailure {
		t.Fatalf("expected handler error to surface, got %+v", run)
	}

	if _, err := scheduler.Trigger(t.Context(), "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}

	history, err := repo.ListByJob(t.Context(), JobAutoCompleteDrafts)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected two recorded runs, got %d", len(history))
	}
}
