package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/castaway-league/internal/domain/jobscheduler"
	idgen "github.com/riskibarqy/castaway-league/internal/platform/id"
	"github.com/riskibarqy/castaway-league/internal/platform/logging"
	"github.com/riskibarqy/castaway-league/internal/platform/resilience"
	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel/trace"
)

const (
	JobLockPicks             = "lock-picks"
	JobAutoCompleteDrafts    = "auto-complete-drafts"
	JobDispatchNotifications = "dispatch-notifications"
)

const defaultJobTimeout = 5 * time.Minute

// JobReport is what a handler returns. Result carries the handler's typed
// summary back to in-process callers and is not persisted.
type JobReport struct {
	Summary string
	Errors  []string
	Result  any
}

// JobRun is the outcome of a manual trigger. Err is the handler error, nil
// for successful and skipped runs.
type JobRun struct {
	Execution jobscheduler.Execution
	Report    JobReport
	Err       error
}

type JobHandler func(ctx context.Context) (JobReport, error)

// JobDefinition names a unit of background work. Schedule accepts a Go
// duration ("30s"), a cron descriptor ("@every 1m", "@hourly") or a
// standard five-field cron expression.
type JobDefinition struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Handler  JobHandler
}

type JobInfo struct {
	Name      string
	Schedule  string
	Running   bool
	NextRunAt *time.Time
	Stats     jobscheduler.Stats
}

type registeredJob struct {
	def      JobDefinition
	schedule cron.Schedule

	mu      sync.Mutex
	nextRun time.Time
}

func (j *registeredJob) setNext(at time.Time) {
	j.mu.Lock()
	j.nextRun = at
	j.mu.Unlock()
}

func (j *registeredJob) next() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.nextRun
}

// intervalSchedule keeps sub-second precision that cron.Every rounds away.
type intervalSchedule time.Duration

func (s intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(time.Duration(s))
}

func parseJobSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: schedule is required", ErrInvalidInput)
	}
	if d, err := time.ParseDuration(expr); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidInput, expr)
		}
		return intervalSchedule(d), nil
	}
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid schedule %q: %v", ErrInvalidInput, expr, err)
	}
	return schedule, nil
}

// JobScheduler runs named jobs on their schedules and on demand. Runs of the
// same job never overlap: a run that finds the job busy is recorded as
// skipped instead of waiting.
type JobScheduler struct {
	repo   jobscheduler.Repository
	locker jobscheduler.Locker
	idGen  idgen.Generator
	logger *logging.Logger
	now    func() time.Time

	guard resilience.Guard

	mu      sync.Mutex
	jobs    map[string]*registeredJob
	cancel  context.CancelFunc
	loops   *conc.WaitGroup
	started bool
}

// NewJobScheduler builds a scheduler. locker may be nil for single-instance
// deployments.
func NewJobScheduler(
	repo jobscheduler.Repository,
	locker jobscheduler.Locker,
	idGen idgen.Generator,
	logger *logging.Logger,
) *JobScheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &JobScheduler{
		repo:   repo,
		locker: locker,
		idGen:  idGen,
		logger: logger.Component("job_scheduler"),
		now:    time.Now,
		jobs:   make(map[string]*registeredJob),
	}
}

func (s *JobScheduler) Register(def JobDefinition) error {
	def.Name = strings.TrimSpace(def.Name)
	if def.Name == "" {
		return fmt.Errorf("%w: job name is required", ErrInvalidInput)
	}
	if def.Handler == nil {
		return fmt.Errorf("%w: job %s has no handler", ErrInvalidInput, def.Name)
	}
	if def.Timeout <= 0 {
		def.Timeout = defaultJobTimeout
	}
	schedule, err := parseJobSchedule(def.Schedule)
	if err != nil {
		return fmt.Errorf("register job %s: %w", def.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("%w: scheduler already started", ErrConflict)
	}
	if _, exists := s.jobs[def.Name]; exists {
		return fmt.Errorf("%w: job %s already registered", ErrConflict, def.Name)
	}
	s.jobs[def.Name] = &registeredJob{def: def, schedule: schedule}
	return nil
}

// Start launches one timer loop per registered job. Loops stop when ctx is
// cancelled or Stop is called.
func (s *JobScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("%w: scheduler already started", ErrConflict)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.loops = conc.NewWaitGroup()
	s.started = true

	for _, name := range s.sortedNamesLocked() {
		job := s.jobs[name]
		s.loops.Go(func() { s.loop(loopCtx, job) })
	}
	s.logger.InfoContext(ctx, "job scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop cancels the timer loops and waits for in-flight scheduled runs.
func (s *JobScheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	cancel, loops := s.cancel, s.loops
	s.started = false
	s.mu.Unlock()

	cancel()
	loops.Wait()
	s.logger.Info("job scheduler stopped")
}

func (s *JobScheduler) loop(ctx context.Context, job *registeredJob) {
	for {
		next := job.schedule.Next(s.now())
		job.setNext(next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			job.setNext(time.Time{})
			return
		case <-timer.C:
		}

		execution := s.execute(ctx, job, jobscheduler.TriggerScheduled).Execution
		if execution.Outcome == jobscheduler.OutcomeFailure {
			s.logger.WarnContext(ctx, "scheduled job failed, retrying next tick",
				"job", job.def.Name,
				"errors", execution.Errors,
			)
		}
	}
}

// RunNow executes a job synchronously outside its schedule. The run is
// detached from ctx cancellation so a dropped HTTP request cannot abort it
// half way.
func (s *JobScheduler) RunNow(ctx context.Context, name string) (jobscheduler.Execution, error) {
	run, err := s.Trigger(ctx, name)
	if err != nil {
		return jobscheduler.Execution{}, err
	}
	return run.Execution, nil
}

// Trigger is RunNow for callers that need the handler's report and error,
// such as endpoints that expose a job's typed summary.
func (s *JobScheduler) Trigger(ctx context.Context, name string) (JobRun, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.JobScheduler.Trigger")
	defer span.End()

	job, err := s.lookup(name)
	if err != nil {
		return JobRun{}, err
	}
	return s.execute(context.WithoutCancel(ctx), job, jobscheduler.TriggerManual), nil
}

func (s *JobScheduler) execute(ctx context.Context, job *registeredJob, trigger jobscheduler.Trigger) JobRun {
	startedAt := s.now().UTC()
	execution := jobscheduler.Execution{
		JobName:   job.def.Name,
		Trigger:   trigger,
		StartedAt: startedAt,
	}
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.HasTraceID() {
		execution.TraceID = spanCtx.TraceID().String()
	}

	release, ok := s.guard.TryAcquire(job.def.Name)
	if !ok {
		return JobRun{Execution: s.record(ctx, s.skipped(execution, "job already running in this process"))}
	}
	defer release()

	if s.locker != nil {
		unlock, acquired, err := s.locker.TryLock(ctx, job.def.Name)
		if err != nil {
			execution.Outcome = jobscheduler.OutcomeFailure
			execution.Errors = []string{fmt.Sprintf("acquire job lock: %v", err)}
			execution.FinishedAt = s.now().UTC()
			return JobRun{Execution: s.record(ctx, execution), Err: err}
		}
		if !acquired {
			return JobRun{Execution: s.record(ctx, s.skipped(execution, "job already running on another instance"))}
		}
		defer unlock()
	}

	runCtx, cancel := context.WithTimeout(ctx, job.def.Timeout)
	defer cancel()

	var (
		report JobReport
		runErr error
		catch  panics.Catcher
	)
	catch.Try(func() {
		report, runErr = job.def.Handler(runCtx)
	})
	if recovered := catch.Recovered(); recovered != nil {
		runErr = recovered.AsError()
		s.logger.ErrorContext(ctx, "job panicked", "job", job.def.Name, "panic", recovered.String())
	}

	execution.FinishedAt = s.now().UTC()
	execution.Summary = report.Summary
	execution.Errors = append(execution.Errors, report.Errors...)
	if runErr != nil {
		execution.Outcome = jobscheduler.OutcomeFailure
		if errors.Is(runErr, context.DeadlineExceeded) {
			runErr = fmt.Errorf("job exceeded timeout %s: %w", job.def.Timeout, runErr)
		}
		execution.Errors = append(execution.Errors, runErr.Error())
	} else {
		execution.Outcome = jobscheduler.OutcomeSuccess
	}

	s.logger.InfoContext(ctx, "job finished",
		"job", job.def.Name,
		"trigger", trigger,
		"outcome", execution.Outcome,
		"duration", execution.Duration(),
	)
	return JobRun{Execution: s.record(ctx, execution), Report: report, Err: runErr}
}

func (s *JobScheduler) skipped(execution jobscheduler.Execution, reason string) jobscheduler.Execution {
	execution.Outcome = jobscheduler.OutcomeSkipped
	execution.Summary = reason
	execution.FinishedAt = s.now().UTC()
	return execution
}

func (s *JobScheduler) record(ctx context.Context, execution jobscheduler.Execution) jobscheduler.Execution {
	executionID, err := s.idGen.NewID()
	if err != nil {
		s.logger.WarnContext(ctx, "generate job execution id failed", "job", execution.JobName, "error", err)
		return execution
	}
	execution.ID = executionID
	if err := s.repo.Insert(ctx, execution); err != nil {
		s.logger.WarnContext(ctx, "record job execution failed",
			"job", execution.JobName,
			"outcome", execution.Outcome,
			"error", err,
		)
	}
	return execution
}

func (s *JobScheduler) Stats(ctx context.Context, name string) (jobscheduler.Stats, error) {
	job, err := s.lookup(name)
	if err != nil {
		return jobscheduler.Stats{}, err
	}
	executions, err := s.repo.ListByJob(ctx, job.def.Name)
	if err != nil {
		return jobscheduler.Stats{}, fmt.Errorf("list job executions: %w", err)
	}
	return jobscheduler.ComputeStats(job.def.Name, executions), nil
}

func (s *JobScheduler) Jobs(ctx context.Context) ([]JobInfo, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.JobScheduler.Jobs")
	defer span.End()

	s.mu.Lock()
	names := s.sortedNamesLocked()
	jobs := make([]*registeredJob, 0, len(names))
	for _, name := range names {
		jobs = append(jobs, s.jobs[name])
	}
	s.mu.Unlock()

	out := make([]JobInfo, 0, len(jobs))
	for _, job := range jobs {
		executions, err := s.repo.ListByJob(ctx, job.def.Name)
		if err != nil {
			return nil, fmt.Errorf("list job executions: %w", err)
		}
		info := JobInfo{
			Name:     job.def.Name,
			Schedule: job.def.Schedule,
			Running:  s.guard.Held(job.def.Name),
			Stats:    jobscheduler.ComputeStats(job.def.Name, executions),
		}
		if next := job.next(); !next.IsZero() {
			info.NextRunAt = &next
		}
		out = append(out, info)
	}
	return out, nil
}

func (s *JobScheduler) History(ctx context.Context, filter jobscheduler.HistoryFilter) ([]jobscheduler.Execution, error) {
	filter.JobName = strings.TrimSpace(filter.JobName)
	if filter.JobName != "" {
		if _, err := s.lookup(filter.JobName); err != nil {
			return nil, err
		}
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 50
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list job history: %w", err)
	}
	return items, nil
}

func (s *JobScheduler) lookup(name string) (*registeredJob, error) {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: job=%s", ErrJobNotFound, name)
	}
	return job, nil
}

func (s *JobScheduler) sortedNamesLocked() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
