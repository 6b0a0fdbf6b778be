package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/castaway-league/external/anubis"
	"github.com/riskibarqy/castaway-league/external/mailer"
	"github.com/riskibarqy/castaway-league/internal/config"
	"github.com/riskibarqy/castaway-league/internal/domain/audit"
	"github.com/riskibarqy/castaway-league/internal/domain/castaway"
	"github.com/riskibarqy/castaway-league/internal/domain/draft"
	"github.com/riskibarqy/castaway-league/internal/domain/episode"
	"github.com/riskibarqy/castaway-league/internal/domain/jobscheduler"
	"github.com/riskibarqy/castaway-league/internal/domain/league"
	"github.com/riskibarqy/castaway-league/internal/domain/notification"
	"github.com/riskibarqy/castaway-league/internal/domain/scoring"
	cachedrepo "github.com/riskibarqy/castaway-league/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/castaway-league/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/castaway-league/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/castaway-league/internal/interfaces/httpapi"
	"github.com/riskibarqy/castaway-league/internal/platform/cache"
	idgen "github.com/riskibarqy/castaway-league/internal/platform/id"
	"github.com/riskibarqy/castaway-league/internal/platform/logging"
	"github.com/riskibarqy/castaway-league/internal/platform/resilience"
	"github.com/riskibarqy/castaway-league/internal/usecase"
)

type repositories struct {
	leagues       league.Repository
	drafts        draft.Repository
	audit         audit.Repository
	castaways     castaway.Repository
	episodes      episode.Repository
	scoring       scoring.Repository
	notifications notification.Repository
	executions    jobscheduler.Repository
	locker        jobscheduler.Locker
}

// App owns every long-lived component of the API process.
type App struct {
	cfg       config.Config
	logger    *logging.Logger
	server    *http.Server
	scheduler *usecase.JobScheduler
	db        *sqlx.DB
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	a := &App{cfg: cfg, logger: logger}
	repos, err := a.buildRepositories(ctx)
	if err != nil {
		return nil, err
	}

	ids := idgen.NewUUIDGenerator()
	processCache := cache.NewStore(cfg.ScoringRulesCacheTTL)
	castaways := cachedrepo.NewCastawayRepository(repos.castaways, processCache)
	rules := usecase.NewScoringRuleCatalog(repos.scoring, processCache)

	draftService := usecase.NewDraftService(repos.leagues, repos.drafts, repos.audit, ids, logger.Component("draft"))
	autoDraftService := usecase.NewAutoDraftService(repos.leagues, repos.drafts, draftService,
		usecase.AutoDraftConfig{Workers: cfg.AutoDraftWorkers}, logger.Component("auto_draft"))
	sessionService := usecase.NewScoringSessionService(repos.episodes, castaways, repos.scoring, repos.audit, rules, ids, logger.Component("scoring"))
	finalizer := usecase.NewScoringFinalizerService(repos.episodes, repos.scoring, rules, ids, logger.Component("scoring"))
	finalizer.InvalidateOnFinalize(castaways)
	pickLocks := usecase.NewPickLockService(repos.episodes, logger.Component("pick_lock"))

	sender, err := a.buildSender()
	if err != nil {
		return nil, err
	}
	dispatcher := usecase.NewNotificationDispatcher(repos.notifications, sender, usecase.OutboxConfig{
		BatchSize:      cfg.OutboxBatchSize,
		MaxAttempts:    cfg.OutboxMaxAttempts,
		RetryBaseDelay: cfg.OutboxRetryBaseDelay,
		Workers:        cfg.OutboxWorkers,
	}, logger.Component("outbox"))

	a.scheduler = usecase.NewJobScheduler(repos.executions, repos.locker, ids, logger)
	if err := a.registerJobs(pickLocks, autoDraftService, dispatcher); err != nil {
		return nil, err
	}

	verifier := anubis.NewClient(&http.Client{Timeout: cfg.AnubisTimeout}, anubis.Config{
		BaseURL:        cfg.AnubisBaseURL,
		IntrospectPath: cfg.AnubisIntrospectURL,
		AdminKey:       cfg.AnubisAdminKey,
		CacheTTL:       cfg.AnubisCacheTTL,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.AnubisCircuitEnabled,
			FailureThreshold: cfg.AnubisCircuitFailureCount,
			OpenTimeout:      cfg.AnubisCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.AnubisCircuitHalfOpenMaxReq,
		},
	}, logger)

	handler := httpapi.NewHandler(draftService, sessionService, finalizer, a.scheduler,
		map[string]usecase.CacheInvalidator{
			"scoring_rules": rules,
			"castaways":     castaways,
		}, logger)
	router := httpapi.NewRouter(handler, verifier, logger, cfg.SwaggerEnabled, cfg.CORSAllowedOrigins, cfg.InternalJobToken)

	a.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return a, nil
}

func (a *App) buildRepositories(ctx context.Context) (repositories, error) {
	if !a.cfg.DBEnabled {
		a.logger.Warn("database disabled, using seeded in-memory store", "reason", "DB_ENABLED=false")
		store := memory.NewSeededStore(time.Now().UTC())
		return repositories{
			leagues:       memory.NewLeagueRepository(store),
			drafts:        memory.NewDraftRepository(store),
			audit:         memory.NewAuditRepository(store),
			castaways:     memory.NewCastawayRepository(store),
			episodes:      memory.NewEpisodeRepository(store),
			scoring:       memory.NewScoringRepository(store),
			notifications: memory.NewNotificationRepository(store),
			executions:    memory.NewJobExecutionRepository(store),
		}, nil
	}

	db, err := openDatabase(ctx, a.cfg)
	if err != nil {
		return repositories{}, err
	}
	a.db = db
	if a.cfg.DBSeedEnabled {
		if err := postgres.BootstrapSeed(ctx, db, time.Now().UTC()); err != nil {
			_ = db.Close()
			return repositories{}, fmt.Errorf("bootstrap seed: %w", err)
		}
	}

	repos := repositories{
		leagues:       postgres.NewLeagueRepository(db),
		drafts:        postgres.NewDraftRepository(db),
		audit:         postgres.NewAuditRepository(db),
		castaways:     postgres.NewCastawayRepository(db),
		episodes:      postgres.NewEpisodeRepository(db),
		scoring:       postgres.NewScoringRepository(db),
		notifications: postgres.NewNotificationRepository(db),
		executions:    postgres.NewJobExecutionRepository(db),
	}
	if a.cfg.JobSchedulerAdvisoryLock {
		repos.locker = postgres.NewAdvisoryLocker(db, a.logger)
	}
	return repos, nil
}

func (a *App) buildSender() (usecase.NotificationSender, error) {
	if a.cfg.MailerBaseURL == "" {
		a.logger.Info("mailer disabled, notifications go to the log", "reason", "MAILER_BASE_URL empty")
		return mailer.NewLogSender(a.logger), nil
	}
	client, err := mailer.NewClient(mailer.Config{
		BaseURL: a.cfg.MailerBaseURL,
		APIKey:  a.cfg.MailerAPIKey,
		Timeout: a.cfg.MailerTimeout,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          a.cfg.MailerCircuitEnabled,
			FailureThreshold: a.cfg.MailerCircuitFailureCount,
			OpenTimeout:      a.cfg.MailerCircuitOpenTimeout,
			HalfOpenMaxReq:   a.cfg.MailerCircuitHalfOpenMaxReq,
		},
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("build mailer: %w", err)
	}
	return client, nil
}

func (a *App) registerJobs(
	pickLocks *usecase.PickLockService,
	autoDraft *usecase.AutoDraftService,
	dispatcher *usecase.NotificationDispatcher,
) error {
	defs := []usecase.JobDefinition{
		{
			Name:     usecase.JobLockPicks,
			Schedule: a.cfg.JobLockPicksSchedule,
			Timeout:  a.cfg.JobTimeout,
			Handler: func(ctx context.Context) (usecase.JobReport, error) {
				summary, err := pickLocks.LockDuePicks(ctx)
				return usecase.JobReport{
					Summary: fmt.Sprintf("episodes_locked=%d", len(summary.Locked)),
					Errors:  summary.Errors,
				}, err
			},
		},
		{
			Name:     usecase.JobAutoCompleteDrafts,
			Schedule: a.cfg.JobAutoDraftSchedule,
			Timeout:  a.cfg.JobTimeout,
			Handler:  autoDraft.JobHandler(),
		},
		{
			Name:     usecase.JobDispatchNotifications,
			Schedule: a.cfg.JobDispatchNotificationsSchedule,
			Timeout:  a.cfg.JobTimeout,
			Handler: func(ctx context.Context) (usecase.JobReport, error) {
				summary, err := dispatcher.DispatchDue(ctx)
				return usecase.JobReport{
					Summary: fmt.Sprintf("claimed=%d sent=%d retried=%d failed=%d",
						summary.Claimed, summary.Sent, summary.Retried, summary.Failed),
				}, err
			},
		},
	}
	for _, def := range defs {
		if err := a.scheduler.Register(def); err != nil {
			return fmt.Errorf("register job %s: %w", def.Name, err)
		}
	}
	return nil
}

func (a *App) Server() *http.Server {
	return a.server
}

// Start launches the job scheduler loops when enabled. Manual runs through
// the admin API work either way.
func (a *App) Start(ctx context.Context) error {
	if !a.cfg.JobSchedulerEnabled {
		a.logger.Info("job scheduler disabled", "reason", "JOB_SCHEDULER_ENABLED=false")
		return nil
	}
	return a.scheduler.Start(ctx)
}

func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	a.scheduler.Stop()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
