package postgres

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/castaway-league/internal/domain/jobscheduler"
	qb "github.com/riskibarqy/castaway-league/internal/platform/querybuilder"
)

type JobExecutionRepository struct {
	db *sqlx.DB
}

func NewJobExecutionRepository(db *sqlx.DB) *JobExecutionRepository {
	return &JobExecutionRepository{db: db}
}

func (r *JobExecutionRepository) Insert(ctx context.Context, execution jobscheduler.Execution) error {
	errs := execution.Errors
	if errs == nil {
		errs = []string{}
	}
	rawErrors, err := sonic.MarshalString(errs)
	if err != nil {
		return fmt.Errorf("encode job execution errors: %w", err)
	}
	query, args, err := qb.InsertModel("job_executions", jobExecutionTableModel{
		ID:         execution.ID,
		JobName:    execution.JobName,
		Trigger:    string(execution.Trigger),
		StartedAt:  execution.StartedAt.UTC(),
		FinishedAt: execution.FinishedAt.UTC(),
		Outcome:    string(execution.Outcome),
		Summary:    execution.Summary,
		Errors:     rawErrors,
		TraceID:    optionalString(execution.TraceID),
	}, "")
	if err != nil {
		return fmt.Errorf("build insert job execution query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return wrapStoreError(err, "insert job execution")
	}
	return nil
}

func (r *JobExecutionRepository) ListByJob(ctx context.Context, jobName string) ([]jobscheduler.Execution, error) {
	return r.List(ctx, jobscheduler.HistoryFilter{JobName: jobName})
}

func (r *JobExecutionRepository) List(ctx context.Context, filter jobscheduler.HistoryFilter) ([]jobscheduler.Execution, error) {
	builder := qb.Select("*").From("job_executions").OrderBy("started_at DESC", "id DESC")
	if filter.JobName != "" {
		builder = builder.Where(qb.Eq("job_name", filter.JobName))
	}
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select job executions query: %w", err)
	}

	var rows []jobExecutionTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrapStoreError(err, "select job executions")
	}
	out := make([]jobscheduler.Execution, 0, len(rows))
	for _, row := range rows {
		var errs []string
		if row.Errors != "" {
			if err := sonic.UnmarshalString(row.Errors, &errs); err != nil {
				return nil, fmt.Errorf("decode job execution errors: %w", err)
			}
		}
		out = append(out, jobscheduler.Execution{
			ID:         row.ID,
			JobName:    row.JobName,
			Trigger:    jobscheduler.Trigger(row.Trigger),
			StartedAt:  row.StartedAt.UTC(),
			FinishedAt: row.FinishedAt.UTC(),
			Outcome:    jobscheduler.Outcome(row.Outcome),
			Summary:    row.Summary,
			Errors:     errs,
			TraceID:    stringValue(row.TraceID),
		})
	}
	return out, nil
}
