package memory

import (
	"context"
	"slices"

	"github.com/riskibarqy/castaway-league/internal/domain/jobscheduler"
)

type JobExecutionRepository struct {
	store *Store
}

func NewJobExecutionRepository(store *Store) *JobExecutionRepository {
	return &JobExecutionRepository{store: store}
}

func (r *JobExecutionRepository) Insert(_ context.Context, execution jobscheduler.Execution) error {
	execution.Errors = slices.Clone(execution.Errors)
	return r.store.update(func(t *tables) error {
		t.executions = append(t.executions, execution)
		return nil
	})
}

func (r *JobExecutionRepository) ListByJob(ctx context.Context, jobName string) ([]jobscheduler.Execution, error) {
	return r.List(ctx, jobscheduler.HistoryFilter{JobName: jobName})
}

func (r *JobExecutionRepository) List(_ context.Context, filter jobscheduler.HistoryFilter) ([]jobscheduler.Execution, error) {
	out := make([]jobscheduler.Execution, 0)
	r.store.view(func(t *tables) {
		for i := len(t.executions) - 1; i >= 0; i-- {
			item := t.executions[i]
			if filter.JobName != "" && item.JobName != filter.JobName {
				continue
			}
			out = append(out, item)
			if filter.Limit > 0 && len(out) == filter.Limit {
				break
			}
		}
	})
	return out, nil
}
