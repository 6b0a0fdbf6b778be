package jobscheduler

import "context"

type Repository interface {
	Insert(ctx context.Context, execution Execution) error
	ListByJob(ctx context.Context, jobName string) ([]Execution, error)
	// List returns executions newest first.
	List(ctx context.Context, filter HistoryFilter) ([]Execution, error)
}

// Locker is an optional cross-process lock keyed by job name.
type Locker interface {
	TryLock(ctx context.Context, jobName string) (unlock func(), acquired bool, err error)
}
