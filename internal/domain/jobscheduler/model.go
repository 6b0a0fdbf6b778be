package jobscheduler

import "time"

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeSkipped Outcome = "skipped"
)

type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// Execution is one append-only run record of a named job.
type Execution struct {
	ID         string
	JobName    string
	Trigger    Trigger
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    Outcome
	Summary    string
	Errors     []string
	TraceID    string
}

func (e Execution) Duration() time.Duration {
	if e.FinishedAt.Before(e.StartedAt) {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

type Stats struct {
	JobName       string
	TotalRuns     int
	Successes     int
	Failures      int
	Skipped       int
	SuccessRate   float64
	AvgDuration   time.Duration
	LastOutcome   Outcome
	LastStartedAt *time.Time
}

// ComputeStats folds executions of one job. Success rate and average
// duration only consider runs that actually executed.
func ComputeStats(jobName string, executions []Execution) Stats {
	stats := Stats{JobName: jobName}
	var total time.Duration
	for _, item := range executions {
		stats.TotalRuns++
		switch item.Outcome {
		case OutcomeSuccess:
			stats.Successes++
			total += item.Duration()
		case OutcomeFailure:
			stats.Failures++
			total += item.Duration()
		case OutcomeSkipped:
			stats.Skipped++
		}
		if stats.LastStartedAt == nil || item.StartedAt.After(*stats.LastStartedAt) {
			startedAt := item.StartedAt
			stats.LastStartedAt = &startedAt
			stats.LastOutcome = item.Outcome
		}
	}
	if ran := stats.Successes + stats.Failures; ran > 0 {
		stats.SuccessRate = float64(stats.Successes) / float64(ran)
		stats.AvgDuration = total / time.Duration(ran)
	}
	return stats
}

type HistoryFilter struct {
	JobName string
	Limit   int
}
