package jobs

import (
	"context"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/pkg/logger"
)

// Summarizer recomputes the strategy summary from stored results
type Summarizer interface {
	Summarize(ctx context.Context) ([]contracts.StrategyPerformance, int, error)
}

// SummaryRefreshJob fills forward returns that became available since the
// last run and rewrites the summary
type SummaryRefreshJob struct {
	summarizer Summarizer
	logger     *logger.Logger
}

// NewSummaryRefreshJob creates a new summary refresh job
func NewSummaryRefreshJob(s Summarizer, log *logger.Logger) *SummaryRefreshJob {
	return &SummaryRefreshJob{
		summarizer: s,
		logger:     log,
	}
}

// Name returns the job name
func (j *SummaryRefreshJob) Name() string {
	return "summary_refresh"
}

// Schedule returns the cron schedule (weekdays 20:00)
func (j *SummaryRefreshJob) Schedule() string {
	return "0 0 20 * * MON-FRI"
}

// Run executes the refresh
func (j *SummaryRefreshJob) Run(ctx context.Context) error {
	perf, filled, err := j.summarizer.Summarize(ctx)
	if err != nil {
		return err
	}

	if filled > 0 {
		j.logger.WithFields(map[string]interface{}{
			"filled":     filled,
			"strategies": len(perf),
		}).Info("Summary refreshed")
	}
	return nil
}
