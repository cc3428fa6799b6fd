package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/pkg/logger"
)

// BatchRunner runs the selection/backtest pipeline over a date range
type BatchRunner interface {
	Run(ctx context.Context, from, to time.Time) (*contracts.RunSummary, error)
}

// DailyBatchJob processes the last few days after the market closes.
// The runner is expected to skip dates that are already stored, so a
// retry only redoes the dates that failed.
// ⭐ SSOT: 일일 배치 스케줄은 이 Job에서만
type DailyBatchJob struct {
	runner   BatchRunner
	schedule string
	lookback int
	now      func() time.Time
	logger   *logger.Logger
}

// NewDailyBatchJob creates a new daily batch job covering lookback days
func NewDailyBatchJob(runner BatchRunner, schedule string, lookback int, log *logger.Logger) *DailyBatchJob {
	if schedule == "" {
		schedule = "0 30 18 * * MON-FRI" // 평일 18:30 (장 마감 후 데이터 반영)
	}
	if lookback < 1 {
		lookback = 5
	}
	return &DailyBatchJob{
		runner:   runner,
		schedule: schedule,
		lookback: lookback,
		now:      time.Now,
		logger:   log,
	}
}

// Name returns the job name
func (j *DailyBatchJob) Name() string {
	return "daily_batch"
}

// Schedule returns the cron schedule
func (j *DailyBatchJob) Schedule() string {
	return j.schedule
}

// Run executes the batch for [today-lookback+1, today]
func (j *DailyBatchJob) Run(ctx context.Context) error {
	to := contracts.Day(j.now())
	from := to.AddDate(0, 0, -(j.lookback - 1))

	j.logger.WithFields(map[string]interface{}{
		"from": contracts.DateKey(from),
		"to":   contracts.DateKey(to),
	}).Info("Starting scheduled batch")

	summary, err := j.runner.Run(ctx, from, to)
	if err != nil {
		return fmt.Errorf("batch run: %w", err)
	}
	if summary.Failed() {
		return fmt.Errorf("batch run %s: %d dates failed", summary.RunID, len(summary.FailedDates))
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":     summary.RunID,
		"processed":  len(summary.Processed),
		"skipped":    len(summary.Skipped),
		"selections": summary.Selections,
	}).Info("Scheduled batch completed")

	return nil
}
