package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/pkg/logger"
)

type fakeRunner struct {
	from, to time.Time
	summary  *contracts.RunSummary
	err      error
}

func (f *fakeRunner) Run(ctx context.Context, from, to time.Time) (*contracts.RunSummary, error) {
	f.from, f.to = from, to
	return f.summary, f.err
}

func TestDailyBatchJob_Range(t *testing.T) {
	runner := &fakeRunner{summary: &contracts.RunSummary{RunID: "r1"}}
	job := NewDailyBatchJob(runner, "", 5, logger.NewNop())
	job.now = func() time.Time { return time.Date(2025, 1, 10, 18, 30, 0, 0, time.UTC) }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), runner.from)
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), runner.to)
	assert.Equal(t, "daily_batch", job.Name())
	assert.Equal(t, "0 30 18 * * MON-FRI", job.Schedule())
}

func TestDailyBatchJob_FailedDatesTriggerRetry(t *testing.T) {
	runner := &fakeRunner{summary: &contracts.RunSummary{
		RunID:       "r2",
		FailedDates: map[string]string{"2025-01-09": "disk full"},
	}}
	err := NewDailyBatchJob(runner, "@daily", 1, logger.NewNop()).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 dates failed")

	runner = &fakeRunner{err: errors.New("store down")}
	err = NewDailyBatchJob(runner, "@daily", 1, logger.NewNop()).Run(context.Background())
	assert.ErrorContains(t, err, "store down")
}

type fakeSummarizer struct {
	calls int
	err   error
}

func (f *fakeSummarizer) Summarize(ctx context.Context) ([]contracts.StrategyPerformance, int, error) {
	f.calls++
	return nil, 2, f.err
}

func TestSummaryRefreshJob(t *testing.T) {
	s := &fakeSummarizer{}
	job := NewSummaryRefreshJob(s, logger.NewNop())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, s.calls)

	s.err = errors.New("boom")
	assert.Error(t, job.Run(context.Background()))
}
