package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wonny/zscreen/internal/scheduler"
	"github.com/wonny/zscreen/internal/scheduler/jobs"
)

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "스케줄러 데몬 시작",
	Long: `정해진 시각에 일일 배치를 실행하는 스케줄러를 시작합니다.

Jobs:
  daily_batch      최근 $BATCH_LOOKBACK_DAYS일 배치 (저장된 날짜는 건너뜀)
  summary_refresh  새 시세로 빈 수익률 보충 + 요약 갱신

Example:
  go run ./cmd/zscreen schedule
  go run ./cmd/zscreen schedule --run-now`,
	RunE: runSchedule,
}

var scheduleRunNow bool

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().BoolVar(&scheduleRunNow, "run-now", false, "daily_batch를 즉시 1회 실행하고 종료")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		describeSetupError(err)
		return err
	}
	defer a.Close()

	orch := a.orchestrator(true, 0)
	sched := scheduler.New(a.log, scheduler.DefaultOptions())

	daily := jobs.NewDailyBatchJob(orch, a.cfg.BatchSchedule, a.cfg.BatchLookback, a.log.WithComponent("daily_batch"))
	if err := sched.AddJob(daily); err != nil {
		return err
	}
	if err := sched.AddJob(jobs.NewSummaryRefreshJob(orch, a.log.WithComponent("summary_refresh"))); err != nil {
		return err
	}

	if scheduleRunNow {
		result, err := sched.RunJobSync(daily.Name())
		if err != nil {
			return err
		}
		if !result.Success {
			PrintError(fmt.Sprintf("%s failed after %d attempts: %s", result.JobName, result.Attempts, result.Error))
			return fmt.Errorf("job %s failed", result.JobName)
		}
		PrintSuccess(fmt.Sprintf("%s completed in %s", result.JobName, result.Duration))
		return nil
	}

	sched.Start()
	PrintHeader("zscreen Scheduler")
	stats := sched.GetJobStats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		next := "-"
		if st := stats[name]; st.NextRun != nil {
			next = st.NextRun.Format("2006-01-02 15:04:05")
		}
		PrintKeyValue(name, fmt.Sprintf("%s (next: %s)", stats[name].Schedule, next), 16)
	}
	fmt.Println("Press Ctrl+C to stop")

	<-ctx.Done()
	sched.Stop()
	return nil
}
