package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/zscreen/internal/contracts"
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "기간 일괄 선정 + 백테스트",
	Long: `기간 내 모든 거래일에 대해 선정 → 저장 → 백테스트 → 저장을 수행하고
마지막에 전략 요약을 갱신합니다. 날짜별 실패는 다른 날짜에 영향을 주지 않습니다.

Flags:
  --from            시작일 (YYYY-MM-DD, 필수)
  --to              종료일 (YYYY-MM-DD, 기본: 오늘)
  --skip-existing   이미 저장된 날짜는 건너뜀 (중단 후 재개)
  --workers         동시 처리 날짜 수 (기본: $BATCH_WORKERS)

Example:
  go run ./cmd/zscreen batch --from 2025-01-01 --to 2025-03-31
  go run ./cmd/zscreen batch --from 2025-01-01 --skip-existing --workers 4`,
	RunE: runBatch,
}

var (
	batchFrom         string
	batchTo           string
	batchSkipExisting bool
	batchWorkers      int
)

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&batchFrom, "from", "", "시작일 (YYYY-MM-DD, 필수)")
	batchCmd.Flags().StringVar(&batchTo, "to", "", "종료일 (YYYY-MM-DD, 기본: 오늘)")
	batchCmd.Flags().BoolVar(&batchSkipExisting, "skip-existing", false, "저장된 날짜 건너뜀")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "동시 처리 날짜 수")

	batchCmd.MarkFlagRequired("from")
}

func runBatch(cmd *cobra.Command, args []string) error {
	from, err := contracts.ParseDate(batchFrom)
	if err != nil {
		return err
	}
	to := contracts.Day(time.Now())
	if batchTo != "" {
		if to, err = contracts.ParseDate(batchTo); err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		describeSetupError(err)
		return err
	}
	defer a.Close()

	PrintHeader("zscreen Batch")
	PrintKeyValue("Period", contracts.DateKey(from)+" ~ "+contracts.DateKey(to), 10)
	PrintKeyValue("Strategies", fmt.Sprintf("%d", a.registry.Len()), 10)
	PrintKeyValue("Config", a.configHash[:12], 10)

	summary, err := a.orchestrator(batchSkipExisting, batchWorkers).Run(ctx, from, to)
	if summary != nil {
		printRunSummary(summary)
	}
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	return nil
}

func printRunSummary(s *contracts.RunSummary) {
	PrintSeparator()
	PrintKeyValue("Run ID", s.RunID, 10)
	PrintKeyValue("Processed", fmt.Sprintf("%d", len(s.Processed)), 10)
	PrintKeyValue("Skipped", fmt.Sprintf("%d", len(s.Skipped)), 10)
	PrintKeyValue("NonTrade", fmt.Sprintf("%d", s.NonTrading), 10)
	PrintKeyValue("Failed", fmt.Sprintf("%d", len(s.FailedDates)), 10)
	PrintKeyValue("Selections", fmt.Sprintf("%d", s.Selections), 10)
	PrintKeyValue("Symbols", fmt.Sprintf("%d processed / %d skipped / %d failed",
		s.Symbols.Processed, s.Symbols.Skipped, s.Symbols.Failed), 10)
	PrintKeyValue("Filled", fmt.Sprintf("%d", s.BacktestFilled), 10)

	if len(s.Skipped) > 0 {
		PrintInfo(fmt.Sprintf("Skipped (already stored): %s ~ %s", s.Skipped[0], s.Skipped[len(s.Skipped)-1]))
	}
	if s.Failed() {
		dates := make([]string, 0, len(s.FailedDates))
		for d := range s.FailedDates {
			dates = append(dates, d)
		}
		sort.Strings(dates)
		for _, d := range dates {
			PrintWarning(fmt.Sprintf("%s failed: %s", d, s.FailedDates[d]))
		}
	}
	if !s.FinishedAt.IsZero() {
		PrintSuccess(fmt.Sprintf("Batch finished in %.2fs", s.FinishedAt.Sub(s.StartedAt).Seconds()))
	}
}
