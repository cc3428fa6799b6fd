package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/zscreen/internal/contracts"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "선정 결과의 선행 수익률 계산",
	Long: `저장된 선정 결과에 대해 N거래일 선행 수익률을 계산합니다.
이미 계산된 기간은 그대로 두고 비어 있는 기간만 채웁니다.

Flags:
  --date   선정일 (YYYY-MM-DD)
  --all    저장된 모든 날짜 + 전략 요약 갱신

Example:
  go run ./cmd/zscreen backtest --date 2025-03-03
  go run ./cmd/zscreen backtest --all`,
	RunE: runBacktest,
}

var (
	backtestDate string
	backtestAll  bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&backtestDate, "date", "", "선정일 (YYYY-MM-DD)")
	backtestCmd.Flags().BoolVar(&backtestAll, "all", false, "모든 날짜 처리")
	backtestCmd.MarkFlagsMutuallyExclusive("date", "all")
	backtestCmd.MarkFlagsOneRequired("date", "all")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		describeSetupError(err)
		return err
	}
	defer a.Close()

	start := time.Now()

	if backtestAll {
		PrintHeader("zscreen Backtest (all dates)")
		perf, filled, err := a.orchestrator(false, 0).Summarize(ctx)
		if err != nil {
			return err
		}
		PrintKeyValue("Strategies", fmt.Sprintf("%d", len(perf)), 10)
		PrintKeyValue("Filled", fmt.Sprintf("%d", filled), 10)
		PrintSuccess(fmt.Sprintf("Backtest completed in %.2fs", time.Since(start).Seconds()))
		return nil
	}

	date, err := contracts.ParseDate(backtestDate)
	if err != nil {
		return err
	}
	PrintHeader("zscreen Backtest " + contracts.DateKey(date))

	// 기존 결과가 있으면 빈 기간만 채움
	records, err := a.results.LoadBacktest(ctx, date)
	if err != nil {
		return fmt.Errorf("load backtest: %w", err)
	}
	filled := 0
	if records != nil {
		// 단일 날짜는 항상 다시 조회 (기준 거래일 판정 생략)
		records, filled, err = a.backtester.Refill(ctx, records, time.Time{})
	} else {
		var sel []contracts.SelectionRecord
		sel, err = a.results.LoadSelection(ctx, date)
		if err != nil {
			return fmt.Errorf("load selection (run select first): %w", err)
		}
		records, err = a.backtester.Backtest(ctx, sel)
	}
	if err != nil {
		return err
	}
	if err := a.results.SaveBacktest(ctx, date, records); err != nil {
		return fmt.Errorf("save backtest: %w", err)
	}

	// 출력
	horizons := a.backtester.Horizons()
	header := []string{"code", "strategies", "status"}
	for _, h := range horizons {
		header = append(header, fmt.Sprintf("%dd", h))
	}
	rows := make([][]string, 0, len(records))
	counts := make(map[contracts.BacktestStatus]int)
	for _, r := range records {
		row := []string{r.Symbol, strings.Join(r.Strategies, "+"), string(r.Status)}
		for _, h := range horizons {
			if v, ok := r.Return(h); ok {
				row = append(row, fmt.Sprintf("%.2f%%", v))
			} else {
				row = append(row, "-")
			}
		}
		rows = append(rows, row)
		counts[r.Status]++
	}

	PrintSeparator()
	PrintTable(header, rows)
	PrintSeparator()
	for _, st := range []contracts.BacktestStatus{
		contracts.BacktestComplete, contracts.BacktestPartial, contracts.BacktestPending, contracts.BacktestNoData,
	} {
		PrintKeyValue(string(st), fmt.Sprintf("%d", counts[st]), 10)
	}
	if filled > 0 {
		PrintKeyValue("filled", fmt.Sprintf("%d", filled), 10)
	}
	PrintSuccess(fmt.Sprintf("Backtest completed in %.2fs", time.Since(start).Seconds()))
	return nil
}
