package commands

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/zscreen/internal/backtest"
	"github.com/wonny/zscreen/internal/results"
	"github.com/wonny/zscreen/pkg/config"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "전략 성과 요약",
	Long: `저장된 전략 요약을 복합 점수 순으로 출력합니다.
복합 점수 = 5일 승률 × 0.6 + 5일 평균 수익률 × 0.4

Example:
  go run ./cmd/zscreen report
  go run ./cmd/zscreen report --csv > report.csv`,
	RunE: runReport,
}

var reportCSV bool

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().BoolVar(&reportCSV, "csv", false, "CSV로 출력")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	// 요약만 읽으므로 가격 저장소는 열지 않는다
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := results.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}
	defer store.Close()

	perf, err := store.LoadSummary(ctx)
	if err != nil {
		return err
	}

	var horizons []int
	if len(perf) > 0 {
		for _, hs := range perf[0].Horizons {
			horizons = append(horizons, hs.Horizon)
		}
	}
	header, rows := backtest.ReportTable(perf, horizons)

	if reportCSV {
		w := csv.NewWriter(os.Stdout)
		w.Write(header)
		w.WriteAll(rows)
		return w.Error()
	}

	PrintHeader("zscreen Strategy Report")
	if len(rows) == 0 {
		PrintInfo("No summary yet (run batch or backtest --all)")
		return nil
	}
	PrintTable(header, rows)
	return nil
}
