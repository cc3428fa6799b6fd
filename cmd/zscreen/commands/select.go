package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/internal/pricestore"
)

// selectCmd represents the select command
var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "하루치 종목 선정",
	Long: `지정한 날짜에 활성화된 모든 전략을 적용해 종목을 선정합니다.
결과는 결과 저장소에 저장되며 같은 날짜를 다시 실행하면 덮어씁니다.

Flags:
  --date      선정일 (YYYY-MM-DD, 기본: 가장 최근 거래일)
  --tickers   종목 코드 목록 (콤마 구분, 기본: 전체 유니버스)
              지정하면 결과를 저장하지 않음 (--dry-run과 동일)

Example:
  go run ./cmd/zscreen select
  go run ./cmd/zscreen select --date 2025-03-03 --tickers 000001,600519`,
	RunE: runSelect,
}

var (
	selectDate    string
	selectTickers string
	selectNoSave  bool
)

func init() {
	rootCmd.AddCommand(selectCmd)

	selectCmd.Flags().StringVar(&selectDate, "date", "", "선정일 (YYYY-MM-DD)")
	selectCmd.Flags().StringVar(&selectTickers, "tickers", "", "종목 코드 (콤마 구분)")
	selectCmd.Flags().BoolVar(&selectNoSave, "dry-run", false, "결과를 저장하지 않음")
}

func runSelect(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		describeSetupError(err)
		return err
	}
	defer a.Close()

	// 1. 선정일 결정
	var date time.Time
	if selectDate != "" {
		date, err = contracts.ParseDate(selectDate)
		if err != nil {
			return err
		}
	} else {
		date, err = a.calendar.Latest(ctx, time.Now())
		if err != nil {
			return fmt.Errorf("resolve latest trading date: %w", err)
		}
	}

	// 2. 유니버스 (nil = 저장소 전체)
	universe := parseTickers(selectTickers)

	PrintHeader("zscreen Selection " + contracts.DateKey(date))
	PrintKeyValue("Strategies", strings.Join(a.registry.Names(), ", "), 10)

	// 3. 선정
	start := time.Now()
	res, err := a.selector.Select(ctx, date, universe)
	if err != nil {
		return fmt.Errorf("select: %w", err)
	}

	// 일부 종목만 평가한 결과는 해당 날짜의 공식 선정으로 저장하지 않는다
	if shouldSaveSelection(selectNoSave, universe) {
		if err := a.results.SaveSelection(ctx, date, res.Records); err != nil {
			return fmt.Errorf("save selection: %w", err)
		}
	} else if universe != nil {
		PrintInfo("--tickers given: partial selection not saved")
	}

	// 4. 출력
	PrintSeparator()
	rows := make([][]string, 0, len(res.Records))
	for _, r := range res.Records {
		rows = append(rows, []string{r.Symbol, r.Name, r.Label()})
	}
	if len(rows) > 0 {
		PrintTable([]string{"code", "name", "strategies"}, rows)
	} else {
		PrintInfo("No symbol matched")
	}

	PrintSeparator()
	PrintKeyValue("Universe", fmt.Sprintf("%d", res.Stats.Universe), 10)
	PrintKeyValue("Processed", fmt.Sprintf("%d", res.Stats.Processed), 10)
	PrintKeyValue("Matched", fmt.Sprintf("%d", res.Stats.Matched), 10)
	PrintKeyValue("Skipped", fmt.Sprintf("%d", res.Stats.Skipped), 10)
	PrintKeyValue("Failed", fmt.Sprintf("%d", res.Stats.Failed), 10)
	for symbol, reason := range res.Stats.FailedSymbols {
		PrintWarning(fmt.Sprintf("%s: %s", symbol, reason))
	}
	PrintSuccess(fmt.Sprintf("Selection completed in %.2fs", time.Since(start).Seconds()))

	return nil
}

// shouldSaveSelection reports whether a run covered the whole universe and
// may replace the stored selection of its date
func shouldSaveSelection(dryRun bool, universe []string) bool {
	return !dryRun && universe == nil
}

// parseTickers splits a comma list into normalized codes, nil when empty.
// Duplicates such as "1,000001" are left for the engine to collapse.
func parseTickers(list string) []string {
	var out []string
	for _, t := range strings.Split(list, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, pricestore.NormalizeSymbol(t))
		}
	}
	return out
}
