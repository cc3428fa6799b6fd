package backtest

import (
	"fmt"
	"strconv"

	"github.com/wonny/zscreen/internal/contracts"
)

// ReportTable renders ranked performances as string cells. Values are
// rounded to two decimals here only; stored records keep full precision.
func ReportTable(perf []contracts.StrategyPerformance, horizons []int) (header []string, rows [][]string) {
	header = []string{"strategy", "count"}
	for _, h := range horizons {
		header = append(header,
			fmt.Sprintf("win_rate_%dd", h),
			fmt.Sprintf("mean_%dd", h),
			fmt.Sprintf("median_%dd", h),
		)
	}
	header = append(header, "best_horizon", "composite_score")

	for _, p := range Rank(perf) {
		row := []string{p.Strategy, strconv.Itoa(p.Count)}
		for _, h := range horizons {
			hs, ok := p.Stats(h)
			if !ok || hs.Samples == 0 {
				row = append(row, "", "", "")
				continue
			}
			row = append(row, round2(hs.WinRate), round2(hs.Mean), round2(hs.Median))
		}
		best := ""
		if p.BestHorizon > 0 {
			best = fmt.Sprintf("%dd", p.BestHorizon)
		}
		row = append(row, best, round2(p.CompositeScore))
		rows = append(rows, row)
	}
	return header, rows
}

func round2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
