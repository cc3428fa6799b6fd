package backtest

import (
	"math"
	"sort"

	"github.com/wonny/zscreen/internal/contracts"
)

// CompositeHorizon is the horizon the composite ranking score is built on
const CompositeHorizon = 5

// Aggregate groups records by strategy (a record matching several strategies
// counts toward each) and computes per-horizon statistics. The result is
// sorted by strategy name; empty input yields an empty, non-nil slice.
// Named strategies always get a row, with zero counts when nothing matched.
func Aggregate(records []contracts.BacktestRecord, horizons []int, strategies ...string) []contracts.StrategyPerformance {
	groups := make(map[string][]contracts.BacktestRecord)
	for _, s := range strategies {
		groups[s] = nil
	}
	for _, r := range records {
		for _, s := range r.Strategies {
			groups[s] = append(groups[s], r)
		}
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]contracts.StrategyPerformance, 0, len(names))
	for _, name := range names {
		out = append(out, summarize(name, groups[name], horizons))
	}
	return out
}

func summarize(name string, group []contracts.BacktestRecord, horizons []int) contracts.StrategyPerformance {
	perf := contracts.StrategyPerformance{
		Strategy: name,
		Count:    len(group),
		Horizons: make([]contracts.HorizonStats, 0, len(horizons)),
	}

	best := math.Inf(-1)
	for _, h := range horizons {
		var values []float64
		for _, r := range group {
			if v, ok := r.Return(h); ok {
				values = append(values, v)
			}
		}
		hs := horizonStats(h, values)
		perf.Horizons = append(perf.Horizons, hs)

		if hs.Samples > 0 && hs.Mean > best {
			best = hs.Mean
			perf.BestHorizon = h
		}
	}

	// 종합점수 = 승률*0.6 + 평균수익률*0.4 (5일 기준)
	if hs, ok := perf.Stats(CompositeHorizon); ok && hs.Samples > 0 {
		perf.CompositeScore = hs.WinRate*0.6 + hs.Mean*0.4
	}
	return perf
}

func horizonStats(h int, values []float64) contracts.HorizonStats {
	hs := contracts.HorizonStats{Horizon: h, Samples: len(values)}
	if len(values) == 0 {
		return hs
	}

	sum := 0.0
	for _, v := range values {
		sum += v
		if v > 0 {
			hs.Wins++
		}
	}
	hs.Mean = sum / float64(len(values))
	hs.WinRate = float64(hs.Wins) / float64(len(values)) * 100
	hs.Median = median(values)
	hs.StdDev = stdDev(values, hs.Mean)
	return hs
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// stdDev is the population standard deviation
func stdDev(values []float64, mean float64) float64 {
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

// Rank orders performances by composite score, highest first (ties by name)
func Rank(perf []contracts.StrategyPerformance) []contracts.StrategyPerformance {
	ranked := append([]contracts.StrategyPerformance(nil), perf...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].CompositeScore != ranked[j].CompositeScore {
			return ranked[i].CompositeScore > ranked[j].CompositeScore
		}
		return ranked[i].Strategy < ranked[j].Strategy
	})
	return ranked
}
