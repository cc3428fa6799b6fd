package strategies

import (
	"math"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/internal/indicators"
)

// TrendParams configures the BBI uptrend check shared by several rules
type TrendParams struct {
	BBIWindow    int     `yaml:"bbi_window" json:"bbi_window" default:"20" validate:"gte=2,lte=250"`
	BBITolerance float64 `yaml:"bbi_tolerance" json:"bbi_tolerance" default:"0.02" validate:"gte=0,lt=1"`
}

// Bars an indicator needs before its first defined value, today included
const (
	kdjBars   = indicators.KDJPeriod
	bbiBars   = 24
	difBars   = indicators.MACDSlow
	deaBars   = indicators.MACDSlow + indicators.MACDSignal - 1
	zxBars    = 114
	quickBars = 19
)

// volumeRatioBars: VOL / REF(MA(VOL,n),1)
func volumeRatioBars(n int) int { return n + 1 }

func maxBars(n ...int) int {
	most := 1
	for _, v := range n {
		if v > most {
			most = v
		}
	}
	return most
}

// trendBars is the history bbiTrendUp needs to see a whole window of BBI
func (p TrendParams) trendBars() int {
	return bbiBars + p.BBIWindow - 1
}

// bbiTrendUp: BBI over the last BBIWindow bars ends at or above where it
// started and never falls more than BBITolerance below its running high.
func bbiTrendUp(f *indicators.Frame, i int, p TrendParams) bool {
	start := i - p.BBIWindow + 1
	if start < 0 {
		return false
	}
	bbi := f.BBI()

	peak := math.Inf(-1)
	for k := start; k <= i; k++ {
		v, ok := indicators.At(bbi, k)
		if !ok {
			return false
		}
		if v > peak {
			peak = v
		}
		if v < peak*(1-p.BBITolerance) {
			return false
		}
	}
	return bbi[i] >= bbi[start]
}

// jLow reports whether J at i is below threshold or at a low trailing
// percentile. pct is NaN when the percentile is undefined.
func jLow(f *indicators.Frame, i int, threshold float64, window int, q float64) (ok bool, pct float64) {
	j, defined := indicators.At(f.J(), i)
	if !defined {
		return false, math.NaN()
	}
	pct = math.NaN()
	if v, ok := indicators.At(f.JPercentile(window), i); ok {
		pct = v
	}
	if j < threshold {
		return true, pct
	}
	return !math.IsNaN(pct) && pct <= q, pct
}

// values returns the series values at i, false if any is undefined
func values(i int, series ...[]float64) ([]float64, bool) {
	out := make([]float64, len(series))
	for n, s := range series {
		v, ok := indicators.At(s, i)
		if !ok {
			return nil, false
		}
		out[n] = v
	}
	return out, true
}

func match(score float64) contracts.MatchResult {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return contracts.MatchResult{Matched: true}
	}
	return contracts.Match(score)
}
