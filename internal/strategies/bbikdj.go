package strategies

import (
	"math"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/internal/indicators"
)

// BBIKDJParams configures BBIKDJ
type BBIKDJParams struct {
	TrendParams `yaml:",inline"`
	JThreshold  float64 `yaml:"j_threshold" json:"j_threshold" default:"1" validate:"gte=-100,lte=100"`
	JWindow     int     `yaml:"j_window" json:"j_window" default:"60" validate:"gte=2,lte=250"`
	JQ          float64 `yaml:"j_q" json:"j_q" default:"0.10" validate:"gte=0,lte=1"`
}

// MinBars: BBI trend window, J percentile window, DIF
func (p *BBIKDJParams) MinBars() int {
	return maxBars(p.trendBars(), kdjBars+p.JWindow-1, difBars)
}

// BBIKDJ 少妇战法: BBI 상승 추세 속 J 저점, MACD DIF 양수
var BBIKDJ = Define("BBIKDJ",
	"BBI uptrend with J at a low and positive MACD DIF",
	bbiKDJ)

func bbiKDJ(f *indicators.Frame, i int, p *BBIKDJParams) contracts.MatchResult {
	if !bbiTrendUp(f, i, p.TrendParams) {
		return contracts.NoMatch
	}
	low, pct := jLow(f, i, p.JThreshold, p.JWindow, p.JQ)
	if !low {
		return contracts.NoMatch
	}
	dif, ok := indicators.At(f.DIF(), i)
	if !ok || dif <= 0 {
		return contracts.NoMatch
	}
	if math.IsNaN(pct) {
		return contracts.MatchResult{Matched: true}
	}
	return match((1 - pct) * 100)
}
