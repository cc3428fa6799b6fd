package strategies

import (
	"math"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/internal/indicators"
)

// SuperB1Params configures SuperB1. The embedded BBIKDJ parameters define
// the anchor signal.
type SuperB1Params struct {
	BBIKDJParams     `yaml:",inline"`
	Lookback         int     `yaml:"lookback" json:"lookback" default:"10" validate:"gte=3,lte=60"`
	ConsolidationPct float64 `yaml:"consolidation_pct" json:"consolidation_pct" default:"0.05" validate:"gt=0,lt=1"`
	DropPct          float64 `yaml:"drop_pct" json:"drop_pct" default:"0.02" validate:"gt=0,lt=1"`
	PitJThreshold    float64 `yaml:"pit_j_threshold" json:"pit_j_threshold" default:"10" validate:"gte=-100,lte=100"`
	PitJQ            float64 `yaml:"pit_j_q" json:"pit_j_q" default:"0.10" validate:"gte=0,lte=1"`
}

// MinBars lets the oldest anchor candidate see a full BBIKDJ history
func (p *SuperB1Params) MinBars() int {
	return p.BBIKDJParams.MinBars() + p.Lookback
}

// SuperB1 超级B1: BBIKDJ 신호 이후 횡보, 오늘 하락하며 J 재차 저점
//
// A BBIKDJ match must exist at some t in [i-lookback, i-2]. Closes from t to
// the previous session must stay within consolidation_pct ((max-min)/min),
// today must drop at least drop_pct and J must be back at a low. Score is the
// size of today's drop in percent.
var SuperB1 = Define("SuperB1",
	"consolidation after a BBIKDJ signal followed by a sharp drop into a J pit",
	func(f *indicators.Frame, i int, p *SuperB1Params) contracts.MatchResult {
		anchor := -1
		for t := i - 2; t >= i-p.Lookback && t >= 0; t-- {
			if bbiKDJ(f, t, &p.BBIKDJParams).Matched {
				anchor = t
				break
			}
		}
		if anchor < 0 {
			return contracts.NoMatch
		}

		hi, lo := math.Inf(-1), math.Inf(1)
		for k := anchor; k < i; k++ {
			hi = math.Max(hi, f.Close[k])
			lo = math.Min(lo, f.Close[k])
		}
		if (hi-lo)/lo > p.ConsolidationPct {
			return contracts.NoMatch
		}

		drop := f.Close[i]/f.Close[i-1] - 1
		if drop > -p.DropPct {
			return contracts.NoMatch
		}
		if low, _ := jLow(f, i, p.PitJThreshold, p.JWindow, p.PitJQ); !low {
			return contracts.NoMatch
		}
		return match(-drop * 100)
	})
