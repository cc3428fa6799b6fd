package strategies

import (
	"math"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/internal/indicators"
)

// PeakKDJParams configures PeakKDJ
type PeakKDJParams struct {
	Lookback      int     `yaml:"lookback" json:"lookback" default:"60" validate:"gte=10,lte=250"`
	PeakDistance  int     `yaml:"peak_distance" json:"peak_distance" default:"5" validate:"gte=1,lte=60"`
	PeakTolerance float64 `yaml:"peak_tolerance" json:"peak_tolerance" default:"0.03" validate:"gte=0,lt=1"`
	MinTroughDrop float64 `yaml:"min_trough_drop" json:"min_trough_drop" default:"0.05" validate:"gt=0,lt=1"`
	JMax          float64 `yaml:"j_max" json:"j_max" default:"80" validate:"gte=-100,lte=200"`
}

func (p *PeakKDJParams) MinBars() int {
	return maxBars(p.Lookback+2, kdjBars+1)
}

// PeakKDJ 双顶回调: 두 고점이 비슷한 높이로 형성된 뒤 KDJ 골든크로스
//
// Takes the two most recent confirmed close peaks in the lookback window.
// They must lie within peak_tolerance of each other and the lowest close
// between them at least min_trough_drop below the lower peak. Today K must
// cross above D with J at most j_max. Score is the trough depth in percent.
var PeakKDJ = Define("PeakKDJ",
	"double peak with a deep trough followed by a KDJ golden cross",
	func(f *indicators.Frame, i int, p *PeakKDJParams) contracts.MatchResult {
		from := i - p.Lookback
		if from < 1 {
			return contracts.NoMatch
		}
		peaks := indicators.LocalPeaks(f.Close, from, i, p.PeakDistance)
		if len(peaks) < 2 {
			return contracts.NoMatch
		}
		p1, p2 := peaks[len(peaks)-2], peaks[len(peaks)-1]
		h1, h2 := f.Close[p1], f.Close[p2]
		if math.Abs(h2/h1-1) > p.PeakTolerance {
			return contracts.NoMatch
		}

		trough := math.Inf(1)
		for k := p1 + 1; k < p2; k++ {
			trough = math.Min(trough, f.Close[k])
		}
		depth := 1 - trough/math.Min(h1, h2)
		if depth < p.MinTroughDrop {
			return contracts.NoMatch
		}

		prev, ok := values(i-1, f.K(), f.D())
		if !ok {
			return contracts.NoMatch
		}
		cur, ok := values(i, f.K(), f.D(), f.J())
		if !ok {
			return contracts.NoMatch
		}
		// 오늘 골든크로스
		if !(prev[0] <= prev[1] && cur[0] > cur[1]) || cur[2] > p.JMax {
			return contracts.NoMatch
		}
		return match(depth * 100)
	})
