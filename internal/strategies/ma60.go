package strategies

import (
	"math"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/internal/indicators"
)

// MA60CrossParams configures MA60CrossVolumeWave
type MA60CrossParams struct {
	Lookback       int     `yaml:"lookback" json:"lookback" default:"25" validate:"gte=2,lte=120"`
	SlopeWindow    int     `yaml:"slope_window" json:"slope_window" default:"5" validate:"gte=1,lte=60"`
	VolumeWindow   int     `yaml:"volume_window" json:"volume_window" default:"20" validate:"gte=1,lte=120"`
	VolumeMultiple float64 `yaml:"volume_multiple" json:"volume_multiple" default:"1.8" validate:"gte=1"`
	JMax           float64 `yaml:"j_max" json:"j_max" default:"60" validate:"gte=-100,lte=200"`
}

const ma60Period = 60

func (p *MA60CrossParams) MinBars() int {
	return maxBars(ma60Period+p.Lookback, ma60Period+p.SlopeWindow, volumeRatioBars(p.VolumeWindow), kdjBars)
}

// MA60CrossVolumeWave 上穿60日线: 최근 60일선 돌파 후 유지, 상승 파동 중 거래량 급증
//
// The most recent upward cross of close over MA60 must fall within lookback
// bars, close must still hold above MA60 and MA60 must be rising over
// slope_window bars. The up-swing runs from the lowest low before the cross
// to today; its peak volume ratio must reach volume_multiple. J must have
// cooled to j_max. Score is the peak volume ratio.
var MA60CrossVolumeWave = Define("MA60CrossVolumeWave",
	"recent close cross above a rising MA60 with a volume surge in the up-swing",
	func(f *indicators.Frame, i int, p *MA60CrossParams) contracts.MatchResult {
		ma := f.MA(ma60Period)
		c := f.Close

		cur, ok := values(i, ma, f.J())
		if !ok || c[i] < cur[0] || cur[1] > p.JMax {
			return contracts.NoMatch
		}
		past, ok := indicators.At(ma, i-p.SlopeWindow)
		if !ok || cur[0] <= past {
			return contracts.NoMatch
		}

		cross := -1
		for k := i; k > i-p.Lookback && k >= 1; k-- {
			v, ok := values(k, ma)
			prev, okPrev := values(k-1, ma)
			if !ok || !okPrev {
				break
			}
			if c[k-1] < prev[0] && c[k] >= v[0] {
				cross = k
				break
			}
		}
		if cross < 0 {
			return contracts.NoMatch
		}

		// 돌파 직전 파동 저점
		start := cross
		for k := cross; k >= 0 && k > cross-p.Lookback; k-- {
			if f.Low[k] < f.Low[start] {
				start = k
			}
		}

		vr := f.VolumeRatio(p.VolumeWindow)
		peak := math.Inf(-1)
		for k := start; k <= i; k++ {
			if v, ok := indicators.At(vr, k); ok && v > peak {
				peak = v
			}
		}
		if peak < p.VolumeMultiple {
			return contracts.NoMatch
		}
		return match(peak)
	})
