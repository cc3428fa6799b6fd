package strategies

import (
	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/internal/indicators"
)

// BreakoutVolumeParams configures BreakoutVolumeKDJ
type BreakoutVolumeParams struct {
	UpThreshold  float64 `yaml:"up_threshold" json:"up_threshold" default:"3" validate:"gt=0,lte=30"` // percent
	VolumeWindow int     `yaml:"volume_window" json:"volume_window" default:"5" validate:"gte=1,lte=60"`
	VolumeRatio  float64 `yaml:"volume_ratio" json:"volume_ratio" default:"2" validate:"gte=1"`
	MaxDeviation float64 `yaml:"max_deviation" json:"max_deviation" default:"0.10" validate:"gt=0,lt=1"`
	JMax         float64 `yaml:"j_max" json:"j_max" default:"90" validate:"gte=-100,lte=200"`
}

// MinBars is dominated by MA114 of the long cost line
func (p *BreakoutVolumeParams) MinBars() int {
	return maxBars(zxBars, quickBars, volumeRatioBars(p.VolumeWindow), kdjBars)
}

// BreakoutVolumeKDJ 放量突破: 거래량을 동반한 장대양봉이 장기 원가선 근처에서 발생
//
// Matches when the session gains at least up_threshold percent on volume at
// least volume_ratio times the previous volume_window mean, closes at or above
// the long cost line but within max_deviation of it, the quick cost line is
// above the long one, and J is not overheated. Score is the volume ratio.
var BreakoutVolumeKDJ = Define("BreakoutVolumeKDJ",
	"volume breakout near the long cost line with KDJ not overheated",
	func(f *indicators.Frame, i int, p *BreakoutVolumeParams) contracts.MatchResult {
		v, ok := values(i, f.Change(), f.VolumeRatio(p.VolumeWindow), f.ZXQuick(), f.ZXLong(), f.J())
		if !ok {
			return contracts.NoMatch
		}
		change, vr, zxq, zxl, j := v[0], v[1], v[2], v[3], v[4]
		c := f.Close[i]

		if change < p.UpThreshold || vr < p.VolumeRatio {
			return contracts.NoMatch
		}
		if c < zxl || c > zxl*(1+p.MaxDeviation) {
			return contracts.NoMatch
		}
		if zxq <= zxl || j > p.JMax {
			return contracts.NoMatch
		}
		return match(vr)
	})
