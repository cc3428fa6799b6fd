package strategies

import (
	"math"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/internal/indicators"
)

// ShortLongParams configures BBIShortLong
type ShortLongParams struct {
	TrendParams `yaml:",inline"`
	ShortN      int     `yaml:"n_short" json:"n_short" default:"3" validate:"gte=2,lte=20"`
	LongN       int     `yaml:"n_long" json:"n_long" default:"21" validate:"gte=5,lte=120,gtfield=ShortN"`
	M           int     `yaml:"m" json:"m" default:"5" validate:"gte=3,lte=20"`
	Upper       float64 `yaml:"upper_rsv" json:"upper_rsv" default:"75" validate:"gt=0,lte=100"`
	Lower       float64 `yaml:"lower_rsv" json:"lower_rsv" default:"25" validate:"gte=0,ltfield=Upper"`
}

// MinBars covers long RSV over the last m bars and DEA
func (p *ShortLongParams) MinBars() int {
	return maxBars(p.trendBars(), p.LongN+p.M-1, deaBars)
}

// BBIShortLong 补票战法: 장기 RSV는 강세 유지, 단기 RSV가 과열→침체→과열 순환
//
// On top of the BBI trend, long RSV stays at or above upper over the last m
// bars. Within that window short RSV is first at or above upper, later below
// lower, and today back at or above upper. DIF must be positive and not below
// DEA. Score is long RSV minus the short RSV dip.
var BBIShortLong = Define("BBIShortLong",
	"BBI uptrend with a short RSV dip and recovery while long RSV stays strong",
	func(f *indicators.Frame, i int, p *ShortLongParams) contracts.MatchResult {
		start := i - p.M + 1
		if start < 0 || !bbiTrendUp(f, i, p.TrendParams) {
			return contracts.NoMatch
		}
		short, long := f.RSV(p.ShortN), f.RSV(p.LongN)

		for k := start; k <= i; k++ {
			if v, ok := values(k, short, long); !ok || v[1] < p.Upper {
				return contracts.NoMatch
			}
		}
		if short[i] < p.Upper {
			return contracts.NoMatch
		}

		// 과열 → 침체 순서 확인 (오늘 제외)
		high, dip := false, math.Inf(1)
		for k := start; k < i; k++ {
			switch {
			case !high && short[k] >= p.Upper:
				high = true
			case high && short[k] < p.Lower:
				dip = math.Min(dip, short[k])
			}
		}
		if math.IsInf(dip, 1) {
			return contracts.NoMatch
		}

		macd, ok := values(i, f.DIF(), f.DEA())
		if !ok || macd[0] <= 0 || macd[0] < macd[1] {
			return contracts.NoMatch
		}
		return match(long[i] - dip)
	})
