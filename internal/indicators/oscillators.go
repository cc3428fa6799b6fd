package indicators

import "math"

// RSV is the raw stochastic value over n bars:
// (C - LLV(L,n)) / (HHV(H,n) - LLV(L,n)) * 100.
// A flat window (zero range) reports the neutral 50.
func RSV(high, low, close []float64, n int) []float64 {
	out := nanSlice(len(close))
	hh := HHV(high, n)
	ll := LLV(low, n)
	for i := range close {
		if math.IsNaN(hh[i]) || math.IsNaN(ll[i]) || math.IsNaN(close[i]) {
			continue
		}
		rng := hh[i] - ll[i]
		if rng <= 0 {
			out[i] = 50
			continue
		}
		out[i] = (close[i] - ll[i]) / rng * 100
	}
	return out
}

// KDJResult holds the three stochastic lines
type KDJResult struct {
	K, D, J []float64
}

// KDJ computes the stochastic oscillator with SMA-style smoothing:
// K = ((m1-1)*K' + RSV)/m1, D = ((m2-1)*D' + K)/m2, J = 3K - 2D, K and D seeded at 50.
func KDJ(high, low, close []float64, n, m1, m2 int) KDJResult {
	size := len(close)
	res := KDJResult{K: nanSlice(size), D: nanSlice(size), J: nanSlice(size)}
	if m1 <= 0 || m2 <= 0 {
		return res
	}

	rsv := RSV(high, low, close, n)
	k, d := 50.0, 50.0
	started := false
	for i, v := range rsv {
		if math.IsNaN(v) {
			if started {
				// 결측 이후에는 시드부터 다시 시작
				k, d, started = 50, 50, false
			}
			continue
		}
		started = true
		k = (float64(m1-1)*k + v) / float64(m1)
		d = (float64(m2-1)*d + k) / float64(m2)
		res.K[i] = k
		res.D[i] = d
		res.J[i] = 3*k - 2*d
	}
	return res
}

// MACDResult holds DIF, DEA and the histogram 2*(DIF-DEA)
type MACDResult struct {
	DIF, DEA, Hist []float64
}

// MACD computes DIF = EMA(fast) - EMA(slow) and DEA = EMA(DIF, signal).
// DIF is defined from the slow-th bar; DEA needs signal further DIF values.
func MACD(close []float64, fast, slow, signal int) MACDResult {
	size := len(close)
	res := MACDResult{DIF: nanSlice(size), DEA: nanSlice(size), Hist: nanSlice(size)}

	// EMA는 첫 값부터 재귀 계산하고 정의 시점만 slow 기준으로 제한한다
	alphaF := 2.0 / float64(fast+1)
	alphaS := 2.0 / float64(slow+1)
	var ef, es float64
	for i, c := range close {
		if math.IsNaN(c) {
			return res
		}
		if i == 0 {
			ef, es = c, c
		} else {
			ef = alphaF*c + (1-alphaF)*ef
			es = alphaS*c + (1-alphaS)*es
		}
		if i >= slow-1 {
			res.DIF[i] = ef - es
		}
	}

	res.DEA = EMA(res.DIF, signal)
	for i := range close {
		if !math.IsNaN(res.DIF[i]) && !math.IsNaN(res.DEA[i]) {
			res.Hist[i] = 2 * (res.DIF[i] - res.DEA[i])
		}
	}
	return res
}
