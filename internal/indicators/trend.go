package indicators

import (
	"math"
	"sort"
)

// BBI blends the 3/6/12/24 simple moving averages
func BBI(close []float64) []float64 {
	return meanOf(SMA(close, 3), SMA(close, 6), SMA(close, 12), SMA(close, 24))
}

// ZXQuick is the short cost line EMA(EMA(C,10),10)
func ZXQuick(close []float64) []float64 {
	inner := EMA(close, 10)
	// 내부 EMA가 정의된 구간부터 다시 평활
	return EMA(inner, 10)
}

// ZXLong is the long cost-basis proxy (MA14 + MA28 + MA57 + MA114) / 4
func ZXLong(close []float64) []float64 {
	return meanOf(SMA(close, 14), SMA(close, 28), SMA(close, 57), SMA(close, 114))
}

func meanOf(series ...[]float64) []float64 {
	if len(series) == 0 {
		return nil
	}
	out := nanSlice(len(series[0]))
	for i := range out {
		var sum float64
		ok := true
		for _, s := range series {
			if math.IsNaN(s[i]) {
				ok = false
				break
			}
			sum += s[i]
		}
		if ok {
			out[i] = sum / float64(len(series))
		}
	}
	return out
}

// PercentileRank is the share (0..1) of the trailing window values, current
// included, that are <= the current value. Undefined until window values exist.
func PercentileRank(x []float64, window int) []float64 {
	out := nanSlice(len(x))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(x); i++ {
		cur := x[i]
		if math.IsNaN(cur) {
			continue
		}
		le := 0
		ok := true
		for _, v := range x[i-window+1 : i+1] {
			if math.IsNaN(v) {
				ok = false
				break
			}
			if v <= cur {
				le++
			}
		}
		if ok {
			out[i] = float64(le) / float64(window)
		}
	}
	return out
}

// VolumeRatio is volume over the mean volume of the previous n sessions
func VolumeRatio(volume []float64, n int) []float64 {
	out := nanSlice(len(volume))
	avg := Ref(SMA(volume, n), 1)
	for i, v := range volume {
		if math.IsNaN(avg[i]) || avg[i] <= 0 || math.IsNaN(v) {
			continue
		}
		out[i] = v / avg[i]
	}
	return out
}

// PctChange is the percent change from the previous value
func PctChange(x []float64) []float64 {
	out := nanSlice(len(x))
	for i := 1; i < len(x); i++ {
		if x[i-1] > 0 && !math.IsNaN(x[i]) {
			out[i] = (x[i]/x[i-1] - 1) * 100
		}
	}
	return out
}

// LocalPeaks returns ascending indices of confirmed local maxima within
// [from, to]. A peak at k needs x[k-1] < x[k] >= x[k+1], so a peak at to itself
// is never reported. Peaks closer than distance keep the higher one.
func LocalPeaks(x []float64, from, to, distance int) []int {
	if from < 1 {
		from = 1
	}
	if to >= len(x) {
		to = len(x) - 1
	}

	var cands []int
	for k := from; k < to; k++ {
		if math.IsNaN(x[k-1]) || math.IsNaN(x[k]) || math.IsNaN(x[k+1]) {
			continue
		}
		if x[k-1] < x[k] && x[k] >= x[k+1] {
			cands = append(cands, k)
		}
	}
	if distance <= 1 || len(cands) < 2 {
		return cands
	}

	// 높은 봉우리부터 채택, 거리 내 낮은 봉우리는 제거
	byHeight := append([]int(nil), cands...)
	sort.SliceStable(byHeight, func(a, b int) bool {
		return x[byHeight[a]] > x[byHeight[b]]
	})
	var kept []int
	for _, k := range byHeight {
		near := false
		for _, p := range kept {
			if abs(k-p) < distance {
				near = true
				break
			}
		}
		if !near {
			kept = append(kept, k)
		}
	}
	sort.Ints(kept)
	return kept
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
