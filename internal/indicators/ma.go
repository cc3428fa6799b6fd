package indicators

import "math"

// Every function returns a slice aligned with its input. Positions without
// enough history hold NaN; nothing reads past the current index.

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// At returns x[i] when i is in range and the value is defined
func At(x []float64, i int) (float64, bool) {
	if i < 0 || i >= len(x) || math.IsNaN(x[i]) {
		return 0, false
	}
	return x[i], true
}

// SMA is the simple moving average over n values
func SMA(x []float64, n int) []float64 {
	out := nanSlice(len(x))
	if n <= 0 {
		return out
	}

	var sum float64
	missing := 0
	for i, v := range x {
		if math.IsNaN(v) {
			missing++
		} else {
			sum += v
		}
		if i >= n {
			old := x[i-n]
			if math.IsNaN(old) {
				missing--
			} else {
				sum -= old
			}
		}
		if i >= n-1 && missing == 0 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// EMA is the exponential moving average with alpha = 2/(n+1), seeded with the
// first defined value. Values are reported once n inputs have been observed.
func EMA(x []float64, n int) []float64 {
	out := nanSlice(len(x))
	if n <= 0 {
		return out
	}

	alpha := 2.0 / float64(n+1)
	var prev float64
	seen := 0
	for i, v := range x {
		if math.IsNaN(v) {
			if seen > 0 {
				// 중간 결측은 시계열을 끊는다
				seen = 0
			}
			continue
		}
		if seen == 0 {
			prev = v
		} else {
			prev = alpha*v + (1-alpha)*prev
		}
		seen++
		if seen >= n {
			out[i] = prev
		}
	}
	return out
}

// HHV is the rolling highest value over n
func HHV(x []float64, n int) []float64 {
	return rolling(x, n, math.Max)
}

// LLV is the rolling lowest value over n
func LLV(x []float64, n int) []float64 {
	return rolling(x, n, math.Min)
}

func rolling(x []float64, n int, pick func(a, b float64) float64) []float64 {
	out := nanSlice(len(x))
	if n <= 0 {
		return out
	}
	for i := n - 1; i < len(x); i++ {
		acc := x[i-n+1]
		for _, v := range x[i-n+2 : i+1] {
			acc = pick(acc, v)
		}
		out[i] = acc
	}
	return out
}

// Ref shifts x back by n positions (REF(X, n))
func Ref(x []float64, n int) []float64 {
	out := nanSlice(len(x))
	for i := n; i < len(x); i++ {
		out[i] = x[i-n]
	}
	return out
}
