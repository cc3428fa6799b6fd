package indicators

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/zscreen/internal/contracts"
)

// Named parameterizations. A different window is a different series name.
const (
	KDJPeriod   = 9
	KDJSmoothK  = 3
	KDJSmoothD  = 3
	MACDFast    = 12
	MACDSlow    = 26
	MACDSignal  = 9
	NameK       = "KDJ_K_9_3_3"
	NameD       = "KDJ_D_9_3_3"
	NameJ       = "KDJ_J_9_3_3"
	NameBBI     = "BBI_3_6_12_24"
	NameDIF     = "MACD_DIF_12_26_9"
	NameDEA     = "MACD_DEA_12_26_9"
	NameHist    = "MACD_HIST_12_26_9"
	NameZXQuick = "ZX_QUICK_10_10"
	NameZXLong  = "ZX_LONG_14_28_57_114"
	NameChange  = "PCT_CHANGE"
)

// MAName names the n-period simple moving average of close
func MAName(n int) string { return fmt.Sprintf("MA%d", n) }

// RSVName names the n-period RSV
func RSVName(n int) string { return fmt.Sprintf("RSV_%d", n) }

// VolumeRatioName names the volume ratio against the previous n sessions
func VolumeRatioName(n int) string { return fmt.Sprintf("VR_%d", n) }

// PercentileName names the trailing percentile rank of another series
func PercentileName(src string, window int) string {
	return fmt.Sprintf("PCTRANK_%s_%d", src, window)
}

// Frame holds the price columns of one series and lazily computed indicator
// series keyed by name. A Frame belongs to one goroutine.
// ⭐ SSOT: 전략은 지표를 직접 계산하지 않고 Frame을 통해서만 읽는다
type Frame struct {
	Symbol string
	Dates  []time.Time
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64

	cache map[string][]float64
}

// NewFrame extracts the price columns of series
func NewFrame(series *contracts.SymbolSeries) *Frame {
	n := series.Len()
	f := &Frame{
		Symbol: series.Symbol,
		Dates:  make([]time.Time, n),
		Open:   make([]float64, n),
		High:   make([]float64, n),
		Low:    make([]float64, n),
		Close:  make([]float64, n),
		Volume: make([]float64, n),
		cache:  make(map[string][]float64),
	}
	for i, b := range series.Bars {
		f.Dates[i] = b.Date
		f.Open[i] = b.Open
		f.High[i] = b.High
		f.Low[i] = b.Low
		f.Close[i] = b.Close
		f.Volume[i] = b.Volume
	}
	return f
}

// Len returns the number of bars
func (f *Frame) Len() int {
	return len(f.Close)
}

// Set installs a precomputed series under name (snapshots in tests, reuse)
func (f *Frame) Set(name string, values []float64) {
	f.cache[name] = values
}

// Series returns the named series, computing it on first use
func (f *Frame) Series(name string, compute func() []float64) []float64 {
	if v, ok := f.cache[name]; ok {
		return v
	}
	v := compute()
	f.cache[name] = v
	return v
}

// fill stores sibling series without replacing ones installed by Set
func (f *Frame) fill(series map[string][]float64) {
	for name, v := range series {
		if _, ok := f.cache[name]; !ok {
			f.cache[name] = v
		}
	}
}

// MA returns the n-period simple moving average of close
func (f *Frame) MA(n int) []float64 {
	return f.Series(MAName(n), func() []float64 { return SMA(f.Close, n) })
}

// RSV returns the n-period raw stochastic value
func (f *Frame) RSV(n int) []float64 {
	return f.Series(RSVName(n), func() []float64 { return RSV(f.High, f.Low, f.Close, n) })
}

func (f *Frame) kdj(name string) []float64 {
	return f.Series(name, func() []float64 {
		r := KDJ(f.High, f.Low, f.Close, KDJPeriod, KDJSmoothK, KDJSmoothD)
		f.fill(map[string][]float64{NameK: r.K, NameD: r.D, NameJ: r.J})
		return f.cache[name]
	})
}

// K returns the KDJ K line
func (f *Frame) K() []float64 { return f.kdj(NameK) }

// D returns the KDJ D line
func (f *Frame) D() []float64 { return f.kdj(NameD) }

// J returns the KDJ J line
func (f *Frame) J() []float64 { return f.kdj(NameJ) }

func (f *Frame) macd(name string) []float64 {
	return f.Series(name, func() []float64 {
		r := MACD(f.Close, MACDFast, MACDSlow, MACDSignal)
		f.fill(map[string][]float64{NameDIF: r.DIF, NameDEA: r.DEA, NameHist: r.Hist})
		return f.cache[name]
	})
}

// DIF returns the MACD DIF line
func (f *Frame) DIF() []float64 { return f.macd(NameDIF) }

// DEA returns the MACD signal line
func (f *Frame) DEA() []float64 { return f.macd(NameDEA) }

// Hist returns the MACD histogram
func (f *Frame) Hist() []float64 { return f.macd(NameHist) }

// BBI returns the blended moving-average trend line
func (f *Frame) BBI() []float64 {
	return f.Series(NameBBI, func() []float64 { return BBI(f.Close) })
}

// ZXQuick returns the short cost line
func (f *Frame) ZXQuick() []float64 {
	return f.Series(NameZXQuick, func() []float64 { return ZXQuick(f.Close) })
}

// ZXLong returns the long cost-basis line
func (f *Frame) ZXLong() []float64 {
	return f.Series(NameZXLong, func() []float64 { return ZXLong(f.Close) })
}

// Change returns the daily percent change of close
func (f *Frame) Change() []float64 {
	return f.Series(NameChange, func() []float64 { return PctChange(f.Close) })
}

// VolumeRatio returns volume relative to the previous n sessions' mean
func (f *Frame) VolumeRatio(n int) []float64 {
	return f.Series(VolumeRatioName(n), func() []float64 { return VolumeRatio(f.Volume, n) })
}

// JPercentile returns the trailing percentile rank of J over window
func (f *Frame) JPercentile(window int) []float64 {
	return f.Series(PercentileName(NameJ, window), func() []float64 {
		return PercentileRank(f.J(), window)
	})
}

// Row is the standard indicator snapshot at one bar; NaN marks undefined values
type Row struct {
	Date    time.Time
	Close   float64
	Change  float64
	MA5     float64
	MA20    float64
	MA60    float64
	K       float64
	D       float64
	J       float64
	BBI     float64
	DIF     float64
	DEA     float64
	ZXQuick float64
	ZXLong  float64
	VR5     float64
}

// Row returns the snapshot at index i
func (f *Frame) Row(i int) Row {
	pick := func(x []float64) float64 {
		if v, ok := At(x, i); ok {
			return v
		}
		return math.NaN()
	}
	return Row{
		Date:    f.Dates[i],
		Close:   f.Close[i],
		Change:  pick(f.Change()),
		MA5:     pick(f.MA(5)),
		MA20:    pick(f.MA(20)),
		MA60:    pick(f.MA(60)),
		K:       pick(f.K()),
		D:       pick(f.D()),
		J:       pick(f.J()),
		BBI:     pick(f.BBI()),
		DIF:     pick(f.DIF()),
		DEA:     pick(f.DEA()),
		ZXQuick: pick(f.ZXQuick()),
		ZXLong:  pick(f.ZXLong()),
		VR5:     pick(f.VolumeRatio(5)),
	}
}

// RowAt computes the snapshot of series at date.
// Returns an error wrapping ErrMissingData if the series has no bar on date.
func RowAt(series *contracts.SymbolSeries, date time.Time) (Row, error) {
	i, ok := series.IndexOf(date)
	if !ok {
		return Row{}, fmt.Errorf("%s at %s: %w", series.Symbol, contracts.DateKey(date), contracts.ErrMissingData)
	}
	// 평가일 이후 봉은 프레임에 넣지 않는다
	return NewFrame(series.Until(date, 0)).Row(i), nil
}
