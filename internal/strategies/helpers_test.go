package strategies

import (
	"math"
	"math/rand"
	"time"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/internal/indicators"
	"github.com/wonny/zscreen/internal/strategyconfig"
)

var day0 = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

func seriesOf(symbol string, closes []float64) *contracts.SymbolSeries {
	bars := make([]contracts.Bar, len(closes))
	for i, c := range closes {
		bars[i] = contracts.Bar{
			Date:   day0.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000,
		}
	}
	return &contracts.SymbolSeries{Symbol: symbol, Bars: bars}
}

func frameOf(closes []float64) *indicators.Frame {
	return indicators.NewFrame(seriesOf("TEST", closes))
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func rising(n int, base, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base + step*float64(i)
	}
	return out
}

// randomWalk builds a reproducible series with real volume variation
func randomWalk(symbol string, n int, seed int64) *contracts.SymbolSeries {
	r := rand.New(rand.NewSource(seed))
	bars := make([]contracts.Bar, n)
	price := 10.0
	for i := range bars {
		open := price
		price *= 1 + (r.Float64()-0.48)*0.06
		hi := max(open, price) * (1 + r.Float64()*0.02)
		lo := min(open, price) * (1 - r.Float64()*0.02)
		bars[i] = contracts.Bar{
			Date:   day0.AddDate(0, 0, i),
			Open:   open,
			High:   hi,
			Low:    lo,
			Close:  price,
			Volume: 1000 + r.Float64()*4000,
		}
	}
	return &contracts.SymbolSeries{Symbol: symbol, Bars: bars}
}

func mustStrategy(def Definition) Strategy {
	s, err := NewStrategy(def, "", nil)
	if err != nil {
		panic(err)
	}
	return s
}

var nan = math.NaN()

func seriesOfBars(bars []contracts.Bar) *contracts.SymbolSeries {
	return &contracts.SymbolSeries{Symbol: "RW", Bars: append([]contracts.Bar(nil), bars...)}
}

func defaultConfig() *strategyconfig.Config {
	return strategyconfig.Default()
}
