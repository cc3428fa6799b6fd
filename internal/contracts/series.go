package contracts

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DateLayout is the canonical date key used in outputs and file names
const DateLayout = "2006-01-02"

// Bar is one daily OHLCV observation
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// SymbolSeries is the ordered bar history of one symbol
// ⭐ SSOT: 지표/전략/백테스트는 모두 이 타입만 입력으로 받는다
type SymbolSeries struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name,omitempty"`
	Bars   []Bar  `json:"bars"`
}

// Len returns the number of bars
func (s *SymbolSeries) Len() int {
	return len(s.Bars)
}

// IndexOf finds the bar dated exactly on date (calendar day comparison)
func (s *SymbolSeries) IndexOf(date time.Time) (int, bool) {
	d := Day(date)
	i := sort.Search(len(s.Bars), func(i int) bool {
		return !Day(s.Bars[i].Date).Before(d)
	})
	if i < len(s.Bars) && Day(s.Bars[i].Date).Equal(d) {
		return i, true
	}
	return -1, false
}

// Until returns the series truncated to bars dated on or before date,
// keeping at most tail bars (tail <= 0 keeps all). The bar slice is shared.
func (s *SymbolSeries) Until(date time.Time, tail int) *SymbolSeries {
	d := Day(date)
	end := sort.Search(len(s.Bars), func(i int) bool {
		return Day(s.Bars[i].Date).After(d)
	})
	start := 0
	if tail > 0 && end > tail {
		start = end - tail
	}
	return &SymbolSeries{Symbol: s.Symbol, Name: s.Name, Bars: s.Bars[start:end:end]}
}

// LastDate returns the date of the most recent bar
func (s *SymbolSeries) LastDate() (time.Time, bool) {
	if len(s.Bars) == 0 {
		return time.Time{}, false
	}
	return s.Bars[len(s.Bars)-1].Date, true
}

// Validate checks ordering and value sanity of the stored bars
func (s *SymbolSeries) Validate() error {
	for i, b := range s.Bars {
		if b.Date.IsZero() {
			return &CorruptSeriesError{Symbol: s.Symbol, Reason: fmt.Sprintf("bar %d has no date", i)}
		}
		for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return &CorruptSeriesError{
					Symbol: s.Symbol,
					Reason: fmt.Sprintf("bar %s has invalid value %v", b.Date.Format(DateLayout), v),
				}
			}
		}
		if b.Close <= 0 {
			return &CorruptSeriesError{
				Symbol: s.Symbol,
				Reason: fmt.Sprintf("bar %s has non-positive close", b.Date.Format(DateLayout)),
			}
		}
		if b.High < b.Low {
			return &CorruptSeriesError{
				Symbol: s.Symbol,
				Reason: fmt.Sprintf("bar %s has high < low", b.Date.Format(DateLayout)),
			}
		}
		if i > 0 && !Day(b.Date).After(Day(s.Bars[i-1].Date)) {
			return &CorruptSeriesError{
				Symbol: s.Symbol,
				Reason: fmt.Sprintf("dates not strictly increasing at %s", b.Date.Format(DateLayout)),
			}
		}
	}
	return nil
}

// Day truncates t to its calendar date in UTC
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD key
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// DateKey formats a date as YYYY-MM-DD
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}
