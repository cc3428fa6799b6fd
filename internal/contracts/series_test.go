package contracts

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) time.Time {
	t, _ := time.Parse(DateLayout, s)
	return t
}

func testSeries() *SymbolSeries {
	return &SymbolSeries{
		Symbol: "600000",
		Bars: []Bar{
			{Date: d("2024-01-02"), Open: 10, High: 10.5, Low: 9.8, Close: 10, Volume: 100},
			{Date: d("2024-01-03"), Open: 10, High: 10.8, Low: 9.9, Close: 10.5, Volume: 120},
			{Date: d("2024-01-04"), Open: 10.5, High: 11.2, Low: 10.4, Close: 11, Volume: 90},
			{Date: d("2024-01-05"), Open: 11, High: 11, Low: 8.8, Close: 9, Volume: 300},
			{Date: d("2024-01-08"), Open: 9, High: 12.1, Low: 9, Close: 12, Volume: 250},
		},
	}
}

func TestSymbolSeries_IndexOf(t *testing.T) {
	s := testSeries()

	i, ok := s.IndexOf(d("2024-01-04"))
	assert.True(t, ok)
	assert.Equal(t, 2, i)

	// Intraday timestamps resolve to the same session
	i, ok = s.IndexOf(d("2024-01-08").Add(15 * time.Hour))
	assert.True(t, ok)
	assert.Equal(t, 4, i)

	_, ok = s.IndexOf(d("2024-01-06")) // weekend
	assert.False(t, ok)

	_, ok = s.IndexOf(d("2023-12-29"))
	assert.False(t, ok)
}

func TestSymbolSeries_Until(t *testing.T) {
	s := testSeries()

	cut := s.Until(d("2024-01-05"), 0)
	require.Equal(t, 4, cut.Len())
	last, _ := cut.LastDate()
	assert.Equal(t, d("2024-01-05"), last)

	tail := s.Until(d("2024-01-05"), 2)
	require.Equal(t, 2, tail.Len())
	assert.Equal(t, d("2024-01-04"), tail.Bars[0].Date)

	// Appending to a truncated view must not clobber the source
	_ = append(tail.Bars, Bar{Date: d("2030-01-01"), Close: 1})
	assert.Equal(t, 12.0, s.Bars[4].Close)

	empty := s.Until(d("2023-01-01"), 0)
	assert.Equal(t, 0, empty.Len())
	_, ok := empty.LastDate()
	assert.False(t, ok)
}

func TestSymbolSeries_Validate(t *testing.T) {
	require.NoError(t, testSeries().Validate())

	tests := []struct {
		name   string
		mutate func(s *SymbolSeries)
	}{
		{"duplicate date", func(s *SymbolSeries) { s.Bars[2].Date = s.Bars[1].Date }},
		{"out of order", func(s *SymbolSeries) { s.Bars[0].Date = d("2024-02-01") }},
		{"nan close", func(s *SymbolSeries) { s.Bars[3].Close = math.NaN() }},
		{"zero close", func(s *SymbolSeries) { s.Bars[3].Close = 0 }},
		{"negative volume", func(s *SymbolSeries) { s.Bars[1].Volume = -1 }},
		{"high below low", func(s *SymbolSeries) { s.Bars[1].High = 1 }},
		{"missing date", func(s *SymbolSeries) { s.Bars[1].Date = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSeries()
			tt.mutate(s)
			err := s.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCorruptSeries))

			var cse *CorruptSeriesError
			require.True(t, errors.As(err, &cse))
			assert.Equal(t, "600000", cse.Symbol)
		})
	}
}

func TestSelectionRecord_Label(t *testing.T) {
	r := SelectionRecord{Strategies: []string{"BBIKDJ", "SuperB1"}}
	assert.Equal(t, "BBIKDJ+SuperB1", r.Label())
	assert.True(t, r.Has("SuperB1"))
	assert.False(t, r.Has("PeakKDJ"))
}

func TestSelectionStats_Add(t *testing.T) {
	var total SelectionStats
	total.Add(SelectionStats{Processed: 3, Matched: 1})
	total.Add(SelectionStats{Processed: 2, Failed: 1, FailedSymbols: map[string]string{"B": "corrupt"}})

	assert.Equal(t, 5, total.Processed)
	assert.Equal(t, 1, total.Matched)
	assert.Equal(t, 1, total.Failed)
	assert.Equal(t, "corrupt", total.FailedSymbols["B"])
}

func TestBacktestRecord_Return(t *testing.T) {
	five := 5.0
	r := BacktestRecord{
		Status: BacktestPartial,
		Returns: []HorizonReturn{
			{Horizon: 1, Return: &five},
			{Horizon: 10},
		},
	}

	v, ok := r.Return(1)
	assert.True(t, ok)
	assert.Equal(t, 5.0, v)

	_, ok = r.Return(10)
	assert.False(t, ok)
	assert.False(t, r.Complete())

	r.Returns[1].Return = &five
	assert.True(t, r.Complete())
}
