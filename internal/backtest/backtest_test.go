package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/internal/metrics"
	"github.com/wonny/zscreen/internal/pricestore"
	"github.com/wonny/zscreen/pkg/logger"
)

var day0 = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

func series(symbol string, closes ...float64) *contracts.SymbolSeries {
	bars := make([]contracts.Bar, len(closes))
	for i, c := range closes {
		bars[i] = contracts.Bar{
			Date: day0.AddDate(0, 0, i), Open: c - 0.5, High: c + 1, Low: c - 1, Close: c, Volume: 100,
		}
	}
	return &contracts.SymbolSeries{Symbol: symbol, Bars: bars}
}

func selection(symbol string, date time.Time, strategies ...string) contracts.SelectionRecord {
	return contracts.SelectionRecord{Date: date, Symbol: symbol, Strategies: strategies}
}

func TestCompute_ForwardReturns(t *testing.T) {
	s := series("X", 10, 10.5, 11, 9, 12)
	rec := Compute(s, selection("X", day0, "BBIKDJ"), []int{1, 4, 10}, contracts.ReferenceClose)

	assert.Equal(t, contracts.BacktestPartial, rec.Status)
	assert.Equal(t, 10.0, rec.RefPrice)

	r1, ok := rec.Return(1)
	require.True(t, ok)
	assert.InDelta(t, 5.0, r1, 1e-9)

	r4, ok := rec.Return(4)
	require.True(t, ok)
	assert.InDelta(t, 20.0, r4, 1e-9)

	_, ok = rec.Return(10)
	assert.False(t, ok, "horizon 10 has no future session yet")
	assert.Nil(t, rec.Returns[2].ExitDate)

	// 다음날 시가(10.0) 기준 보조 수익률
	require.NotNil(t, rec.NextOpen)
	assert.Equal(t, 10.0, *rec.NextOpen)
	require.Len(t, rec.NextOpenReturns, 3)
	assert.InDelta(t, 5.0, *rec.NextOpenReturns[0].Return, 1e-9)
}

func TestCompute_RoundTrip(t *testing.T) {
	s := series("X", 10, 10.5, 11, 9, 12, 13.7, 8.2, 15, 11.1, 10.9, 12.3, 14)
	for d := 0; d < 5; d++ {
		rec := Compute(s, selection("X", s.Bars[d].Date, "A"), contracts.DefaultHorizons, contracts.ReferenceClose)
		for _, hr := range rec.Returns {
			if !hr.Defined() {
				continue
			}
			want := s.Bars[d+hr.Horizon].Close
			assert.InDelta(t, want, rec.RefPrice*(1+*hr.Return/100), 1e-9)
			assert.Equal(t, want, *hr.ExitPrice)
		}
	}
}

func TestCompute_NextOpenReference(t *testing.T) {
	s := series("X", 10, 10.5, 11)
	rec := Compute(s, selection("X", day0, "A"), []int{1, 2}, contracts.ReferenceNextOpen)
	assert.Equal(t, 10.0, rec.RefPrice)
	assert.Empty(t, rec.NextOpenReturns)

	last := Compute(s, selection("X", s.Bars[2].Date, "A"), []int{1}, contracts.ReferenceNextOpen)
	assert.Equal(t, contracts.BacktestPending, last.Status)
	assert.Equal(t, 0.0, last.RefPrice)
}

func TestCompute_Statuses(t *testing.T) {
	s := series("X", 10, 11, 12)

	tests := []struct {
		name string
		date time.Time
		want contracts.BacktestStatus
	}{
		{"complete", day0, contracts.BacktestComplete},
		{"pending", day0.AddDate(0, 0, 2), contracts.BacktestPending},
		{"no data", day0.AddDate(0, 0, 30), contracts.BacktestNoData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Compute(s, selection("X", tt.date, "A"), []int{1, 2}, contracts.ReferenceClose)
			assert.Equal(t, tt.want, rec.Status)
		})
	}

	missing := Compute(nil, selection("Y", day0, "A"), []int{1}, contracts.ReferenceClose)
	assert.Equal(t, contracts.BacktestNoData, missing.Status)
	assert.Len(t, missing.Returns, 1)
}

func TestFill_Idempotent(t *testing.T) {
	short := series("X", 10, 10.5, 11)
	sel := selection("X", day0, "A")
	horizons := []int{1, 3, 5}

	prev := Compute(short, sel, horizons, contracts.ReferenceClose)
	require.Equal(t, contracts.BacktestPartial, prev.Status)

	// 새 세션 없음 → 동일
	same, n := Fill(short, prev)
	assert.Equal(t, 0, n)
	assert.Equal(t, prev, same)

	// 이후 세션 도착 → 빈 값만 채움
	grown := series("X", 10, 10.5, 11, 9, 12, 13)
	filled, n := Fill(grown, prev)
	assert.Equal(t, 2, n)
	assert.Equal(t, contracts.BacktestComplete, filled.Status)
	assert.Equal(t, *prev.Returns[0].Return, *filled.Returns[0].Return)
	assert.InDelta(t, -10.0, *filled.Returns[1].Return, 1e-9)
	assert.InDelta(t, 30.0, *filled.Returns[2].Return, 1e-9)

	// 이미 계산된 값은 이후 데이터가 바뀌어도 유지
	revised := series("X", 10, 99, 11, 9, 12, 13)
	again, n := Fill(revised, filled)
	assert.Equal(t, 0, n)
	assert.Equal(t, filled, again)
}

func TestFill_FromPending(t *testing.T) {
	prev := Compute(series("X", 10), selection("X", day0, "A"), []int{1}, contracts.ReferenceNextOpen)
	require.Equal(t, contracts.BacktestPending, prev.Status)

	filled, n := Fill(series("X", 10, 12), prev)
	assert.Equal(t, 1, n)
	assert.Equal(t, contracts.BacktestComplete, filled.Status)
	assert.Equal(t, 11.5, filled.RefPrice)
}

func TestEngine_Backtest(t *testing.T) {
	store := pricestore.NewMemory(series("A", 10, 11, 12), series("C", 20, 19, 18))
	store.FailWith("B", errors.New("corrupt file"))

	e := NewEngine(store, Config{Horizons: []int{1, 2}}, logger.NewNop(), metrics.New())
	out, err := e.Backtest(context.Background(), []contracts.SelectionRecord{
		selection("A", day0, "S1"),
		selection("B", day0, "S1"),
		selection("C", day0, "S1", "S2"),
	})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, contracts.BacktestComplete, out[0].Status)
	assert.Equal(t, contracts.BacktestNoData, out[1].Status)
	assert.Equal(t, contracts.BacktestComplete, out[2].Status)
	assert.Equal(t, []string{"S1", "S2"}, out[2].Strategies)
	assert.Equal(t, 1, store.Loads("A"))
}

func TestEngine_Empty(t *testing.T) {
	e := NewEngine(pricestore.NewMemory(), Config{}, logger.NewNop(), nil)
	out, err := e.Backtest(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	perf := Aggregate(out, e.Horizons())
	assert.NotNil(t, perf)
	assert.Empty(t, perf)
}

func TestEngine_Refill(t *testing.T) {
	store := pricestore.NewMemory(series("A", 10, 11))
	e := NewEngine(store, Config{Horizons: []int{1, 2}}, logger.NewNop(), nil)

	first, err := e.Backtest(context.Background(), []contracts.SelectionRecord{selection("A", day0, "S")})
	require.NoError(t, err)
	require.Equal(t, contracts.BacktestPartial, first[0].Status)

	store.Put(series("A", 10, 11, 12))
	refilled, n, err := e.Refill(context.Background(), first, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, contracts.BacktestComplete, refilled[0].Status)

	// 완료된 기록은 다시 조회하지 않음
	loads := store.Loads("A")
	_, n, err = e.Refill(context.Background(), refilled, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, loads, store.Loads("A"))
}

func TestEngine_RefillSkipsUpToDateRecords(t *testing.T) {
	store := pricestore.NewMemory(series("A", 10, 11))
	e := NewEngine(store, Config{Horizons: []int{1, 5}}, logger.NewNop(), nil)

	first, err := e.Backtest(context.Background(), []contracts.SelectionRecord{selection("A", day0, "S")})
	require.NoError(t, err)
	require.Equal(t, contracts.BacktestPartial, first[0].Status)
	assert.Equal(t, day0.AddDate(0, 0, 1), first[0].AsOf)

	// 기준 최신 거래일 이후 데이터 없음 → 시계열 재조회 안 함
	loads := store.Loads("A")
	same, n, err := e.Refill(context.Background(), first, day0.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, first, same)
	assert.Equal(t, loads, store.Loads("A"))

	// 새 거래일 → 다시 조회, AsOf 전진
	store.Put(series("A", 10, 11, 12))
	updated, n, err := e.Refill(context.Background(), first, day0.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, loads+1, store.Loads("A"))
	assert.Equal(t, day0.AddDate(0, 0, 2), updated[0].AsOf)
	assert.False(t, updated[0].Stale(day0.AddDate(0, 0, 2)))
}

func ret(v float64) *float64 { return &v }

func TestAggregate(t *testing.T) {
	mk := func(strats []string, r1, r5 *float64) contracts.BacktestRecord {
		return contracts.BacktestRecord{
			Strategies: strats,
			Returns: []contracts.HorizonReturn{
				{Horizon: 1, Return: r1},
				{Horizon: 5, Return: r5},
			},
		}
	}
	records := []contracts.BacktestRecord{
		mk([]string{"A", "B"}, ret(2), ret(4)),
		mk([]string{"A"}, ret(-1), ret(6)),
		mk([]string{"A"}, ret(3), nil),
		mk([]string{"B"}, ret(0), ret(-2)),
	}

	perf := Aggregate(records, []int{1, 5})
	require.Len(t, perf, 2)

	a := perf[0]
	assert.Equal(t, "A", a.Strategy)
	assert.Equal(t, 3, a.Count)
	h1, _ := a.Stats(1)
	assert.Equal(t, 3, h1.Samples)
	assert.Equal(t, 2, h1.Wins)
	assert.InDelta(t, 200.0/3, h1.WinRate, 1e-9)
	assert.InDelta(t, 4.0/3, h1.Mean, 1e-9)
	assert.Equal(t, 2.0, h1.Median)
	h5, _ := a.Stats(5)
	assert.Equal(t, 2, h5.Samples)
	assert.Equal(t, 5.0, h5.Median)
	assert.Equal(t, 5, a.BestHorizon)
	assert.InDelta(t, 100*0.6+5*0.4, a.CompositeScore, 1e-9)

	b := perf[1]
	assert.Equal(t, 2, b.Count)
	b1, _ := b.Stats(1)
	assert.Equal(t, 1, b1.Wins, "zero return is not a win")
	assert.InDelta(t, 1.0, b1.StdDev, 1e-9)
	assert.Equal(t, 1, b.BestHorizon)

	ranked := Rank(perf)
	assert.Equal(t, "A", ranked[0].Strategy)
	assert.Equal(t, "A", perf[0].Strategy, "Rank does not reorder its input")
}

func TestAggregate_NamedStrategiesWithoutMatches(t *testing.T) {
	assert.Empty(t, Aggregate(nil, []int{1, 5}))

	perf := Aggregate(nil, []int{1, 5}, "PeakKDJ", "BBIKDJ")
	require.Len(t, perf, 2)
	assert.Equal(t, "BBIKDJ", perf[0].Strategy)
	assert.Equal(t, "PeakKDJ", perf[1].Strategy)
	for _, p := range perf {
		assert.Equal(t, 0, p.Count)
		assert.Equal(t, 0, p.BestHorizon)
		assert.Zero(t, p.CompositeScore)
		require.Len(t, p.Horizons, 2)
		assert.Equal(t, 0, p.Horizons[0].Samples)
	}

	// 매칭이 있는 전략은 그대로 집계된다
	perf = Aggregate([]contracts.BacktestRecord{
		{Strategies: []string{"BBIKDJ"}, Returns: []contracts.HorizonReturn{{Horizon: 5, Return: ret(1)}}},
	}, []int{5}, "BBIKDJ", "PeakKDJ")
	require.Len(t, perf, 2)
	assert.Equal(t, 1, perf[0].Count)
	assert.Equal(t, 0, perf[1].Count)
}

func TestReportTable(t *testing.T) {
	perf := Aggregate([]contracts.BacktestRecord{
		{Strategies: []string{"Low"}, Returns: []contracts.HorizonReturn{{Horizon: 5, Return: ret(-1.234)}}},
		{Strategies: []string{"High"}, Returns: []contracts.HorizonReturn{{Horizon: 5, Return: ret(2.346)}}},
		{Strategies: []string{"None"}, Returns: []contracts.HorizonReturn{{Horizon: 5}}},
	}, []int{5})

	header, rows := ReportTable(perf, []int{5})
	assert.Equal(t, []string{"strategy", "count", "win_rate_5d", "mean_5d", "median_5d", "best_horizon", "composite_score"}, header)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"High", "1", "100.00", "2.35", "2.35", "5d", "60.94"}, rows[0])
	assert.Equal(t, []string{"None", "1", "", "", "", "", "0.00"}, rows[1])
	assert.Equal(t, "Low", rows[2][0])
}
