package selection

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/internal/indicators"
	"github.com/wonny/zscreen/internal/metrics"
	"github.com/wonny/zscreen/internal/pricestore"
	"github.com/wonny/zscreen/internal/strategies"
	"github.com/wonny/zscreen/pkg/logger"
)

var day0 = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

func series(symbol string, closes ...float64) *contracts.SymbolSeries {
	bars := make([]contracts.Bar, len(closes))
	for i, c := range closes {
		bars[i] = contracts.Bar{
			Date: day0.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 100,
		}
	}
	return &contracts.SymbolSeries{Symbol: symbol, Name: symbol + " Co", Bars: bars}
}

type thresholdParams struct {
	Min float64 `yaml:"min" default:"10" validate:"gte=0"`
}

// closeAbove matches when today's close exceeds p.Min
var closeAbove = strategies.Define("CloseAbove", "close above a threshold",
	func(f *indicators.Frame, i int, p *thresholdParams) contracts.MatchResult {
		if f.Close[i] > p.Min {
			return contracts.Match(f.Close[i])
		}
		return contracts.NoMatch
	})

// risingToday matches when close rose from the previous bar
var risingToday = strategies.Define("RisingToday", "close rose today",
	func(f *indicators.Frame, i int, p *thresholdParams) contracts.MatchResult {
		if i > 0 && f.Close[i] > f.Close[i-1] {
			return contracts.MatchResult{Matched: true}
		}
		return contracts.NoMatch
	})

func registry(t *testing.T, defs ...strategies.Definition) *strategies.Registry {
	var list []strategies.Strategy
	for _, d := range defs {
		s, err := strategies.NewStrategy(d, "", nil)
		require.NoError(t, err)
		list = append(list, s)
	}
	return strategies.NewRegistry(list...)
}

func engine(store contracts.PriceStore, reg *strategies.Registry, workers int) *Engine {
	return NewEngine(store, reg, Config{Workers: workers, PartitionSize: 2, HistoryTail: 100}, logger.NewNop(), metrics.New())
}

func TestSelect_PartialFailure(t *testing.T) {
	a := series("A", 9, 11, 12)
	b := series("B", 9, 11, 12)
	b.Bars[1].Date = b.Bars[0].Date // 날짜 중복 → 손상
	c := series("C", 13, 12, 11)

	store := pricestore.NewMemory(a, b, c)
	e := engine(store, registry(t, closeAbove, risingToday), 4)

	res, err := e.Select(context.Background(), day0.AddDate(0, 0, 2), []string{"A", "B", "C"})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Stats.Universe)
	assert.Equal(t, 2, res.Stats.Processed)
	assert.Equal(t, 2, res.Stats.Matched)
	assert.Equal(t, 0, res.Stats.Skipped)
	assert.Equal(t, 1, res.Stats.Failed)
	assert.Equal(t, []string{"B"}, failedSymbols(res.Stats))
	require.Len(t, res.Records, 2)

	assert.Equal(t, "A", res.Records[0].Symbol)
	assert.Equal(t, "A Co", res.Records[0].Name)
	assert.Equal(t, []string{"CloseAbove", "RisingToday"}, res.Records[0].Strategies)
	assert.Equal(t, "CloseAbove+RisingToday", res.Records[0].Label())
	assert.Equal(t, map[string]float64{"CloseAbove": 12}, res.Records[0].Scores)

	assert.Equal(t, "C", res.Records[1].Symbol)
	assert.Equal(t, []string{"CloseAbove"}, res.Records[1].Strategies)
}

func TestSelect_NoStrategies(t *testing.T) {
	store := pricestore.NewMemory(series("A", 9, 11, 12), series("B", 20, 21, 22))
	e := engine(store, strategies.NewRegistry(), 2)

	res, err := e.Select(context.Background(), day0.AddDate(0, 0, 2), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, 2, res.Stats.Processed)
	assert.Equal(t, 0, res.Stats.Matched)
}

func TestSelect_SkipsMissingDateAndUnknownSymbol(t *testing.T) {
	short := series("S", 20, 21) // 마지막 날짜 없음
	store := pricestore.NewMemory(series("A", 9, 11, 12), short)
	store.FailWith("X", errors.New("io error"))
	e := engine(store, registry(t, closeAbove), 3)

	res, err := e.Select(context.Background(), day0.AddDate(0, 0, 2), []string{"A", "S", "X", "ZZZ"})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Stats.Universe)
	assert.Equal(t, 1, res.Stats.Processed)
	assert.Equal(t, 2, res.Stats.Skipped)
	assert.Equal(t, []string{"X"}, failedSymbols(res.Stats))
	assert.Contains(t, res.Stats.FailedSymbols["X"], "io error")
	require.Len(t, res.Records, 1)
	assert.Equal(t, "A", res.Records[0].Symbol)
}

func TestSelect_NoLookAhead(t *testing.T) {
	// D 이후 급등해도 D 시점 결과는 변하지 않아야 한다
	base := series("A", 9, 11, 9, 8)
	future := series("A", 9, 11, 9, 8, 50, 60)

	date := day0.AddDate(0, 0, 3)
	reg := registry(t, closeAbove, risingToday)

	r1, err := engine(pricestore.NewMemory(base), reg, 1).Select(context.Background(), date, nil)
	require.NoError(t, err)
	r2, err := engine(pricestore.NewMemory(future), reg, 1).Select(context.Background(), date, nil)
	require.NoError(t, err)

	assert.Empty(t, r1.Records)
	assert.Equal(t, r1.Records, r2.Records)
}

func TestSelect_DeterministicAcrossWorkerCounts(t *testing.T) {
	var all []*contracts.SymbolSeries
	var universe []string
	for i := 0; i < 25; i++ {
		sym := string(rune('A'+i%26)) + string(rune('a'+i/26))
		all = append(all, series(sym, 9, 10+float64(i%3), 10+float64(i%5)))
		universe = append(universe, sym)
	}
	reg := registry(t, closeAbove, risingToday)
	date := day0.AddDate(0, 0, 2)

	r1, err := engine(pricestore.NewMemory(all...), reg, 1).Select(context.Background(), date, universe)
	require.NoError(t, err)
	r8, err := engine(pricestore.NewMemory(all...), reg, 8).Select(context.Background(), date, universe)
	require.NoError(t, err)

	assert.Equal(t, r1.Records, r8.Records)
	assert.Equal(t, r1.Stats, r8.Stats)
}

type panicParams struct{}

func TestSelect_RulePanicFailsOnlyThatSymbol(t *testing.T) {
	boom := strategies.Define("Boom", "panics on B",
		func(f *indicators.Frame, i int, p *panicParams) contracts.MatchResult {
			if f.Symbol == "B" {
				panic("bad rule")
			}
			return contracts.NoMatch
		})
	store := pricestore.NewMemory(series("A", 1, 2), series("B", 1, 2))
	res, err := engine(store, registry(t, boom), 2).Select(context.Background(), day0.AddDate(0, 0, 1), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, failedSymbols(res.Stats))
	assert.Contains(t, res.Stats.FailedSymbols["B"], "bad rule")
	assert.Equal(t, 1, res.Stats.Processed)
}

func TestSelect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := pricestore.NewMemory(series("A", 1, 2))
	_, err := engine(store, registry(t, closeAbove), 1).Select(ctx, day0.AddDate(0, 0, 1), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSelect_DuplicateSymbolsEvaluatedOnce(t *testing.T) {
	store := pricestore.NewMemory(series("000001", 9, 11, 12), series("600519", 20, 21, 22))
	e := engine(store, registry(t, closeAbove), 2)

	res, err := e.Select(context.Background(), day0.AddDate(0, 0, 2), []string{"000001", "600519", "000001"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Stats.Universe)
	assert.Equal(t, 2, res.Stats.Processed)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "000001", res.Records[0].Symbol)
	assert.Equal(t, "600519", res.Records[1].Symbol)
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, unique([]string{"b", "a", "b", "c", "a"}))
	assert.Empty(t, unique(nil))
}

func TestPartition(t *testing.T) {
	parts := partition([]string{"a", "b", "c", "d", "e"}, 2)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, parts)
	assert.Empty(t, partition(nil, 3))
}

func failedSymbols(stats contracts.SelectionStats) []string {
	out := make([]string, 0, len(stats.FailedSymbols))
	for s := range stats.FailedSymbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
