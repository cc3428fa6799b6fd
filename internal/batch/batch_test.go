package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/zscreen/internal/backtest"
	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/internal/indicators"
	"github.com/wonny/zscreen/internal/metrics"
	"github.com/wonny/zscreen/internal/pricestore"
	"github.com/wonny/zscreen/internal/results"
	"github.com/wonny/zscreen/internal/selection"
	"github.com/wonny/zscreen/internal/strategies"
	"github.com/wonny/zscreen/pkg/logger"
)

var (
	monday  = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	holiday = time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC) // 기준 종목에 봉 없음
	friday2 = time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC)
)

type noParams struct{}

var up = strategies.Define("Up", "close above previous close",
	func(f *indicators.Frame, i int, _ *noParams) contracts.MatchResult {
		if i > 0 && f.Close[i] > f.Close[i-1] {
			return contracts.Match(f.Close[i] - f.Close[i-1])
		}
		return contracts.NoMatch
	})

// weekdaySeries builds n weekday bars from monday, skipping the given dates
func weekdaySeries(symbol string, n int, step float64, skip ...time.Time) *contracts.SymbolSeries {
	skipped := make(map[string]bool)
	for _, d := range skip {
		skipped[contracts.DateKey(d)] = true
	}
	s := &contracts.SymbolSeries{Symbol: symbol}
	price := 100.0
	for d := monday; len(s.Bars) < n; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday || skipped[contracts.DateKey(d)] {
			continue
		}
		price += step
		s.Bars = append(s.Bars, contracts.Bar{Date: d, Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 1000})
	}
	return s
}

func fixture() *pricestore.Memory {
	return pricestore.NewMemory(
		weekdaySeries("REF", 14, 1, holiday),
		weekdaySeries("A", 15, 1),
		weekdaySeries("B", 15, 0),
	)
}

func newOrchestrator(t *testing.T, store contracts.PriceStore, res contracts.ResultStore, skip bool) *Orchestrator {
	t.Helper()
	return newOrchestratorWithHorizons(t, store, res, skip, []int{1})
}

func newOrchestratorWithHorizons(t *testing.T, store contracts.PriceStore, res contracts.ResultStore, skip bool, horizons []int) *Orchestrator {
	t.Helper()
	strategy, err := strategies.NewStrategy(up, "", nil)
	require.NoError(t, err)

	log := logger.NewNop()
	rec := metrics.New()
	reg := strategies.NewRegistry(strategy)
	sel := selection.NewEngine(store, reg, selection.Config{Workers: 2, PartitionSize: 2}, log, rec)
	bt := backtest.NewEngine(store, backtest.Config{Horizons: horizons, Workers: 2}, log, rec)
	cfg := Config{Workers: 3, SkipExisting: skip, Strategies: reg.Names()}
	return NewOrchestrator(sel, bt, res, NewCalendar(store, "REF"), cfg, log, rec)
}

func fileStore(t *testing.T) *results.FileStore {
	t.Helper()
	s, err := results.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestRun_ProcessesTradingDays(t *testing.T) {
	ctx := context.Background()
	store := fixture()
	res := fileStore(t)

	summary, err := newOrchestrator(t, store, res, false).Run(ctx, monday, friday2)
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Len(t, summary.Processed, 9)
	assert.Equal(t, 5, summary.NonTrading) // 주말 4일 + 휴장 1일
	assert.Empty(t, summary.Skipped)
	assert.False(t, summary.Failed())
	assert.NotContains(t, summary.Processed, "2025-01-08")
	assert.Equal(t, "2025-01-06", summary.Processed[0])

	// A와 REF는 첫날을 제외하고 매일 선정된다
	assert.Equal(t, 16, summary.Selections)

	dates, err := res.SelectionDates(ctx)
	require.NoError(t, err)
	assert.Len(t, dates, 9)

	bt, err := res.LoadBacktest(ctx, time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, bt, 2)
	for _, r := range bt {
		assert.Equal(t, contracts.BacktestComplete, r.Status)
	}

	perf, err := res.LoadSummary(ctx)
	require.NoError(t, err)
	require.Len(t, perf, 1)
	assert.Equal(t, "Up", perf[0].Strategy)
	assert.Equal(t, 16, perf[0].Count)
	h1, ok := perf[0].Stats(1)
	require.True(t, ok)
	assert.Equal(t, 100.0, h1.WinRate)
}

func TestRun_ResumeSkipsWithoutLoading(t *testing.T) {
	ctx := context.Background()
	store := fixture()
	res := fileStore(t)

	_, err := newOrchestrator(t, store, res, true).Run(ctx, monday, friday2)
	require.NoError(t, err)
	loadsA, loadsB := store.Loads("A"), store.Loads("B")
	require.Positive(t, loadsA)

	summary, err := newOrchestrator(t, store, res, true).Run(ctx, monday, friday2)
	require.NoError(t, err)

	assert.Empty(t, summary.Processed)
	assert.Len(t, summary.Skipped, 9)
	assert.Equal(t, 0, summary.BacktestFilled)
	assert.Equal(t, loadsA, store.Loads("A"), "completed dates must not reload symbols")
	assert.Equal(t, loadsB, store.Loads("B"))
}

func TestRun_ResumeWithOpenHorizonsDoesNotReload(t *testing.T) {
	ctx := context.Background()
	store := fixture()
	res := fileStore(t)
	horizons := []int{1, 10}

	_, err := newOrchestratorWithHorizons(t, store, res, true, horizons).Run(ctx, monday, friday2)
	require.NoError(t, err)
	loadsA := store.Loads("A")
	before, err := os.ReadFile(filepath.Join(res.Root(), "summary.json"))
	require.NoError(t, err)

	summary, err := newOrchestratorWithHorizons(t, store, res, true, horizons).Run(ctx, monday, friday2)
	require.NoError(t, err)

	assert.Empty(t, summary.Processed)
	assert.Len(t, summary.Skipped, 9)
	assert.Equal(t, 0, summary.BacktestFilled)
	assert.Equal(t, loadsA, store.Loads("A"), "horizon 10 is still open but no session was added")

	after, err := os.ReadFile(filepath.Join(res.Root(), "summary.json"))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestSummarize_ReselectedDateIsBacktestedAgain(t *testing.T) {
	ctx := context.Background()
	store := fixture()
	res := fileStore(t)
	o := newOrchestrator(t, store, res, false)

	date := time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC)
	_, err := o.Run(ctx, date, date)
	require.NoError(t, err)

	// 같은 날짜 재선정
	require.NoError(t, res.SaveSelection(ctx, date, []contracts.SelectionRecord{
		{Date: date, Symbol: "B", Strategies: []string{"Up"}},
	}))
	_, _, err = o.Summarize(ctx)
	require.NoError(t, err)

	bt, err := res.LoadBacktest(ctx, date)
	require.NoError(t, err)
	require.Len(t, bt, 1)
	assert.Equal(t, "B", bt[0].Symbol)
}

// failingStore fails SaveSelection for one date
type failingStore struct {
	contracts.ResultStore
	failOn string
}

func (s *failingStore) SaveSelection(ctx context.Context, date time.Time, records []contracts.SelectionRecord) error {
	if contracts.DateKey(date) == s.failOn {
		return errors.New("disk full")
	}
	return s.ResultStore.SaveSelection(ctx, date, records)
}

func TestRun_FailedDateDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	store := fixture()
	res := fileStore(t)

	summary, err := newOrchestrator(t, store, &failingStore{ResultStore: res, failOn: "2025-01-10"}, true).Run(ctx, monday, friday2)
	require.NoError(t, err)

	assert.True(t, summary.Failed())
	assert.Contains(t, summary.FailedDates["2025-01-10"], "disk full")
	assert.Len(t, summary.Processed, 8)

	has, err := res.HasSelection(ctx, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, has)

	// 재실행은 실패한 날짜만 처리
	summary, err = newOrchestrator(t, store, res, true).Run(ctx, monday, friday2)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-10"}, summary.Processed)
	assert.Len(t, summary.Skipped, 8)
	assert.False(t, summary.Failed())
}

func TestSummarize_RefillsAsDataArrives(t *testing.T) {
	ctx := context.Background()
	store := pricestore.NewMemory(
		weekdaySeries("REF", 5, 0),
		weekdaySeries("A", 5, 1),
	)
	res := fileStore(t)
	o := newOrchestrator(t, store, res, false)

	friday := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	_, err := o.Run(ctx, friday, friday)
	require.NoError(t, err)

	bt, err := res.LoadBacktest(ctx, friday)
	require.NoError(t, err)
	require.Len(t, bt, 1)
	assert.Equal(t, contracts.BacktestPending, bt[0].Status)

	// 데이터 도착 전 요약은 시계열을 다시 읽지 않는다
	loads := store.Loads("A")
	_, filled, err := o.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, filled)
	assert.Equal(t, loads, store.Loads("A"))

	// 다음 거래일 데이터 도착
	store.Put(weekdaySeries("REF", 6, 0))
	store.Put(weekdaySeries("A", 6, 1))
	_, filled, err = o.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, filled)

	bt, err = res.LoadBacktest(ctx, friday)
	require.NoError(t, err)
	assert.Equal(t, contracts.BacktestComplete, bt[0].Status)
	ret, ok := bt[0].Return(1)
	require.True(t, ok)
	assert.InDelta(t, 100.0/105.0, ret, 1e-9)
}

func TestSummarize_BacktestsSelectionWithoutBacktest(t *testing.T) {
	ctx := context.Background()
	store := fixture()
	res := fileStore(t)

	date := time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)
	require.NoError(t, res.SaveSelection(ctx, date, []contracts.SelectionRecord{
		{Date: date, Symbol: "A", Strategies: []string{"Up"}},
	}))

	perf, _, err := newOrchestrator(t, store, res, true).Summarize(ctx)
	require.NoError(t, err)
	require.Len(t, perf, 1)
	assert.Equal(t, 1, perf[0].Count)

	bt, err := res.LoadBacktest(ctx, date)
	require.NoError(t, err)
	require.Len(t, bt, 1)
	assert.Equal(t, contracts.BacktestComplete, bt[0].Status)
}

func TestSummarize_NoMatchesStillReportsStrategies(t *testing.T) {
	ctx := context.Background()
	// 하락만 하는 종목 → Up 전략은 한 번도 매칭되지 않는다
	store := pricestore.NewMemory(weekdaySeries("REF", 10, 1), weekdaySeries("A", 10, -1))
	res := fileStore(t)

	_, err := newOrchestrator(t, store, res, false).Run(ctx, monday, friday2)
	require.NoError(t, err)

	perf, err := res.LoadSummary(ctx)
	require.NoError(t, err)
	require.Len(t, perf, 1)
	assert.Equal(t, "Up", perf[0].Strategy)
	assert.Equal(t, 0, perf[0].Count)
	h1, ok := perf[0].Stats(1)
	require.True(t, ok)
	assert.Equal(t, 0, h1.Samples)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := fileStore(t)

	_, err := newOrchestrator(t, fixture(), res, false).Run(ctx, monday, friday2)
	assert.ErrorIs(t, err, context.Canceled)

	dates, err := res.SelectionDates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestCalendar(t *testing.T) {
	ctx := context.Background()
	store := fixture()

	days, nonTrading, err := NewCalendar(store, "").TradingDays(ctx, monday, friday2)
	require.NoError(t, err)
	assert.Len(t, days, 10)
	assert.Equal(t, 4, nonTrading)

	cal := NewCalendar(store, "REF")
	days, nonTrading, err = cal.TradingDays(ctx, monday, friday2)
	require.NoError(t, err)
	assert.Len(t, days, 9)
	assert.Equal(t, 5, nonTrading)

	// 일요일 → 직전 금요일, 휴장일 → 전날
	latest, err := cal.Latest(ctx, time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), latest)
	latest, err = cal.Latest(ctx, holiday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), latest)

	_, _, err = cal.TradingDays(ctx, friday2, monday)
	assert.Error(t, err)

	_, _, err = NewCalendar(store, "MISSING").TradingDays(ctx, monday, friday2)
	assert.ErrorIs(t, err, contracts.ErrSymbolNotFound)
}
