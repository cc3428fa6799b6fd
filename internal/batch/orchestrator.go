// Package batch runs selection and backtest over a date range with
// resumable, per-date persistence.
package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/zscreen/internal/backtest"
	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/internal/metrics"
	"github.com/wonny/zscreen/internal/selection"
	"github.com/wonny/zscreen/pkg/logger"
)

// Selector produces the selection of one date
type Selector interface {
	Select(ctx context.Context, date time.Time, universe []string) (*selection.Result, error)
}

// Backtester measures and refills forward returns
type Backtester interface {
	Backtest(ctx context.Context, records []contracts.SelectionRecord) ([]contracts.BacktestRecord, error)
	Refill(ctx context.Context, prev []contracts.BacktestRecord, latest time.Time) ([]contracts.BacktestRecord, int, error)
	Horizons() []int
}

// Config holds orchestrator options
type Config struct {
	Workers      int      // concurrent dates
	SkipExisting bool     // skip dates whose selection is already stored
	ConfigHash   string   // strategy config hash recorded in the summary
	Strategies   []string // enabled strategies, reported even without matches
}

// Orchestrator runs the per-date pipeline over a date range
// ⭐ SSOT: 배치 실행/재개 로직은 여기서만
type Orchestrator struct {
	selector   Selector
	backtester Backtester
	results    contracts.ResultStore
	calendar   *Calendar
	config     Config
	logger     *logger.Logger
	metrics    *metrics.Recorder
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	sel Selector,
	bt Backtester,
	results contracts.ResultStore,
	calendar *Calendar,
	cfg Config,
	log *logger.Logger,
	rec *metrics.Recorder,
) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Orchestrator{
		selector:   sel,
		backtester: bt,
		results:    results,
		calendar:   calendar,
		config:     cfg,
		logger:     log.WithField("module", "batch"),
		metrics:    rec,
	}
}

const (
	dateProcessed  = "processed"
	dateSkipped    = "skipped"
	dateFailed     = "failed"
	dateNonTrading = "non_trading"
)

// Run processes every trading date in [from, to]. A failing date is recorded
// in the summary and never stops the others; cancellation stops scheduling
// new dates and is returned as the error.
func (o *Orchestrator) Run(ctx context.Context, from, to time.Time) (*contracts.RunSummary, error) {
	summary := &contracts.RunSummary{
		RunID:      uuid.NewString(),
		ConfigHash: o.config.ConfigHash,
		From:       contracts.Day(from),
		To:         contracts.Day(to),
		StartedAt:  time.Now(),
		Processed:  []string{},
		Skipped:    []string{},
	}
	log := o.logger.WithRun(summary.RunID)

	days, nonTrading, err := o.calendar.TradingDays(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("trading calendar: %w", err)
	}
	summary.NonTrading = nonTrading
	for i := 0; i < nonTrading; i++ {
		o.metrics.RecordDate(dateNonTrading)
	}

	log.WithFields(map[string]interface{}{
		"from":        contracts.DateKey(summary.From),
		"to":          contracts.DateKey(summary.To),
		"dates":       len(days),
		"non_trading": nonTrading,
		"workers":     o.config.Workers,
		"skip":        o.config.SkipExisting,
	}).Info("Starting batch run")

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(o.config.Workers)

	for _, day := range days {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcome, stats, selected, err := o.processDate(ctx, day)
			key := contracts.DateKey(day)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && ctx.Err() != nil:
				// 취소로 중단된 날짜는 실패로 기록하지 않는다 (재실행 시 처리)
				return nil
			case err != nil:
				if summary.FailedDates == nil {
					summary.FailedDates = make(map[string]string)
				}
				summary.FailedDates[key] = err.Error()
				o.metrics.RecordDate(dateFailed)
				log.WithError(err).WithField("date", key).Warn("Date failed")
			case outcome == dateSkipped:
				summary.Skipped = append(summary.Skipped, key)
				o.metrics.RecordDate(dateSkipped)
			default:
				summary.Processed = append(summary.Processed, key)
				summary.Symbols.Universe += stats.Universe
				summary.Symbols.Add(stats)
				summary.Selections += selected
				o.metrics.RecordDate(dateProcessed)
			}
			return nil
		})
	}
	_ = g.Wait() // 날짜별 오류는 summary에 기록됨

	sort.Strings(summary.Processed)
	sort.Strings(summary.Skipped)

	if err := ctx.Err(); err != nil {
		summary.FinishedAt = time.Now()
		log.WithField("processed", len(summary.Processed)).Warn("Batch run cancelled")
		return summary, err
	}

	_, filled, err := o.Summarize(ctx)
	if err != nil {
		return summary, fmt.Errorf("summarize: %w", err)
	}
	summary.BacktestFilled = filled
	summary.FinishedAt = time.Now()
	o.metrics.MarkRunFinished()

	log.WithFields(map[string]interface{}{
		"processed":  len(summary.Processed),
		"skipped":    len(summary.Skipped),
		"failed":     len(summary.FailedDates),
		"selections": summary.Selections,
		"filled":     filled,
		"elapsed":    summary.FinishedAt.Sub(summary.StartedAt).String(),
	}).Info("Batch run completed")

	return summary, nil
}

// processDate runs select → save → backtest → save for one date
func (o *Orchestrator) processDate(ctx context.Context, date time.Time) (string, contracts.SelectionStats, int, error) {
	start := time.Now()
	defer func() { o.metrics.ObserveStage("date", time.Since(start).Seconds()) }()

	if o.config.SkipExisting {
		done, err := o.results.HasSelection(ctx, date)
		if err != nil {
			return "", contracts.SelectionStats{}, 0, fmt.Errorf("check existing: %w", err)
		}
		if done {
			return dateSkipped, contracts.SelectionStats{}, 0, nil
		}
	}

	res, err := o.selector.Select(ctx, date, nil)
	if err != nil {
		return "", contracts.SelectionStats{}, 0, fmt.Errorf("select: %w", err)
	}
	if err := o.results.SaveSelection(ctx, date, res.Records); err != nil {
		return "", res.Stats, 0, fmt.Errorf("save selection: %w", err)
	}

	records, err := o.backtester.Backtest(ctx, res.Records)
	if err != nil {
		return "", res.Stats, 0, fmt.Errorf("backtest: %w", err)
	}
	if err := o.results.SaveBacktest(ctx, date, records); err != nil {
		return "", res.Stats, 0, fmt.Errorf("save backtest: %w", err)
	}

	return dateProcessed, res.Stats, len(res.Records), nil
}

// Summarize recomputes the strategy summary from every stored date. Dates
// with a selection but no backtest are backtested; stored backtests get
// their undefined horizons refilled. Returns the ranked performance and the
// number of horizons filled.
func (o *Orchestrator) Summarize(ctx context.Context) ([]contracts.StrategyPerformance, int, error) {
	start := time.Now()

	selDates, err := o.results.SelectionDates(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list selection dates: %w", err)
	}
	// 기준 종목의 마지막 거래일 이후 데이터가 없는 기록은 재조회하지 않는다
	latest, err := o.calendar.LastSession(ctx)
	if err != nil {
		o.logger.WithError(err).Warn("Reference session unknown, refilling every incomplete record")
		latest = time.Time{}
	}

	var (
		all    []contracts.BacktestRecord
		filled int
	)
	for _, date := range selDates {
		if err := ctx.Err(); err != nil {
			return nil, filled, err
		}
		records, n, err := o.refreshDate(ctx, date, latest)
		if err != nil {
			o.logger.WithError(err).WithDate(date).Warn("Backtest refresh failed")
			continue
		}
		filled += n
		all = append(all, records...)
	}

	perf := backtest.Aggregate(all, o.backtester.Horizons(), o.config.Strategies...)
	if err := o.results.SaveSummary(ctx, perf); err != nil {
		return nil, filled, fmt.Errorf("save summary: %w", err)
	}

	o.metrics.ObserveStage("summarize", time.Since(start).Seconds())
	o.logger.WithFields(map[string]interface{}{
		"dates":      len(selDates),
		"records":    len(all),
		"strategies": len(perf),
		"filled":     filled,
	}).Info("Summary updated")

	return backtest.Rank(perf), filled, nil
}

// refreshDate returns the up-to-date backtest of date, saving it when changed
func (o *Orchestrator) refreshDate(ctx context.Context, date, latest time.Time) ([]contracts.BacktestRecord, int, error) {
	prev, err := o.results.LoadBacktest(ctx, date)
	if err != nil {
		return nil, 0, fmt.Errorf("load backtest: %w", err)
	}

	if prev == nil {
		sel, err := o.results.LoadSelection(ctx, date)
		if err != nil {
			return nil, 0, fmt.Errorf("load selection: %w", err)
		}
		records, err := o.backtester.Backtest(ctx, sel)
		if err != nil {
			return nil, 0, err
		}
		if err := o.results.SaveBacktest(ctx, date, records); err != nil {
			return nil, 0, fmt.Errorf("save backtest: %w", err)
		}
		return records, 0, nil
	}

	records, n, err := o.backtester.Refill(ctx, prev, latest)
	if err != nil {
		return nil, 0, err
	}
	if n > 0 || advanced(prev, records) {
		if err := o.results.SaveBacktest(ctx, date, records); err != nil {
			return nil, 0, fmt.Errorf("save backtest: %w", err)
		}
	}
	return records, n, nil
}

// advanced reports whether any record was measured on newer data
func advanced(prev, next []contracts.BacktestRecord) bool {
	for i := range prev {
		if i < len(next) && next[i].AsOf.After(prev[i].AsOf) {
			return true
		}
	}
	return false
}
