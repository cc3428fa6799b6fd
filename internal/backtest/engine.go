package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/internal/metrics"
	"github.com/wonny/zscreen/pkg/logger"
)

// Engine measures forward returns of selection records
// ⭐ SSOT: 백테스트 수익률 계산은 여기서만
type Engine struct {
	store   contracts.PriceStore
	config  Config
	logger  *logger.Logger
	metrics *metrics.Recorder
}

// Config holds backtest configuration
type Config struct {
	Horizons  []int  // forward sessions, ascending
	Reference string // close | next_open
	Workers   int    // concurrent symbol loads
}

// NewEngine creates a new backtest engine
func NewEngine(store contracts.PriceStore, cfg Config, log *logger.Logger, rec *metrics.Recorder) *Engine {
	if len(cfg.Horizons) == 0 {
		cfg.Horizons = contracts.DefaultHorizons
	}
	if cfg.Reference == "" {
		cfg.Reference = contracts.ReferenceClose
	}
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	return &Engine{
		store:   store,
		config:  cfg,
		logger:  log.WithField("module", "backtest"),
		metrics: rec,
	}
}

// Horizons returns the configured horizon set
func (e *Engine) Horizons() []int {
	return e.config.Horizons
}

// Backtest computes one BacktestRecord per selection record, in input order.
// A symbol that cannot be loaded yields a no_data record.
func (e *Engine) Backtest(ctx context.Context, records []contracts.SelectionRecord) ([]contracts.BacktestRecord, error) {
	start := time.Now()

	symbols := make([]string, 0, len(records))
	for _, r := range records {
		symbols = append(symbols, r.Symbol)
	}
	series, err := e.load(ctx, symbols)
	if err != nil {
		return nil, err
	}

	out := make([]contracts.BacktestRecord, len(records))
	for i, r := range records {
		out[i] = Compute(series[r.Symbol], r, e.config.Horizons, e.config.Reference)
		e.metrics.RecordBacktest(string(out[i].Status))
	}

	e.metrics.ObserveStage("backtest", time.Since(start).Seconds())
	e.logger.WithFields(map[string]interface{}{
		"records":   len(records),
		"reference": e.config.Reference,
		"horizons":  e.config.Horizons,
	}).Debug("Backtest completed")

	return out, nil
}

// Refill completes undefined horizons of previously stored records whose
// series may have grown past latest (zero latest = always reload).
// Returns the updated records and how many horizon values were filled.
func (e *Engine) Refill(ctx context.Context, prev []contracts.BacktestRecord, latest time.Time) ([]contracts.BacktestRecord, int, error) {
	var symbols []string
	for _, r := range prev {
		if r.Stale(latest) {
			symbols = append(symbols, r.Symbol)
		}
	}
	if len(symbols) == 0 {
		return prev, 0, nil
	}

	series, err := e.load(ctx, symbols)
	if err != nil {
		return nil, 0, err
	}

	out := make([]contracts.BacktestRecord, len(prev))
	filled := 0
	for i, r := range prev {
		if !r.Stale(latest) {
			out[i] = r
			continue
		}
		updated, n := Fill(series[r.Symbol], r)
		out[i] = updated
		filled += n
	}
	return out, filled, nil
}

// load fetches each distinct symbol once. Per-symbol errors are logged and
// leave the symbol absent; only cancellation fails the call.
func (e *Engine) load(ctx context.Context, symbols []string) (map[string]*contracts.SymbolSeries, error) {
	seen := make(map[string]bool, len(symbols))
	symCh := make(chan string, len(symbols))
	for _, s := range symbols {
		if !seen[s] {
			seen[s] = true
			symCh <- s
		}
	}
	close(symCh)

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		series = make(map[string]*contracts.SymbolSeries, len(seen))
	)
	for i := 0; i < e.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range symCh {
				if ctx.Err() != nil {
					return
				}
				s, err := e.store.GetSeries(ctx, symbol)
				if err == nil {
					err = s.Validate()
				}
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						e.logger.WithError(err).WithSymbol(symbol).Warn("Forward series unavailable")
					}
					continue
				}
				mu.Lock()
				series[symbol] = s
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("backtest load: %w", err)
	}
	return series, nil
}
