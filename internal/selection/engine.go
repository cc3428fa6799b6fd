package selection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/internal/indicators"
	"github.com/wonny/zscreen/internal/metrics"
	"github.com/wonny/zscreen/internal/strategies"
	"github.com/wonny/zscreen/pkg/logger"
)

// Engine evaluates every enabled strategy against every symbol for one date
// ⭐ SSOT: 종목 선정 로직은 여기서만
type Engine struct {
	store    contracts.PriceStore
	registry *strategies.Registry
	config   Config
	logger   *logger.Logger
	metrics  *metrics.Recorder
}

// Config holds engine tuning
type Config struct {
	Workers       int // concurrent partitions
	PartitionSize int // symbols per partition
	HistoryTail   int // bars kept before the as-of date (0 = all)
}

// DefaultConfig returns the default tuning
func DefaultConfig() Config {
	return Config{Workers: 8, PartitionSize: 200, HistoryTail: 400}
}

// Result is the output of one selection run
type Result struct {
	Date    time.Time
	Records []contracts.SelectionRecord
	Stats   contracts.SelectionStats
}

// NewEngine creates a new selection engine
func NewEngine(store contracts.PriceStore, registry *strategies.Registry, cfg Config, log *logger.Logger, rec *metrics.Recorder) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.PartitionSize < 1 {
		cfg.PartitionSize = DefaultConfig().PartitionSize
	}
	return &Engine{
		store:    store,
		registry: registry,
		config:   cfg,
		logger:   log.WithField("module", "selection"),
		metrics:  rec,
	}
}

// Registry returns the strategies this engine evaluates
func (e *Engine) Registry() *strategies.Registry {
	return e.registry
}

// symbolOutcome is the per-symbol result of one evaluation
type symbolOutcome struct {
	symbol string
	record *contracts.SelectionRecord
	status string // processed | skipped | failed
	err    error
}

const (
	outcomeProcessed = "processed"
	outcomeSkipped   = "skipped"
	outcomeFailed    = "failed"
)

// Select runs all strategies for date over universe. A nil universe asks
// the price store for the symbols listed on date. Per-symbol failures are
// counted in Stats and never abort the run; only cancellation does.
func (e *Engine) Select(ctx context.Context, date time.Time, universe []string) (*Result, error) {
	start := time.Now()
	date = contracts.Day(date)

	if universe == nil {
		u, err := e.store.GetUniverse(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("get universe: %w", err)
		}
		universe = u
	}
	universe = unique(universe)

	e.logger.WithFields(map[string]interface{}{
		"date":       contracts.DateKey(date),
		"universe":   len(universe),
		"strategies": e.registry.Len(),
		"workers":    e.config.Workers,
	}).Debug("Starting selection")

	// 1. 파티션 분할
	partitions := partition(universe, e.config.PartitionSize)
	partCh := make(chan []string, len(partitions))
	for _, p := range partitions {
		partCh <- p
	}
	close(partCh)

	// 2. 워커 풀
	outCh := make(chan symbolOutcome, len(universe))
	var wg sync.WaitGroup
	for i := 0; i < e.config.Workers && i < len(partitions); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for part := range partCh {
				for _, symbol := range part {
					select {
					case <-ctx.Done():
						return
					default:
					}
					outCh <- e.evaluate(ctx, symbol, date)
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(outCh)
	}()

	// 3. 결과 수집
	result := &Result{Date: date, Stats: contracts.SelectionStats{Universe: len(universe)}}
	for out := range outCh {
		e.metrics.RecordSymbol(out.status)
		switch out.status {
		case outcomeProcessed:
			result.Stats.Processed++
			if out.record != nil {
				result.Stats.Matched++
				result.Records = append(result.Records, *out.record)
				for _, s := range out.record.Strategies {
					e.metrics.RecordMatch(s)
				}
			}
		case outcomeSkipped:
			result.Stats.Skipped++
		case outcomeFailed:
			result.Stats.Failed++
			if result.Stats.FailedSymbols == nil {
				result.Stats.FailedSymbols = make(map[string]string)
			}
			result.Stats.FailedSymbols[out.symbol] = out.err.Error()
			e.logger.WithError(out.err).WithFields(map[string]interface{}{
				"symbol": out.symbol,
				"date":   contracts.DateKey(date),
			}).Warn("Symbol evaluation failed")
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contracts.SortSelection(result.Records)

	e.metrics.ObserveStage("select", time.Since(start).Seconds())
	e.logger.WithFields(map[string]interface{}{
		"date":      contracts.DateKey(date),
		"processed": result.Stats.Processed,
		"matched":   result.Stats.Matched,
		"skipped":   result.Stats.Skipped,
		"failed":    result.Stats.Failed,
		"elapsed":   time.Since(start).String(),
	}).Info("Selection completed")

	return result, nil
}

// evaluate loads one symbol and runs every strategy at date.
// A panicking rule is reported as a failure of this symbol only.
func (e *Engine) evaluate(ctx context.Context, symbol string, date time.Time) (out symbolOutcome) {
	out.symbol = symbol
	defer func() {
		if r := recover(); r != nil {
			out = symbolOutcome{symbol: symbol, status: outcomeFailed, err: fmt.Errorf("strategy panic: %v", r)}
		}
	}()

	series, err := e.store.GetSeries(ctx, symbol)
	if err != nil {
		if errors.Is(err, contracts.ErrSymbolNotFound) {
			out.status, out.err = outcomeSkipped, err
			return out
		}
		out.status, out.err = outcomeFailed, err
		return out
	}
	if err := series.Validate(); err != nil {
		out.status, out.err = outcomeFailed, err
		return out
	}
	if _, ok := series.IndexOf(date); !ok {
		// 해당일 거래 없음 (정지/미상장)
		out.status, out.err = outcomeSkipped, contracts.ErrMissingData
		return out
	}

	view := series.Until(date, e.config.HistoryTail)
	frame := indicators.NewFrame(view)
	matched, scores := e.registry.EvaluateAll(frame, view.Len()-1)

	out.status = outcomeProcessed
	if len(matched) > 0 {
		out.record = &contracts.SelectionRecord{
			Date:       date,
			Symbol:     symbol,
			Name:       series.Name,
			Strategies: matched,
			Scores:     scores,
		}
	}
	return out
}

func partition(symbols []string, size int) [][]string {
	var parts [][]string
	for start := 0; start < len(symbols); start += size {
		end := start + size
		if end > len(symbols) {
			end = len(symbols)
		}
		parts = append(parts, symbols[start:end])
	}
	return parts
}

// unique drops repeated symbols, keeping the first occurrence
func unique(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
