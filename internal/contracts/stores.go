package contracts

import (
	"context"
	"time"
)

// PriceStore supplies per-symbol daily bars
// ⭐ SSOT: 시세 저장소는 읽기 전용, 동시 읽기 안전해야 한다
type PriceStore interface {
	// GetSeries returns the full available history of symbol.
	// Unknown symbols return an error wrapping ErrSymbolNotFound.
	GetSeries(ctx context.Context, symbol string) (*SymbolSeries, error)
	// GetUniverse returns the symbols eligible on asOf, sorted
	GetUniverse(ctx context.Context, asOf time.Time) ([]string, error)
}

// ResultStore persists per-date selection and backtest outputs
// ⭐ SSOT: 날짜별 결과는 날짜당 정확히 한 작업만 기록한다
type ResultStore interface {
	// HasSelection reports whether a complete, well-formed selection exists for date
	HasSelection(ctx context.Context, date time.Time) (bool, error)
	// SaveSelection replaces the selection of date and drops its backtest,
	// which was derived from the previous selection
	SaveSelection(ctx context.Context, date time.Time, records []SelectionRecord) error
	LoadSelection(ctx context.Context, date time.Time) ([]SelectionRecord, error)
	SelectionDates(ctx context.Context) ([]time.Time, error)

	SaveBacktest(ctx context.Context, date time.Time, records []BacktestRecord) error
	// LoadBacktest returns (nil, nil) when the date has no backtest yet
	LoadBacktest(ctx context.Context, date time.Time) ([]BacktestRecord, error)
	BacktestDates(ctx context.Context) ([]time.Time, error)

	SaveSummary(ctx context.Context, perf []StrategyPerformance) error
	LoadSummary(ctx context.Context) ([]StrategyPerformance, error)

	Close() error
}
