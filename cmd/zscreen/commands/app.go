package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wonny/zscreen/internal/backtest"
	"github.com/wonny/zscreen/internal/batch"
	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/internal/metrics"
	"github.com/wonny/zscreen/internal/pricestore"
	"github.com/wonny/zscreen/internal/results"
	"github.com/wonny/zscreen/internal/selection"
	"github.com/wonny/zscreen/internal/strategies"
	"github.com/wonny/zscreen/internal/strategyconfig"
	"github.com/wonny/zscreen/pkg/config"
	"github.com/wonny/zscreen/pkg/logger"
)

// app wires the stores and engines shared by all commands
type app struct {
	cfg         *config.Config
	log         *logger.Logger
	strategies  *strategyconfig.Config
	configHash  string
	registry    *strategies.Registry
	metrics     *metrics.Recorder
	prices      contracts.PriceStore
	results     contracts.ResultStore
	calendar    *batch.Calendar
	selector    *selection.Engine
	backtester  *backtest.Engine
	closePrices func()
}

// newApp loads configuration and opens the stores.
// Configuration errors abort before any evaluation.
func newApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Strategy config + registry
	path := cfg.StrategyConfig
	if strategyFile != "" {
		path = strategyFile
	}
	scfg, _, err := strategyconfig.Load(path)
	if err != nil {
		return nil, err
	}
	registry, err := strategies.Build(strategies.Builtins(), scfg)
	if err != nil {
		return nil, err
	}
	// HISTORY_TAIL보다 긴 워밍업이 필요한 전략은 절대 매칭되지 않는다
	if err := registry.CheckHistory(cfg.Engine.HistoryTail); err != nil {
		return nil, err
	}
	for _, w := range strategyconfig.Warn(scfg) {
		log.WithField("code", w.Code).Warn(w.Message)
	}
	hash, err := strategyconfig.Hash(scfg)
	if err != nil {
		return nil, fmt.Errorf("hash strategy config: %w", err)
	}

	// 4. Metrics
	var rec *metrics.Recorder
	if cfg.MetricsEnabled {
		rec = metrics.New()
	}

	// 5. Stores
	prices, closePrices, err := pricestore.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open price store: %w", err)
	}
	res, err := results.Open(ctx, cfg)
	if err != nil {
		closePrices()
		return nil, fmt.Errorf("open result store: %w", err)
	}

	// 6. Engines
	selector := selection.NewEngine(prices, registry, selection.Config{
		Workers:       cfg.Engine.Workers,
		PartitionSize: cfg.Engine.PartitionSize,
		HistoryTail:   cfg.Engine.HistoryTail,
	}, log, rec)
	backtester := backtest.NewEngine(prices, backtest.Config{
		Horizons:  scfg.Backtest.Horizons,
		Reference: scfg.Backtest.Reference,
		Workers:   cfg.Engine.Workers,
	}, log, rec)

	log.WithFields(map[string]interface{}{
		"strategies":  registry.Names(),
		"horizons":    scfg.Backtest.Horizons,
		"reference":   scfg.Backtest.Reference,
		"price_store": cfg.PriceBackend,
		"results":     cfg.ResultBackend,
	}).Debug("Initialized")

	return &app{
		cfg:         cfg,
		log:         log,
		strategies:  scfg,
		configHash:  hash,
		registry:    registry,
		metrics:     rec,
		prices:      prices,
		results:     res,
		calendar:    batch.NewCalendar(prices, cfg.Engine.ReferenceSymbol),
		selector:    selector,
		backtester:  backtester,
		closePrices: closePrices,
	}, nil
}

// orchestrator builds a batch orchestrator over the app's engines
func (a *app) orchestrator(skipExisting bool, workers int) *batch.Orchestrator {
	if workers < 1 {
		workers = a.cfg.Engine.BatchWorkers
	}
	return batch.NewOrchestrator(a.selector, a.backtester, a.results, a.calendar, batch.Config{
		Workers:      workers,
		SkipExisting: skipExisting,
		ConfigHash:   a.configHash,
		Strategies:   a.registry.Names(),
	}, a.log, a.metrics)
}

// Close releases the stores
func (a *app) Close() {
	if err := a.results.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close result store")
	}
	a.closePrices()
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// describeSetupError prints configuration errors one per line
func describeSetupError(err error) {
	var cfgErr *strategyconfig.ConfigurationError
	if errors.As(err, &cfgErr) {
		PrintError("Invalid strategy configuration")
		for _, e := range cfgErr.Errors {
			fmt.Printf("   • %s\n", e.Error())
		}
		return
	}
	PrintError(err.Error())
}
