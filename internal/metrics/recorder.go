package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records engine metrics on its own registry.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	symbols        *prometheus.CounterVec
	matches        *prometheus.CounterVec
	dates          *prometheus.CounterVec
	backtests      *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	lastRunSeconds prometheus.Gauge
}

// New creates a recorder with Go runtime and process collectors registered
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		symbols: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "zscreen",
				Name:      "symbols_total",
				Help:      "Symbols visited by the selection engine by outcome",
			},
			[]string{"outcome"},
		),
		matches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "zscreen",
				Name:      "strategy_matches_total",
				Help:      "Strategy matches by strategy label",
			},
			[]string{"strategy"},
		),
		dates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "zscreen",
				Subsystem: "batch",
				Name:      "dates_total",
				Help:      "Batch dates by outcome",
			},
			[]string{"outcome"},
		),
		backtests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "zscreen",
				Subsystem: "backtest",
				Name:      "records_total",
				Help:      "Backtest records by status",
			},
			[]string{"status"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "zscreen",
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"stage"},
		),
		lastRunSeconds: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "zscreen",
				Subsystem: "batch",
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last batch run finished",
			},
		),
	}
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordSymbol counts one symbol outcome (processed, skipped, failed)
func (r *Recorder) RecordSymbol(outcome string) {
	if r == nil {
		return
	}
	r.symbols.WithLabelValues(outcome).Inc()
}

// RecordMatch counts a strategy match
func (r *Recorder) RecordMatch(strategy string) {
	if r == nil {
		return
	}
	r.matches.WithLabelValues(strategy).Inc()
}

// RecordDate counts one batch date outcome
func (r *Recorder) RecordDate(outcome string) {
	if r == nil {
		return
	}
	r.dates.WithLabelValues(outcome).Inc()
}

// RecordBacktest counts a backtest record by status
func (r *Recorder) RecordBacktest(status string) {
	if r == nil {
		return
	}
	r.backtests.WithLabelValues(status).Inc()
}

// ObserveStage records a stage duration in seconds
func (r *Recorder) ObserveStage(stage string, seconds float64) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// MarkRunFinished sets the last run timestamp to now
func (r *Recorder) MarkRunFinished() {
	if r == nil {
		return
	}
	r.lastRunSeconds.SetToCurrentTime()
}
