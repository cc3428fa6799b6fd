package contracts

import "time"

// Reference price conventions
const (
	ReferenceClose    = "close"     // 선정일 종가
	ReferenceNextOpen = "next_open" // 다음 거래일 시가
)

// DefaultHorizons are the forward sessions measured after a selection
var DefaultHorizons = []int{1, 3, 5, 10}

// BacktestStatus summarizes how much forward data a record has
type BacktestStatus string

const (
	BacktestComplete BacktestStatus = "complete" // 모든 기간 계산 완료
	BacktestPartial  BacktestStatus = "partial"  // 일부 기간 대기 중
	BacktestPending  BacktestStatus = "pending"  // 다음 거래일 데이터 없음
	BacktestNoData   BacktestStatus = "no_data"  // 선정일 봉 없음(정지/삭제)
)

// HorizonReturn is the forward return at one horizon; nil fields mean undefined
type HorizonReturn struct {
	Horizon   int        `json:"horizon"`
	ExitDate  *time.Time `json:"exit_date,omitempty"`
	ExitPrice *float64   `json:"exit_price,omitempty"`
	Return    *float64   `json:"return,omitempty"` // percent
}

// Defined reports whether the horizon has been computed
func (h HorizonReturn) Defined() bool {
	return h.Return != nil
}

// BacktestRecord carries forward returns of one selection record
type BacktestRecord struct {
	Date       time.Time       `json:"date"`
	Symbol     string          `json:"symbol"`
	Name       string          `json:"name,omitempty"`
	Strategies []string        `json:"strategies"`
	Reference  string          `json:"reference"`
	RefPrice   float64         `json:"ref_price"`
	Close      float64         `json:"close"`
	NextOpen   *float64        `json:"next_open,omitempty"`
	Returns    []HorizonReturn `json:"returns"`
	Status     BacktestStatus  `json:"status"`
	// AsOf is the last session of the series the returns were measured on
	AsOf time.Time `json:"as_of"`

	// NextOpenReturns measures the same exits from the next session's open
	NextOpenReturns []HorizonReturn `json:"next_open_returns,omitempty"`
}

// Return looks up the primary return at horizon h
func (r *BacktestRecord) Return(h int) (float64, bool) {
	for _, hr := range r.Returns {
		if hr.Horizon == h && hr.Return != nil {
			return *hr.Return, true
		}
	}
	return 0, false
}

// Stale reports whether the record may gain values from data through latest.
// A zero latest means unknown, so every incomplete record is stale.
func (r *BacktestRecord) Stale(latest time.Time) bool {
	if r.Complete() {
		return false
	}
	return latest.IsZero() || r.AsOf.IsZero() || r.AsOf.Before(latest)
}

// Complete reports whether every horizon is defined
func (r *BacktestRecord) Complete() bool {
	if r.Status == BacktestNoData || len(r.Returns) == 0 {
		return false
	}
	for _, hr := range r.Returns {
		if hr.Return == nil {
			return false
		}
	}
	return true
}

// HorizonStats aggregates returns at one horizon
type HorizonStats struct {
	Horizon int     `json:"horizon"`
	Samples int     `json:"samples"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"win_rate"` // percent of samples with return > 0
	Mean    float64 `json:"mean"`
	Median  float64 `json:"median"`
	StdDev  float64 `json:"std_dev"`
}

// StrategyPerformance is the per-strategy projection of backtest records
type StrategyPerformance struct {
	Strategy       string         `json:"strategy"`
	Count          int            `json:"count"`
	Horizons       []HorizonStats `json:"horizons"`
	BestHorizon    int            `json:"best_horizon,omitempty"`
	CompositeScore float64        `json:"composite_score"`
}

// Stats returns the stats at horizon h
func (p *StrategyPerformance) Stats(h int) (HorizonStats, bool) {
	for _, hs := range p.Horizons {
		if hs.Horizon == h {
			return hs, true
		}
	}
	return HorizonStats{}, false
}

// RunSummary reports a batch run
type RunSummary struct {
	RunID          string            `json:"run_id"`
	ConfigHash     string            `json:"config_hash,omitempty"`
	From           time.Time         `json:"from"`
	To             time.Time         `json:"to"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at"`
	Processed      []string          `json:"processed"`
	Skipped        []string          `json:"skipped"`
	NonTrading     int               `json:"non_trading"`
	FailedDates    map[string]string `json:"failed_dates,omitempty"`
	Symbols        SelectionStats    `json:"symbols"`
	Selections     int               `json:"selections"`
	BacktestFilled int               `json:"backtest_filled"`
}

// Failed reports whether any date failed
func (s *RunSummary) Failed() bool {
	return len(s.FailedDates) > 0
}
