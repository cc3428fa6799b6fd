package handlers

import (
	"errors"
	"net/http"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/internal/results"
	"github.com/wonny/zscreen/pkg/logger"
)

// ResultsHandler serves stored selections, backtests and the summary
// ⭐ SSOT: 결과 조회 API 핸들러는 여기서만
type ResultsHandler struct {
	store  contracts.ResultStore
	logger *logger.Logger
}

// NewResultsHandler creates a new results handler
func NewResultsHandler(store contracts.ResultStore, log *logger.Logger) *ResultsHandler {
	return &ResultsHandler{
		store:  store,
		logger: log,
	}
}

// SelectionDatesResponse lists dates with a stored selection
type SelectionDatesResponse struct {
	Dates []string `json:"dates"`
	Count int      `json:"count"`
}

// SelectionResponse is the selection of one date
type SelectionResponse struct {
	Date     string                      `json:"date"`
	Strategy string                      `json:"strategy,omitempty"`
	Count    int                         `json:"count"`
	Records  []contracts.SelectionRecord `json:"records"`
}

// BacktestResponse is the backtest of one date
type BacktestResponse struct {
	Date    string                     `json:"date"`
	Count   int                        `json:"count"`
	Records []contracts.BacktestRecord `json:"records"`
}

// SummaryResponse is the ranked strategy summary
type SummaryResponse struct {
	Strategies []contracts.StrategyPerformance `json:"strategies"`
}

// ListSelections returns the dates with a stored selection
// GET /api/selections
func (h *ResultsHandler) ListSelections(w http.ResponseWriter, r *http.Request) {
	dates, err := h.store.SelectionDates(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list selection dates")
		respondError(w, http.StatusInternalServerError, "Failed to list selections")
		return
	}

	keys := make([]string, len(dates))
	for i, d := range dates {
		keys[i] = contracts.DateKey(d)
	}
	respondJSON(w, http.StatusOK, SelectionDatesResponse{Dates: keys, Count: len(keys)})
}

// GetSelection returns the selection of one date
// GET /api/selections/{date}?strategy=BBIKDJ
func (h *ResultsHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid date format (expected YYYY-MM-DD)")
		return
	}

	records, err := h.store.LoadSelection(r.Context(), date)
	if err != nil {
		if errors.Is(err, results.ErrNotFound) {
			respondError(w, http.StatusNotFound, "No selection for "+contracts.DateKey(date))
			return
		}
		h.logger.WithError(err).WithDate(date).Error("Failed to load selection")
		respondError(w, http.StatusInternalServerError, "Failed to load selection")
		return
	}

	// 전략 필터 (선택)
	strategy := r.URL.Query().Get("strategy")
	if strategy != "" {
		filtered := make([]contracts.SelectionRecord, 0, len(records))
		for _, rec := range records {
			if rec.Has(strategy) {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	if records == nil {
		records = []contracts.SelectionRecord{}
	}

	respondJSON(w, http.StatusOK, SelectionResponse{
		Date:     contracts.DateKey(date),
		Strategy: strategy,
		Count:    len(records),
		Records:  records,
	})
}

// GetBacktest returns the backtest records of one date
// GET /api/backtests/{date}
func (h *ResultsHandler) GetBacktest(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid date format (expected YYYY-MM-DD)")
		return
	}

	records, err := h.store.LoadBacktest(r.Context(), date)
	if err != nil {
		h.logger.WithError(err).WithDate(date).Error("Failed to load backtest")
		respondError(w, http.StatusInternalServerError, "Failed to load backtest")
		return
	}
	if records == nil {
		respondError(w, http.StatusNotFound, "No backtest for "+contracts.DateKey(date))
		return
	}

	respondJSON(w, http.StatusOK, BacktestResponse{
		Date:    contracts.DateKey(date),
		Count:   len(records),
		Records: records,
	})
}

// GetSummary returns the strategy summary
// GET /api/summary
func (h *ResultsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	perf, err := h.store.LoadSummary(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load summary")
		respondError(w, http.StatusInternalServerError, "Failed to load summary")
		return
	}
	respondJSON(w, http.StatusOK, SummaryResponse{Strategies: perf})
}
