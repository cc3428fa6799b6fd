package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/zscreen/internal/api/handlers"
	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/internal/metrics"
	"github.com/wonny/zscreen/internal/results"
	"github.com/wonny/zscreen/internal/strategies"
	"github.com/wonny/zscreen/internal/strategyconfig"
	"github.com/wonny/zscreen/pkg/logger"
)

var day = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()

	store, err := results.NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.SaveSelection(ctx, day, []contracts.SelectionRecord{
		{Date: day, Symbol: "000001", Strategies: []string{"BBIKDJ", "SuperB1"}},
		{Date: day, Symbol: "600519", Strategies: []string{"PeakKDJ"}},
	}))
	require.NoError(t, store.SaveBacktest(ctx, day, []contracts.BacktestRecord{
		{Date: day, Symbol: "000001", Strategies: []string{"BBIKDJ"}, Status: contracts.BacktestPending},
	}))
	require.NoError(t, store.SaveSummary(ctx, []contracts.StrategyPerformance{{Strategy: "BBIKDJ", Count: 1}}))

	registry, err := strategies.Build(strategies.Builtins(), strategyconfig.Default())
	require.NoError(t, err)

	log := logger.NewNop()
	return NewRouter(
		handlers.NewResultsHandler(store, log),
		handlers.NewStrategyHandler(registry),
		metrics.New().Handler(),
		log,
	)
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]interface{}
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestRouter_Endpoints(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name   string
		path   string
		status int
		check  func(t *testing.T, body map[string]interface{})
	}{
		{"health", "/health", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.Equal(t, "ok", body["status"])
		}},
		{"selection dates", "/api/selections", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.Equal(t, []interface{}{"2025-03-03"}, body["dates"])
		}},
		{"selection", "/api/selections/2025-03-03", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.EqualValues(t, 2, body["count"])
		}},
		{"selection filtered", "/api/selections/2025-03-03?strategy=SuperB1", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.EqualValues(t, 1, body["count"])
			assert.Equal(t, "SuperB1", body["strategy"])
		}},
		{"selection missing", "/api/selections/2025-03-04", http.StatusNotFound, nil},
		{"selection bad date", "/api/selections/20250303", http.StatusBadRequest, nil},
		{"backtest", "/api/backtests/2025-03-03", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.EqualValues(t, 1, body["count"])
		}},
		{"backtest missing", "/api/backtests/2025-03-04", http.StatusNotFound, nil},
		{"summary", "/api/summary", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.Len(t, body["strategies"], 1)
		}},
		{"strategies", "/api/strategies", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.EqualValues(t, 6, body["count"])
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := get(t, h, tt.path)
			assert.Equal(t, tt.status, rec.Code)
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	h := newTestRouter(t)
	rec, _ := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRecoveryMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	h := recoveryMiddleware(logger.NewNop())(panicky)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}
