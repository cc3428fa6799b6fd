package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/zscreen/internal/api/handlers"
	"github.com/wonny/zscreen/pkg/logger"
)

// NewRouter creates and configures the HTTP router.
// metricsHandler may be nil when metrics are disabled.
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(
	resultsHandler *handlers.ResultsHandler,
	strategyHandler *handlers.StrategyHandler,
	metricsHandler http.Handler,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Result endpoints
	api.HandleFunc("/selections", resultsHandler.ListSelections).Methods("GET")
	api.HandleFunc("/selections/{date}", resultsHandler.GetSelection).Methods("GET")
	api.HandleFunc("/backtests/{date}", resultsHandler.GetBacktest).Methods("GET")
	api.HandleFunc("/summary", resultsHandler.GetSummary).Methods("GET")

	// Strategy endpoints
	api.HandleFunc("/strategies", strategyHandler.List).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "zscreen-api",
	})
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
