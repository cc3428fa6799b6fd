package commands

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/wonny/zscreen/internal/api"
	"github.com/wonny/zscreen/internal/api/handlers"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "조회 API 서버 시작",
	Long: `선정/백테스트 결과 조회용 HTTP API 서버를 시작합니다.

Endpoints:
  GET  /health                    - Health check
  GET  /metrics                   - Prometheus metrics
  GET  /api/selections            - 선정 날짜 목록
  GET  /api/selections/{date}     - 날짜별 선정 (?strategy=)
  GET  /api/backtests/{date}      - 날짜별 백테스트
  GET  /api/summary               - 전략 요약
  GET  /api/strategies            - 활성 전략 및 파라미터

Example:
  go run ./cmd/zscreen serve
  go run ./cmd/zscreen serve --port 8080`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API 서버 포트 (기본: $PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		describeSetupError(err)
		return err
	}
	defer a.Close()

	if servePort != "" {
		a.cfg.Port = servePort
	}

	var metricsHandler http.Handler
	if a.metrics != nil {
		metricsHandler = a.metrics.Handler()
	}

	router := api.NewRouter(
		handlers.NewResultsHandler(a.results, a.log),
		handlers.NewStrategyHandler(a.registry),
		metricsHandler,
		a.log,
	)
	server := api.New(a.cfg, a.log, router)

	ln, err := server.Listen()
	if err != nil {
		return err
	}
	PrintSuccess(fmt.Sprintf("Server running on http://%s", ln.Addr()))
	fmt.Println("Press Ctrl+C to stop")

	// Ctrl+C → ctx 취소 → graceful shutdown
	return server.Serve(ctx, ln)
}
