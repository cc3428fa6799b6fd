package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/wonny/zscreen/pkg/config"
	"github.com/wonny/zscreen/pkg/logger"
)

// ShutdownGrace bounds how long in-flight result queries may finish after
// the serve context is cancelled
const ShutdownGrace = 30 * time.Second

// Server serves the read-only results API
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	srv    *http.Server
	logger *logger.Logger
	grace  time.Duration
}

// New prepares a server for cfg.Port. Nothing listens until Listen.
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second, // 전체 요약 조회 여유
			IdleTimeout:       60 * time.Second,
		},
		logger: log.WithComponent("api").WithField("results", cfg.ResultBackend),
		grace:  ShutdownGrace,
	}
}

// Listen binds the configured address. Port "0" picks a free port,
// reported by the listener's Addr.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	return ln, nil
}

// Serve handles requests on ln until ctx is cancelled, then drains
// in-flight requests for up to the shutdown grace period.
// A cancelled context is a normal stop and returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := s.logger.WithField("addr", ln.Addr().String())
	log.Info("API server listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	// 부모 ctx는 이미 취소됨 → 별도 타임아웃으로 drain
	drainCtx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()
	if err := s.srv.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("API server stopped")
	return nil
}

// Run listens on the configured port and serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
