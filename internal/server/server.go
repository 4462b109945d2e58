package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"shopfast/config"
	"shopfast/internal/server/payfast"
	"shopfast/pkg/logger"
)

// HealthChecker is what the store exposes for liveness; nil means the
// store has nothing to probe (in-memory).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Server struct {
	server *http.Server
	log    logger.Logger
}

func New(cfg *config.Config, notifyHandler *payfast.Handler, health HealthChecker, log logger.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Server.NotifyPath, notifyHandler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health.HealthCheck(r.Context()); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{server: srv, log: log}
}

func (s *Server) Start(ctx context.Context) error {
	s.log.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	errChan := make(chan error, 1)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.log.Error("HTTP server shutdown error", zap.Error(err))
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("HTTP server error: %w", err)
	}
}
