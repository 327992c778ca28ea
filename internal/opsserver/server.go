// Package opsserver serves Prometheus metrics and a liveness probe.
package opsserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"torrplay.app/player/internal/buildinfo"
	"torrplay.app/player/internal/domain"
	tplog "torrplay.app/player/internal/log"
)

const shutdownTimeout = 5 * time.Second

// StatusSource reports the current playback status for /healthz.
type StatusSource interface {
	Status() domain.PlaybackStatus
}

type healthResponse struct {
	Status      string             `json:"status"`
	Version     string             `json:"version"`
	Environment domain.Environment `json:"environment"`
	Active      bool               `json:"active"`
}

// NewRouter builds the ops routes. status may be nil.
func NewRouter(status StatusSource) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		resp := healthResponse{Status: "ok", Version: buildinfo.Version}
		if status != nil {
			st := status.Status()
			resp.Environment = st.Environment
			resp.Active = st.RequestID != ""
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	return r
}

type Server struct {
	addr    string
	handler http.Handler
	logger  zerolog.Logger
}

func New(addr string, handler http.Handler) *Server {
	return &Server{
		addr:    addr,
		handler: handler,
		logger:  tplog.WithComponent("ops"),
	}
}

// Run listens until ctx is done and then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("ops server listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("ops_server_listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.logger.Error().Err(err).Msg("ops_server_failed")
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ops server shutdown: %w", err)
	}
	<-errCh
	s.logger.Info().Msg("ops_server_stopped")
	return nil
}
