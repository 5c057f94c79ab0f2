// SPDX-License-Identifier: AGPL-3.0-or-later

// Package admin implements the operational surface spec.md §6.3 calls out
// separately from the application's own HTTP surface: a chi-routed,
// operator-facing server exposing health, Prometheus metrics, and a
// per-Worker status table, routed in the style of a chi-based admin API
// with gzip-compressed, instrumented middleware layered in front.
package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pagi-run/pagi/internal/logging"
	"github.com/pagi-run/pagi/internal/middleware"
	pagimetrics "github.com/pagi-run/pagi/internal/metrics"
)

// Config bounds the admin HTTP server, sourced from internal/config.
type Config struct {
	// Addr is the listen address for the admin surface, e.g.
	// "127.0.0.1:9090". It is always bound separately from the
	// application's own gateway listener.
	Addr string
}

// Status is the per-Worker snapshot rendered at /admin/workers.
type Status struct {
	WorkerPID         int   `json:"worker_pid"`
	ActiveConnections int64 `json:"active_connections"`
	MaxConnections    int64 `json:"max_connections"`
}

// StatusFunc produces the current Status on demand.
type StatusFunc func() Status

// Service is a suture.Service running the admin HTTP server.
type Service struct {
	cfg      Config
	statusFn StatusFunc
	srv      *http.Server
}

// NewService constructs an admin Service. statusFn is called once per
// request to /admin/workers.
func NewService(cfg Config, statusFn StatusFunc) *Service {
	return &Service{cfg: cfg, statusFn: statusFn}
}

// Serve implements suture.Service: run the admin HTTP server until ctx is
// cancelled, then shut it down gracefully.
func (s *Service) Serve(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Prometheus)
	r.Use(middleware.Compression)

	r.Get("/admin/healthz", s.handleHealthz)
	r.Get("/admin/workers", s.handleWorkers)
	r.Handle("/admin/metrics", promhttp.HandlerFor(pagimetrics.Registry(), promhttp.HandlerOpts{}))

	s.srv = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("admin server shutdown did not complete cleanly")
		}
		<-errCh
		return nil
	}
}

func (s *Service) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Service) handleWorkers(w http.ResponseWriter, r *http.Request) {
	status := s.statusFn()
	logging.Ctx(r.Context()).Info().
		Int("worker_pid", status.WorkerPID).
		Int64("active_connections", status.ActiveConnections).
		Msg("admin: workers status requested")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}
