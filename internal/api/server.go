// Package api serves the run history and run outputs over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/hydro.report/internal/keytree"
	"github.com/banshee-data/hydro.report/internal/monitoring"
	"github.com/banshee-data/hydro.report/internal/simrun"
)

// History is the read side of the run database.
type History interface {
	RunCounter
	ListRuns(name string, limit int) ([]*simrun.Record, error)
	GetRun(id uuid.UUID) (*simrun.Record, error)
	RunTree(id uuid.UUID) (*keytree.Tree, error)
}

type Server struct {
	history    History
	registry   *prometheus.Registry
	httpServer *http.Server
}

// NewServer creates a server for history listening on addr. Its metrics
// registry carries the history gauges and the Go runtime collector.
func NewServer(addr string, history History) *Server {
	s := &Server{
		history:  history,
		registry: prometheus.NewRegistry(),
	}
	s.registry.MustRegister(newHistoryCollector(history), collectors.NewGoCollector())
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      LoggingMiddleware(s.ServeMux()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Minute,
		IdleTimeout:  time.Minute,
	}
	return s
}

// Registry returns the registry served on /metrics.
func (s *Server) Registry() *prometheus.Registry { return s.registry }

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.showRun)
	mux.HandleFunc("GET /api/runs/{id}/keys", s.runKeys)
	mux.HandleFunc("GET /runs/{id}/report", s.runReport)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// ServeHTTP delegates to the logged handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// Run listens until ctx is cancelled, then drains open requests for up to
// five seconds.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("serving run history on %s", s.httpServer.Addr)
		errc <- s.httpServer.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
