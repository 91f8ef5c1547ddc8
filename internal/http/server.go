package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/pgtools/go-pq-replica/config"
	"github.com/pgtools/go-pq-replica/internal/metric"
	"github.com/pgtools/go-pq-replica/logger"
	"github.com/pgtools/go-pq-replica/pq/status"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ReportProvider interface {
	Status(ctx context.Context) (*status.Report, error)
}

type Server interface {
	Listen()
	Shutdown()
}

type server struct {
	reportProvider ReportProvider
	server         http.Server
	cfg            config.Config
	closed         bool
}

func NewServer(cfg config.Config, registry metric.Registry, reportProvider ReportProvider) Server {
	s := &server{
		cfg:            cfg,
		reportProvider: reportProvider,
	}

	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.HandlerFor(registry.Prometheus(), promhttp.HandlerOpts{EnableOpenMetrics: true}))

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("GET /replication", s.handleReplicationStatus)

	if cfg.DebugMode {
		mux.Handle("GET /pprof", pprof.Handler("go-pq-replica"))
	}

	s.server = http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Metric.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	return s
}

func (s *server) Listen() {
	logger.Info(fmt.Sprintf("server starting on port :%d", s.cfg.Metric.Port))

	err := s.server.ListenAndServe()
	if err != nil {
		if errors.Is(err, http.ErrServerClosed) && s.closed {
			logger.Info("server stopped")
			return
		}
		logger.Error("server cannot start", "port", s.cfg.Metric.Port, "error", err)
	}
}

func (s *server) Shutdown() {
	if s == nil {
		return
	}
	s.closed = true
	err := s.server.Shutdown(context.Background())
	if err != nil {
		logger.Error("error while api cannot be shutdown", "error", err)
		panic(err)
	}
}

func (s *server) handleReplicationStatus(w http.ResponseWriter, r *http.Request) {
	if s.reportProvider == nil {
		http.Error(w, "replication status not available", http.StatusServiceUnavailable)
		return
	}

	report, err := s.reportProvider.Status(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		logger.Error("failed to encode replication status response", "error", err)
	}
}
