// Package server exposes the transaction pipeline and store over HTTP.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/internal/async"
	"github.com/joseph-ayodele/deeds-tracker/internal/metrics"
	"github.com/joseph-ayodele/deeds-tracker/internal/pipeline"
	"github.com/joseph-ayodele/deeds-tracker/internal/repository"
)

// Pipeline is satisfied by *pipeline.Processor.
type Pipeline interface {
	Process(ctx context.Context, profile string, doc pipeline.Document) (*pipeline.Report, error)
	HasProfile(name string) bool
	Profiles() []string
}

// Exporter renders filtered transactions as a spreadsheet.
type Exporter interface {
	ExportTransactionsXLSX(ctx context.Context, f repository.TransactionFilter) ([]byte, error)
}

type Config struct {
	MaxUploadBytes int64
	// Async makes uploads return 202 unless the request sets async=false.
	Async bool
}

type Server struct {
	cfg      Config
	pipeline Pipeline
	jobs     async.Queue
	repo     repository.TransactionRepository
	exporter Exporter
	logger   *zap.Logger
}

// New wires the handlers. jobs may be nil, in which case every upload runs inline.
func New(
	cfg Config,
	pipe Pipeline,
	jobs async.Queue,
	repo repository.TransactionRepository,
	exporter Exporter,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 25 << 20
	}
	return &Server{
		cfg:      cfg,
		pipeline: pipe,
		jobs:     jobs,
		repo:     repo,
		exporter: exporter,
		logger:   logger,
	}
}

// Routes builds the chi router with the standard middleware chain.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/transaction/upload", s.upload)
	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", s.listTransactions)
		r.Delete("/", s.deleteTransactions)
		r.Post("/upload", s.upload)
		r.Get("/export", s.exportTransactions)
		r.Get("/jobs/{id}", s.getJob)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})
	return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, http.StatusOK, "ok", map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		s.log(r).Warn("server.readyz.failed", zap.Error(err))
		writeFailure(w, http.StatusServiceUnavailable, "UNAVAILABLE", "store is not reachable")
		return
	}
	writeOK(w, http.StatusOK, "ready", map[string]string{"status": "ready"})
}
