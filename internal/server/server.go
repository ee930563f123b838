package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trialsize/trialsize/internal/sizing"
	"github.com/trialsize/trialsize/internal/store"
)

type Server struct {
	store     *store.SQLiteStore
	port      int
	policy    sizing.Policy
	router    *http.ServeMux
	logger    *slog.Logger
	startTime time.Time
	now       func() time.Time
}

func New(s *store.SQLiteStore, port int, policy sizing.Policy) *Server {
	srv := &Server{
		store:     s,
		port:      port,
		policy:    policy,
		router:    http.NewServeMux(),
		logger:    slog.New(slog.NewTextHandler(os.Stderr, nil)),
		startTime: time.Now(),
		now:       time.Now,
	}

	srv.setupRoutes()
	return srv
}

// WithLogger replaces the server's logger.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.logger = l
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.HandleFunc("/b", s.handleBeacon)
	s.router.Handle("/metrics", promhttp.Handler())

	// Read API
	s.router.HandleFunc("/api/experiments", s.handleExperiments)
	s.router.HandleFunc("/api/experiments/", s.handleExperimentDetail)
	s.router.HandleFunc("/api/size", s.handleSize)
	s.router.HandleFunc("/api/exposure", s.handleExposure)
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)

	s.logger.Info("trialsize listening", "addr", addr, "url", fmt.Sprintf("http://localhost:%d", s.port))

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// Handler returns the router wrapped with request logging and metrics.
func (s *Server) Handler() http.Handler {
	return s.instrument(s.router)
}
