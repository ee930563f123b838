package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trialsize/trialsize/internal/store"
)

var validate = validator.New()

type HealthResponse struct {
	Status          string `json:"status"`
	ExperimentCount int    `json:"experiment_count"`
	DBSizeBytes     int64  `json:"db_size_bytes"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	experiments, err := s.store.ListExperiments(ctx)
	if err != nil {
		s.logger.Error("health check failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Database size from SQLite's page accounting; zero if unavailable
	var dbSize int64
	row := s.store.DB().QueryRowContext(ctx, "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
	if err := row.Scan(&dbSize); err != nil {
		dbSize = 0
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:          "ok",
		ExperimentCount: len(experiments),
		DBSizeBytes:     dbSize,
		UptimeSeconds:   int64(time.Since(s.startTime).Seconds()),
	})
}

// BeaconRequest represents an incoming tracking event
type BeaconRequest struct {
	Experiment string `json:"x" validate:"required,max=200"`
	Variant    int    `json:"v" validate:"gte=0,lte=3"`
	EventType  string `json:"e" validate:"required,oneof=exposure conversion count"`
	VisitorID  string `json:"vid" validate:"required,max=200"`
}

func (s *Server) handleBeacon(w http.ResponseWriter, r *http.Request) {
	// Set CORS headers for all responses
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	// Handle preflight
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BeaconRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		beaconsTotal.WithLabelValues("unknown", "invalid").Inc()
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := validate.Struct(&req); err != nil {
		beaconsTotal.WithLabelValues("unknown", "invalid").Inc()
		http.Error(w, "Invalid beacon: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	logger := s.logger.With("experiment", req.Experiment, "event", req.EventType)

	exp, err := s.store.GetExperiment(ctx, req.Experiment)
	if errors.Is(err, store.ErrNotFound) {
		beaconsTotal.WithLabelValues(req.EventType, "rejected").Inc()
		http.Error(w, "Experiment not found", http.StatusBadRequest)
		return
	}
	if err != nil {
		logger.Error("failed to load experiment", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if err := exp.AcceptEvent(req.Variant, req.EventType); err != nil {
		beaconsTotal.WithLabelValues(req.EventType, "rejected").Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Record event (deduplication handled by store)
	if err := s.store.RecordEvent(ctx, req.Experiment, req.Variant, req.EventType, req.VisitorID); err != nil {
		logger.Error("failed to record event", "error", err)
		beaconsTotal.WithLabelValues(req.EventType, "error").Inc()
		http.Error(w, "Failed to record event", http.StatusInternalServerError)
		return
	}

	beaconsTotal.WithLabelValues(req.EventType, "recorded").Inc()
	w.WriteHeader(http.StatusNoContent)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
