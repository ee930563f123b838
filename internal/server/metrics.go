package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	beaconsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trialsize_beacons_total",
		Help: "Beacon events received, by event type and outcome",
	}, []string{"event", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trialsize_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"route", "code"})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument logs each request and records its latency.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		requestDuration.WithLabelValues(routeLabel(r.URL.Path), strconv.Itoa(rec.status)).Observe(elapsed.Seconds())
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", elapsed,
		)
	})
}

// routeLabel keeps experiment names out of metric labels.
func routeLabel(path string) string {
	switch path {
	case "/health", "/b", "/metrics", "/api/experiments", "/api/size", "/api/exposure":
		return path
	}
	if strings.HasPrefix(path, "/api/experiments/") {
		return "/api/experiments/{name}"
	}
	return "other"
}
