package server

import (
	"math"
	"net/http"
	"strconv"

	"github.com/trialsize/trialsize/internal/sizing"
)

type sizeRequest struct {
	Rate     float64 `validate:"gte=0,lte=100"`
	Variants int     `validate:"gte=2,lte=4"`
}

type sizeResponse struct {
	ConversionRatePercent float64 `json:"conversion_rate_percent"`
	Variants              int     `json:"variants"`
	sizing.SizingResult
}

type exposureRequest struct {
	Count float64 `validate:"gte=0"`
}

type exposureResponse struct {
	Count           float64 `json:"count"`
	WindowDays      float64 `json:"window_days"`
	RecommendedDays float64 `json:"recommended_days"`
}

// handleSize serves GET /api/size?rate=10&variants=2.
func (s *Server) handleSize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req := sizeRequest{Variants: sizing.MinVariants}
	var err error
	if req.Rate, err = strconv.ParseFloat(r.URL.Query().Get("rate"), 64); err != nil {
		writeError(w, http.StatusBadRequest, "rate parameter required")
		return
	}
	if v := r.URL.Query().Get("variants"); v != "" {
		if req.Variants, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "variants must be an integer")
			return
		}
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sizeResponse{
		ConversionRatePercent: req.Rate,
		Variants:              req.Variants,
		SizingResult:          s.policy.Size(req.Rate, req.Variants),
	})
}

// handleExposure serves GET /api/exposure?count=5000.
func (s *Server) handleExposure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req exposureRequest
	var err error
	if req.Count, err = strconv.ParseFloat(r.URL.Query().Get("count"), 64); err != nil || math.IsInf(req.Count, 0) {
		writeError(w, http.StatusBadRequest, "count parameter required")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, exposureResponse{
		Count:           req.Count,
		WindowDays:      s.policy.BaselineWindowDays,
		RecommendedDays: s.policy.RecommendedExposureForCountData(req.Count),
	})
}
