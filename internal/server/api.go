package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/trialsize/trialsize/internal/report"
	"github.com/trialsize/trialsize/internal/sizing"
	"github.com/trialsize/trialsize/internal/store"
)

type experimentItem struct {
	Name                   string   `json:"name"`
	GoalType               string   `json:"goal_type"`
	State                  string   `json:"state"`
	Variants               []string `json:"variants"`
	RecommendedSampleSize  int      `json:"recommended_sample_size,omitempty"`
	RecommendedRunningTime float64  `json:"recommended_running_time,omitempty"`
	Observed               float64  `json:"observed"`
	ProgressPercent        float64  `json:"progress_percent"`
	CreatedAt              string   `json:"created_at"`
}

type variantItem struct {
	Index       int     `json:"index"`
	Name        string  `json:"name"`
	Exposures   int     `json:"exposures"`
	Conversions int     `json:"conversions"`
	Count       int     `json:"count"`
	Rate        float64 `json:"rate"`
	CILower     float64 `json:"ci_lower"`
	CIUpper     float64 `json:"ci_upper"`
}

type annotationItem struct {
	ID         int64  `json:"id"`
	Content    string `json:"content"`
	DateMarker string `json:"date_marker"`
}

type experimentDetail struct {
	experimentItem
	GoalDescription string           `json:"goal_description,omitempty"`
	StartDate       string           `json:"start_date,omitempty"`
	EndDate         string           `json:"end_date,omitempty"`
	Plan            sizing.Plan      `json:"plan"`
	Results         []variantItem    `json:"results"`
	LeadingVariant  int              `json:"leading_variant"`
	Confidence      float64          `json:"confidence"`
	Significant     bool             `json:"significant"`
	Banner          string           `json:"banner"`
	Annotations     []annotationItem `json:"annotations"`
}

type participantItem struct {
	VisitorID string `json:"visitor_id"`
	Variant   int    `json:"variant"`
	Converted bool   `json:"converted"`
	Count     int    `json:"count"`
	FirstSeen string `json:"first_seen"`
}

type participantsResponse struct {
	Participants []participantItem `json:"participants"`
	HasMore      bool              `json:"has_more"`
	NextOffset   int               `json:"next_offset,omitempty"`
}

func toItem(r *report.Report) experimentItem {
	exp := r.Experiment
	return experimentItem{
		Name:                   exp.Name,
		GoalType:               string(exp.GoalType),
		State:                  string(exp.State),
		Variants:               exp.Variants,
		RecommendedSampleSize:  exp.RecommendedSampleSize,
		RecommendedRunningTime: exp.RecommendedRunningTime,
		Observed:               r.Observed,
		ProgressPercent:        r.Progress,
		CreatedAt:              exp.CreatedAt.UTC().Format("2006-01-02"),
	}
}

func (s *Server) handleExperiments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	experiments, err := s.store.ListExperiments(ctx)
	if err != nil {
		s.logger.Error("failed to list experiments", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load experiments")
		return
	}

	// Return empty array instead of null
	items := make([]experimentItem, 0, len(experiments))
	for _, exp := range experiments {
		rep, err := report.Build(ctx, s.store, exp.Name, s.policy.Confidence, s.now())
		if err != nil {
			s.logger.Error("failed to build report", "experiment", exp.Name, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load experiments")
			return
		}
		items = append(items, toItem(rep))
	}

	writeJSON(w, http.StatusOK, items)
}

// handleExperimentDetail serves /api/experiments/{name} and
// /api/experiments/{name}/participants.
func (s *Server) handleExperimentDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/experiments/")
	name, sub, _ := strings.Cut(rest, "/")
	if name == "" {
		writeError(w, http.StatusNotFound, "experiment name required")
		return
	}

	switch sub {
	case "":
		s.serveDetail(w, r, name)
	case "participants":
		s.serveParticipants(w, r, name)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) serveDetail(w http.ResponseWriter, r *http.Request, name string) {
	rep, err := report.Build(r.Context(), s.store, name, s.policy.Confidence, s.now())
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "experiment not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to build report", "experiment", name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load experiment")
		return
	}

	exp := rep.Experiment
	detail := experimentDetail{
		experimentItem:  toItem(rep),
		GoalDescription: exp.GoalDescription,
		Plan:            rep.Plan,
		LeadingVariant:  rep.Result.LeadingVariant,
		Confidence:      rep.Result.ConfidenceLevel,
		Significant:     rep.Result.Confident,
		Banner:          rep.Banner,
		Results:         make([]variantItem, len(rep.Result.Variants)),
		Annotations:     make([]annotationItem, len(rep.Timeline)),
	}
	if exp.StartDate != nil {
		detail.StartDate = exp.StartDate.UTC().Format("2006-01-02")
	}
	if exp.EndDate != nil {
		detail.EndDate = exp.EndDate.UTC().Format("2006-01-02")
	}
	for i, v := range rep.Result.Variants {
		detail.Results[i] = variantItem{
			Index:       v.Index,
			Name:        v.Name,
			Exposures:   v.Exposures,
			Conversions: v.Conversions,
			Count:       v.Count,
			Rate:        v.Rate,
			CILower:     v.CILower,
			CIUpper:     v.CIUpper,
		}
	}
	for i, a := range rep.Timeline {
		detail.Annotations[i] = annotationItem{
			ID:         a.ID,
			Content:    a.Content,
			DateMarker: a.DateMarker.UTC().Format("2006-01-02"),
		}
	}

	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) serveParticipants(w http.ResponseWriter, r *http.Request, name string) {
	query := r.URL.Query()
	q := store.ParticipantQuery{Search: query.Get("search")}

	if v := query.Get("variant"); v != "" {
		idx, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "variant must be an integer")
			return
		}
		q.Variant = &idx
	}
	if v := query.Get("converted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "converted must be true or false")
			return
		}
		q.Converted = &b
	}
	for key, dst := range map[string]*int{"limit": &q.Limit, "offset": &q.Offset} {
		if v := query.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, key+" must be a non-negative integer")
				return
			}
			*dst = n
		}
	}

	page, err := s.store.ListParticipants(r.Context(), name, q)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "experiment not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to list participants", "experiment", name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list participants")
		return
	}

	resp := participantsResponse{
		Participants: make([]participantItem, len(page.Participants)),
		HasMore:      page.HasMore,
		NextOffset:   page.NextOffset,
	}
	for i, p := range page.Participants {
		resp.Participants[i] = participantItem{
			VisitorID: p.VisitorID,
			Variant:   p.Variant,
			Converted: p.Converted,
			Count:     p.Count,
			FirstSeen: p.FirstSeen.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
