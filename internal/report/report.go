// Package report assembles the progress and results view of an experiment
// from stored data.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/trialsize/trialsize/internal/sizing"
	"github.com/trialsize/trialsize/internal/stats"
	"github.com/trialsize/trialsize/internal/store"
)

// Reader is the part of the store a report needs.
type Reader interface {
	GetExperiment(ctx context.Context, name string) (*store.Experiment, error)
	GetVariantStats(ctx context.Context, name string) ([]store.VariantStats, error)
	ListAnnotations(ctx context.Context, name string, q store.AnnotationQuery) ([]*store.Annotation, error)
}

type Report struct {
	Experiment *store.Experiment
	Plan       sizing.Plan
	Observed   float64 // participants (funnel) or elapsed days (trend)
	Progress   float64 // percent of Plan.Target, unclamped
	Result     *stats.Result
	Banner     string
	Timeline   []*store.Annotation
}

// PlanOf returns the frozen plan stored with the experiment. It never
// recomputes the goal from current data.
func PlanOf(exp *store.Experiment) sizing.Plan {
	return sizing.Plan{
		Goal:                   sizing.GoalType(exp.GoalType),
		Baseline:               exp.Baseline,
		RecommendedSampleSize:  exp.RecommendedSampleSize,
		RecommendedRunningTime: exp.RecommendedRunningTime,
	}
}

// Observed returns the quantity progress is measured with: total exposed
// participants for funnel goals, elapsed days for trend goals.
func Observed(exp *store.Experiment, variantStats []store.VariantStats, now time.Time) float64 {
	if exp.GoalType == store.GoalTrend {
		return exp.ElapsedDays(now)
	}
	total := 0
	for _, vs := range variantStats {
		total += vs.Exposures
	}
	return float64(total)
}

// Build loads an experiment and computes its progress, results and banner.
func Build(ctx context.Context, r Reader, name string, confidence float64, now time.Time) (*Report, error) {
	exp, err := r.GetExperiment(ctx, name)
	if err != nil {
		return nil, err
	}

	variantStats, err := r.GetVariantStats(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	annotations, err := r.ListAnnotations(ctx, name, store.AnnotationQuery{})
	if err != nil {
		return nil, fmt.Errorf("failed to get annotations: %w", err)
	}

	plan := PlanOf(exp)
	observed := Observed(exp, variantStats, now)
	progress := plan.Progress(observed)
	result := stats.AnalyzeAt(exp, variantStats, confidence)

	return &Report{
		Experiment: exp,
		Plan:       plan,
		Observed:   observed,
		Progress:   progress,
		Result:     result,
		Banner:     stats.Banner(result, progress),
		Timeline:   store.Timeline(exp, annotations),
	}, nil
}
