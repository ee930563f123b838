package sizing

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	MinVariants = 2
	MaxVariants = 4
)

var (
	ErrTooFewVariants   = errors.New("need a control and at least one test variant")
	ErrTooManyVariants  = errors.New("at most 3 test variants are supported")
	ErrEmptyVariant     = errors.New("variant key is empty")
	ErrDuplicateVariant = errors.New("duplicate variant key")
	ErrUnknownGoal      = errors.New("unknown goal type")
	ErrInvalidBaseline  = errors.New("invalid baseline")
)

// VariantSet is the ordered list of variant keys. The first key is control.
type VariantSet []string

// ParseVariants splits a comma-separated list and trims each key.
func ParseVariants(list string) VariantSet {
	parts := strings.Split(list, ",")
	vs := make(VariantSet, len(parts))
	for i := range parts {
		vs[i] = strings.TrimSpace(parts[i])
	}
	return vs
}

func (vs VariantSet) Validate() error {
	if len(vs) < MinVariants {
		return ErrTooFewVariants
	}
	if len(vs) > MaxVariants {
		return ErrTooManyVariants
	}
	seen := make(map[string]bool, len(vs))
	for i, key := range vs {
		if key == "" {
			return fmt.Errorf("%w (position %d)", ErrEmptyVariant, i)
		}
		if seen[key] {
			return fmt.Errorf("%w: %q", ErrDuplicateVariant, key)
		}
		seen[key] = true
	}
	return nil
}

// Control returns the control variant key.
func (vs VariantSet) Control() string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Plan is the goal an experiment is measured against. It is computed once
// when the experiment is created and then kept fixed, so the progress of a
// running experiment is always measured against the same target.
type Plan struct {
	Goal                   GoalType `json:"goal"`
	Baseline               float64  `json:"baseline"`
	SampleSizePerVariant   int      `json:"sample_size_per_variant,omitempty"`
	RecommendedSampleSize  int      `json:"recommended_sample_size,omitempty"`
	RecommendedRunningTime float64  `json:"recommended_running_time,omitempty"`
}

// Plan computes the recommended goal for a new experiment. For Funnel goals
// baseline is the conversion rate in percent, 0 to 100; for Trend goals it is
// the count observed over the baseline window. Baselines outside those ranges
// are rejected so the stored baseline is the one the goal was sized for.
func (p Policy) Plan(goal GoalType, variants VariantSet, baseline float64) (Plan, error) {
	if err := variants.Validate(); err != nil {
		return Plan{}, err
	}

	if math.IsNaN(baseline) || math.IsInf(baseline, 0) || baseline < 0 {
		return Plan{}, fmt.Errorf("%w: %v must be a finite number of at least 0", ErrInvalidBaseline, baseline)
	}

	plan := Plan{Goal: goal, Baseline: baseline}
	switch goal {
	case Funnel:
		if baseline > 100 {
			return Plan{}, fmt.Errorf("%w: conversion rate %v%% is above 100%%", ErrInvalidBaseline, baseline)
		}
		size := p.Size(baseline, len(variants))
		plan.SampleSizePerVariant = size.SampleSizePerVariant
		plan.RecommendedSampleSize = size.TotalSampleSize
	case Trend:
		plan.RecommendedRunningTime = p.RecommendedExposureForCountData(baseline)
	default:
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownGoal, goal)
	}
	return plan, nil
}

// Target is the value progress is measured against: the total sample size
// for Funnel goals or the running time in days for Trend goals.
func (pl Plan) Target() float64 {
	if pl.Goal == Trend {
		return pl.RecommendedRunningTime
	}
	return float64(pl.RecommendedSampleSize)
}

// Progress returns how far observed has come toward the plan's target.
func (pl Plan) Progress(observed float64) float64 {
	return ExperimentProgress(pl.Goal, observed, pl.Target())
}
