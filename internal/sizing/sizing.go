// Package sizing estimates how large and how long an experiment must run,
// and how far a running experiment has progressed toward that goal.
//
// Every function here is pure: identical inputs give identical outputs and
// no result is ever NaN or infinite.
package sizing

import "math"

// GoalType is the kind of metric an experiment is judged on.
type GoalType string

const (
	// Funnel goals measure a conversion rate.
	Funnel GoalType = "funnel"
	// Trend goals measure a count of an event over time.
	Trend GoalType = "trend"
)

// SizingResult is the participant count an experiment needs.
type SizingResult struct {
	SampleSizePerVariant int `json:"sample_size_per_variant"`
	TotalSampleSize      int `json:"total_sample_size"`
}

// MinimumSampleSizePerVariant returns the participants each variant needs
// to detect the default minimum effect at the given baseline conversion
// rate, expressed as a percentage.
func MinimumSampleSizePerVariant(conversionRatePercent float64) int {
	return DefaultPolicy().MinimumSampleSizePerVariant(conversionRatePercent)
}

// MinimumSampleSizePerVariant applies the normal-approximation sample size
// formula for two proportions, n = 2(z_α+z_β)² p(1-p) / δ², rounded up.
//
// The rate is clamped into [0, 100] and then into
// [MinimumRate, 1-MinimumRate] so a 0% or 100% baseline still yields a
// finite positive size.
func (p Policy) MinimumSampleSizePerVariant(conversionRatePercent float64) int {
	rate := p.clampRate(conversionRatePercent / 100)

	delta := p.MinimumDetectableEffect
	if p.Effect == EffectRelative {
		delta *= rate
	}

	n := p.Multiplier() * rate * (1 - rate) / (delta * delta)
	return ceilInt(n)
}

// TotalSampleSize is the per-variant size multiplied across every variant.
// Negative inputs count as zero.
func TotalSampleSize(perVariant, variantCount int) int {
	if perVariant < 0 || variantCount < 0 {
		return 0
	}
	return perVariant * variantCount
}

// Size returns both the per-variant and total sample size.
func (p Policy) Size(conversionRatePercent float64, variantCount int) SizingResult {
	perVariant := p.MinimumSampleSizePerVariant(conversionRatePercent)
	return SizingResult{
		SampleSizePerVariant: perVariant,
		TotalSampleSize:      TotalSampleSize(perVariant, variantCount),
	}
}

// RecommendedExposureForCountData returns the days a trend experiment should
// run given the count observed over the default baseline window.
func RecommendedExposureForCountData(currentCount float64) float64 {
	return DefaultPolicy().RecommendedExposureForCountData(currentCount)
}

// RecommendedExposureForCountData models the goal event as a Poisson process
// and sizes on the square-root scale, where the variance is 1/4 regardless
// of the rate:
//
//	days = (z_α+z_β)² / (2(√r₂ - √r₁)²)
//
// with r₁ the observed daily rate and r₂ = r₁(1+MDE). The result is rounded
// up to a tenth of a day and capped at MaxExposureDays. A count of zero or
// less returns MaxExposureDays.
func (p Policy) RecommendedExposureForCountData(currentCount float64) float64 {
	if math.IsInf(currentCount, 1) {
		return 0
	}
	if !(currentCount > 0) {
		return p.MaxExposureDays
	}

	r1 := currentCount / p.BaselineWindowDays
	r2 := r1 * (1 + p.MinimumDetectableEffect)
	diff := math.Sqrt(r2) - math.Sqrt(r1)

	z := p.zSum()
	days := z * z / (2 * diff * diff)
	if math.IsNaN(days) || days > p.MaxExposureDays {
		return p.MaxExposureDays
	}
	return math.Ceil(days*10) / 10
}

// ExperimentProgress returns observed as a percentage of target. It is not
// clamped, so an overrun reports more than 100.
//
// For Funnel goals observed is participants so far and target the frozen
// total sample size. For Trend goals observed is elapsed days and target the
// frozen running time. A target of zero or less is treated as 1; an
// unbounded target reports 0.
func ExperimentProgress(goal GoalType, observed, target float64) float64 {
	if !(observed > 0) || math.IsInf(observed, 0) {
		observed = 0
	}
	if math.IsInf(target, 1) {
		return 0
	}
	if !(target > 0) {
		target = 1
	}
	return observed / target * 100
}

func (p Policy) clampRate(rate float64) float64 {
	if math.IsNaN(rate) || rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	return math.Min(math.Max(rate, p.MinimumRate), 1-p.MinimumRate)
}

func ceilInt(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Ceil(v))
}
