package stats

import (
	"fmt"
	"math"

	"github.com/trialsize/trialsize/internal/store"
)

// DefaultConfidence is the level a result must reach to be called significant.
const DefaultConfidence = 0.95

// Result represents statistical analysis of an experiment
type Result struct {
	Goal            store.GoalType
	Variants        []VariantResult
	Confident       bool    // >= the analysis confidence
	ConfidenceLevel float64 // 0-1
	LeadingVariant  int
	// The variant the leader was tested against: control when a challenger
	// leads, otherwise the best challenger.
	ComparedVariant int
}

// VariantResult contains statistics for a single variant. Rate is the
// conversion rate for funnel goals and the mean count per participant for
// trend goals.
type VariantResult struct {
	Index       int
	Name        string
	Exposures   int
	Conversions int
	Count       int
	Rate        float64
	CILower     float64
	CIUpper     float64
}

// SignificanceTest performs a two-proportion z-test.
// Returns confidence level (0-1) that variant A beats variant B.
func SignificanceTest(aConv, aViews, bConv, bViews int) float64 {
	// Need data from both variants
	if aViews == 0 || bViews == 0 {
		return 0.5
	}

	// Calculate proportions
	pA := float64(aConv) / float64(aViews)
	pB := float64(bConv) / float64(bViews)

	// Pooled proportion under null hypothesis (pA = pB)
	pooledP := float64(aConv+bConv) / float64(aViews+bViews)

	// Standard error of the difference
	se := math.Sqrt(pooledP * (1 - pooledP) * (1/float64(aViews) + 1/float64(bViews)))

	if se == 0 {
		return directionOnly(pA, pB)
	}

	return normalCDF((pA - pB) / se)
}

// RateSignificanceTest compares two Poisson rates (events per participant).
// Returns confidence level (0-1) that variant A has the higher rate.
//
// Counts are compared on the square-root scale, where a Poisson count has
// variance 1/4 independent of its mean.
func RateSignificanceTest(aCount, aExposures, bCount, bExposures int) float64 {
	if aExposures == 0 || bExposures == 0 {
		return 0.5
	}

	nA := float64(aExposures)
	nB := float64(bExposures)

	se := math.Sqrt(1/(4*nA) + 1/(4*nB))
	z := (math.Sqrt(float64(aCount)/nA) - math.Sqrt(float64(bCount)/nB)) / se

	return normalCDF(z)
}

func directionOnly(a, b float64) float64 {
	if a > b {
		return 1.0
	} else if a < b {
		return 0.0
	}
	return 0.5
}

// normalCDF approximates the cumulative distribution function
// of the standard normal distribution
func normalCDF(x float64) float64 {
	// Use the approximation from Abramowitz and Stegun
	// Handbook of Mathematical Functions, formula 7.1.26
	a1 := 0.254829592
	a2 := -0.284496736
	a3 := 1.421413741
	a4 := -1.453152027
	a5 := 1.061405429
	p := 0.3275911

	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x) / math.Sqrt(2)

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	return 0.5 * (1.0 + sign*y)
}

// PoissonInterval returns a normal-approximation interval for the mean
// count per participant.
func PoissonInterval(count, exposures int, confidence float64) (lower, upper float64) {
	if exposures == 0 {
		return 0, 0
	}

	z := ZScore(confidence)
	n := float64(exposures)
	mean := float64(count) / n
	spread := z * math.Sqrt(float64(count)) / n

	lower = mean - spread
	if lower < 0 {
		lower = 0
	}
	return lower, mean + spread
}

// Analyze calculates full statistics for an experiment at DefaultConfidence.
func Analyze(exp *store.Experiment, variantStats []store.VariantStats) *Result {
	return AnalyzeAt(exp, variantStats, DefaultConfidence)
}

// AnalyzeAt calculates full statistics using the given confidence level for
// both the intervals and the significance threshold.
func AnalyzeAt(exp *store.Experiment, variantStats []store.VariantStats, confidence float64) *Result {
	// Create a map for quick lookup
	statsMap := make(map[int]store.VariantStats)
	for _, s := range variantStats {
		statsMap[s.Variant] = s
	}

	trend := exp.GoalType == store.GoalTrend

	// Build variant results
	variants := make([]VariantResult, len(exp.Variants))
	maxRate := 0.0
	leadingVariant := 0

	for i, name := range exp.Variants {
		stat := statsMap[i] // Will be zero-valued if not present

		v := VariantResult{
			Index:       i,
			Name:        name,
			Exposures:   stat.Exposures,
			Conversions: stat.Conversions,
			Count:       stat.Count,
		}

		if trend {
			if stat.Exposures > 0 {
				v.Rate = float64(stat.Count) / float64(stat.Exposures)
			}
			v.CILower, v.CIUpper = PoissonInterval(stat.Count, stat.Exposures, confidence)
		} else {
			if stat.Exposures > 0 {
				v.Rate = float64(stat.Conversions) / float64(stat.Exposures)
			}
			v.CILower, v.CIUpper = WilsonInterval(stat.Conversions, stat.Exposures, confidence)
		}
		variants[i] = v

		if v.Rate > maxRate {
			maxRate = v.Rate
			leadingVariant = i
		}
	}

	compare := func(a, b VariantResult) float64 {
		if trend {
			return RateSignificanceTest(a.Count, a.Exposures, b.Count, b.Exposures)
		}
		return SignificanceTest(a.Conversions, a.Exposures, b.Conversions, b.Exposures)
	}

	// Calculate significance between leading variant and control (variant 0)
	var confidenceLevel float64
	comparedVariant := 0
	if len(variants) >= 2 {
		if leadingVariant == 0 {
			// Control is leading, compare against best challenger
			bestChallenger := 1
			bestRate := 0.0
			for i := 1; i < len(variants); i++ {
				if variants[i].Rate > bestRate {
					bestRate = variants[i].Rate
					bestChallenger = i
				}
			}
			confidenceLevel = compare(variants[0], variants[bestChallenger])
		} else {
			// Challenger is leading, compare against control
			confidenceLevel = compare(variants[leadingVariant], variants[0])
		}
	}

	return &Result{
		Goal:            exp.GoalType,
		Variants:        variants,
		Confident:       confidenceLevel >= confidence,
		ConfidenceLevel: confidenceLevel,
		LeadingVariant:  leadingVariant,
		ComparedVariant: comparedVariant,
	}
}

// TotalExposures sums exposures across every variant.
func (r *Result) TotalExposures() int {
	total := 0
	for _, v := range r.Variants {
		total += v.Exposures
	}
	return total
}

// Banner returns the one-line significance summary shown with a result.
// progress is the experiment's progress toward its goal in percent.
func Banner(r *Result, progress float64) string {
	if len(r.Variants) < 2 {
		return ""
	}
	if r.TotalExposures() == 0 {
		return "Not enough data to determine a winner"
	}

	leadingName := r.Variants[r.LeadingVariant].Name
	comparedName := r.Variants[r.ComparedVariant].Name
	confPct := r.ConfidenceLevel * 100

	switch {
	case r.Confident && progress >= 100:
		return fmt.Sprintf("Your results are significant: %.1f%% confident \"%s\" is the winner", confPct, leadingName)
	case r.Confident:
		return fmt.Sprintf("%.1f%% confident \"%s\" is the winner, but only %.0f%% of the goal has been reached. Keep the experiment running", confPct, leadingName, progress)
	case confPct >= 90:
		return fmt.Sprintf("%.1f%% confident \"%s\" beats \"%s\" (not yet significant)", confPct, leadingName, comparedName)
	default:
		return "Not enough data to determine a winner"
	}
}
