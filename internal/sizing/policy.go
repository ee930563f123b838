package sizing

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/trialsize/trialsize/internal/stats"
)

// EffectMode says how MinimumDetectableEffect is applied to a baseline rate.
type EffectMode string

const (
	// EffectAbsolute treats the effect as percentage points of the rate.
	EffectAbsolute EffectMode = "absolute"
	// EffectRelative treats the effect as a fraction of the baseline.
	EffectRelative EffectMode = "relative"
)

var ErrInvalidPolicy = errors.New("invalid sizing policy")

// Policy holds the statistical constants every estimate is computed with.
type Policy struct {
	Confidence              float64    `json:"confidence" yaml:"confidence"`
	Power                   float64    `json:"power" yaml:"power"`
	MinimumDetectableEffect float64    `json:"minimum_detectable_effect" yaml:"minimum_detectable_effect"`
	Effect                  EffectMode `json:"effect" yaml:"effect"`

	// Conversion rates are clamped into [MinimumRate, 1-MinimumRate].
	MinimumRate float64 `json:"minimum_rate" yaml:"minimum_rate"`

	// Window, in days, over which trend counts are observed.
	BaselineWindowDays float64 `json:"baseline_window_days" yaml:"baseline_window_days"`

	// Upper bound on recommended exposure; also returned for a zero count.
	MaxExposureDays float64 `json:"max_exposure_days" yaml:"max_exposure_days"`
}

// DefaultPolicy is a two-sided test at 95% confidence with 80% power and a
// minimum detectable effect of 3 percentage points.
func DefaultPolicy() Policy {
	return Policy{
		Confidence:              0.95,
		Power:                   0.80,
		MinimumDetectableEffect: 0.03,
		Effect:                  EffectAbsolute,
		MinimumRate:             0.001,
		BaselineWindowDays:      14,
		MaxExposureDays:         365,
	}
}

// Validate checks every constant is inside the range the formulas accept.
func (p Policy) Validate() error {
	switch {
	case !inOpenUnit(p.Confidence):
		return fmt.Errorf("%w: confidence %v must be in (0, 1)", ErrInvalidPolicy, p.Confidence)
	case !inOpenUnit(p.Power):
		return fmt.Errorf("%w: power %v must be in (0, 1)", ErrInvalidPolicy, p.Power)
	case !(p.MinimumDetectableEffect > 0) || math.IsInf(p.MinimumDetectableEffect, 0):
		return fmt.Errorf("%w: minimum detectable effect %v must be positive", ErrInvalidPolicy, p.MinimumDetectableEffect)
	case p.Effect != EffectAbsolute && p.Effect != EffectRelative:
		return fmt.Errorf("%w: effect %q must be %q or %q", ErrInvalidPolicy, p.Effect, EffectAbsolute, EffectRelative)
	case p.Effect == EffectAbsolute && p.MinimumDetectableEffect >= 1:
		return fmt.Errorf("%w: absolute effect %v must be below 1", ErrInvalidPolicy, p.MinimumDetectableEffect)
	case !(p.MinimumRate > 0 && p.MinimumRate < 0.5):
		return fmt.Errorf("%w: minimum rate %v must be in (0, 0.5)", ErrInvalidPolicy, p.MinimumRate)
	case !(p.BaselineWindowDays > 0) || math.IsInf(p.BaselineWindowDays, 0):
		return fmt.Errorf("%w: baseline window %v must be positive", ErrInvalidPolicy, p.BaselineWindowDays)
	case !(p.MaxExposureDays > 0) || math.IsInf(p.MaxExposureDays, 0):
		return fmt.Errorf("%w: max exposure %v must be positive", ErrInvalidPolicy, p.MaxExposureDays)
	}
	return nil
}

// zSum returns z_α + z_β for a two-sided test.
func (p Policy) zSum() float64 {
	return stats.ZScore(p.Confidence) + stats.NormalQuantile(p.Power)
}

// Multiplier is the 2(z_α+z_β)² factor of the two-proportion sample size
// formula. About 15.70 with the default policy.
func (p Policy) Multiplier() float64 {
	z := p.zSum()
	return 2 * z * z
}

// LoadPolicy loads the sizing policy with priority env > file > defaults.
// A missing file is not an error.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()

	if path != "" {
		if err := loadPolicyFile(path, &policy); err != nil {
			return policy, fmt.Errorf("load policy file: %w", err)
		}
	}

	if err := loadPolicyFromEnv(&policy); err != nil {
		return policy, err
	}

	if err := policy.Validate(); err != nil {
		return policy, err
	}
	return policy, nil
}

func loadPolicyFile(path string, policy *Policy) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, policy); err != nil {
		if jsonErr := json.Unmarshal(data, policy); jsonErr != nil {
			return fmt.Errorf("parse policy (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

func loadPolicyFromEnv(policy *Policy) error {
	floats := []struct {
		key string
		dst *float64
	}{
		{"TS_CONFIDENCE", &policy.Confidence},
		{"TS_POWER", &policy.Power},
		{"TS_MDE", &policy.MinimumDetectableEffect},
	}
	for _, f := range floats {
		v := os.Getenv(f.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidPolicy, f.key, v)
		}
		*f.dst = parsed
	}
	if v := os.Getenv("TS_EFFECT"); v != "" {
		policy.Effect = EffectMode(v)
	}
	return nil
}

func inOpenUnit(v float64) bool {
	return v > 0 && v < 1
}
