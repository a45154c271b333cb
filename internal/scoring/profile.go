// Package scoring implements the weighted multi-factor conditions scorer.
//
// A score starts at 100 and loses points per factor according to an explicit
// penalty curve (threshold table, floor table, or comfort-range distance),
// scaled by the profile's tolerance multipliers. Curves and weights are
// validated once at registry construction, not trusted at call time.
package scoring

import (
	"fmt"
	"sort"

	"skywatch/internal/types"
)

// CurveKind tags the penalty shape used by a factor.
type CurveKind string

const (
	// CurveThreshold penalizes high raw values: boundaries ascend and the
	// first step whose boundary is not yet exceeded supplies the fraction.
	CurveThreshold CurveKind = "threshold"

	// CurveFloor penalizes low raw values (visibility, Kp): boundaries
	// descend and the first step the value still clears supplies the fraction.
	CurveFloor CurveKind = "floor"

	// CurveRangeComfort penalizes distance outside a [Min,Max] comfort band.
	// Inside the band the penalty is exactly zero.
	CurveRangeComfort CurveKind = "range_comfort"
)

// PenaltyStep is one {boundary, penaltyFraction} pair in a curve.
type PenaltyStep struct {
	Boundary float64
	Fraction float64
}

// PenaltyCurve is the tagged penalty structure selected per factor.
// Min/Max apply only to CurveRangeComfort, where Steps are keyed by distance
// outside the band.
type PenaltyCurve struct {
	Kind  CurveKind
	Steps []PenaltyStep
	Min   float64
	Max   float64
}

// Fraction returns the raw penalty fraction in [0,1] for a value, before
// tolerance adjustment. Values beyond the last step take the full penalty.
func (c PenaltyCurve) Fraction(value float64) float64 {
	switch c.Kind {
	case CurveThreshold:
		for _, step := range c.Steps {
			if value <= step.Boundary {
				return step.Fraction
			}
		}
		return 1.0
	case CurveFloor:
		for _, step := range c.Steps {
			if value >= step.Boundary {
				return step.Fraction
			}
		}
		return 1.0
	case CurveRangeComfort:
		if value >= c.Min && value <= c.Max {
			return 0
		}
		dist := c.Min - value
		if value > c.Max {
			dist = value - c.Max
		}
		for _, step := range c.Steps {
			if dist <= step.Boundary {
				return step.Fraction
			}
		}
		return 1.0
	default:
		return 0
	}
}

// validate checks step ordering and fraction monotonicity for the curve.
func (c PenaltyCurve) validate(id types.FactorID) error {
	if len(c.Steps) == 0 && c.Kind != CurveRangeComfort {
		return fmt.Errorf("factor %s: curve has no steps", id)
	}
	if c.Kind == CurveRangeComfort && c.Min > c.Max {
		return fmt.Errorf("factor %s: comfort range min %.1f above max %.1f", id, c.Min, c.Max)
	}

	prev := c.Steps
	for i := 1; i < len(prev); i++ {
		a, b := prev[i-1], prev[i]

		switch c.Kind {
		case CurveThreshold, CurveRangeComfort:
			if b.Boundary <= a.Boundary {
				return fmt.Errorf("factor %s: boundaries must ascend (%.1f after %.1f)", id, b.Boundary, a.Boundary)
			}
		case CurveFloor:
			if b.Boundary >= a.Boundary {
				return fmt.Errorf("factor %s: floor boundaries must descend (%.1f after %.1f)", id, b.Boundary, a.Boundary)
			}
		default:
			return fmt.Errorf("factor %s: unknown curve kind %q", id, c.Kind)
		}

		if b.Fraction < a.Fraction {
			return fmt.Errorf("factor %s: penalty fractions must not decrease (%.2f after %.2f)", id, b.Fraction, a.Fraction)
		}
	}

	for _, step := range c.Steps {
		if step.Fraction < 0 || step.Fraction > 1 {
			return fmt.Errorf("factor %s: penalty fraction %.2f outside [0,1]", id, step.Fraction)
		}
	}
	return nil
}

// FactorWeight is one scoring dimension: identifier, weight out of 100, and
// the penalty curve that shapes how raw values turn into lost points.
type FactorWeight struct {
	ID     types.FactorID
	Weight int
	Curve  PenaltyCurve
}

// ConditionProfile is a named, immutable parameter set for one activity or
// phenomenon. Weights across factors sum to at most 100; any remainder is an
// implicit baseline that cannot be penalized away.
type ConditionProfile struct {
	Name    string
	Factors []FactorWeight

	// Tolerance scales non-zero penalty fractions per factor. Values above 1
	// widen effective tolerance (lower penalties); below 1 narrow it.
	// Missing entries default to 1.
	Tolerance map[types.FactorID]float64
}

// ToleranceFor returns the tolerance multiplier for a factor, defaulting to 1.
func (p ConditionProfile) ToleranceFor(id types.FactorID) float64 {
	if t, ok := p.Tolerance[id]; ok && t > 0 {
		return t
	}
	return 1
}

// comfortMin returns the lower bound of the profile's temperature comfort
// band, used by the compound-risk cold rule. ok is false when the profile has
// no range-comfort temperature factor.
func (p ConditionProfile) comfortMin() (float64, bool) {
	for _, f := range p.Factors {
		if f.ID == types.FactorTemperature && f.Curve.Kind == CurveRangeComfort {
			return f.Curve.Min, true
		}
	}
	return 0, false
}

// validate checks the profile's weight total, curves, and tolerances.
func (p ConditionProfile) validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile has no name")
	}

	total := 0
	seen := make(map[types.FactorID]bool, len(p.Factors))
	for _, f := range p.Factors {
		if f.Weight <= 0 {
			return fmt.Errorf("profile %s: factor %s has non-positive weight %d", p.Name, f.ID, f.Weight)
		}
		if seen[f.ID] {
			return fmt.Errorf("profile %s: duplicate factor %s", p.Name, f.ID)
		}
		seen[f.ID] = true
		total += f.Weight
		if err := f.Curve.validate(f.ID); err != nil {
			return fmt.Errorf("profile %s: %w", p.Name, err)
		}
	}
	if total > 100 {
		return fmt.Errorf("profile %s: factor weights sum to %d, exceeding 100", p.Name, total)
	}

	for id, t := range p.Tolerance {
		if t <= 0 {
			return fmt.Errorf("profile %s: tolerance for %s must be positive, got %.2f", p.Name, id, t)
		}
	}
	return nil
}

// Registry holds validated profiles and resolves lookups with a guaranteed
// default fallback, so callers are never blocked by an unrecognized activity
// string.
type Registry struct {
	profiles map[string]ConditionProfile
	fallback string
}

// NewRegistry validates every profile and builds a registry. The fallback
// profile name must be among the provided profiles.
func NewRegistry(fallback string, profiles ...ConditionProfile) (*Registry, error) {
	r := &Registry{
		profiles: make(map[string]ConditionProfile, len(profiles)),
		fallback: fallback,
	}
	for _, p := range profiles {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.profiles[p.Name]; dup {
			return nil, fmt.Errorf("duplicate profile %q", p.Name)
		}
		r.profiles[p.Name] = p
	}
	if _, ok := r.profiles[fallback]; !ok {
		return nil, fmt.Errorf("fallback profile %q not registered", fallback)
	}
	return r, nil
}

// Get returns the profile for name, or the fallback profile when the name is
// unknown or empty.
func (r *Registry) Get(name string) ConditionProfile {
	if p, ok := r.profiles[name]; ok {
		return p
	}
	return r.profiles[r.fallback]
}

// Names returns the registered profile names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultProfileName is the fallback activity profile.
const DefaultProfileName = "outdoor"

// Shared curve tables for the built-in activity profiles. Probability tables
// are percentages, wind is km/h, visibility is meters.
func precipProbCurve() PenaltyCurve {
	return PenaltyCurve{Kind: CurveThreshold, Steps: []PenaltyStep{
		{Boundary: 10, Fraction: 0},
		{Boundary: 30, Fraction: 0.2},
		{Boundary: 50, Fraction: 0.45},
		{Boundary: 70, Fraction: 0.7},
		{Boundary: 90, Fraction: 0.9},
	}}
}

func windCurve() PenaltyCurve {
	return PenaltyCurve{Kind: CurveThreshold, Steps: []PenaltyStep{
		{Boundary: 15, Fraction: 0},
		{Boundary: 25, Fraction: 0.2},
		{Boundary: 35, Fraction: 0.5},
		{Boundary: 45, Fraction: 0.8},
	}}
}

func uvCurve() PenaltyCurve {
	return PenaltyCurve{Kind: CurveThreshold, Steps: []PenaltyStep{
		{Boundary: 2, Fraction: 0},
		{Boundary: 5, Fraction: 0.15},
		{Boundary: 7, Fraction: 0.35},
		{Boundary: 10, Fraction: 0.6},
	}}
}

func visibilityCurve() PenaltyCurve {
	return PenaltyCurve{Kind: CurveFloor, Steps: []PenaltyStep{
		{Boundary: 5000, Fraction: 0},
		{Boundary: 2000, Fraction: 0.3},
		{Boundary: 1000, Fraction: 0.6},
		{Boundary: 500, Fraction: 0.8},
	}}
}

func cloudCoverCurve() PenaltyCurve {
	return PenaltyCurve{Kind: CurveThreshold, Steps: []PenaltyStep{
		{Boundary: 10, Fraction: 0},
		{Boundary: 25, Fraction: 0.25},
		{Boundary: 50, Fraction: 0.55},
		{Boundary: 75, Fraction: 0.8},
	}}
}

func kpCurve() PenaltyCurve {
	return PenaltyCurve{Kind: CurveFloor, Steps: []PenaltyStep{
		{Boundary: 7, Fraction: 0},
		{Boundary: 5, Fraction: 0.25},
		{Boundary: 4, Fraction: 0.5},
		{Boundary: 3, Fraction: 0.75},
	}}
}

func tempRange(min, max float64) PenaltyCurve {
	return PenaltyCurve{Kind: CurveRangeComfort, Min: min, Max: max, Steps: []PenaltyStep{
		{Boundary: 2, Fraction: 0.15},
		{Boundary: 4, Fraction: 0.35},
		{Boundary: 6, Fraction: 0.6},
		{Boundary: 8, Fraction: 0.8},
	}}
}

// builtinProfiles defines the shipped activity and phenomenon profiles.
func builtinProfiles() []ConditionProfile {
	return []ConditionProfile{
		{
			Name: DefaultProfileName,
			Factors: []FactorWeight{
				{ID: types.FactorTemperature, Weight: 25, Curve: tempRange(10, 24)},
				{ID: types.FactorPrecipitation, Weight: 30, Curve: precipProbCurve()},
				{ID: types.FactorWind, Weight: 20, Curve: windCurve()},
				{ID: types.FactorUV, Weight: 10, Curve: uvCurve()},
				{ID: types.FactorVisibility, Weight: 15, Curve: visibilityCurve()},
			},
		},
		{
			Name: "hiking",
			Factors: []FactorWeight{
				{ID: types.FactorTemperature, Weight: 20, Curve: tempRange(8, 22)},
				{ID: types.FactorPrecipitation, Weight: 35, Curve: precipProbCurve()},
				{ID: types.FactorWind, Weight: 20, Curve: windCurve()},
				{ID: types.FactorUV, Weight: 10, Curve: uvCurve()},
				{ID: types.FactorVisibility, Weight: 15, Curve: visibilityCurve()},
			},
			Tolerance: map[types.FactorID]float64{
				types.FactorWind: 1.2,
			},
		},
		{
			Name: "cycling",
			Factors: []FactorWeight{
				{ID: types.FactorTemperature, Weight: 15, Curve: tempRange(12, 26)},
				{ID: types.FactorPrecipitation, Weight: 30, Curve: precipProbCurve()},
				{ID: types.FactorWind, Weight: 30, Curve: windCurve()},
				{ID: types.FactorUV, Weight: 10, Curve: uvCurve()},
				{ID: types.FactorVisibility, Weight: 15, Curve: visibilityCurve()},
			},
			Tolerance: map[types.FactorID]float64{
				types.FactorWind: 0.8,
			},
		},
		{
			Name: "running",
			Factors: []FactorWeight{
				{ID: types.FactorTemperature, Weight: 25, Curve: tempRange(5, 20)},
				{ID: types.FactorPrecipitation, Weight: 25, Curve: precipProbCurve()},
				{ID: types.FactorWind, Weight: 15, Curve: windCurve()},
				{ID: types.FactorUV, Weight: 20, Curve: uvCurve()},
				{ID: types.FactorVisibility, Weight: 10, Curve: visibilityCurve()},
			},
			Tolerance: map[types.FactorID]float64{
				types.FactorPrecipitation: 1.1,
			},
		},
		{
			Name: "swimming",
			Factors: []FactorWeight{
				{ID: types.FactorTemperature, Weight: 30, Curve: tempRange(22, 32)},
				{ID: types.FactorPrecipitation, Weight: 25, Curve: precipProbCurve()},
				{ID: types.FactorWind, Weight: 20, Curve: windCurve()},
				{ID: types.FactorUV, Weight: 15, Curve: uvCurve()},
				{ID: types.FactorVisibility, Weight: 5, Curve: visibilityCurve()},
			},
			Tolerance: map[types.FactorID]float64{
				types.FactorUV: 0.8,
			},
		},
		{
			Name: "sky",
			Factors: []FactorWeight{
				{ID: types.FactorCloudCover, Weight: 45, Curve: cloudCoverCurve()},
				{ID: types.FactorVisibility, Weight: 20, Curve: visibilityCurve()},
				{ID: types.FactorPrecipitation, Weight: 20, Curve: precipProbCurve()},
				{ID: types.FactorWind, Weight: 10, Curve: windCurve()},
			},
		},
		{
			Name: "aurora",
			Factors: []FactorWeight{
				{ID: types.FactorKpIndex, Weight: 40, Curve: kpCurve()},
				{ID: types.FactorCloudCover, Weight: 30, Curve: cloudCoverCurve()},
				{ID: types.FactorPrecipitation, Weight: 15, Curve: precipProbCurve()},
				{ID: types.FactorVisibility, Weight: 10, Curve: visibilityCurve()},
			},
		},
	}
}

var defaultRegistry = mustRegistry()

func mustRegistry() *Registry {
	r, err := NewRegistry(DefaultProfileName, builtinProfiles()...)
	if err != nil {
		panic(fmt.Sprintf("scoring: invalid builtin profiles: %v", err))
	}
	return r
}

// Default returns the registry of built-in profiles.
func Default() *Registry {
	return defaultRegistry
}
