package scoring

import (
	"fmt"
	"math"
	"sort"

	"skywatch/internal/types"
)

const (
	// minActivePrecipFraction is the floor applied to the precipitation
	// penalty whenever precipitation is actually falling. Rain on the ground
	// is categorically worse than rain merely being likely.
	minActivePrecipFraction = 0.6

	// heavyPrecipMM is the intensity at which active precipitation takes the
	// full precipitation penalty.
	heavyPrecipMM = 5.0

	// Compound-risk rules: when two or more factors are independently bad,
	// conditions compound worse than their sum.
	compoundPenaltyPerFactor = 7
	compoundColdMarginC      = 5.0
	compoundHighWindKmh      = 40.0

	maxReasons = 4
)

// Profile-neutral defaults substituted for absent optional metrics, keeping
// Score total over partially populated input.
const (
	defaultUVIndex     = 1.0
	defaultVisibilityM = 10000.0
	defaultCloudCover  = 0.0
	defaultKpIndex     = 0.0
)

// Score evaluates one hourly sample against the named profile and returns a
// fresh ScoreResult. It never fails: unknown profile names fall back to the
// default profile and missing optional metrics take neutral defaults.
func Score(sample types.HourlySample, profileName string) types.ScoreResult {
	return ScoreWith(Default(), sample, profileName)
}

// ScoreWith is Score against an explicit profile registry.
func ScoreWith(reg *Registry, sample types.HourlySample, profileName string) types.ScoreResult {
	profile := reg.Get(profileName)

	total := 100
	factors := make(map[types.FactorID]types.FactorScore, len(profile.Factors))

	for _, fw := range profile.Factors {
		value := factorValue(sample, fw.ID)
		fraction := fw.Curve.Fraction(value)

		if fw.ID == types.FactorPrecipitation && activelyPrecipitating(sample) {
			fraction = math.Max(fraction, minActivePrecipFraction)
			if sample.PrecipMM >= heavyPrecipMM {
				fraction = 1.0
			}
		}

		// Tolerance only scales non-zero penalties; a value inside its safe
		// band contributes exactly zero regardless of multiplier.
		if fraction > 0 {
			fraction = fraction / profile.ToleranceFor(fw.ID)
		}
		if fraction > 1 {
			fraction = 1
		}

		penalty := int(math.Round(float64(fw.Weight) * fraction))
		total -= penalty
		factors[fw.ID] = types.FactorScore{
			Value:     value,
			Penalty:   penalty,
			MaxPoints: fw.Weight,
		}
	}

	// Compound-risk adjustment: simultaneous bad conditions are worse than
	// the sum of their parts.
	if bad := countBadFactors(sample, profile); bad >= 2 {
		total -= bad * compoundPenaltyPerFactor
	}

	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}

	rating := types.RatingForScore(total)
	reasons, topFactor := buildReasons(profile, factors, sample)

	return types.ScoreResult{
		Score:          total,
		Rating:         rating,
		Factors:        factors,
		Reasons:        reasons,
		Recommendation: recommendation(profile.Name, rating, topFactor),
		Timestamp:      sample.Timestamp,
	}
}

// factorValue extracts the raw metric for a factor, substituting neutral
// defaults for absent optional fields.
func factorValue(s types.HourlySample, id types.FactorID) float64 {
	switch id {
	case types.FactorTemperature:
		if s.FeelsLikeC != nil {
			return *s.FeelsLikeC
		}
		return s.TemperatureC
	case types.FactorPrecipitation:
		return s.PrecipProbability
	case types.FactorWind:
		return s.WindSpeedKmh
	case types.FactorUV:
		return deref(s.UVIndex, defaultUVIndex)
	case types.FactorVisibility:
		return deref(s.VisibilityM, defaultVisibilityM)
	case types.FactorCloudCover:
		return deref(s.CloudCoverPct, defaultCloudCover)
	case types.FactorKpIndex:
		return deref(s.KpIndex, defaultKpIndex)
	default:
		return 0
	}
}

func deref(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}

// activelyPrecipitating reports whether precipitation is actually falling,
// as opposed to merely being probable.
func activelyPrecipitating(s types.HourlySample) bool {
	return s.PrecipMM > 0
}

// countBadFactors applies the fixed boolean compound-risk rules.
func countBadFactors(s types.HourlySample, p ConditionProfile) int {
	bad := 0
	if activelyPrecipitating(s) {
		bad++
	}
	if min, ok := p.comfortMin(); ok {
		if factorValue(s, types.FactorTemperature) < min-compoundColdMarginC {
			bad++
		}
	}
	if s.WindSpeedKmh > compoundHighWindKmh {
		bad++
	}
	return bad
}

// buildReasons produces up to maxReasons human phrases ranked by penalty,
// and returns the dominant penalized factor (or "" when nothing was
// penalized).
func buildReasons(p ConditionProfile, factors map[types.FactorID]types.FactorScore, s types.HourlySample) ([]string, types.FactorID) {
	type penalized struct {
		id types.FactorID
		fs types.FactorScore
	}

	var ranked []penalized
	for _, fw := range p.Factors {
		fs := factors[fw.ID]
		if fs.Penalty > 0 {
			ranked = append(ranked, penalized{id: fw.ID, fs: fs})
		}
	}
	// Stable so equal penalties keep profile factor order.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].fs.Penalty > ranked[j].fs.Penalty
	})

	if len(ranked) == 0 {
		return []string{"conditions look ideal"}, ""
	}

	reasons := make([]string, 0, maxReasons)
	for _, r := range ranked {
		if len(reasons) == maxReasons {
			break
		}
		reasons = append(reasons, reasonFor(r.id, r.fs.Value, s))
	}
	return reasons, ranked[0].id
}

// reasonFor renders one short human phrase for a penalized factor.
func reasonFor(id types.FactorID, value float64, s types.HourlySample) string {
	switch id {
	case types.FactorTemperature:
		return fmt.Sprintf("temperature %.0f°C is outside the comfortable range", value)
	case types.FactorPrecipitation:
		if activelyPrecipitating(s) {
			return fmt.Sprintf("precipitation falling at %.1f mm/h", s.PrecipMM)
		}
		return fmt.Sprintf("%.0f%% chance of precipitation", value)
	case types.FactorWind:
		return fmt.Sprintf("wind at %.0f km/h", value)
	case types.FactorUV:
		return fmt.Sprintf("high UV index of %.0f", value)
	case types.FactorVisibility:
		return fmt.Sprintf("visibility down to %.0f m", value)
	case types.FactorCloudCover:
		return fmt.Sprintf("%.0f%% cloud cover", value)
	case types.FactorKpIndex:
		return fmt.Sprintf("geomagnetic activity too low (Kp %.1f)", value)
	default:
		return string(id) + " is unfavorable"
	}
}

// recommendation derives one line of advice from the rating and the most
// significant unmet factor.
func recommendation(activity string, rating types.Rating, top types.FactorID) string {
	switch rating {
	case types.RatingExcellent:
		return fmt.Sprintf("Excellent conditions for %s right now.", activity)
	case types.RatingGood:
		return fmt.Sprintf("Good conditions for %s, with minor drawbacks.", activity)
	case types.RatingFair:
		if top != "" {
			return fmt.Sprintf("Fair conditions for %s; watch the %s.", activity, topFactorNoun(top))
		}
		return fmt.Sprintf("Fair conditions for %s.", activity)
	case types.RatingPoor:
		if top != "" {
			return fmt.Sprintf("Poor conditions for %s, mostly due to %s.", activity, topFactorNoun(top))
		}
		return fmt.Sprintf("Poor conditions for %s.", activity)
	default:
		if top != "" {
			return fmt.Sprintf("Not recommended: %s makes %s a bad idea right now.", topFactorNoun(top), activity)
		}
		return fmt.Sprintf("%s is not recommended right now.", activity)
	}
}

func topFactorNoun(id types.FactorID) string {
	switch id {
	case types.FactorTemperature:
		return "temperature"
	case types.FactorPrecipitation:
		return "precipitation"
	case types.FactorWind:
		return "wind"
	case types.FactorUV:
		return "UV level"
	case types.FactorVisibility:
		return "low visibility"
	case types.FactorCloudCover:
		return "cloud cover"
	case types.FactorKpIndex:
		return "weak geomagnetic activity"
	default:
		return string(id)
	}
}
