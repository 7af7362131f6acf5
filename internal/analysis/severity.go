package analysis

import (
	"math"

	"toxstat/domain/tox"
	"toxstat/internal/config"
)

// ClassifySeverity produces the endpoint-level adversity verdict from the
// minimum adjusted pairwise p-value, the trend p-value, and the maximum
// standardized effect size.
//
// A significant decrease in incidence is never adverse: it may indicate a
// background lesion reduced by treatment.
func ClassifySeverity(endpoint tox.Endpoint, cfg *config.AnalysisConfig) tox.Severity {
	minP := optionalValue(endpoint.MinPAdj, 1.0)
	trendP := optionalValue(endpoint.TrendP, 1.0)
	effect := math.Abs(optionalValue(endpoint.MaxEffectSize, 0))

	if endpoint.DataType == tox.DataIncidence {
		if endpoint.Direction == tox.DirectionDown {
			if minP < cfg.Alpha || trendP < cfg.Alpha {
				return tox.SeverityWarning
			}
			return tox.SeverityNormal
		}

		switch {
		case minP < cfg.Alpha:
			return tox.SeverityAdverse
		case trendP < cfg.Alpha || minP < cfg.WeakAlpha:
			return tox.SeverityWarning
		default:
			return tox.SeverityNormal
		}
	}

	switch {
	case minP < cfg.Alpha && effect >= cfg.AdverseEffectSize:
		return tox.SeverityAdverse
	case minP < cfg.Alpha:
		return tox.SeverityWarning
	case trendP < cfg.Alpha && effect >= cfg.TrendAdverseEffectSize:
		return tox.SeverityAdverse
	case trendP < cfg.Alpha || effect >= cfg.LargeEffectSize:
		return tox.SeverityWarning
	default:
		return tox.SeverityNormal
	}
}

// IsTreatmentRelated decides whether a finding is attributable to treatment:
// concordant pairwise and trend significance, an adverse monotonic pattern,
// or strong pairwise significance alone.
func IsTreatmentRelated(endpoint tox.Endpoint, cfg *config.AnalysisConfig) bool {
	minP := optionalValue(endpoint.MinPAdj, 1.0)
	trendP := optionalValue(endpoint.TrendP, 1.0)

	if minP < cfg.Alpha && trendP < cfg.Alpha {
		return true
	}
	if endpoint.Severity == tox.SeverityAdverse &&
		(endpoint.Pattern == tox.PatternMonotonicIncrease || endpoint.Pattern == tox.PatternMonotonicDecrease) {
		return true
	}
	return minP < cfg.StrongAlpha
}

func optionalValue(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
