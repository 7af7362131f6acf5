package analysis

import (
	"math"

	"toxstat/domain/core"
	"toxstat/domain/tox"
	"toxstat/internal"
	"toxstat/internal/config"
)

// MethodAdjustedPairwise labels rows derived from adjusted pairwise
// significance of adverse findings.
const MethodAdjustedPairwise = "adjusted_pairwise"

const confidencePenalty = 0.2

// NOAELAggregator derives per-sex NOAEL/LOAEL rows from the full set of
// enriched endpoints. It is the terminal consumer of the pipeline: it reads
// classifications, never computes statistics itself.
type NOAELAggregator struct {
	cfg *config.AnalysisConfig
	log *internal.Logger
}

// NewNOAELAggregator creates a new aggregator
func NewNOAELAggregator(cfg *config.AnalysisConfig, logger *internal.Logger) *NOAELAggregator {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &NOAELAggregator{cfg: cfg, log: logger}
}

// DeriveAll produces one row per sex cohort: male, female, and combined
// (all sexes pooled). The opposite-sex disagreement penalty is applied to the
// single-sex rows after both are derived independently. Mortality and meta
// may be nil.
func (a *NOAELAggregator) DeriveAll(endpoints []tox.Endpoint, mortality *tox.MortalitySummary, meta []tox.DoseGroupMeta) []tox.NOAELRow {
	maleEndpoints := filterBySex(endpoints, tox.SexMale)
	femaleEndpoints := filterBySex(endpoints, tox.SexFemale)
	male := a.derive(maleEndpoints, tox.SexMale, meta)
	female := a.derive(femaleEndpoints, tox.SexFemale, meta)
	combined := a.derive(endpoints, tox.SexCombined, meta)

	// Disagreement is only meaningful when both cohorts were measured.
	if len(maleEndpoints) > 0 && len(femaleEndpoints) > 0 && noaelDisagrees(male.NOAEL, female.NOAEL) {
		male.Penalties = append(male.Penalties, tox.PenaltyOppositeSexDisagreement)
		female.Penalties = append(female.Penalties, tox.PenaltyOppositeSexDisagreement)
	}

	rows := []tox.NOAELRow{male, female, combined}
	for i := range rows {
		rows[i] = a.applyMortalityCap(rows[i], mortality)
		rows[i].Confidence = scoreConfidence(rows[i].Penalties)
	}
	return rows
}

// Derive computes a single row for one cohort without cross-sex comparison
// or the mortality cap. Exposed for callers holding a pre-filtered cohort.
func (a *NOAELAggregator) Derive(endpoints []tox.Endpoint, sex tox.Sex, meta []tox.DoseGroupMeta) tox.NOAELRow {
	row := a.derive(endpoints, sex, meta)
	row.Confidence = scoreConfidence(row.Penalties)
	return row
}

func (a *NOAELAggregator) derive(endpoints []tox.Endpoint, sex tox.Sex, meta []tox.DoseGroupMeta) tox.NOAELRow {
	row := tox.NOAELRow{
		TraceID:   core.TraceID(core.NewID()),
		DerivedAt: core.Now(),
		Sex:       sex,
		Method:    MethodAdjustedPairwise,
	}

	// The LOAEL is the minimum treated dose level at which any adverse
	// endpoint shows adjusted pairwise significance.
	var loael *int
	for _, ep := range endpoints {
		if ep.Severity != tox.SeverityAdverse {
			continue
		}
		for _, p := range ep.Pairwise {
			if p.DoseLevel <= 0 || p.PValueAdj >= a.cfg.Alpha {
				continue
			}
			if loael == nil || p.DoseLevel < *loael {
				level := p.DoseLevel
				loael = &level
			}
		}
	}

	if loael == nil {
		// No adverse significant finding: the highest tested dose is the
		// no-adverse-effect level.
		if highest := highestTestedDose(endpoints); highest > 0 {
			row.NOAEL = &highest
		}
		return row
	}

	row.LOAEL = loael
	if *loael > 1 {
		noael := *loael - 1
		row.NOAEL = &noael
	}
	// Adverse effects at the lowest treated dose leave no clean treated
	// level: the NOAEL is not established and stays nil.

	largeNonSigArtifact := false
	for _, ep := range endpoints {
		if ep.Severity != tox.SeverityAdverse {
			continue
		}
		contributes := false
		for _, p := range ep.Pairwise {
			if p.DoseLevel == *loael && p.PValueAdj < a.cfg.Alpha {
				contributes = true
				row.Contributions = append(row.Contributions, tox.AdverseContribution{
					EndpointID: ep.ID,
					Key:        ep.Key,
					DoseLevel:  p.DoseLevel,
					DoseLabel:  doseLabel(meta, p.DoseLevel),
					PValueAdj:  p.PValueAdj,
					EffectSize: p.EffectSize,
				})
			}
		}
		if !contributes {
			continue
		}
		// Large but non-significant effects in a contributing endpoint hint
		// at a high-variance artifact.
		for _, p := range ep.Pairwise {
			if p.EffectSize != nil &&
				math.Abs(*p.EffectSize) >= a.cfg.LargeEffectSize &&
				p.PValueAdj >= a.cfg.Alpha {
				largeNonSigArtifact = true
			}
		}
	}

	if len(row.Contributions) == 1 {
		row.Penalties = append(row.Penalties, tox.PenaltySingleAdverseEndpoint)
	}
	if largeNonSigArtifact {
		row.Penalties = append(row.Penalties, tox.PenaltyLargeEffectNotSig)
	}

	return row
}

// applyMortalityCap lowers the NOAEL when treatment-related deaths occurred
// at or below it. The cap never produces a negative dose level.
func (a *NOAELAggregator) applyMortalityCap(row tox.NOAELRow, mortality *tox.MortalitySummary) tox.NOAELRow {
	if mortality == nil || mortality.MortalityLOAEL == nil || row.NOAEL == nil {
		return row
	}
	mortLOAEL := *mortality.MortalityLOAEL
	if *row.NOAEL < mortLOAEL {
		return row
	}

	capped := mortLOAEL - 1
	if capped < 0 {
		capped = 0
	}
	original := *row.NOAEL

	row.MortalityCapApplied = true
	row.CappedFrom = &original
	row.NOAEL = &capped
	if dv, ok := mortality.DoseValues[capped]; ok {
		row.CappedDoseValue = &dv
	}

	a.log.Info("mortality cap applied for %s: NOAEL %d -> %d", row.Sex, original, capped)
	return row
}

func scoreConfidence(penalties []string) float64 {
	confidence := 1.0 - confidencePenalty*float64(len(penalties))
	if confidence < 0 {
		confidence = 0
	}
	return math.Round(confidence*100) / 100
}

func filterBySex(endpoints []tox.Endpoint, sex tox.Sex) []tox.Endpoint {
	filtered := make([]tox.Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		if ep.Key.Sex == sex {
			filtered = append(filtered, ep)
		}
	}
	return filtered
}

func noaelDisagrees(a, b *int) bool {
	if a == nil && b == nil {
		return false
	}
	if a == nil || b == nil {
		return true
	}
	return *a != *b
}

func highestTestedDose(endpoints []tox.Endpoint) int {
	highest := 0
	for _, ep := range endpoints {
		if n := len(ep.GroupStats) - 1; n > highest {
			highest = n
		}
	}
	return highest
}

func doseLabel(meta []tox.DoseGroupMeta, level int) string {
	if level < 0 || level >= len(meta) {
		return ""
	}
	return meta[level].Label
}
