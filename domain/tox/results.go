package tox

import (
	"toxstat/domain/core"
)

// ============================================================================
// ANCOVA
// ============================================================================

// AdjustedMean is a least-squares group mean evaluated at the covariate's
// overall mean.
type AdjustedMean struct {
	DoseLevel int     `json:"dose_level"`
	Mean      float64 `json:"mean"`
	SE        float64 `json:"se"`
}

// ANCOVAContrast is one treated-vs-control covariate-adjusted comparison.
// P is nil when the contrast standard error degenerates to zero.
type ANCOVAContrast struct {
	DoseLevel   int      `json:"dose_level"`
	Difference  float64  `json:"difference"`
	SE          float64  `json:"se"`
	T           float64  `json:"t"`
	P           *float64 `json:"p,omitempty"`
	Significant bool     `json:"significant"`
}

// EffectDecomposition splits a treated group's raw mean difference into the
// covariate-adjusted (direct) and covariate-mediated (indirect) components.
// Invariant: Total == Direct + Indirect within floating tolerance.
type EffectDecomposition struct {
	DoseLevel        int     `json:"dose_level"`
	Total            float64 `json:"total_effect"`
	Direct           float64 `json:"direct_effect"`
	Indirect         float64 `json:"indirect_effect"`
	ProportionDirect float64 `json:"proportion_direct"`
	DirectEffectSize float64 `json:"direct_effect_size"`
}

// ANCOVAResult is the full output of the covariate-adjustment procedure.
type ANCOVAResult struct {
	AdjustedMeans      []AdjustedMean        `json:"adjusted_means"`
	Contrasts          []ANCOVAContrast      `json:"contrasts"`
	Slope              float64               `json:"slope"`
	SlopeSE            float64               `json:"slope_se"`
	SlopesHomogeneous  bool                  `json:"slopes_homogeneous"`
	HomogeneityP       *float64              `json:"homogeneity_p,omitempty"`
	ResidualDF         int                   `json:"residual_df"`
	MSE                float64               `json:"mse"`
	Decomposition      []EffectDecomposition `json:"effect_decomposition"`
	OrganFreeCovariate bool                  `json:"organ_free_covariate"`
}

// ============================================================================
// WILLIAMS
// ============================================================================

// WilliamsStep is one step-down comparison. Tested is false for dose indices
// below the first non-significant step, which the procedure leaves untested.
type WilliamsStep struct {
	DoseLevel     int     `json:"dose_level"`
	Statistic     float64 `json:"statistic"`
	CriticalValue float64 `json:"critical_value"`
	Significant   bool    `json:"significant"`
	Tested        bool    `json:"tested"`
}

// WilliamsResult is the output of the monotonicity-constrained step-down
// trend test. Steps are ordered highest dose first. MinimumEffectiveDose is
// the lowest dose level in the significant prefix, nil when the highest dose
// is already non-significant.
type WilliamsResult struct {
	Direction            Direction      `json:"direction"`
	PooledVariance       float64        `json:"pooled_variance"`
	DF                   int            `json:"df"`
	ConstrainedMeans     []float64      `json:"constrained_means"`
	Steps                []WilliamsStep `json:"steps"`
	MinimumEffectiveDose *int           `json:"minimum_effective_dose,omitempty"`
}

// ============================================================================
// NOAEL / LOAEL
// ============================================================================

// AdverseContribution records one adverse finding contributing at the LOAEL,
// for derivation transparency.
type AdverseContribution struct {
	EndpointID core.EndpointID `json:"endpoint_id"`
	Key        EndpointKey     `json:"key"`
	DoseLevel  int             `json:"dose_level"`
	DoseLabel  string          `json:"dose_label,omitempty"`
	PValueAdj  float64         `json:"p_value_adj"`
	EffectSize *float64        `json:"effect_size,omitempty"`
}

// NOAELRow is the consolidated no/lowest-observed-adverse-effect-level for
// one sex cohort. When both levels are set, NOAEL < LOAEL.
type NOAELRow struct {
	TraceID             core.TraceID          `json:"trace_id"`
	DerivedAt           core.Timestamp        `json:"derived_at"`
	Sex                 Sex                   `json:"sex"`
	NOAEL               *int                  `json:"noael_dose_level,omitempty"`
	LOAEL               *int                  `json:"loael_dose_level,omitempty"`
	Confidence          float64               `json:"confidence"`
	Method              string                `json:"method"`
	Contributions       []AdverseContribution `json:"contributions,omitempty"`
	Penalties           []string              `json:"penalties,omitempty"`
	MortalityCapApplied bool                  `json:"mortality_cap_applied"`
	CappedFrom          *int                  `json:"capped_from,omitempty"`
	CappedDoseValue     *float64              `json:"capped_dose_value,omitempty"`
}

// Named confidence penalties. Each reduces the confidence score by a fixed
// amount; confidence never increases past 1.0 and floors at 0.0.
const (
	PenaltySingleAdverseEndpoint   = "single_adverse_endpoint"
	PenaltyOppositeSexDisagreement = "opposite_sex_disagreement"
	PenaltyLargeEffectNotSig       = "large_effect_not_significant"
)
