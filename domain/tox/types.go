package tox

import (
	"fmt"

	"toxstat/domain/core"
)

// ============================================================================
// STABLE PRIMITIVES (Canonical, never change)
// ============================================================================

// Sex identifies the animal cohort a finding belongs to
type Sex string

const (
	SexMale     Sex = "M"
	SexFemale   Sex = "F"
	SexCombined Sex = "Combined"
)

// DataType distinguishes continuous measurements from incidence counts
type DataType string

const (
	DataContinuous DataType = "continuous"
	DataIncidence  DataType = "incidence"
)

// Direction describes how an endpoint moves with dose
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionNone Direction = "none"
)

// DoseResponsePattern labels the shape of a dose-response relationship
type DoseResponsePattern string

const (
	PatternMonotonicIncrease DoseResponsePattern = "monotonic_increase"
	PatternMonotonicDecrease DoseResponsePattern = "monotonic_decrease"
	PatternThreshold         DoseResponsePattern = "threshold"
	PatternNonMonotonic      DoseResponsePattern = "non_monotonic"
	PatternFlat              DoseResponsePattern = "flat"
	PatternInsufficientData  DoseResponsePattern = "insufficient_data"
)

// Severity is the endpoint-level adversity verdict
type Severity string

const (
	SeverityAdverse Severity = "adverse"
	SeverityWarning Severity = "warning"
	SeverityNormal  Severity = "normal"
)

// ============================================================================
// GROUP STATISTICS (tagged union: exactly one payload per record)
// ============================================================================

// ContinuousStats carries summary statistics for one dose group of a
// continuous endpoint. Values holds raw per-subject measurements when the
// extraction collaborator materialized them; summary fields are always set.
type ContinuousStats struct {
	Mean   float64   `json:"mean"`
	SD     float64   `json:"sd"`
	Median float64   `json:"median"`
	Values []float64 `json:"values,omitempty"`
}

// IncidenceStats carries affected counts for one dose group of an incidence
// endpoint. Incidence = Affected / N. MeanSeverity is the group's mean graded
// severity score where the source records grades (histopathology); nil when
// the finding is ungraded.
type IncidenceStats struct {
	Affected     int      `json:"affected"`
	Incidence    float64  `json:"incidence"`
	MeanSeverity *float64 `json:"mean_severity,omitempty"`
}

// DoseGroupRecord is one dose group's measurements. DoseLevel 0 is the
// control group; levels ascend strictly across the ordered group sequence.
// Exactly one of Continuous or Incidence is set.
type DoseGroupRecord struct {
	DoseLevel  int              `json:"dose_level"`
	N          int              `json:"n"`
	Continuous *ContinuousStats `json:"continuous,omitempty"`
	Incidence  *IncidenceStats  `json:"incidence,omitempty"`
}

// Validate checks the tagged-union invariant for a single record.
func (r DoseGroupRecord) Validate() error {
	if r.DoseLevel < 0 {
		return core.NewValidationError("dose_level", fmt.Sprintf("must be non-negative, got %d", r.DoseLevel))
	}
	if r.N <= 0 {
		return core.NewValidationError("n", fmt.Sprintf("must be > 0, got %d", r.N))
	}
	if r.Continuous != nil && r.Incidence != nil {
		return core.ErrMixedStatistics
	}
	if r.Continuous == nil && r.Incidence == nil {
		return core.ErrMissingStatistics
	}
	if r.Incidence != nil && (r.Incidence.Affected < 0 || r.Incidence.Affected > r.N) {
		return core.NewValidationError("affected", fmt.Sprintf("must be in [0,%d], got %d", r.N, r.Incidence.Affected))
	}
	return nil
}

// ============================================================================
// PER-ENDPOINT STATISTICS
// ============================================================================

// PairwiseResult is one treated-group-vs-control comparison. EffectSize is
// the standardized mean difference for continuous endpoints; OddsRatio and
// RiskRatio are set for incidence endpoints instead.
type PairwiseResult struct {
	DoseLevel  int      `json:"dose_level"`
	PValue     float64  `json:"p_value"`
	PValueAdj  float64  `json:"p_value_adj"`
	EffectSize *float64 `json:"effect_size,omitempty"`
	OddsRatio  *float64 `json:"odds_ratio,omitempty"`
	RiskRatio  *float64 `json:"risk_ratio,omitempty"`
}

// EndpointKey identifies an endpoint within a study
type EndpointKey struct {
	Domain   string `json:"domain"`
	TestCode string `json:"test_code"`
	Specimen string `json:"specimen,omitempty"`
	Sex      Sex    `json:"sex"`
	Day      *int   `json:"day,omitempty"`
}

// String renders a compact identity for logs and derivation traces.
func (k EndpointKey) String() string {
	s := fmt.Sprintf("%s/%s", k.Domain, k.TestCode)
	if k.Specimen != "" {
		s += "/" + k.Specimen
	}
	s += fmt.Sprintf(" [%s]", k.Sex)
	if k.Day != nil {
		s += fmt.Sprintf(" day %d", *k.Day)
	}
	return s
}

// Endpoint is one measured finding with its grouped records and every
// classification field the pipeline derives. Stages never mutate an
// Endpoint in place; each stage returns a new enriched copy.
type Endpoint struct {
	ID         core.EndpointID   `json:"id"`
	Key        EndpointKey       `json:"key"`
	DataType   DataType          `json:"data_type"`
	GroupStats []DoseGroupRecord `json:"group_stats"`

	// Statistics stage
	Pairwise  []PairwiseResult `json:"pairwise,omitempty"`
	TrendP    *float64         `json:"trend_p,omitempty"`
	TrendStat *float64         `json:"trend_stat,omitempty"`
	Direction Direction        `json:"direction"`

	// Classification stage
	Pattern          DoseResponsePattern `json:"dose_response_pattern"`
	Severity         Severity            `json:"severity"`
	TreatmentRelated bool                `json:"treatment_related"`
	MaxEffectSize    *float64            `json:"max_effect_size,omitempty"`
	MinPAdj          *float64            `json:"min_p_adj,omitempty"`

	// Optional procedure attachments
	ANCOVA   *ANCOVAResult   `json:"ancova,omitempty"`
	Williams *WilliamsResult `json:"williams,omitempty"`

	// EnrichmentError annotates an endpoint whose enrichment failed; the
	// endpoint then carries safe default classifications.
	EnrichmentError string `json:"enrichment_error,omitempty"`
}

// NewEndpoint creates an endpoint with validated group records.
func NewEndpoint(key EndpointKey, dataType DataType, groups []DoseGroupRecord) (*Endpoint, error) {
	if err := ValidateGroupSequence(groups, dataType); err != nil {
		return nil, err
	}
	return &Endpoint{
		ID:         core.EndpointID(core.NewID()),
		Key:        key,
		DataType:   dataType,
		GroupStats: groups,
		Direction:  DirectionNone,
		Pattern:    PatternInsufficientData,
		Severity:   SeverityNormal,
	}, nil
}

// ValidateGroupSequence checks the ordered-group invariants: index 0 is the
// control, dose levels ascend strictly with no gaps, and every record carries
// the payload matching the endpoint data type.
func ValidateGroupSequence(groups []DoseGroupRecord, dataType DataType) error {
	for i, g := range groups {
		if err := g.Validate(); err != nil {
			return err
		}
		if g.DoseLevel != i {
			return fmt.Errorf("%w: index %d has dose_level %d", core.ErrInvalidGroupOrder, i, g.DoseLevel)
		}
		switch dataType {
		case DataContinuous:
			if g.Continuous == nil {
				return core.NewValidationError("group_stats", fmt.Sprintf("continuous endpoint missing continuous stats at dose %d", g.DoseLevel))
			}
		case DataIncidence:
			if g.Incidence == nil {
				return core.NewValidationError("group_stats", fmt.Sprintf("incidence endpoint missing incidence stats at dose %d", g.DoseLevel))
			}
		default:
			return core.NewValidationError("data_type", fmt.Sprintf("unknown data type %q", dataType))
		}
	}
	return nil
}

// ValidatePairwise checks that no pairwise result references the control.
func ValidatePairwise(pairwise []PairwiseResult) error {
	for _, p := range pairwise {
		if p.DoseLevel <= 0 {
			return core.ErrControlInPairwise
		}
	}
	return nil
}

// ============================================================================
// EXTERNAL COLLABORATOR INPUTS
// ============================================================================

// MortalitySummary is produced by the external mortality-aggregation
// collaborator. MortalityLOAEL is the lowest treated dose level with a
// treatment-related death, nil when none was observed.
type MortalitySummary struct {
	MortalityLOAEL *int            `json:"mortality_loael,omitempty"`
	DoseValues     map[int]float64 `json:"mortality_dose_value_map,omitempty"`
}

// DoseGroupMeta labels a dose level for derivation traces. Never used for
// computation.
type DoseGroupMeta struct {
	Label     string  `json:"label"`
	DoseValue float64 `json:"dose_value"`
	DoseUnit  string  `json:"dose_unit"`
}
