package testkit

import (
	"fmt"
	"math"
	"math/rand/v2"

	"toxstat/domain/tox"
)

// CohortGeneratorConfig configures the synthetic study generator.
type CohortGeneratorConfig struct {
	DoseLevels      int    `json:"dose_levels"` // treated groups, excluding control
	SubjectsPerArm  int    `json:"subjects_per_arm"`
	Seed            uint64 `json:"seed"`
	ControlMean     float64
	ControlSD       float64
	DoseSlope       float64 // mean shift per dose level, in SD units
	BaselineRate    float64 // control incidence rate
	IncidenceSlope  float64 // incidence increase per dose level
	MaterializeRaws bool    // emit per-subject values alongside summaries
}

// DefaultCohortConfig returns a typical 4-arm subchronic design.
func DefaultCohortConfig() CohortGeneratorConfig {
	return CohortGeneratorConfig{
		DoseLevels:      3,
		SubjectsPerArm:  10,
		Seed:            42,
		ControlMean:     100,
		ControlSD:       12,
		DoseSlope:       0.6,
		BaselineRate:    0.05,
		IncidenceSlope:  0.12,
		MaterializeRaws: true,
	}
}

// CohortGenerator produces deterministic synthetic dose-cohort endpoints for
// tests. Same seed, same study.
type CohortGenerator struct {
	config CohortGeneratorConfig
	rng    *rand.Rand
}

// NewCohortGenerator creates a new cohort generator
func NewCohortGenerator(config CohortGeneratorConfig) *CohortGenerator {
	return &CohortGenerator{
		config: config,
		rng:    rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15)),
	}
}

// ContinuousEndpoint generates a continuous endpoint whose group means rise
// with dose according to the configured slope.
func (g *CohortGenerator) ContinuousEndpoint(key tox.EndpointKey) (*tox.Endpoint, error) {
	groups := make([]tox.DoseGroupRecord, 0, g.config.DoseLevels+1)
	for level := 0; level <= g.config.DoseLevels; level++ {
		mean := g.config.ControlMean + float64(level)*g.config.DoseSlope*g.config.ControlSD
		groups = append(groups, g.continuousGroup(level, mean, g.config.ControlSD))
	}
	return tox.NewEndpoint(key, tox.DataContinuous, groups)
}

// FlatContinuousEndpoint generates a continuous endpoint with no dose effect.
func (g *CohortGenerator) FlatContinuousEndpoint(key tox.EndpointKey) (*tox.Endpoint, error) {
	groups := make([]tox.DoseGroupRecord, 0, g.config.DoseLevels+1)
	for level := 0; level <= g.config.DoseLevels; level++ {
		groups = append(groups, g.continuousGroup(level, g.config.ControlMean, g.config.ControlSD))
	}
	return tox.NewEndpoint(key, tox.DataContinuous, groups)
}

// IncidenceEndpoint generates an incidence endpoint whose affected rate rises
// with dose.
func (g *CohortGenerator) IncidenceEndpoint(key tox.EndpointKey) (*tox.Endpoint, error) {
	groups := make([]tox.DoseGroupRecord, 0, g.config.DoseLevels+1)
	for level := 0; level <= g.config.DoseLevels; level++ {
		rate := g.config.BaselineRate + float64(level)*g.config.IncidenceSlope
		if rate > 1 {
			rate = 1
		}
		affected := 0
		for s := 0; s < g.config.SubjectsPerArm; s++ {
			if g.rng.Float64() < rate {
				affected++
			}
		}
		groups = append(groups, tox.DoseGroupRecord{
			DoseLevel: level,
			N:         g.config.SubjectsPerArm,
			Incidence: &tox.IncidenceStats{
				Affected:  affected,
				Incidence: float64(affected) / float64(g.config.SubjectsPerArm),
			},
		})
	}
	return tox.NewEndpoint(key, tox.DataIncidence, groups)
}

func (g *CohortGenerator) continuousGroup(level int, mean, sd float64) tox.DoseGroupRecord {
	values := make([]float64, g.config.SubjectsPerArm)
	for i := range values {
		values[i] = mean + sd*g.rng.NormFloat64()
	}

	record := tox.DoseGroupRecord{
		DoseLevel:  level,
		N:          g.config.SubjectsPerArm,
		Continuous: summarize(values),
	}
	if g.config.MaterializeRaws {
		record.Continuous.Values = values
	}
	return record
}

// summarize computes the sample summary of raw values.
func summarize(values []float64) *tox.ContinuousStats {
	n := float64(len(values))
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= n

	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	sd := 0.0
	if len(values) > 1 {
		sd = math.Sqrt(ss / (n - 1))
	}

	sorted := append([]float64(nil), values...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	median := sorted[len(sorted)/2]
	if len(sorted)%2 == 0 {
		median = (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2
	}

	return &tox.ContinuousStats{Mean: mean, SD: sd, Median: median}
}

// Key builds an endpoint key for a generated test endpoint.
func Key(domain, testCode string, sex tox.Sex) tox.EndpointKey {
	return tox.EndpointKey{Domain: domain, TestCode: testCode, Sex: sex}
}

// SummaryGroups builds a group sequence directly from summary statistics.
// Handy when a test needs exact means rather than sampled ones.
func SummaryGroups(means, sds []float64, n int) ([]tox.DoseGroupRecord, error) {
	if len(means) != len(sds) {
		return nil, fmt.Errorf("means/sds length mismatch: %d vs %d", len(means), len(sds))
	}
	groups := make([]tox.DoseGroupRecord, len(means))
	for i := range means {
		groups[i] = tox.DoseGroupRecord{
			DoseLevel:  i,
			N:          n,
			Continuous: &tox.ContinuousStats{Mean: means[i], SD: sds[i], Median: means[i]},
		}
	}
	return groups, nil
}

// IncidenceGroups builds a group sequence from affected counts.
func IncidenceGroups(affected []int, n int) []tox.DoseGroupRecord {
	groups := make([]tox.DoseGroupRecord, len(affected))
	for i, a := range affected {
		groups[i] = tox.DoseGroupRecord{
			DoseLevel: i,
			N:         n,
			Incidence: &tox.IncidenceStats{Affected: a, Incidence: float64(a) / float64(n)},
		}
	}
	return groups
}
