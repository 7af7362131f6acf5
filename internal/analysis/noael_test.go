package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toxstat/domain/core"
	"toxstat/domain/tox"
	"toxstat/internal/config"
)

func adverseEndpoint(sex tox.Sex, testCode string, pairwise []tox.PairwiseResult) tox.Endpoint {
	return tox.Endpoint{
		ID:       core.EndpointID(core.NewID()),
		Key:      tox.EndpointKey{Domain: "LB", TestCode: testCode, Sex: sex},
		DataType: tox.DataContinuous,
		GroupStats: []tox.DoseGroupRecord{
			{DoseLevel: 0, N: 10, Continuous: &tox.ContinuousStats{Mean: 1, SD: 0.1}},
			{DoseLevel: 1, N: 10, Continuous: &tox.ContinuousStats{Mean: 1.1, SD: 0.1}},
			{DoseLevel: 2, N: 10, Continuous: &tox.ContinuousStats{Mean: 1.4, SD: 0.1}},
			{DoseLevel: 3, N: 10, Continuous: &tox.ContinuousStats{Mean: 1.8, SD: 0.1}},
		},
		Pairwise: pairwise,
		Severity: tox.SeverityAdverse,
	}
}

func quietEndpoint(sex tox.Sex) tox.Endpoint {
	ep := adverseEndpoint(sex, "ALT", []tox.PairwiseResult{
		{DoseLevel: 1, PValue: 0.5, PValueAdj: 0.9},
		{DoseLevel: 2, PValue: 0.4, PValueAdj: 0.8},
		{DoseLevel: 3, PValue: 0.3, PValueAdj: 0.7},
	})
	ep.Severity = tox.SeverityNormal
	return ep
}

func TestDeriveLOAELFromAdverseSignificance(t *testing.T) {
	agg := NewNOAELAggregator(config.Default(), nil)

	ep := adverseEndpoint(tox.SexMale, "AST", []tox.PairwiseResult{
		{DoseLevel: 1, PValue: 0.20, PValueAdj: 0.40, EffectSize: fp(0.3)},
		{DoseLevel: 2, PValue: 0.004, PValueAdj: 0.012, EffectSize: fp(0.9)},
		{DoseLevel: 3, PValue: 0.0003, PValueAdj: 0.001, EffectSize: fp(1.4)},
	})

	row := agg.Derive([]tox.Endpoint{ep}, tox.SexMale, nil)

	require.NotNil(t, row.LOAEL)
	assert.Equal(t, 2, *row.LOAEL)
	require.NotNil(t, row.NOAEL)
	assert.Equal(t, 1, *row.NOAEL)
	assert.Less(t, *row.NOAEL, *row.LOAEL)
	assert.GreaterOrEqual(t, *row.LOAEL, 1)
	assert.Equal(t, MethodAdjustedPairwise, row.Method)

	require.Len(t, row.Contributions, 1)
	assert.Equal(t, 2, row.Contributions[0].DoseLevel)
	assert.Equal(t, 0.012, row.Contributions[0].PValueAdj)

	// One contributing endpoint costs 0.2.
	assert.Contains(t, row.Penalties, tox.PenaltySingleAdverseEndpoint)
	assert.InDelta(t, 0.8, row.Confidence, 1e-9)
}

func TestDeriveAdverseAtLowestDose(t *testing.T) {
	agg := NewNOAELAggregator(config.Default(), nil)

	ep := adverseEndpoint(tox.SexFemale, "BW", []tox.PairwiseResult{
		{DoseLevel: 1, PValue: 0.001, PValueAdj: 0.003, EffectSize: fp(1.1)},
		{DoseLevel: 2, PValue: 0.001, PValueAdj: 0.003, EffectSize: fp(1.3)},
		{DoseLevel: 3, PValue: 0.001, PValueAdj: 0.003, EffectSize: fp(1.6)},
	})

	row := agg.Derive([]tox.Endpoint{ep}, tox.SexFemale, nil)

	require.NotNil(t, row.LOAEL)
	assert.Equal(t, 1, *row.LOAEL)
	// Adverse at the lowest treated dose: no treated level is clean, so the
	// NOAEL cannot be established.
	assert.Nil(t, row.NOAEL)
}

func TestDeriveNoAdverseFindings(t *testing.T) {
	agg := NewNOAELAggregator(config.Default(), nil)

	row := agg.Derive([]tox.Endpoint{quietEndpoint(tox.SexMale)}, tox.SexMale, nil)

	assert.Nil(t, row.LOAEL)
	require.NotNil(t, row.NOAEL)
	assert.Equal(t, 3, *row.NOAEL, "clean study: NOAEL is the highest tested dose")
	assert.Empty(t, row.Penalties)
	assert.InDelta(t, 1.0, row.Confidence, 1e-9)
}

func TestDeriveSeverityGatesContribution(t *testing.T) {
	agg := NewNOAELAggregator(config.Default(), nil)

	// Significant but not adverse: warnings never drive the LOAEL.
	ep := adverseEndpoint(tox.SexMale, "K", []tox.PairwiseResult{
		{DoseLevel: 1, PValue: 0.001, PValueAdj: 0.004, EffectSize: fp(0.3)},
	})
	ep.Severity = tox.SeverityWarning

	row := agg.Derive([]tox.Endpoint{ep}, tox.SexMale, nil)
	assert.Nil(t, row.LOAEL)
}

func TestDeriveLargeEffectNotSignificantPenalty(t *testing.T) {
	agg := NewNOAELAggregator(config.Default(), nil)

	first := adverseEndpoint(tox.SexMale, "ALT", []tox.PairwiseResult{
		{DoseLevel: 2, PValue: 0.003, PValueAdj: 0.009, EffectSize: fp(0.8)},
		// Large effect that fails significance hints at a variance artifact.
		{DoseLevel: 3, PValue: 0.08, PValueAdj: 0.24, EffectSize: fp(1.5)},
	})
	second := adverseEndpoint(tox.SexMale, "AST", []tox.PairwiseResult{
		{DoseLevel: 2, PValue: 0.002, PValueAdj: 0.006, EffectSize: fp(0.9)},
	})

	row := agg.Derive([]tox.Endpoint{first, second}, tox.SexMale, nil)

	require.NotNil(t, row.LOAEL)
	assert.Equal(t, 2, *row.LOAEL)
	assert.Len(t, row.Contributions, 2)
	assert.NotContains(t, row.Penalties, tox.PenaltySingleAdverseEndpoint)
	assert.Contains(t, row.Penalties, tox.PenaltyLargeEffectNotSig)
	assert.InDelta(t, 0.8, row.Confidence, 1e-9)
}

func TestDeriveAllOppositeSexDisagreement(t *testing.T) {
	agg := NewNOAELAggregator(config.Default(), nil)

	male := adverseEndpoint(tox.SexMale, "ALT", []tox.PairwiseResult{
		{DoseLevel: 2, PValue: 0.003, PValueAdj: 0.009, EffectSize: fp(0.8)},
	})
	female := adverseEndpoint(tox.SexFemale, "ALT", []tox.PairwiseResult{
		{DoseLevel: 3, PValue: 0.003, PValueAdj: 0.009, EffectSize: fp(0.8)},
	})

	rows := agg.DeriveAll([]tox.Endpoint{male, female}, nil, nil)
	require.Len(t, rows, 3)

	bySex := map[tox.Sex]tox.NOAELRow{}
	for _, r := range rows {
		bySex[r.Sex] = r
	}

	assert.Equal(t, 1, *bySex[tox.SexMale].NOAEL)
	assert.Equal(t, 2, *bySex[tox.SexFemale].NOAEL)
	assert.Contains(t, bySex[tox.SexMale].Penalties, tox.PenaltyOppositeSexDisagreement)
	assert.Contains(t, bySex[tox.SexFemale].Penalties, tox.PenaltyOppositeSexDisagreement)
	// Combined pools both sexes; no cross-sex penalty applies to it.
	assert.NotContains(t, bySex[tox.SexCombined].Penalties, tox.PenaltyOppositeSexDisagreement)
	assert.Equal(t, 1, *bySex[tox.SexCombined].NOAEL, "combined LOAEL is the minimum across sexes")

	// Single endpoint + disagreement: two penalties each.
	assert.InDelta(t, 0.6, bySex[tox.SexMale].Confidence, 1e-9)
}

func TestDeriveAllSingleSexStudySkipsDisagreement(t *testing.T) {
	agg := NewNOAELAggregator(config.Default(), nil)

	male := adverseEndpoint(tox.SexMale, "ALT", []tox.PairwiseResult{
		{DoseLevel: 2, PValue: 0.003, PValueAdj: 0.009, EffectSize: fp(0.8)},
	})

	rows := agg.DeriveAll([]tox.Endpoint{male}, nil, nil)
	for _, r := range rows {
		assert.NotContains(t, r.Penalties, tox.PenaltyOppositeSexDisagreement, "sex %s", r.Sex)
	}
}

func TestMortalityCap(t *testing.T) {
	agg := NewNOAELAggregator(config.Default(), nil)

	// Statistics alone put the NOAEL at dose 3.
	quiet := quietEndpoint(tox.SexMale)
	mortLOAEL := 2
	mortality := &tox.MortalitySummary{
		MortalityLOAEL: &mortLOAEL,
		DoseValues:     map[int]float64{0: 0, 1: 10, 2: 50, 3: 250},
	}

	rows := agg.DeriveAll([]tox.Endpoint{quiet}, mortality, nil)
	var male tox.NOAELRow
	for _, r := range rows {
		if r.Sex == tox.SexMale {
			male = r
		}
	}

	require.NotNil(t, male.NOAEL)
	assert.Equal(t, 1, *male.NOAEL, "capped to one below the mortality LOAEL")
	assert.True(t, male.MortalityCapApplied)
	require.NotNil(t, male.CappedFrom)
	assert.Equal(t, 3, *male.CappedFrom)
	require.NotNil(t, male.CappedDoseValue)
	assert.Equal(t, 10.0, *male.CappedDoseValue)
}

func TestMortalityCapNeverNegative(t *testing.T) {
	agg := NewNOAELAggregator(config.Default(), nil)

	quiet := quietEndpoint(tox.SexMale)
	mortLOAEL := 0
	mortality := &tox.MortalitySummary{MortalityLOAEL: &mortLOAEL}

	rows := agg.DeriveAll([]tox.Endpoint{quiet}, mortality, nil)
	for _, r := range rows {
		if r.NOAEL != nil {
			assert.GreaterOrEqual(t, *r.NOAEL, 0)
		}
	}
}

func TestMortalityCapNotAppliedBelow(t *testing.T) {
	agg := NewNOAELAggregator(config.Default(), nil)

	ep := adverseEndpoint(tox.SexMale, "ALT", []tox.PairwiseResult{
		{DoseLevel: 1, PValue: 0.001, PValueAdj: 0.003, EffectSize: fp(1.1)},
	})
	mortLOAEL := 3
	mortality := &tox.MortalitySummary{MortalityLOAEL: &mortLOAEL}

	rows := agg.DeriveAll([]tox.Endpoint{ep}, mortality, nil)
	for _, r := range rows {
		assert.False(t, r.MortalityCapApplied, "sex %s: NOAEL already below mortality LOAEL", r.Sex)
	}
}

func TestDeriveDoseLabelsFromMeta(t *testing.T) {
	agg := NewNOAELAggregator(config.Default(), nil)

	ep := adverseEndpoint(tox.SexMale, "ALT", []tox.PairwiseResult{
		{DoseLevel: 2, PValue: 0.003, PValueAdj: 0.009, EffectSize: fp(0.8)},
	})
	meta := []tox.DoseGroupMeta{
		{Label: "Control", DoseValue: 0, DoseUnit: "mg/kg"},
		{Label: "Low", DoseValue: 10, DoseUnit: "mg/kg"},
		{Label: "Mid", DoseValue: 50, DoseUnit: "mg/kg"},
		{Label: "High", DoseValue: 250, DoseUnit: "mg/kg"},
	}

	row := agg.Derive([]tox.Endpoint{ep}, tox.SexMale, meta)
	require.Len(t, row.Contributions, 1)
	assert.Equal(t, "Mid", row.Contributions[0].DoseLabel)
}

func TestConfidenceFloorsAtZero(t *testing.T) {
	assert.Equal(t, 0.0, scoreConfidence([]string{"a", "b", "c", "d", "e", "f"}))
	assert.Equal(t, 1.0, scoreConfidence(nil))
	assert.Equal(t, 0.4, scoreConfidence([]string{"a", "b", "c"}))
}
