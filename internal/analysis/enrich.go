package analysis

import (
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/semaphore"

	"toxstat/domain/core"
	"toxstat/domain/tox"
	"toxstat/internal"
	"toxstat/internal/config"
	apperrors "toxstat/internal/errors"
	"toxstat/internal/stats"
)

// Enricher runs the per-endpoint classification pipeline: statistics,
// dose-response pattern, severity, treatment-relatedness. Each stage is a
// pure function returning a new enriched value; the input endpoint is never
// mutated.
type Enricher struct {
	cfg      *config.AnalysisConfig
	log      *internal.Logger
	pairwise *stats.PairwiseComparator
	trend    *stats.TrendTester
	dunnett  *stats.DunnettAdjuster
	williams *stats.WilliamsTester
	ancova   *stats.ANCOVAEngine
}

// NewEnricher creates an enricher with shared, memoizing statistical
// components. The Dunnett and Williams simulators cache null distributions
// per design shape, so one enricher should serve a whole study.
func NewEnricher(cfg *config.AnalysisConfig, logger *internal.Logger) *Enricher {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Enricher{
		cfg:      cfg,
		log:      logger,
		pairwise: stats.NewPairwiseComparator(),
		trend:    stats.NewTrendTester(),
		dunnett:  stats.NewDunnettAdjuster(cfg.SimulationTrials, cfg.SimulationSeed),
		williams: stats.NewWilliamsTester(),
		ancova:   stats.NewANCOVAEngine(),
	}
}

// Enrich runs the full pipeline on one endpoint and returns the enriched
// copy. A failure in any stage yields the input with safe default
// classifications and an error annotation; it never panics outward.
func (e *Enricher) Enrich(endpoint tox.Endpoint) tox.Endpoint {
	enriched, err := e.enrich(endpoint)
	if err != nil {
		e.log.Warn("enrichment failed for %s: %v", endpoint.Key.String(), err)
		return withSafeDefaults(endpoint, err)
	}
	return enriched
}

func (e *Enricher) enrich(endpoint tox.Endpoint) (result tox.Endpoint, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during enrichment: %v", r)
		}
	}()

	if err := tox.ValidateGroupSequence(endpoint.GroupStats, endpoint.DataType); err != nil {
		return endpoint, core.NewEnrichmentError(endpoint.ID.String(), err)
	}

	enriched := e.computeStatistics(endpoint)
	enriched.Pattern = ClassifyPattern(enriched, e.cfg.EquivalenceBandFactor)
	enriched.Severity = ClassifySeverity(enriched, e.cfg)
	enriched.TreatmentRelated = IsTreatmentRelated(enriched, e.cfg)
	e.log.Debug("enriched %s: pattern=%s severity=%s related=%t",
		enriched.Key.String(), enriched.Pattern, enriched.Severity, enriched.TreatmentRelated)
	return enriched, nil
}

// EnrichAll enriches endpoints concurrently under a weighted semaphore.
// Endpoint computations are independent, so ordering does not matter; the
// output preserves input order. One malformed endpoint never aborts the
// batch.
func (e *Enricher) EnrichAll(ctx context.Context, endpoints []tox.Endpoint) ([]tox.Endpoint, error) {
	results := make([]tox.Endpoint, len(endpoints))
	sem := semaphore.NewWeighted(e.cfg.MaxConcurrentEndpoints)

	var wg sync.WaitGroup
	for i := range endpoints {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, apperrors.Wrap(err, "enrichment batch aborted")
		}

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer sem.Release(1)
			results[idx] = e.Enrich(endpoints[idx])
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.EnrichmentError != "" {
			failed++
		}
	}
	e.log.Info("enriched %d endpoints (%d failed)", len(results), failed)
	return results, nil
}

// AttachANCOVA runs the covariate-adjustment procedure on per-subject
// observations and attaches the result. Used for organ-mass endpoints under
// strong body-mass confounding. A nil fit (degenerate design) leaves the
// endpoint unchanged.
func (e *Enricher) AttachANCOVA(endpoint tox.Endpoint, observations []stats.Observation) tox.Endpoint {
	result := e.ancova.Fit(observations, stats.ANCOVAOptions{
		Alpha:              e.cfg.Alpha,
		OrganFreeCovariate: e.cfg.OrganFreeCovariate,
	})
	if result == nil {
		return endpoint
	}
	endpoint.ANCOVA = result
	return endpoint
}

// computeStatistics fills the pairwise, trend, direction, and summary
// statistic fields from the grouped records.
func (e *Enricher) computeStatistics(endpoint tox.Endpoint) tox.Endpoint {
	switch endpoint.DataType {
	case tox.DataIncidence:
		return e.computeIncidenceStatistics(endpoint)
	default:
		return e.computeContinuousStatistics(endpoint)
	}
}

func (e *Enricher) computeContinuousStatistics(endpoint tox.Endpoint) tox.Endpoint {
	groups := endpoint.GroupStats
	if len(groups) < 2 {
		return endpoint
	}
	control := groups[0]

	rawAvailable := len(control.Continuous.Values) >= 2
	for _, g := range groups[1:] {
		if len(g.Continuous.Values) < 2 {
			rawAvailable = false
		}
	}

	type comparison struct {
		doseLevel int
		welch     *stats.WelchResult
	}
	comparisons := make([]comparison, 0, len(groups)-1)
	for _, g := range groups[1:] {
		var welch *stats.WelchResult
		if rawAvailable {
			welch = e.pairwise.WelchFromValues(control.Continuous.Values, g.Continuous.Values)
		} else {
			welch = e.pairwise.WelchFromSummary(
				stats.GroupSummary{Mean: control.Continuous.Mean, SD: control.Continuous.SD, N: control.N},
				stats.GroupSummary{Mean: g.Continuous.Mean, SD: g.Continuous.SD, N: g.N},
			)
		}
		if welch != nil {
			comparisons = append(comparisons, comparison{doseLevel: g.DoseLevel, welch: welch})
		}
	}

	// Multiple-comparison correction across the treated set: Dunnett-type
	// simultaneous adjustment when raw values back every comparison,
	// Bonferroni otherwise.
	var adjusted []float64
	if rawAvailable && len(comparisons) > 0 {
		sizes := make([]int, 0, len(groups))
		tStats := make([]float64, 0, len(comparisons))
		sizes = append(sizes, len(control.Continuous.Values))
		for _, g := range groups[1:] {
			sizes = append(sizes, len(g.Continuous.Values))
		}
		for _, c := range comparisons {
			tStats = append(tStats, c.welch.T)
		}
		if len(tStats) == len(sizes)-1 {
			adjusted = e.dunnett.Adjust(tStats, sizes)
		}
	}

	pairwise := make([]tox.PairwiseResult, 0, len(comparisons))
	var minPAdj, maxEffect *float64
	for i, c := range comparisons {
		pAdj := stats.BonferroniAdjust(c.welch.PValue, len(comparisons))
		if adjusted != nil {
			pAdj = adjusted[i]
		}

		effect := c.welch.CohenD
		pairwise = append(pairwise, tox.PairwiseResult{
			DoseLevel:  c.doseLevel,
			PValue:     c.welch.PValue,
			PValueAdj:  pAdj,
			EffectSize: &effect,
		})

		if minPAdj == nil || pAdj < *minPAdj {
			p := pAdj
			minPAdj = &p
		}
		if maxEffect == nil || math.Abs(effect) > math.Abs(*maxEffect) {
			es := effect
			maxEffect = &es
		}
	}

	endpoint.Pairwise = pairwise
	endpoint.MinPAdj = minPAdj
	endpoint.MaxEffectSize = maxEffect

	if rawAvailable {
		valueSets := make([][]float64, 0, len(groups))
		for _, g := range groups {
			valueSets = append(valueSets, g.Continuous.Values)
		}
		if trend := e.trend.JonckheereTerpstra(valueSets); trend != nil {
			endpoint.TrendP = &trend.PValue
			endpoint.TrendStat = &trend.Statistic
			endpoint.Direction = trend.Direction
		}
	}
	if endpoint.Direction == "" || endpoint.Direction == tox.DirectionNone {
		endpoint.Direction = meanDirection(groups)
	}

	// Williams' step-down runs from summary statistics as the
	// complementary monotonic trend assessment.
	if len(groups) >= 3 {
		summaries := make([]stats.GroupSummary, 0, len(groups))
		for _, g := range groups {
			summaries = append(summaries, stats.GroupSummary{
				Mean: g.Continuous.Mean,
				SD:   g.Continuous.SD,
				N:    g.N,
			})
		}
		endpoint.Williams = e.williams.Test(summaries, stats.WilliamsOptions{
			Alpha:  e.cfg.Alpha,
			Trials: e.cfg.SimulationTrials,
			Seed:   e.cfg.SimulationSeed,
		})
	}

	return endpoint
}

func (e *Enricher) computeIncidenceStatistics(endpoint tox.Endpoint) tox.Endpoint {
	groups := endpoint.GroupStats
	if len(groups) < 2 {
		return endpoint
	}
	control := groups[0]

	type comparison struct {
		doseLevel int
		fisher    *stats.FisherResult
	}
	comparisons := make([]comparison, 0, len(groups)-1)
	for _, g := range groups[1:] {
		fisher := e.pairwise.FisherExact(g.Incidence.Affected, g.N, control.Incidence.Affected, control.N)
		if fisher != nil {
			comparisons = append(comparisons, comparison{doseLevel: g.DoseLevel, fisher: fisher})
		}
	}

	pairwise := make([]tox.PairwiseResult, 0, len(comparisons))
	var minPAdj *float64
	for _, c := range comparisons {
		pAdj := stats.BonferroniAdjust(c.fisher.PValue, len(comparisons))
		or := c.fisher.OddsRatio
		rr := c.fisher.RiskRatio
		pairwise = append(pairwise, tox.PairwiseResult{
			DoseLevel: c.doseLevel,
			PValue:    c.fisher.PValue,
			PValueAdj: pAdj,
			OddsRatio: &or,
			RiskRatio: &rr,
		})
		if minPAdj == nil || pAdj < *minPAdj {
			p := pAdj
			minPAdj = &p
		}
	}

	endpoint.Pairwise = pairwise
	endpoint.MinPAdj = minPAdj

	affected := make([]int, len(groups))
	totals := make([]int, len(groups))
	for i, g := range groups {
		affected[i] = g.Incidence.Affected
		totals[i] = g.N
	}
	if trend := e.trend.CochranArmitage(affected, totals); trend != nil {
		endpoint.TrendP = &trend.PValue
		endpoint.TrendStat = &trend.Statistic
		endpoint.Direction = trend.Direction
	}

	// Saturated incidence (all-or-none rates) defeats Cochran-Armitage but
	// graded severity can still carry a dose trend.
	if endpoint.TrendP == nil {
		doseLevels := make([]int, len(groups))
		meanSeverity := make([]*float64, len(groups))
		for i, g := range groups {
			doseLevels[i] = g.DoseLevel
			meanSeverity[i] = g.Incidence.MeanSeverity
		}
		if trend := e.trend.SeverityTrend(doseLevels, meanSeverity); trend != nil {
			endpoint.TrendP = &trend.PValue
			endpoint.TrendStat = &trend.Statistic
			endpoint.Direction = trend.Direction
		}
	}
	if endpoint.Direction == "" || endpoint.Direction == tox.DirectionNone {
		endpoint.Direction = incidenceDirection(groups)
	}

	return endpoint
}

func meanDirection(groups []tox.DoseGroupRecord) tox.Direction {
	first := groups[0].Continuous
	last := groups[len(groups)-1].Continuous
	if first == nil || last == nil {
		return tox.DirectionNone
	}
	switch {
	case last.Mean > first.Mean:
		return tox.DirectionUp
	case last.Mean < first.Mean:
		return tox.DirectionDown
	default:
		return tox.DirectionNone
	}
}

func incidenceDirection(groups []tox.DoseGroupRecord) tox.Direction {
	first := groups[0].Incidence
	last := groups[len(groups)-1].Incidence
	if first == nil || last == nil {
		return tox.DirectionNone
	}
	switch {
	case last.Incidence > first.Incidence:
		return tox.DirectionUp
	case last.Incidence < first.Incidence:
		return tox.DirectionDown
	default:
		return tox.DirectionNone
	}
}

// withSafeDefaults returns the endpoint with conservative classification
// values and an error annotation. Downstream consumers treat it as a
// non-finding.
func withSafeDefaults(endpoint tox.Endpoint, err error) tox.Endpoint {
	endpoint.Severity = tox.SeverityNormal
	endpoint.Pattern = tox.PatternInsufficientData
	endpoint.TreatmentRelated = false
	endpoint.EnrichmentError = err.Error()
	return endpoint
}
