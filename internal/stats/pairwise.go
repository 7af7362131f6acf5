package stats

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// GroupSummary is the (mean, sd, n) triple the summary-statistics paths
// consume. Control is always the first group in any ordered sequence.
type GroupSummary struct {
	Mean float64
	SD   float64
	N    int
}

// WelchResult is a two-sided unequal-variance comparison of one treated
// group against the control, with standardized effect sizes.
type WelchResult struct {
	T       float64
	DF      float64
	PValue  float64
	CohenD  float64
	HedgesG float64
}

// PairwiseComparator performs treated-vs-control hypothesis tests. It is a
// pure function of its inputs.
type PairwiseComparator struct {
	dist *Distributions
}

// NewPairwiseComparator creates a new pairwise comparator
func NewPairwiseComparator() *PairwiseComparator {
	return &PairwiseComparator{dist: NewDistributions()}
}

// WelchFromValues runs Welch's t-test on raw per-subject values. Returns nil
// when either group has fewer than two observations or both variances
// degenerate to zero.
func (c *PairwiseComparator) WelchFromValues(control, treated []float64) *WelchResult {
	if len(control) < 2 || len(treated) < 2 {
		return nil
	}

	meanC, _ := stats.Mean(control)
	meanT, _ := stats.Mean(treated)
	varC, _ := stats.SampleVariance(control)
	varT, _ := stats.SampleVariance(treated)

	return c.welch(meanC, varC, len(control), meanT, varT, len(treated))
}

// WelchFromSummary runs Welch's t-test from group summary statistics.
func (c *PairwiseComparator) WelchFromSummary(control, treated GroupSummary) *WelchResult {
	if control.N < 2 || treated.N < 2 {
		return nil
	}
	return c.welch(control.Mean, control.SD*control.SD, control.N,
		treated.Mean, treated.SD*treated.SD, treated.N)
}

func (c *PairwiseComparator) welch(meanC, varC float64, nC int, meanT, varT float64, nT int) *WelchResult {
	n1 := float64(nC)
	n2 := float64(nT)

	se := math.Sqrt(varC/n1 + varT/n2)
	if se == 0 {
		return nil
	}

	// Treated minus control, so the sign carries the direction of change.
	tStat := (meanT - meanC) / se

	// Welch-Satterthwaite degrees of freedom
	df := math.Pow(varC/n1+varT/n2, 2) /
		(math.Pow(varC/n1, 2)/(n1-1) + math.Pow(varT/n2, 2)/(n2-1))

	pValue := c.dist.TTestPValue(tStat, df)

	// Cohen's d with pooled standard deviation; Hedges' g applies the
	// small-sample bias correction 1 - 3/(4*df - 1).
	pooledDF := n1 + n2 - 2
	pooledSD := math.Sqrt(((n1-1)*varC + (n2-1)*varT) / pooledDF)
	cohenD := 0.0
	if pooledSD > 0 {
		cohenD = (meanT - meanC) / pooledSD
	}
	hedgesG := cohenD * (1 - 3/(4*pooledDF-1))

	return &WelchResult{
		T:       tStat,
		DF:      df,
		PValue:  pValue,
		CohenD:  cohenD,
		HedgesG: hedgesG,
	}
}

// BonferroniAdjust applies the Bonferroni correction for a family of
// comparisons sharing one control.
func BonferroniAdjust(pValue float64, comparisons int) float64 {
	if comparisons < 1 {
		return pValue
	}
	adjusted := pValue * float64(comparisons)
	if adjusted > 1 {
		adjusted = 1
	}
	return adjusted
}

// ============================================================================
// FISHER EXACT TEST
// ============================================================================

// FisherResult carries the incidence comparison of one treated group against
// the control.
type FisherResult struct {
	PValue    float64
	OddsRatio float64
	RiskRatio float64
}

// FisherExact runs a two-sided Fisher exact test on the 2x2 table
// {affected, unaffected} x {treated, control}. The two-sided p-value sums
// the probabilities of all tables at least as extreme as the observed one.
// Ratios use the Haldane-Anscombe 0.5 correction when any cell is zero.
func (c *PairwiseComparator) FisherExact(affectedTreated, nTreated, affectedControl, nControl int) *FisherResult {
	if nTreated <= 0 || nControl <= 0 ||
		affectedTreated < 0 || affectedTreated > nTreated ||
		affectedControl < 0 || affectedControl > nControl {
		return nil
	}

	a := affectedTreated
	b := nTreated - affectedTreated
	cc := affectedControl
	d := nControl - affectedControl
	affected := a + cc

	pObserved := hypergeomPMF(a, nTreated, nControl, affected)

	lo := affected - nControl
	if lo < 0 {
		lo = 0
	}
	hi := affected
	if hi > nTreated {
		hi = nTreated
	}

	pValue := 0.0
	for x := lo; x <= hi; x++ {
		p := hypergeomPMF(x, nTreated, nControl, affected)
		// Relative tolerance guards ties lost to floating rounding.
		if p <= pObserved*(1+1e-7) {
			pValue += p
		}
	}
	if pValue > 1 {
		pValue = 1
	}

	oddsRatio := ratioWithCorrection(float64(a), float64(d), float64(b), float64(cc),
		a == 0 || b == 0 || cc == 0 || d == 0)

	var riskRatio float64
	if cc == 0 || a == 0 {
		riskRatio = ((float64(a) + 0.5) / (float64(nTreated) + 1)) /
			((float64(cc) + 0.5) / (float64(nControl) + 1))
	} else {
		riskRatio = (float64(a) / float64(nTreated)) / (float64(cc) / float64(nControl))
	}

	return &FisherResult{
		PValue:    pValue,
		OddsRatio: oddsRatio,
		RiskRatio: riskRatio,
	}
}

func ratioWithCorrection(num1, num2, den1, den2 float64, correct bool) float64 {
	if correct {
		return ((num1 + 0.5) * (num2 + 0.5)) / ((den1 + 0.5) * (den2 + 0.5))
	}
	return (num1 * num2) / (den1 * den2)
}

// hypergeomPMF is P(X = x) for x affected among nTreated draws, given
// `affected` total affected subjects across nTreated+nControl.
func hypergeomPMF(x, nTreated, nControl, affected int) float64 {
	if x < 0 || x > nTreated || affected-x < 0 || affected-x > nControl {
		return 0
	}
	logP := logChoose(nTreated, x) +
		logChoose(nControl, affected-x) -
		logChoose(nTreated+nControl, affected)
	return math.Exp(logP)
}

func logChoose(n, k int) float64 {
	if k < 0 || k > n {
		return math.Inf(-1)
	}
	lgN, _ := math.Lgamma(float64(n) + 1)
	lgK, _ := math.Lgamma(float64(k) + 1)
	lgNK, _ := math.Lgamma(float64(n-k) + 1)
	return lgN - lgK - lgNK
}

// ============================================================================
// DUNNETT-TYPE SIMULTANEOUS ADJUSTMENT
// ============================================================================

// DunnettAdjuster estimates simultaneous p-values for several treated groups
// compared against one shared control. The max-|t| null distribution is
// estimated by a deterministic Monte-Carlo simulation (fixed seed) and
// memoized per design shape, since every endpoint of a study shares the same
// group sizes.
type DunnettAdjuster struct {
	trials int
	seed   uint64

	mu    sync.Mutex
	cache map[string][]float64 // sorted max-|t| samples per design shape
}

// NewDunnettAdjuster creates an adjuster running the given number of
// simulation trials.
func NewDunnettAdjuster(trials int, seed uint64) *DunnettAdjuster {
	return &DunnettAdjuster{
		trials: trials,
		seed:   seed,
		cache:  make(map[string][]float64),
	}
}

// Adjust maps per-group t-statistics to simultaneous p-values. groupSizes is
// the full ordered design (control first); len(tStats) must equal
// len(groupSizes)-1. Returns nil when the design is degenerate.
func (a *DunnettAdjuster) Adjust(tStats []float64, groupSizes []int) []float64 {
	if len(groupSizes) < 2 || len(tStats) != len(groupSizes)-1 {
		return nil
	}
	df := 0
	for _, n := range groupSizes {
		if n < 2 {
			return nil
		}
		df += n - 1
	}

	null := a.nullDistribution(groupSizes, df)

	adjusted := make([]float64, len(tStats))
	for i, t := range tStats {
		// Upper-tail fraction of simulated max-|t| at or beyond |t|.
		idx := sort.SearchFloat64s(null, math.Abs(t))
		exceed := len(null) - idx
		adjusted[i] = (float64(exceed) + 1) / (float64(len(null)) + 1)
		if adjusted[i] > 1 {
			adjusted[i] = 1
		}
	}
	return adjusted
}

func (a *DunnettAdjuster) nullDistribution(groupSizes []int, df int) []float64 {
	key := fmt.Sprint(groupSizes)

	a.mu.Lock()
	defer a.mu.Unlock()
	if cached, ok := a.cache[key]; ok {
		return cached
	}

	src := rand.NewPCG(a.seed, a.seed^uint64(df))
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	chi2 := distuv.ChiSquared{K: float64(df), Src: src}

	n0 := float64(groupSizes[0])
	samples := make([]float64, a.trials)
	for trial := 0; trial < a.trials; trial++ {
		s := math.Sqrt(chi2.Rand() / float64(df))
		z0 := normal.Rand() / math.Sqrt(n0)

		maxT := 0.0
		for _, n := range groupSizes[1:] {
			ni := float64(n)
			zi := normal.Rand() / math.Sqrt(ni)
			t := math.Abs(zi-z0) / (s * math.Sqrt(1/n0+1/ni))
			if t > maxT {
				maxT = t
			}
		}
		samples[trial] = maxT
	}
	sort.Float64s(samples)

	a.cache[key] = samples
	return samples
}
