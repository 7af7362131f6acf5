package stats

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"

	"toxstat/domain/tox"
)

// WilliamsOptions tunes the step-down trend test. Zero values fall back to
// the defaults (alpha 0.05, direction auto-detected, 100000 trials).
type WilliamsOptions struct {
	Alpha     float64
	Direction tox.Direction // auto-detect when empty or DirectionNone
	Trials    int
	Seed      uint64
}

// WilliamsTester runs the monotonicity-constrained step-down trend test.
// Monte-Carlo critical values are memoized per design shape, which pays off
// across endpoints sharing the same group sizes.
type WilliamsTester struct {
	dist *Distributions

	mu    sync.Mutex
	cache map[string]float64
}

// NewWilliamsTester creates a new Williams step-down tester
func NewWilliamsTester() *WilliamsTester {
	return &WilliamsTester{
		dist:  NewDistributions(),
		cache: make(map[string]float64),
	}
}

// Test runs the step-down procedure on the ordered group summaries, control
// first. Returns nil with fewer than two treated groups' worth of usable
// data or a degenerate pooled variance.
func (w *WilliamsTester) Test(groups []GroupSummary, opts WilliamsOptions) *tox.WilliamsResult {
	if len(groups) < 2 {
		return nil
	}
	for _, g := range groups {
		if g.N < 2 {
			return nil
		}
	}

	if opts.Alpha <= 0 {
		opts.Alpha = 0.05
	}
	if opts.Trials <= 0 {
		opts.Trials = 100000
	}
	if opts.Seed == 0 {
		opts.Seed = 20170213
	}

	k := len(groups) - 1
	control := groups[0]

	// Pooled within-group variance from all groups' degrees of freedom.
	df := 0
	pooledSS := 0.0
	for _, g := range groups {
		df += g.N - 1
		pooledSS += float64(g.N-1) * g.SD * g.SD
	}
	if df <= 0 {
		return nil
	}
	pooledVar := pooledSS / float64(df)
	if pooledVar <= 0 {
		return nil
	}
	pooledSD := math.Sqrt(pooledVar)

	direction := opts.Direction
	if direction == "" || direction == tox.DirectionNone {
		if groups[k].Mean >= control.Mean {
			direction = tox.DirectionUp
		} else {
			direction = tox.DirectionDown
		}
	}

	means := make([]float64, len(groups))
	weights := make([]float64, len(groups))
	for i, g := range groups {
		means[i] = g.Mean
		weights[i] = float64(g.N)
	}

	var constrained []float64
	if direction == tox.DirectionUp {
		constrained = IsotonicIncreasing(means, weights)
	} else {
		constrained = IsotonicDecreasing(means, weights)
	}

	// Step down from the highest dose; stop at the first non-significant
	// step and leave lower indices untested.
	steps := make([]tox.WilliamsStep, 0, k)
	var minimumEffective *int
	halted := false
	for i := k; i >= 1; i-- {
		step := tox.WilliamsStep{DoseLevel: i}
		if halted {
			steps = append(steps, step)
			continue
		}

		se := pooledSD * math.Sqrt(1/float64(control.N)+1/float64(groups[i].N))
		stat := (constrained[i] - control.Mean) / se
		if direction == tox.DirectionDown {
			stat = -stat
		}

		critical := w.criticalValue(i, df, groupSizes(groups[:i+1]), opts)

		step.Tested = true
		step.Statistic = stat
		step.CriticalValue = critical
		step.Significant = stat > critical
		steps = append(steps, step)

		if step.Significant {
			dose := i
			minimumEffective = &dose
		} else {
			halted = true
		}
	}

	return &tox.WilliamsResult{
		Direction:            direction,
		PooledVariance:       pooledVar,
		DF:                   df,
		ConstrainedMeans:     constrained,
		Steps:                steps,
		MinimumEffectiveDose: minimumEffective,
	}
}

func groupSizes(groups []GroupSummary) []int {
	sizes := make([]int, len(groups))
	for i, g := range groups {
		sizes[i] = g.N
	}
	return sizes
}

// criticalValue resolves the critical value for the step at dose index k
// with the given design. Published table first (alpha 0.05, equal group
// sizes); simulation otherwise.
func (w *WilliamsTester) criticalValue(k, df int, sizes []int, opts WilliamsOptions) float64 {
	if k == 1 {
		// Single treated group: plain one-sided t quantile.
		return w.dist.TQuantile(1-opts.Alpha, float64(df))
	}

	if opts.Alpha == 0.05 && equalSizes(sizes) {
		if cv, ok := lookupWilliamsCritical(k, df); ok {
			return cv
		}
	}
	return w.simulateCritical(k, df, sizes, opts)
}

func equalSizes(sizes []int) bool {
	for _, n := range sizes[1:] {
		if n != sizes[0] {
			return false
		}
	}
	return true
}

// simulateCritical estimates the (1-alpha) quantile of the step statistic
// under the null: a chi-squared-scaled pooled variance, standard-normal
// group means scaled by sample size, PAVA, then the top-step statistic.
// Deterministic for a fixed seed.
func (w *WilliamsTester) simulateCritical(k, df int, sizes []int, opts WilliamsOptions) float64 {
	key := fmt.Sprintf("k=%d df=%d sizes=%v alpha=%g", k, df, sizes, opts.Alpha)

	w.mu.Lock()
	defer w.mu.Unlock()
	if cv, ok := w.cache[key]; ok {
		return cv
	}

	src := rand.NewPCG(opts.Seed, opts.Seed^(uint64(k)<<32|uint64(df)))
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	chi2 := distuv.ChiSquared{K: float64(df), Src: src}

	n0 := float64(sizes[0])
	nk := float64(sizes[k])
	weights := make([]float64, len(sizes))
	for i, n := range sizes {
		weights[i] = float64(n)
	}

	stats := make([]float64, opts.Trials)
	means := make([]float64, len(sizes))
	for trial := 0; trial < opts.Trials; trial++ {
		s := math.Sqrt(chi2.Rand() / float64(df))
		for i, n := range sizes {
			means[i] = normal.Rand() / math.Sqrt(float64(n))
		}
		constrained := IsotonicIncreasing(means, weights)
		stats[trial] = (constrained[k] - means[0]) / (s * math.Sqrt(1/n0+1/nk))
	}
	sort.Float64s(stats)

	idx := int(math.Ceil(float64(opts.Trials)*(1-opts.Alpha))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= opts.Trials {
		idx = opts.Trials - 1
	}
	cv := stats[idx]

	w.cache[key] = cv
	return cv
}
