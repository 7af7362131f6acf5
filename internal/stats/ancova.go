package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"toxstat/domain/tox"
)

// Observation is one subject's (dose group, outcome, covariate) triple, the
// unit the covariate-adjustment model consumes. The covariate is typically
// terminal body mass and the outcome an organ mass.
type Observation struct {
	DoseLevel int
	Outcome   float64
	Covariate float64
}

// ANCOVAOptions tunes the covariate-adjustment fit.
type ANCOVAOptions struct {
	Alpha float64
	// OrganFreeCovariate substitutes covariate - outcome for the covariate,
	// per established organ-mass normalization guidance.
	OrganFreeCovariate bool
}

// ANCOVAEngine removes a covariate's confounding influence from a group
// comparison by ordinary least squares on outcome ~ group + covariate.
type ANCOVAEngine struct {
	dist *Distributions
}

// NewANCOVAEngine creates a new ANCOVA engine
func NewANCOVAEngine() *ANCOVAEngine {
	return &ANCOVAEngine{dist: NewDistributions()}
}

// Fit runs the covariate-adjusted comparison. Returns nil on a degenerate
// design: fewer than two distinct groups or fewer than k+2 observations.
func (e *ANCOVAEngine) Fit(observations []Observation, opts ANCOVAOptions) *tox.ANCOVAResult {
	if opts.Alpha <= 0 {
		opts.Alpha = 0.05
	}

	levels := distinctLevels(observations)
	k := len(levels)
	n := len(observations)
	if k < 2 || n < k+2 {
		return nil
	}

	covariate := make([]float64, n)
	outcome := make([]float64, n)
	for i, obs := range observations {
		outcome[i] = obs.Outcome
		if opts.OrganFreeCovariate {
			covariate[i] = obs.Covariate - obs.Outcome
		} else {
			covariate[i] = obs.Covariate
		}
	}

	covMean := 0.0
	for _, c := range covariate {
		covMean += c
	}
	covMean /= float64(n)

	levelIndex := make(map[int]int, k)
	for i, level := range levels {
		levelIndex[level] = i
	}

	// Design: intercept, one indicator per treated group (control absorbed
	// into the intercept), covariate last.
	p := k + 1
	x := mat.NewDense(n, p, nil)
	y := mat.NewVecDense(n, outcome)
	for i, obs := range observations {
		x.Set(i, 0, 1)
		if gi := levelIndex[obs.DoseLevel]; gi > 0 {
			x.Set(i, gi, 1)
		}
		x.Set(i, p-1, covariate[i])
	}

	fit := solveOLS(x, y)
	if fit == nil {
		return nil
	}

	df := n - p
	if df <= 0 {
		return nil
	}
	mse := fit.rss / float64(df)

	// Coefficient covariance: MSE * (X'X)^-1.
	covB := mat.NewDense(p, p, nil)
	covB.Scale(mse, fit.xtxInv)

	result := &tox.ANCOVAResult{
		ResidualDF:         df,
		MSE:                mse,
		Slope:              fit.beta.AtVec(p - 1),
		SlopeSE:            math.Sqrt(math.Max(0, covB.At(p-1, p-1))),
		OrganFreeCovariate: opts.OrganFreeCovariate,
	}

	// Adjusted means: prediction at each group's indicator with the
	// covariate fixed at its overall mean.
	for gi, level := range levels {
		pred := make([]float64, p)
		pred[0] = 1
		if gi > 0 {
			pred[gi] = 1
		}
		pred[p-1] = covMean

		predVec := mat.NewVecDense(p, pred)
		adjusted := mat.Dot(predVec, fit.beta)
		se := math.Sqrt(math.Max(0, quadraticForm(predVec, covB)))
		result.AdjustedMeans = append(result.AdjustedMeans, tox.AdjustedMean{
			DoseLevel: level,
			Mean:      adjusted,
			SE:        se,
		})
	}

	// Pairwise contrasts: each treated coefficient against the control.
	rawMeans := groupMeans(observations, levels)
	correction := 1 - 3/(4*float64(df)-1)
	for gi := 1; gi < k; gi++ {
		diff := fit.beta.AtVec(gi)
		se := math.Sqrt(math.Max(0, covB.At(gi, gi)))

		contrast := tox.ANCOVAContrast{
			DoseLevel:  levels[gi],
			Difference: diff,
			SE:         se,
		}
		if se > 0 {
			contrast.T = diff / se
			pv := e.dist.TTestPValue(contrast.T, float64(df))
			contrast.P = &pv
			contrast.Significant = pv < opts.Alpha
		}
		result.Contrasts = append(result.Contrasts, contrast)

		// Effect decomposition: total = direct + indirect.
		total := rawMeans[levels[gi]] - rawMeans[levels[0]]
		indirect := total - diff
		proportion := 1.0
		if math.Abs(total) > 1e-10 {
			proportion = diff / total
		}
		directES := 0.0
		if mse > 0 {
			directES = diff / math.Sqrt(mse) * correction
		}
		result.Decomposition = append(result.Decomposition, tox.EffectDecomposition{
			DoseLevel:        levels[gi],
			Total:            total,
			Direct:           diff,
			Indirect:         indirect,
			ProportionDirect: proportion,
			DirectEffectSize: directES,
		})
	}

	result.HomogeneityP = e.slopeHomogeneity(observations, covariate, levels, levelIndex, fit.rss, p)
	// Absence of evidence of heterogeneity is treated as homogeneity.
	result.SlopesHomogeneous = result.HomogeneityP == nil || *result.HomogeneityP >= opts.Alpha

	return result
}

// slopeHomogeneity compares the additive model against one with
// group-by-covariate interactions via an F-test on residual sums of squares.
// Returns nil when the interaction model cannot be fit or degenerates.
func (e *ANCOVAEngine) slopeHomogeneity(observations []Observation, covariate []float64,
	levels []int, levelIndex map[int]int, rssBase float64, pBase int) *float64 {

	k := len(levels)
	n := len(observations)
	pFull := pBase + (k - 1)
	if n <= pFull {
		return nil
	}

	x := mat.NewDense(n, pFull, nil)
	outcome := make([]float64, n)
	for i, obs := range observations {
		outcome[i] = obs.Outcome
		x.Set(i, 0, 1)
		gi := levelIndex[obs.DoseLevel]
		if gi > 0 {
			x.Set(i, gi, 1)
			x.Set(i, pBase+gi-1, covariate[i])
		}
		x.Set(i, pBase-1, covariate[i])
	}
	y := mat.NewVecDense(n, outcome)

	fit := solveOLS(x, y)
	if fit == nil {
		return nil
	}

	dfNum := k - 1
	dfDen := n - pFull
	if fit.rss <= 0 || dfDen <= 0 {
		return nil
	}

	f := ((rssBase - fit.rss) / float64(dfNum)) / (fit.rss / float64(dfDen))
	if f < 0 {
		f = 0
	}
	pv := e.dist.FTestPValue(f, dfNum, dfDen)
	return &pv
}

// olsFit carries the pieces downstream computations need.
type olsFit struct {
	beta   *mat.VecDense
	xtxInv *mat.Dense
	rss    float64
}

// solveOLS fits beta = (X'X)^-1 X'y, falling back to the SVD pseudo-inverse
// when X'X is singular.
func solveOLS(x *mat.Dense, y *mat.VecDense) *olsFit {
	n, p := x.Dims()

	var xtx mat.Dense
	xtx.Mul(x.T(), x)

	inv := mat.NewDense(p, p, nil)
	if err := inv.Inverse(&xtx); err != nil {
		pinv := pseudoInverse(&xtx)
		if pinv == nil {
			return nil
		}
		inv = pinv
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	beta := mat.NewVecDense(p, nil)
	beta.MulVec(inv, &xty)

	var fitted mat.VecDense
	fitted.MulVec(x, beta)

	rss := 0.0
	for i := 0; i < n; i++ {
		r := y.AtVec(i) - fitted.AtVec(i)
		rss += r * r
	}

	return &olsFit{beta: beta, xtxInv: inv, rss: rss}
}

// pseudoInverse computes the Moore-Penrose pseudo-inverse via SVD, zeroing
// singular values below a relative tolerance.
func pseudoInverse(a *mat.Dense) *mat.Dense {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil
	}

	values := svd.Values(nil)
	tol := 1e-12
	if len(values) > 0 {
		tol = values[0] * 1e-12
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	r, c := a.Dims()
	sInv := mat.NewDense(c, r, nil)
	for i, s := range values {
		if s > tol {
			sInv.Set(i, i, 1/s)
		}
	}

	pinv := mat.NewDense(c, r, nil)
	var tmp mat.Dense
	tmp.Mul(sInv, u.T())
	pinv.Mul(&v, &tmp)
	return pinv
}

func quadraticForm(v *mat.VecDense, m *mat.Dense) float64 {
	var mv mat.VecDense
	mv.MulVec(m, v)
	return mat.Dot(v, &mv)
}

func distinctLevels(observations []Observation) []int {
	seen := make(map[int]bool)
	levels := make([]int, 0, 4)
	for _, obs := range observations {
		if !seen[obs.DoseLevel] {
			seen[obs.DoseLevel] = true
			levels = append(levels, obs.DoseLevel)
		}
	}
	sort.Ints(levels)
	return levels
}

func groupMeans(observations []Observation, levels []int) map[int]float64 {
	sums := make(map[int]float64, len(levels))
	counts := make(map[int]int, len(levels))
	for _, obs := range observations {
		sums[obs.DoseLevel] += obs.Outcome
		counts[obs.DoseLevel]++
	}

	means := make(map[int]float64, len(levels))
	for _, level := range levels {
		means[level] = sums[level] / float64(counts[level])
	}
	return means
}
