package stats

import (
	"math"
	"sort"

	"toxstat/domain/tox"
)

// TrendResult is the outcome of a monotonic-trend test across the ordered
// dose groups.
type TrendResult struct {
	Statistic float64
	PValue    float64
	Direction tox.Direction
}

// TrendTester runs ordered-alternative trend tests across the dose sequence,
// control group first.
type TrendTester struct {
	dist *Distributions
}

// NewTrendTester creates a new trend tester
func NewTrendTester() *TrendTester {
	return &TrendTester{dist: NewDistributions()}
}

// JonckheereTerpstra tests for a monotonic trend in continuous values across
// the ordered groups using the rank-based ordered-alternative statistic with
// a normal approximation. Ties count one half. Returns nil with fewer than
// two usable groups or a degenerate variance.
func (t *TrendTester) JonckheereTerpstra(groups [][]float64) *TrendResult {
	usable := make([][]float64, 0, len(groups))
	for _, g := range groups {
		if len(g) > 0 {
			usable = append(usable, g)
		}
	}
	if len(usable) < 2 {
		return nil
	}

	// U = sum over ordered pairs of groups of the count of (x, y) pairs
	// with x < y, ties counted 0.5.
	u := 0.0
	for i := 0; i < len(usable); i++ {
		for j := i + 1; j < len(usable); j++ {
			for _, x := range usable[i] {
				for _, y := range usable[j] {
					switch {
					case x < y:
						u += 1
					case x == y:
						u += 0.5
					}
				}
			}
		}
	}

	total := 0
	sumSq := 0.0
	sumCube := 0.0
	for _, g := range usable {
		n := float64(len(g))
		total += len(g)
		sumSq += n * n
		sumCube += n * n * (2*n + 3)
	}
	n := float64(total)

	mean := (n*n - sumSq) / 4
	variance := (n*n*(2*n+3) - sumCube) / 72
	if variance <= 0 {
		return nil
	}

	z := (u - mean) / math.Sqrt(variance)
	return &TrendResult{
		Statistic: z,
		PValue:    t.dist.NormalTwoSidedPValue(z),
		Direction: directionFromSign(z),
	}
}

// CochranArmitage tests for a monotonic trend in incidence across the
// ordered groups, consuming (affected, total) pairs with dose-rank scores.
// Returns nil with fewer than two groups or an all-or-none overall rate.
func (t *TrendTester) CochranArmitage(affected, totals []int) *TrendResult {
	if len(affected) != len(totals) || len(affected) < 2 {
		return nil
	}

	sumAffected := 0
	sumTotal := 0
	for i := range totals {
		if totals[i] <= 0 || affected[i] < 0 || affected[i] > totals[i] {
			return nil
		}
		sumAffected += affected[i]
		sumTotal += totals[i]
	}

	pBar := float64(sumAffected) / float64(sumTotal)
	if pBar == 0 || pBar == 1 {
		return nil
	}

	stat := 0.0
	sumNS := 0.0
	sumNS2 := 0.0
	for i := range totals {
		score := float64(i)
		ni := float64(totals[i])
		stat += score * (float64(affected[i]) - ni*pBar)
		sumNS += ni * score
		sumNS2 += ni * score * score
	}

	variance := pBar * (1 - pBar) * (sumNS2 - sumNS*sumNS/float64(sumTotal))
	if variance <= 0 {
		return nil
	}

	z := stat / math.Sqrt(variance)
	return &TrendResult{
		Statistic: z,
		PValue:    t.dist.NormalTwoSidedPValue(z),
		Direction: directionFromSign(z),
	}
}

// SeverityTrend computes a Spearman-type rank correlation between dose level
// and mean severity score per group, for graded histopathology severity.
// Requires at least three dose levels with a non-nil severity.
func (t *TrendTester) SeverityTrend(doseLevels []int, meanSeverity []*float64) *TrendResult {
	if len(doseLevels) != len(meanSeverity) {
		return nil
	}

	doses := make([]float64, 0, len(doseLevels))
	severities := make([]float64, 0, len(doseLevels))
	for i, s := range meanSeverity {
		if s != nil {
			doses = append(doses, float64(doseLevels[i]))
			severities = append(severities, *s)
		}
	}
	if len(doses) < 3 {
		return nil
	}

	rho := spearmanRho(doses, severities)
	if math.IsNaN(rho) {
		return nil
	}

	n := float64(len(doses))
	pValue := 0.0
	if 1-rho*rho > 1e-12 {
		tStat := rho * math.Sqrt((n-2)/(1-rho*rho))
		pValue = t.dist.TTestPValue(tStat, n-2)
	}

	return &TrendResult{
		Statistic: rho,
		PValue:    pValue,
		Direction: directionFromSign(rho),
	}
}

func directionFromSign(stat float64) tox.Direction {
	switch {
	case stat > 0:
		return tox.DirectionUp
	case stat < 0:
		return tox.DirectionDown
	default:
		return tox.DirectionNone
	}
}

// spearmanRho is the Pearson correlation of average ranks.
func spearmanRho(x, y []float64) float64 {
	rx := averageRanks(x)
	ry := averageRanks(y)

	n := float64(len(rx))
	meanX := 0.0
	meanY := 0.0
	for i := range rx {
		meanX += rx[i]
		meanY += ry[i]
	}
	meanX /= n
	meanY /= n

	num := 0.0
	denX := 0.0
	denY := 0.0
	for i := range rx {
		dx := rx[i] - meanX
		dy := ry[i] - meanY
		num += dx * dy
		denX += dx * dx
		denY += dy * dy
	}
	if denX == 0 || denY == 0 {
		return math.NaN()
	}
	return num / math.Sqrt(denX*denY)
}

// averageRanks assigns 1-based ranks with ties sharing their average rank.
func averageRanks(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, len(values))
	i := 0
	for i < len(idx) {
		j := i
		for j+1 < len(idx) && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}
