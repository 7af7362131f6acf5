package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Distributions provides unified access to the sampling distributions the
// engine needs. This keeps CDF calculations in one place instead of
// fragmented approximations per test.
type Distributions struct{}

// NewDistributions creates a new distributions utility
func NewDistributions() *Distributions {
	return &Distributions{}
}

// TTestPValue computes the two-sided p-value for a t-statistic. Fractional
// degrees of freedom are accepted for Welch-Satterthwaite tests.
func (d *Distributions) TTestPValue(tStatistic, degreesOfFreedom float64) float64 {
	if degreesOfFreedom <= 0 {
		return 1.0
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: degreesOfFreedom}
	return 2 * (1 - tDist.CDF(math.Abs(tStatistic)))
}

// TQuantile returns the one-sided upper quantile of the t-distribution.
func (d *Distributions) TQuantile(p, degreesOfFreedom float64) float64 {
	if degreesOfFreedom <= 0 {
		return math.Inf(1)
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: degreesOfFreedom}
	return tDist.Quantile(p)
}

// FTestPValue computes the upper-tail p-value for an F-statistic.
func (d *Distributions) FTestPValue(fStatistic float64, df1, df2 int) float64 {
	if df1 <= 0 || df2 <= 0 {
		return 1.0
	}

	fDist := distuv.F{D1: float64(df1), D2: float64(df2)}
	return 1 - fDist.CDF(fStatistic)
}

// ChiSquarePValue computes the upper-tail p-value for a chi-square statistic.
func (d *Distributions) ChiSquarePValue(chiSquare float64, degreesOfFreedom int) float64 {
	if degreesOfFreedom <= 0 {
		return 1.0
	}

	chiDist := distuv.ChiSquared{K: float64(degreesOfFreedom)}
	return 1 - chiDist.CDF(chiSquare)
}

// NormalCDF computes the cumulative distribution function of the standard normal
func (d *Distributions) NormalCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// NormalTwoSidedPValue converts a z-statistic to a two-sided p-value.
func (d *Distributions) NormalTwoSidedPValue(z float64) float64 {
	p := 2 * (1 - distuv.UnitNormal.CDF(math.Abs(z)))
	if p > 1 {
		p = 1
	}
	return p
}
