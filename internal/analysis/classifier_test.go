package analysis

import (
	"testing"

	"toxstat/domain/tox"
)

func continuousEndpoint(means, sds []float64, n int) tox.Endpoint {
	groups := make([]tox.DoseGroupRecord, len(means))
	for i := range means {
		groups[i] = tox.DoseGroupRecord{
			DoseLevel:  i,
			N:          n,
			Continuous: &tox.ContinuousStats{Mean: means[i], SD: sds[i], Median: means[i]},
		}
	}
	return tox.Endpoint{DataType: tox.DataContinuous, GroupStats: groups}
}

func incidenceEndpoint(affected []int, n int) tox.Endpoint {
	groups := make([]tox.DoseGroupRecord, len(affected))
	for i, a := range affected {
		groups[i] = tox.DoseGroupRecord{
			DoseLevel: i,
			N:         n,
			Incidence: &tox.IncidenceStats{Affected: a, Incidence: float64(a) / float64(n)},
		}
	}
	return tox.Endpoint{DataType: tox.DataIncidence, GroupStats: groups}
}

func TestClassifyPatternMonotonicIncrease(t *testing.T) {
	ep := continuousEndpoint([]float64{1, 2, 3, 4}, []float64{0.1, 0.1, 0.1, 0.1}, 10)
	if got := ClassifyPattern(ep, 0.5); got != tox.PatternMonotonicIncrease {
		t.Errorf("got %v, want monotonic_increase", got)
	}
}

func TestClassifyPatternMonotonicDecrease(t *testing.T) {
	ep := continuousEndpoint([]float64{4, 3, 2, 1}, []float64{0.1, 0.1, 0.1, 0.1}, 10)
	if got := ClassifyPattern(ep, 0.5); got != tox.PatternMonotonicDecrease {
		t.Errorf("got %v, want monotonic_decrease", got)
	}
}

func TestClassifyPatternFlatWithinBand(t *testing.T) {
	// Differences well inside half a pooled SD read as noise.
	ep := continuousEndpoint([]float64{5.0, 5.1, 4.9, 5.05}, []float64{1, 1, 1, 1}, 10)
	if got := ClassifyPattern(ep, 0.5); got != tox.PatternFlat {
		t.Errorf("got %v, want flat", got)
	}
}

func TestClassifyPatternThreshold(t *testing.T) {
	// No movement until the top dose.
	ep := continuousEndpoint([]float64{10, 10.1, 9.9, 15}, []float64{1, 1, 1, 1}, 10)
	if got := ClassifyPattern(ep, 0.5); got != tox.PatternThreshold {
		t.Errorf("got %v, want threshold", got)
	}
}

func TestClassifyPatternNonMonotonic(t *testing.T) {
	ep := continuousEndpoint([]float64{10, 14, 8, 12}, []float64{1, 1, 1, 1}, 10)
	if got := ClassifyPattern(ep, 0.5); got != tox.PatternNonMonotonic {
		t.Errorf("got %v, want non_monotonic", got)
	}
}

func TestClassifyPatternBandScalesWithNoise(t *testing.T) {
	// The same mean sequence flips from monotonic to flat as group noise
	// grows past the step size.
	means := []float64{10, 10.4, 10.8, 11.2}

	quiet := continuousEndpoint(means, []float64{0.2, 0.2, 0.2, 0.2}, 10)
	if got := ClassifyPattern(quiet, 0.5); got != tox.PatternMonotonicIncrease {
		t.Errorf("quiet: got %v, want monotonic_increase", got)
	}

	noisy := continuousEndpoint(means, []float64{2, 2, 2, 2}, 10)
	if got := ClassifyPattern(noisy, 0.5); got != tox.PatternFlat {
		t.Errorf("noisy: got %v, want flat", got)
	}
}

func TestClassifyPatternInsufficientData(t *testing.T) {
	ep := continuousEndpoint([]float64{5}, []float64{1}, 10)
	if got := ClassifyPattern(ep, 0.5); got != tox.PatternInsufficientData {
		t.Errorf("got %v, want insufficient_data", got)
	}

	unknown := tox.Endpoint{DataType: tox.DataType("other")}
	if got := ClassifyPattern(unknown, 0.5); got != tox.PatternInsufficientData {
		t.Errorf("got %v, want insufficient_data for unknown data type", got)
	}
}

func TestClassifyPatternIncidence(t *testing.T) {
	rising := incidenceEndpoint([]int{0, 2, 5, 8}, 10)
	if got := ClassifyPattern(rising, 0.5); got != tox.PatternMonotonicIncrease {
		t.Errorf("got %v, want monotonic_increase", got)
	}

	flat := incidenceEndpoint([]int{2, 2, 2, 2}, 10)
	if got := ClassifyPattern(flat, 0.5); got != tox.PatternFlat {
		t.Errorf("got %v, want flat", got)
	}

	bumpy := incidenceEndpoint([]int{1, 6, 0, 4}, 10)
	if got := ClassifyPattern(bumpy, 0.5); got != tox.PatternNonMonotonic {
		t.Errorf("got %v, want non_monotonic", got)
	}
}

func TestClassifyPatternZeroControlIncidence(t *testing.T) {
	// Zero control incidence gives a floor-width band; any movement counts.
	ep := incidenceEndpoint([]int{0, 0, 1, 3}, 10)
	if got := ClassifyPattern(ep, 0.5); got != tox.PatternThreshold {
		t.Errorf("got %v, want threshold", got)
	}
}
