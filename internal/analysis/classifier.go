package analysis

import (
	"math"

	"github.com/montanaflynn/stats"

	"toxstat/domain/tox"
)

// minimum equivalence band; avoids division artifacts on flat data
const bandFloor = 1e-10

type stepDirection int

const (
	stepFlat stepDirection = iota
	stepUp
	stepDown
)

// ClassifyPattern maps the ordered group values to a dose-response shape
// label, tolerant to sampling noise via an equivalence band.
//
// Continuous endpoints derive the band from the pooled SD of the treated
// groups (root-mean-square of per-group SDs, falling back to the SD of the
// treated means when fewer than two groups report one). Incidence endpoints
// have no SD; the band is a fixed 1% of the control value instead.
func ClassifyPattern(endpoint tox.Endpoint, bandFactor float64) tox.DoseResponsePattern {
	switch endpoint.DataType {
	case tox.DataContinuous:
		return classifyContinuous(endpoint.GroupStats, bandFactor)
	case tox.DataIncidence:
		return classifyIncidence(endpoint.GroupStats)
	default:
		return tox.PatternInsufficientData
	}
}

func classifyContinuous(groups []tox.DoseGroupRecord, bandFactor float64) tox.DoseResponsePattern {
	values := make([]float64, 0, len(groups))
	treatedSDs := make([]float64, 0, len(groups))
	treatedMeans := make([]float64, 0, len(groups))
	for _, g := range groups {
		if g.Continuous == nil {
			continue
		}
		values = append(values, g.Continuous.Mean)
		if g.DoseLevel > 0 {
			treatedMeans = append(treatedMeans, g.Continuous.Mean)
			if g.Continuous.SD > 0 {
				treatedSDs = append(treatedSDs, g.Continuous.SD)
			}
		}
	}
	if len(values) < 2 {
		return tox.PatternInsufficientData
	}

	pooledSD := 0.0
	if len(treatedSDs) >= 2 {
		sumSq := 0.0
		for _, sd := range treatedSDs {
			sumSq += sd * sd
		}
		pooledSD = math.Sqrt(sumSq / float64(len(treatedSDs)))
	} else if len(treatedMeans) >= 2 {
		pooledSD, _ = stats.StandardDeviationSample(treatedMeans)
	}
	if pooledSD < bandFloor {
		pooledSD = bandFloor
	}

	return reduceSteps(values, bandFactor*pooledSD)
}

func classifyIncidence(groups []tox.DoseGroupRecord) tox.DoseResponsePattern {
	values := make([]float64, 0, len(groups))
	for _, g := range groups {
		if g.Incidence == nil {
			continue
		}
		values = append(values, g.Incidence.Incidence)
	}
	if len(values) < 2 {
		return tox.PatternInsufficientData
	}

	band := 0.01 * math.Abs(values[0])
	if band < bandFloor {
		band = bandFloor
	}
	return reduceSteps(values, band)
}

// reduceSteps walks consecutive group values, classifies each step against
// the equivalence band, and reduces the step sequence to a shape label.
func reduceSteps(values []float64, band float64) tox.DoseResponsePattern {
	ups, downs, flats := 0, 0, 0
	for i := 1; i < len(values); i++ {
		switch classifyStep(values[i]-values[i-1], band) {
		case stepUp:
			ups++
		case stepDown:
			downs++
		default:
			flats++
		}
	}

	switch {
	case ups > 0 && downs > 0:
		return tox.PatternNonMonotonic
	case ups == 0 && downs == 0:
		return tox.PatternFlat
	case flats > 0 && ups > 0:
		return tox.PatternThreshold
	case flats > 0 && downs > 0:
		return tox.PatternThreshold
	case ups > 0:
		return tox.PatternMonotonicIncrease
	default:
		return tox.PatternMonotonicDecrease
	}
}

func classifyStep(delta, band float64) stepDirection {
	if math.Abs(delta) <= band {
		return stepFlat
	}
	if delta > 0 {
		return stepUp
	}
	return stepDown
}
