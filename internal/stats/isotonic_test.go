package stats

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestIsotonicIncreasingSimpleViolation(t *testing.T) {
	fitted := IsotonicIncreasing([]float64{3, 1, 2}, nil)
	want := []float64{2, 2, 2}
	for i := range want {
		if !almostEqual(fitted[i], want[i], 1e-12) {
			t.Errorf("fitted[%d] = %v, want %v", i, fitted[i], want[i])
		}
	}
}

func TestIsotonicIncreasingAlreadyMonotone(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	fitted := IsotonicIncreasing(values, nil)
	for i := range values {
		if fitted[i] != values[i] {
			t.Errorf("monotone input should be unchanged at %d: %v", i, fitted[i])
		}
	}
}

func TestIsotonicIncreasingWeighted(t *testing.T) {
	// The heavier third point pulls the merged block toward its value.
	fitted := IsotonicIncreasing([]float64{1, 3, 2}, []float64{1, 1, 2})
	want := []float64{1, 7.0 / 3, 7.0 / 3}
	for i := range want {
		if !almostEqual(fitted[i], want[i], 1e-12) {
			t.Errorf("fitted[%d] = %v, want %v", i, fitted[i], want[i])
		}
	}
}

func TestIsotonicFitProperties(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 17))

	for trial := 0; trial < 50; trial++ {
		n := 2 + rng.IntN(8)
		values := make([]float64, n)
		weights := make([]float64, n)
		for i := range values {
			values[i] = rng.NormFloat64() * 10
			weights[i] = 1 + rng.Float64()*9
		}

		fitted := IsotonicIncreasing(values, weights)

		for i := 1; i < n; i++ {
			if fitted[i] < fitted[i-1]-1e-9 {
				t.Fatalf("trial %d: fit not non-decreasing at %d: %v", trial, i, fitted)
			}
		}

		// The weighted mean is preserved by pooling.
		rawMass, fitMass, totalWeight := 0.0, 0.0, 0.0
		for i := range values {
			rawMass += values[i] * weights[i]
			fitMass += fitted[i] * weights[i]
			totalWeight += weights[i]
		}
		if math.Abs(rawMass-fitMass)/totalWeight > 1e-9 {
			t.Fatalf("trial %d: weighted mass not preserved: raw %v fit %v", trial, rawMass, fitMass)
		}
	}
}

func TestIsotonicDecreasingMirrorsIncreasing(t *testing.T) {
	fitted := IsotonicDecreasing([]float64{2, 1, 3}, nil)
	want := []float64{2, 2, 2}
	for i := range want {
		if !almostEqual(fitted[i], want[i], 1e-12) {
			t.Errorf("fitted[%d] = %v, want %v", i, fitted[i], want[i])
		}
	}

	if IsotonicDecreasing(nil, nil) != nil {
		t.Error("empty input should yield nil")
	}
}
