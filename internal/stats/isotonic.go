package stats

// IsotonicIncreasing computes the least-squares non-decreasing fit of the
// weighted values (isotonic regression under squared loss) with the
// pool-adjacent-violators algorithm. Blocks are merged right-to-left into
// their weighted mean while the ordering is violated, then expanded back to
// the original positions.
func IsotonicIncreasing(values, weights []float64) []float64 {
	if len(values) == 0 {
		return nil
	}

	type block struct {
		value  float64
		weight float64
		count  int
	}

	blocks := make([]block, 0, len(values))
	for i, v := range values {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		blocks = append(blocks, block{value: v, weight: w, count: 1})

		// Merge while the previous block exceeds the new one.
		for len(blocks) >= 2 && blocks[len(blocks)-2].value > blocks[len(blocks)-1].value {
			last := blocks[len(blocks)-1]
			prev := blocks[len(blocks)-2]
			merged := block{
				value:  (prev.value*prev.weight + last.value*last.weight) / (prev.weight + last.weight),
				weight: prev.weight + last.weight,
				count:  prev.count + last.count,
			}
			blocks = blocks[:len(blocks)-2]
			blocks = append(blocks, merged)
		}
	}

	fitted := make([]float64, 0, len(values))
	for _, b := range blocks {
		for i := 0; i < b.count; i++ {
			fitted = append(fitted, b.value)
		}
	}
	return fitted
}

// IsotonicDecreasing computes the non-increasing variant by negating,
// applying the increasing fit, and negating back.
func IsotonicDecreasing(values, weights []float64) []float64 {
	if len(values) == 0 {
		return nil
	}

	negated := make([]float64, len(values))
	for i, v := range values {
		negated[i] = -v
	}

	fitted := IsotonicIncreasing(negated, weights)
	for i := range fitted {
		fitted[i] = -fitted[i]
	}
	return fitted
}
