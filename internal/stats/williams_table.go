package stats

// Published critical values t-bar for Williams' test at alpha = 0.05
// (one-sided), indexed by residual degrees of freedom and number of treated
// groups k. Covers k = 2..6; k = 1 degenerates to the one-sided Student's t
// quantile and is computed directly. Untabulated degrees of freedom round
// DOWN to the nearest tabulated row, which is conservative.
//
// The tables are immutable constants constructed once; nothing mutates them
// at runtime.

var williamsTableDF = []int{5, 6, 7, 8, 9, 10, 12, 14, 16, 18, 20, 24, 30, 40, 60, 120}

// williamsTable05[df][k-2] for k in 2..6.
var williamsTable05 = map[int][5]float64{
	5:   {2.14, 2.19, 2.21, 2.22, 2.23},
	6:   {2.06, 2.10, 2.12, 2.13, 2.14},
	7:   {2.00, 2.04, 2.06, 2.07, 2.08},
	8:   {1.96, 2.00, 2.01, 2.02, 2.03},
	9:   {1.93, 1.96, 1.98, 1.99, 2.00},
	10:  {1.91, 1.94, 1.96, 1.97, 1.97},
	12:  {1.87, 1.91, 1.92, 1.93, 1.93},
	14:  {1.85, 1.88, 1.89, 1.90, 1.91},
	16:  {1.83, 1.86, 1.87, 1.88, 1.89},
	18:  {1.82, 1.85, 1.86, 1.87, 1.87},
	20:  {1.81, 1.83, 1.85, 1.85, 1.86},
	24:  {1.79, 1.82, 1.83, 1.84, 1.84},
	30:  {1.77, 1.80, 1.81, 1.82, 1.82},
	40:  {1.76, 1.78, 1.79, 1.80, 1.80},
	60:  {1.74, 1.76, 1.77, 1.78, 1.78},
	120: {1.73, 1.75, 1.75, 1.76, 1.76},
}

// lookupWilliamsCritical returns the tabulated critical value for k treated
// groups at the given residual df, rounding df down to the nearest tabulated
// row. ok is false when the combination is untabulated and the caller must
// fall back to simulation.
func lookupWilliamsCritical(k, df int) (float64, bool) {
	if k < 2 || k > 6 || df < williamsTableDF[0] {
		return 0, false
	}

	row := williamsTableDF[0]
	for _, tabulated := range williamsTableDF {
		if tabulated <= df {
			row = tabulated
		} else {
			break
		}
	}

	values, ok := williamsTable05[row]
	if !ok {
		return 0, false
	}
	return values[k-2], true
}
