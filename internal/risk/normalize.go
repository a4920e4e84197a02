// Package risk combines normalized supplier metrics into composite risk
// scores on a 0-100 scale.
package risk

// MinMax projects a raw metric column onto [0,1] across the given entity
// population. When all values are equal the metric carries no comparative
// signal and every entity gets 0 rather than a division by zero.
//
// Direction is the caller's concern: for lower-is-better metrics the output
// is used directly (higher raw value = higher risk); for on-time delivery
// the scorer inverts with 1-norm. See Scorer.components.
func MinMax(col []float64) []float64 {
	out := make([]float64, len(col))
	if len(col) == 0 {
		return out
	}

	lo, hi := col[0], col[0]
	for _, v := range col[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		return out
	}

	span := hi - lo
	for i, v := range col {
		out[i] = (v - lo) / span
	}
	return out
}
