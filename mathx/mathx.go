// Package mathx provides small numeric helpers used by the segment
// runtime's distance and step-count rounding, where exactness is not
// required (the real step-conservation guarantee comes from the
// integer-clamp on move completion, not from this rounding).
package mathx

// Round rounds a float to the nearest "unit" (0.1 for tenth, 0.01 for
// hundredth, and so on).
func Round(x, unit float64) float64 {
	return float64(int64(x/unit+0.5)) * unit
}

// Sign returns -1, 0, or 1 according to the sign of x.
func Sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
