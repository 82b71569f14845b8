package challenge

import "math"

// Clamp limits value to [min, max]. NaN clamps to min so a bad ratio never
// escapes into a bounded KPI.
func Clamp(value, min, max float64) float64 {
	if math.IsNaN(value) {
		return min
	}
	return math.Min(math.Max(value, min), max)
}

// SafeDivide returns +Inf for a zero denominator instead of panicking or
// producing NaN on 0/0. Callers that need a bounded result clamp afterwards.
func SafeDivide(numerator, denominator float64) float64 {
	if denominator == 0 {
		return math.Inf(1)
	}
	return numerator / denominator
}

// Round rounds to the given number of decimal digits.
func Round(value float64, digits int) float64 {
	factor := math.Pow(10, float64(digits))
	return math.Round(value*factor) / factor
}
