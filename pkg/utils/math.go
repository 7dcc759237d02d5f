package utils

import "math"

// NormalizeL2 scales x in place to unit length and returns its original L2 norm.
// The sum of squares is accumulated in float64. A zero vector is left as is and 0 is returned.
func NormalizeL2(x []float32) float64 {
	var sum float64
	for _, v := range x {
		f := float64(v)
		sum += f * f
	}
	if sum == 0 {
		return 0
	}
	norm := math.Sqrt(sum)
	inv := 1 / norm
	for i := range x {
		x[i] = float32(float64(x[i]) * inv)
	}
	return norm
}
