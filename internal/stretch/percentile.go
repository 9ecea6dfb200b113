package stretch

import (
	"math"
	"slices"
)

// Percentile returns the p-th percentile (0 <= p <= 100) of sorted using
// linear interpolation between the two closest ranks, rank = p/100*(n-1).
// This is the default method of numpy.percentile, including its choice of
// interpolating from the upper neighbour past the midpoint. It returns NaN
// for an empty slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}

	rank := p / 100 * float64(n-1)
	if rank <= 0 {
		return sorted[0]
	}
	if rank >= float64(n-1) {
		return sorted[n-1]
	}

	lo := int(math.Floor(rank))
	t := rank - float64(lo)
	a, b := sorted[lo], sorted[lo+1]
	if t >= 0.5 {
		return b - (b-a)*(1-t)
	}
	return a + (b-a)*t
}

// sortedSamples returns a sorted copy of pix without NaN samples
func sortedSamples(pix []float64) []float64 {
	out := make([]float64, 0, len(pix))
	for _, v := range pix {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}
