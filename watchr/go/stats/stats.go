// Package stats holds the summary statistics used for rolling trend lines.
package stats

import (
	"math"

	"github.com/aclements/go-moremath/stats"
)

// finite returns the values of xs that are not NaN. The input slice is
// returned unchanged when nothing needs to be dropped.
func finite(xs []float64) []float64 {
	for i, x := range xs {
		if math.IsNaN(x) {
			ret := make([]float64, i, len(xs))
			copy(ret, xs[:i])
			for _, y := range xs[i+1:] {
				if !math.IsNaN(y) {
					ret = append(ret, y)
				}
			}
			return ret
		}
	}
	return xs
}

// Mean returns the arithmetic mean of xs, ignoring NaNs. Returns 0 if there
// are no values.
func Mean(xs []float64) float64 {
	xs = finite(xs)
	if len(xs) == 0 {
		return 0
	}
	return stats.Mean(xs)
}

// StdDev returns the population standard deviation of xs, ignoring NaNs.
// Returns 0 if there are no values.
func StdDev(xs []float64) float64 {
	_, stdDev := MeanAndStdDev(xs)
	return stdDev
}

// MeanAndStdDev returns both the mean and the population standard deviation
// of xs in one pass over the data.
func MeanAndStdDev(xs []float64) (float64, float64) {
	xs = finite(xs)
	if len(xs) == 0 {
		return 0, 0
	}
	mean := stats.Mean(xs)
	sum2 := 0.0
	for _, x := range xs {
		d := x - mean
		sum2 += d * d
	}
	return mean, math.Sqrt(sum2 / float64(len(xs)))
}
