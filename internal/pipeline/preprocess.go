package pipeline

import "math"

// clipSigma is the winsorization width: values beyond this many standard
// deviations of a column's mean are clipped, not removed.
const clipSigma = 5.0

// PreprocessSummary reports what the preprocessor changed.
type PreprocessSummary struct {
	Filled  int
	Clipped int
}

// Preprocess mutates X in place: NaN cells are filled with their column's
// median (computed over the non-null cells), then each column is clipped to
// [mean - 5*std, mean + 5*std] using the column's own population statistics.
// Columns with zero standard deviation are left unclipped. The result has no
// NaN cells and no value outside five standard deviations of its column's
// post-fill mean.
func Preprocess(X [][]float64) PreprocessSummary {
	var sum PreprocessSummary
	if len(X) == 0 {
		return sum
	}
	ncol := len(X[0])
	for j := 0; j < ncol; j++ {
		col := column(X, j)
		med := median(col)
		for i := range X {
			if math.IsNaN(X[i][j]) {
				X[i][j] = med
				sum.Filled++
			}
		}
		mean, std := meanStd(column(X, j))
		if std == 0 {
			continue
		}
		lo, hi := mean-clipSigma*std, mean+clipSigma*std
		for i := range X {
			if X[i][j] < lo {
				X[i][j] = lo
				sum.Clipped++
			} else if X[i][j] > hi {
				X[i][j] = hi
				sum.Clipped++
			}
		}
	}
	return sum
}
