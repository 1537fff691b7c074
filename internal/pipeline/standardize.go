package pipeline

// Standardize fits a per-column zero-mean, unit-variance transform on X's
// own statistics and returns the transformed copy. The scaler is refit on
// every run; no state persists across runs. Zero-variance columns map to 0,
// which is fine since the upstream 5-sigma clip already collapsed them.
func Standardize(X [][]float64) [][]float64 {
	if len(X) == 0 {
		return nil
	}
	ncol := len(X[0])
	means := make([]float64, ncol)
	stds := make([]float64, ncol)
	for j := 0; j < ncol; j++ {
		means[j], stds[j] = meanStd(column(X, j))
	}
	out := make([][]float64, len(X))
	for i := range X {
		row := make([]float64, ncol)
		for j := 0; j < ncol; j++ {
			if stds[j] == 0 {
				row[j] = 0
				continue
			}
			row[j] = (X[i][j] - means[j]) / stds[j]
		}
		out[i] = row
	}
	return out
}
