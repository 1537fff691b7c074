package pipeline

import (
	"math"
	"testing"
)

func TestPreprocessFillsNulls(t *testing.T) {
	X := [][]float64{
		{1, math.NaN()},
		{2, 10},
		{3, 20},
		{4, 30},
	}
	sum := Preprocess(X)
	if sum.Filled != 1 {
		t.Fatalf("Filled = %d, want 1", sum.Filled)
	}
	for i := range X {
		for j := range X[i] {
			if math.IsNaN(X[i][j]) {
				t.Fatalf("NaN remains at [%d][%d]", i, j)
			}
		}
	}
	// median of {10, 20, 30} = 20
	if X[0][1] != 20 {
		t.Fatalf("filled value = %g, want column median 20", X[0][1])
	}
}

func TestPreprocessClipsAtFiveSigma(t *testing.T) {
	// 100 tight values plus one wild one; with this many inliers the wild
	// value sits well beyond five standard deviations.
	X := make([][]float64, 101)
	for i := 0; i < 100; i++ {
		X[i] = []float64{10 + float64(i%3)}
	}
	X[100] = []float64{1000}

	col := column(X, 0)
	mean, std := meanStd(col)
	lo, hi := mean-clipSigma*std, mean+clipSigma*std

	sum := Preprocess(X)
	if sum.Clipped == 0 {
		t.Fatalf("expected at least one clipped value")
	}
	for i := range X {
		if X[i][0] < lo-1e-9 || X[i][0] > hi+1e-9 {
			t.Fatalf("row %d: %g outside [%g, %g]", i, X[i][0], lo, hi)
		}
	}
}

func TestPreprocessSkipsConstantColumn(t *testing.T) {
	X := [][]float64{{5, 1}, {5, 2}, {5, 3}}
	sum := Preprocess(X)
	if sum.Clipped != 0 {
		t.Fatalf("Clipped = %d on constant/tight columns, want 0", sum.Clipped)
	}
	for i := range X {
		if X[i][0] != 5 {
			t.Fatalf("constant column modified: row %d = %g", i, X[i][0])
		}
	}
}

func TestPreprocessConstantColumnWithNulls(t *testing.T) {
	// Null-fill still applies to a constant column; clipping does not.
	X := [][]float64{{5}, {math.NaN()}, {5}}
	Preprocess(X)
	if X[1][0] != 5 {
		t.Fatalf("filled value = %g, want 5", X[1][0])
	}
}

func TestPreprocessEmptyMatrix(t *testing.T) {
	sum := Preprocess(nil)
	if sum.Filled != 0 || sum.Clipped != 0 {
		t.Fatalf("empty matrix summary = %+v", sum)
	}
}

func TestMedianIgnoresNaN(t *testing.T) {
	if got := median([]float64{math.NaN(), 1, 3, math.NaN(), 2}); got != 2 {
		t.Fatalf("median = %g, want 2", got)
	}
}

func TestMeanStdPopulation(t *testing.T) {
	mean, std := meanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 {
		t.Fatalf("mean = %g, want 5", mean)
	}
	// Population std (ddof=0) of this classic set is exactly 2.
	if math.Abs(std-2) > 1e-12 {
		t.Fatalf("std = %g, want 2", std)
	}
}
