package pipeline

import (
	"math"
	"testing"
)

func TestStandardizeZeroMeanUnitVariance(t *testing.T) {
	X := [][]float64{{1, 100}, {2, 200}, {3, 300}, {4, 400}}
	Z := Standardize(X)
	for j := 0; j < 2; j++ {
		mean, std := meanStd(column(Z, j))
		if math.Abs(mean) > 1e-12 {
			t.Errorf("column %d mean = %g, want 0", j, mean)
		}
		if math.Abs(std-1) > 1e-12 {
			t.Errorf("column %d std = %g, want 1", j, std)
		}
	}
}

func TestStandardizeZeroVarianceColumn(t *testing.T) {
	X := [][]float64{{7, 1}, {7, 2}, {7, 3}}
	Z := Standardize(X)
	for i := range Z {
		if Z[i][0] != 0 {
			t.Fatalf("zero-variance column row %d = %g, want 0", i, Z[i][0])
		}
	}
}

func TestStandardizeDoesNotMutateInput(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}}
	Standardize(X)
	if X[0][0] != 1 || X[2][0] != 3 {
		t.Fatalf("input mutated: %v", X)
	}
}
