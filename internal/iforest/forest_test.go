package iforest

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// syntheticMatrix builds n rows of 4 tightly-clustered features with one
// planted extreme row at the end.
func syntheticMatrix(n int) [][]float64 {
	rng := rand.New(rand.NewSource(7))
	X := make([][]float64, n)
	for i := 0; i < n-1; i++ {
		X[i] = []float64{
			60 + rng.Float64()*10, // hr
			14 + rng.Float64()*4,  // rr
			7 + rng.Float64()*1.5, // duration
			75 + rng.Float64()*20, // score
		}
	}
	X[n-1] = []float64{110, 28, 3.5, 25}
	return X
}

func TestFitTooFewSamples(t *testing.T) {
	X := syntheticMatrix(5)
	_, err := Fit(X, 0.05, Options{})
	if !errors.Is(err, ErrTooFewSamples) {
		t.Fatalf("err = %v, want ErrTooFewSamples", err)
	}
}

func TestFitExactlyTenSamples(t *testing.T) {
	X := syntheticMatrix(10)
	if _, err := Fit(X, 0.1, Options{}); err != nil {
		t.Fatalf("Fit on 10 rows: %v", err)
	}
}

func TestFitRejectsBadContamination(t *testing.T) {
	X := syntheticMatrix(30)
	for _, c := range []float64{0, 1, 1.5, -0.1} {
		if _, err := Fit(X, c, Options{}); err == nil {
			t.Errorf("contamination %g accepted, want error", c)
		}
	}
}

func TestDeterminism(t *testing.T) {
	X := syntheticMatrix(60)
	f1, err := Fit(X, 0.05, Options{})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	f2, err := Fit(X, 0.05, Options{})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	s1 := f1.DecisionFunction(X)
	s2 := f2.DecisionFunction(X)
	for i := range s1 {
		if s1[i] != s2[i] {
			t.Fatalf("row %d: %g != %g across identical fits", i, s1[i], s2[i])
		}
	}
	p1 := f1.Predict(X)
	p2 := f2.Predict(X)
	for i := range p1 {
		if p1[i] != p2[i] {
			t.Fatalf("row %d: label %d != %d across identical fits", i, p1[i], p2[i])
		}
	}
}

func TestPlantedOutlierScoresWorst(t *testing.T) {
	X := syntheticMatrix(90)
	f, err := Fit(X, 0.05, Options{})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	scores := f.ScoreSamples(X)
	worst := 0
	for i, s := range scores {
		if s < scores[worst] {
			worst = i
		}
	}
	if worst != len(X)-1 {
		t.Fatalf("worst score at row %d, want planted row %d", worst, len(X)-1)
	}
	labels := f.Predict(X)
	if labels[len(X)-1] != -1 {
		t.Fatalf("planted outlier labeled %d, want -1", labels[len(X)-1])
	}
}

func TestContaminationControlsFlaggedFraction(t *testing.T) {
	X := syntheticMatrix(90)
	f, err := Fit(X, 0.05, Options{})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	flagged := 0
	for _, l := range f.Predict(X) {
		if l == -1 {
			flagged++
		}
	}
	// Threshold sits at the contamination quantile of training scores, so
	// about 5% of 90 rows land below it.
	if flagged < 2 || flagged > 9 {
		t.Fatalf("flagged %d of 90 rows at contamination=0.05", flagged)
	}
}

func TestScoreSamplesRange(t *testing.T) {
	X := syntheticMatrix(40)
	f, err := Fit(X, 0.1, Options{})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	for i, s := range f.ScoreSamples(X) {
		if s >= 0 || s <= -1 || math.IsNaN(s) {
			t.Fatalf("row %d: score %g outside (-1, 0)", i, s)
		}
	}
}

func TestAvgPathLength(t *testing.T) {
	cases := []struct {
		n    int
		want float64
	}{
		{0, 0},
		{1, 0},
		{2, 1},
	}
	for _, c := range cases {
		if got := avgPathLength(c.n); got != c.want {
			t.Errorf("avgPathLength(%d) = %g, want %g", c.n, got, c.want)
		}
	}
	// c(n) grows with n
	if avgPathLength(100) <= avgPathLength(10) {
		t.Errorf("avgPathLength not monotonic")
	}
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	if got := quantile(sorted, 0.5); got != 3 {
		t.Errorf("median = %g, want 3", got)
	}
	if got := quantile(sorted, 0); got != 1 {
		t.Errorf("q0 = %g, want 1", got)
	}
	if got := quantile(sorted, 1); got != 5 {
		t.Errorf("q1 = %g, want 5", got)
	}
	if got := quantile(sorted, 0.25); got != 2 {
		t.Errorf("q0.25 = %g, want 2", got)
	}
}
