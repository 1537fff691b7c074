// Package iforest implements an isolation-forest outlier model: an ensemble
// of random partitioning trees whose average path length to isolate a point
// is inversely related to its anomalousness.
package iforest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTrees is the fixed ensemble size. More trees stabilize the
	// score estimate at linear cost.
	DefaultTrees = 256
	// DefaultSeed makes repeated fits on identical input reproducible.
	DefaultSeed = 42
	// MinSamples is the hard floor: an ensemble of partitioning trees needs
	// a minimum population to produce a meaningful isolation-depth
	// distribution.
	MinSamples = 10

	maxSubsample = 256
)

// ErrTooFewSamples is returned by Fit when the matrix has fewer than
// MinSamples rows.
var ErrTooFewSamples = errors.New("too few samples for isolation forest")

// Options tunes ensemble construction. Zero values select defaults.
type Options struct {
	Trees     int
	Seed      int64
	Subsample int
	// Workers bounds parallel tree construction; defaults to GOMAXPROCS.
	Workers int
}

// Forest is a fitted isolation-forest model.
type Forest struct {
	trees         []*node
	subsample     int
	contamination float64
	offset        float64
}

// Fit trains the ensemble on X and calibrates the outlier threshold so that
// roughly a contamination fraction of the training rows score below it.
func Fit(X [][]float64, contamination float64, opt Options) (*Forest, error) {
	if contamination <= 0 || contamination >= 1 {
		return nil, fmt.Errorf("contamination must be in (0, 1), got %g", contamination)
	}
	n := len(X)
	if n < MinSamples {
		return nil, fmt.Errorf("%w: %d samples (need at least %d)", ErrTooFewSamples, n, MinSamples)
	}
	for i := range X {
		if len(X[i]) != len(X[0]) {
			return nil, fmt.Errorf("ragged matrix: row %d has %d columns, row 0 has %d", i, len(X[i]), len(X[0]))
		}
	}

	trees := opt.Trees
	if trees <= 0 {
		trees = DefaultTrees
	}
	seed := opt.Seed
	if seed == 0 {
		seed = DefaultSeed
	}
	psi := opt.Subsample
	if psi <= 0 || psi > n {
		psi = n
	}
	if psi > maxSubsample {
		psi = maxSubsample
	}
	workers := opt.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(psi))))

	// Per-tree seeds are drawn sequentially from the master source so the
	// ensemble is deterministic regardless of build order.
	master := rand.New(rand.NewSource(seed))
	seeds := make([]int64, trees)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	f := &Forest{trees: make([]*node, trees), subsample: psi, contamination: contamination}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < trees; i++ {
		i := i
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seeds[i]))
			idx := rng.Perm(n)[:psi]
			f.trees[i] = buildTree(X, idx, 0, maxDepth, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scores := f.ScoreSamples(X)
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	f.offset = quantile(sorted, contamination)
	return f, nil
}

// ScoreSamples returns the raw per-row scores: the negated anomaly measure
// s(x) = 2^(-E[h(x)]/c(psi)). Values lie in (-1, 0); more negative means
// more anomalous.
func (f *Forest) ScoreSamples(X [][]float64) []float64 {
	cn := avgPathLength(f.subsample)
	out := make([]float64, len(X))
	for i, x := range X {
		var sum float64
		for _, t := range f.trees {
			sum += pathLength(x, t, 0)
		}
		avg := sum / float64(len(f.trees))
		out[i] = -math.Pow(2, -avg/cn)
	}
	return out
}

// DecisionFunction shifts raw scores by the contamination-calibrated
// threshold: negative means outlier.
func (f *Forest) DecisionFunction(X [][]float64) []float64 {
	scores := f.ScoreSamples(X)
	for i := range scores {
		scores[i] -= f.offset
	}
	return scores
}

// Predict labels every row: -1 for outlier, 1 for normal.
func (f *Forest) Predict(X [][]float64) []int {
	dec := f.DecisionFunction(X)
	out := make([]int, len(dec))
	for i, d := range dec {
		if d < 0 {
			out[i] = -1
		} else {
			out[i] = 1
		}
	}
	return out
}

// Offset exposes the calibrated threshold on raw scores.
func (f *Forest) Offset() float64 { return f.offset }

// quantile returns the q-quantile of sorted values using linear
// interpolation between order statistics.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
