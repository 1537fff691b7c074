package iforest

import (
	"math"
	"math/rand"
)

// node is one node of a random partitioning tree. Internal nodes carry a
// split; leaves carry the number of training points that reached them.
type node struct {
	feature   int
	threshold float64
	left      *node
	right     *node
	size      int
	leaf      bool
}

// buildTree grows an isolation tree over the rows of X indexed by idx.
// Splits pick a random feature and a random cut between that feature's
// observed min and max. Growth stops at maxDepth or when a partition can no
// longer be divided.
func buildTree(X [][]float64, idx []int, depth, maxDepth int, rng *rand.Rand) *node {
	if len(idx) <= 1 || depth >= maxDepth {
		return &node{leaf: true, size: len(idx)}
	}
	nFeatures := len(X[idx[0]])
	feature := rng.Intn(nFeatures)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, i := range idx {
		v := X[i][feature]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		// Constant along this feature; the partition cannot shrink.
		return &node{leaf: true, size: len(idx)}
	}
	threshold := lo + rng.Float64()*(hi-lo)

	var left, right []int
	for _, i := range idx {
		if X[i][feature] < threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &node{
		feature:   feature,
		threshold: threshold,
		left:      buildTree(X, left, depth+1, maxDepth, rng),
		right:     buildTree(X, right, depth+1, maxDepth, rng),
	}
}

// pathLength walks x down the tree and returns the isolation depth, with the
// usual average-path adjustment for leaves still holding multiple points.
func pathLength(x []float64, n *node, depth float64) float64 {
	if n.leaf {
		return depth + avgPathLength(n.size)
	}
	if x[n.feature] < n.threshold {
		return pathLength(x, n.left, depth+1)
	}
	return pathLength(x, n.right, depth+1)
}

const eulerGamma = 0.5772156649015329

// avgPathLength is c(n): the average path length of an unsuccessful BST
// search over n points, used to normalize isolation depths.
func avgPathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		h := math.Log(float64(n-1)) + eulerGamma
		return 2*h - 2*float64(n-1)/float64(n)
	}
}
