// Ludarium - Game Library Enrichment and Playtime Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludarium

package recommend

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// ForestConfig controls random forest training.
type ForestConfig struct {
	Trees    int
	MaxDepth int
	MinLeaf  int
	Seed     int64
}

// Forest is a bagged ensemble of regression trees predicting playtime from
// encoded game features. Predictions are the mean across trees.
type Forest struct {
	trees []*treeNode
}

type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

var errNoTrainingData = errors.New("recommend: no training rows")

// TrainForest fits the ensemble. Each tree trains on a bootstrap sample of
// the rows and considers a random subset of features at each split, which is
// what decorrelates the trees.
func TrainForest(features [][]float64, targets []float64, cfg ForestConfig) (*Forest, error) {
	if len(features) == 0 || len(features) != len(targets) {
		return nil, errNoTrainingData
	}
	if cfg.Trees <= 0 {
		cfg.Trees = 100
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 12
	}
	if cfg.MinLeaf <= 0 {
		cfg.MinLeaf = 1
	}

	width := len(features[0])
	mtry := int(math.Ceil(float64(width) / 3))
	if mtry < 1 {
		mtry = 1
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	n := len(features)

	f := &Forest{trees: make([]*treeNode, 0, cfg.Trees)}
	for t := 0; t < cfg.Trees; t++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		f.trees = append(f.trees, growTree(features, targets, sample, cfg, mtry, 0, rng))
	}
	return f, nil
}

// Predict returns the mean prediction across all trees.
func (f *Forest) Predict(row []float64) float64 {
	var sum float64
	for _, t := range f.trees {
		sum += t.predict(row)
	}
	return sum / float64(len(f.trees))
}

func (n *treeNode) predict(row []float64) float64 {
	for !n.leaf {
		if row[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

func growTree(features [][]float64, targets []float64, idx []int, cfg ForestConfig, mtry, depth int, rng *rand.Rand) *treeNode {
	mean, variance := meanVariance(targets, idx)
	if depth >= cfg.MaxDepth || len(idx) < 2*cfg.MinLeaf || variance == 0 {
		return &treeNode{leaf: true, value: mean}
	}

	feature, threshold, ok := bestSplit(features, targets, idx, mtry, cfg.MinLeaf, rng)
	if !ok {
		return &treeNode{leaf: true, value: mean}
	}

	var left, right []int
	for _, i := range idx {
		if features[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      growTree(features, targets, left, cfg, mtry, depth+1, rng),
		right:     growTree(features, targets, right, cfg, mtry, depth+1, rng),
	}
}

// bestSplit scans a random feature subset for the threshold minimizing the
// weighted child variance. Candidate thresholds are midpoints between
// consecutive distinct values.
func bestSplit(features [][]float64, targets []float64, idx []int, mtry, minLeaf int, rng *rand.Rand) (int, float64, bool) {
	width := len(features[idx[0]])
	perm := rng.Perm(width)

	bestScore := math.Inf(1)
	bestFeature := -1
	bestThreshold := 0.0

	values := make([]float64, 0, len(idx))
	for _, feature := range perm[:mtry] {
		values = values[:0]
		for _, i := range idx {
			values = append(values, features[i][feature])
		}
		sort.Float64s(values)

		for v := 1; v < len(values); v++ {
			if values[v] == values[v-1] {
				continue
			}
			threshold := (values[v] + values[v-1]) / 2

			score, ok := splitScore(features, targets, idx, feature, threshold, minLeaf)
			if ok && score < bestScore {
				bestScore = score
				bestFeature = feature
				bestThreshold = threshold
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func splitScore(features [][]float64, targets []float64, idx []int, feature int, threshold float64, minLeaf int) (float64, bool) {
	var (
		nl, nr         float64
		suml, sumr     float64
		sqsuml, sqsumr float64
	)
	for _, i := range idx {
		t := targets[i]
		if features[i][feature] <= threshold {
			nl++
			suml += t
			sqsuml += t * t
		} else {
			nr++
			sumr += t
			sqsumr += t * t
		}
	}
	if nl < float64(minLeaf) || nr < float64(minLeaf) {
		return 0, false
	}

	// Weighted sum of child variances via E[x^2] - E[x]^2.
	varl := sqsuml/nl - (suml/nl)*(suml/nl)
	varr := sqsumr/nr - (sumr/nr)*(sumr/nr)
	return nl*varl + nr*varr, true
}

func meanVariance(targets []float64, idx []int) (float64, float64) {
	if len(idx) == 0 {
		return 0, 0
	}
	var sum float64
	for _, i := range idx {
		sum += targets[i]
	}
	mean := sum / float64(len(idx))

	var sq float64
	for _, i := range idx {
		d := targets[i] - mean
		sq += d * d
	}
	return mean, sq / float64(len(idx))
}
