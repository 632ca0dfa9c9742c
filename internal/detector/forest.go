package detector

import (
	"errors"
	"math"
	"math/rand"
)

const eulerGamma = 0.5772156649

// DefaultThreshold is the automatic contamination cut-off: a point whose anomaly
// score exceeds it is an outlier.
const DefaultThreshold = 0.5

// node is one vertex of an isolation tree, stored flat so trees serialise cheaply.
type node struct {
	Feature int     `json:"f"`
	Split   float64 `json:"s"`
	Left    int     `json:"l"`
	Right   int     `json:"r"`
	Size    int     `json:"n"`
	Leaf    bool    `json:"leaf,omitempty"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

// ForestParams controls isolation forest fitting.
type ForestParams struct {
	NumTrees   int
	MaxSamples int
	Seed       int64
}

// Forest is a fitted isolation forest over fixed-width feature vectors.
type Forest struct {
	Trees      []tree  `json:"trees"`
	MaxSamples int     `json:"max_samples"`
	Features   int     `json:"features"`
	Threshold  float64 `json:"threshold"`
}

// FitForest builds an isolation forest from data. Every row must have the same width.
func FitForest(data [][]float64, params ForestParams) (*Forest, error) {
	if len(data) == 0 {
		return nil, errors.New("no training data")
	}
	width := len(data[0])
	if width == 0 {
		return nil, errors.New("empty feature vectors")
	}
	for _, row := range data {
		if len(row) != width {
			return nil, errors.New("inconsistent feature width")
		}
	}
	if params.NumTrees <= 0 {
		params.NumTrees = 100
	}
	maxSamples := params.MaxSamples
	if maxSamples <= 0 || maxSamples > 256 {
		maxSamples = 256
	}
	if maxSamples > len(data) {
		maxSamples = len(data)
	}
	maxDepth := int(math.Ceil(math.Log2(math.Max(float64(maxSamples), 2))))

	rng := rand.New(rand.NewSource(params.Seed))
	f := &Forest{
		Trees:      make([]tree, 0, params.NumTrees),
		MaxSamples: maxSamples,
		Features:   width,
		Threshold:  DefaultThreshold,
	}
	for i := 0; i < params.NumTrees; i++ {
		b := builder{rng: rng, maxDepth: maxDepth}
		b.build(subsample(rng, data, maxSamples), 0)
		f.Trees = append(f.Trees, tree{Nodes: b.nodes})
	}
	return f, nil
}

// Score returns the anomaly score in (0, 1]; higher is more anomalous.
func (f *Forest) Score(point []float64) float64 {
	if len(f.Trees) == 0 || len(point) != f.Features {
		return 0
	}
	total := 0.0
	for i := range f.Trees {
		total += f.Trees[i].pathLength(point)
	}
	avg := total / float64(len(f.Trees))
	c := averagePathLength(f.MaxSamples)
	if c == 0 {
		return 0
	}
	return math.Pow(2, -avg/c)
}

// IsOutlier reports whether point scores above the forest threshold.
func (f *Forest) IsOutlier(point []float64) (bool, float64) {
	score := f.Score(point)
	return score > f.Threshold, score
}

func (t tree) pathLength(point []float64) float64 {
	depth := 0
	idx := 0
	for {
		n := t.Nodes[idx]
		if n.Leaf {
			return float64(depth) + averagePathLength(n.Size)
		}
		if point[n.Feature] < n.Split {
			idx = n.Left
		} else {
			idx = n.Right
		}
		depth++
	}
}

type builder struct {
	rng      *rand.Rand
	maxDepth int
	nodes    []node
}

// build appends the subtree for data and returns its index.
func (b *builder) build(data [][]float64, depth int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, node{Size: len(data), Leaf: true})

	if len(data) <= 1 || depth >= b.maxDepth {
		return idx
	}

	// Only features that still vary in this node can separate points.
	candidates := make([]int, 0, len(data[0]))
	for feature := range data[0] {
		lo, hi := featureRange(data, feature)
		if hi > lo {
			candidates = append(candidates, feature)
		}
	}
	if len(candidates) == 0 {
		return idx
	}

	feature := candidates[b.rng.Intn(len(candidates))]
	lo, hi := featureRange(data, feature)
	split := lo + b.rng.Float64()*(hi-lo)

	left, right := partition(data, feature, split)
	if len(left) == 0 || len(right) == 0 {
		return idx
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[idx] = node{Feature: feature, Split: split, Left: l, Right: r, Size: len(data)}
	return idx
}

func subsample(rng *rand.Rand, data [][]float64, size int) [][]float64 {
	idx := rng.Perm(len(data))[:size]
	out := make([][]float64, size)
	for i, j := range idx {
		out[i] = data[j]
	}
	return out
}

func featureRange(data [][]float64, feature int) (float64, float64) {
	lo, hi := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		v := row[feature]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func partition(data [][]float64, feature int, split float64) ([][]float64, [][]float64) {
	var left, right [][]float64
	for _, row := range data {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	return left, right
}

// averagePathLength is c(n), the mean path length of an unsuccessful BST search.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	harmonic := math.Log(float64(n-1)) + eulerGamma
	return 2*harmonic - 2*float64(n-1)/float64(n)
}
