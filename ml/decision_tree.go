package ml

import (
	"errors"
	"fmt"
	"math"
)

// TreeNode is one node of a fitted tree. Leaves carry the per-class training
// weights that reached them; internal nodes route on FeatureIdx <= Threshold.
type TreeNode struct {
	FeatureIdx int       `json:"feature_idx"`
	Threshold  float64   `json:"threshold"`
	LeftChild  int       `json:"left_child"`
	RightChild int       `json:"right_child"`
	Value      []float64 `json:"value,omitempty"`
	IsLeaf     bool      `json:"is_leaf"`
}

// Leaf builds a leaf node from class weights.
func Leaf(value ...float64) TreeNode {
	return TreeNode{FeatureIdx: -1, LeftChild: -1, RightChild: -1, Value: value, IsLeaf: true}
}

// Split builds an internal node.
func Split(featureIdx int, threshold float64, left, right int) TreeNode {
	return TreeNode{FeatureIdx: featureIdx, Threshold: threshold, LeftChild: left, RightChild: right}
}

// DecisionTree is a single fitted classification tree.
type DecisionTree struct {
	classes     []int
	importances []float64
	nodes       []TreeNode
}

// NewDecisionTree validates nodes against the class list and the canonical
// feature width.
func NewDecisionTree(classes []int, importances []float64, nodes []TreeNode) (*DecisionTree, error) {
	if err := validateHeader(classes, importances); err != nil {
		return nil, err
	}
	if err := validateNodes(nodes, len(classes), len(importances)); err != nil {
		return nil, err
	}
	return &DecisionTree{
		classes:     append([]int(nil), classes...),
		importances: append([]float64(nil), importances...),
		nodes:       cloneNodes(nodes),
	}, nil
}

func (dt *DecisionTree) Classes() []int {
	return append([]int(nil), dt.classes...)
}

func (dt *DecisionTree) FeatureImportances() []float64 {
	return append([]float64(nil), dt.importances...)
}

func (dt *DecisionTree) Predict(features [][]float64) ([]int, error) {
	proba, err := dt.PredictProba(features)
	if err != nil {
		return nil, err
	}
	return argmaxLabels(dt.classes, proba), nil
}

func (dt *DecisionTree) PredictProba(features [][]float64) ([][]float64, error) {
	if len(dt.nodes) == 0 {
		return nil, errors.New("model not trained")
	}
	out := make([][]float64, len(features))
	for i, row := range features {
		if err := checkRow(row, len(dt.importances)); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		leaf, err := leafFor(dt.nodes, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = normalize(leaf.Value)
	}
	return out, nil
}

func leafFor(nodes []TreeNode, features []float64) (TreeNode, error) {
	idx := 0
	for {
		node := nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return TreeNode{}, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(nodes) {
			return TreeNode{}, errors.New("invalid tree state")
		}
	}
}

func checkRow(row []float64, width int) error {
	if len(row) != width {
		return fmt.Errorf("expected %d features, got %d", width, len(row))
	}
	for j, v := range row {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("feature %d is not finite", j)
		}
	}
	return nil
}

func normalize(value []float64) []float64 {
	total := 0.0
	for _, v := range value {
		total += v
	}
	out := make([]float64, len(value))
	for i, v := range value {
		out[i] = v / total
	}
	return out
}

// argmaxLabels maps each probability row to its most likely class; the first
// maximum wins.
func argmaxLabels(classes []int, proba [][]float64) []int {
	labels := make([]int, len(proba))
	for i, row := range proba {
		best := 0
		for j := 1; j < len(row); j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		labels[i] = classes[best]
	}
	return labels
}

func cloneNodes(nodes []TreeNode) []TreeNode {
	out := make([]TreeNode, len(nodes))
	for i, n := range nodes {
		out[i] = n
		out[i].Value = append([]float64(nil), n.Value...)
	}
	return out
}

func validateHeader(classes []int, importances []float64) error {
	if len(classes) == 0 {
		return errors.New("classes is empty")
	}
	seen := make(map[int]struct{}, len(classes))
	for _, c := range classes {
		if _, dup := seen[c]; dup {
			return fmt.Errorf("duplicate class %d", c)
		}
		seen[c] = struct{}{}
	}
	if len(importances) == 0 {
		return errors.New("feature importances is empty")
	}
	total := 0.0
	for i, v := range importances {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("feature importance %d is invalid: %v", i, v)
		}
		total += v
	}
	if math.Abs(total-1) > 1e-6 {
		return fmt.Errorf("feature importances sum to %v, want 1", total)
	}
	return nil
}

// validateNodes requires children to come after their parent, which rules out
// cycles, and leaves to carry one positive-sum weight per class.
func validateNodes(nodes []TreeNode, classCount, featureCount int) error {
	if len(nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	for i, node := range nodes {
		if node.IsLeaf {
			if len(node.Value) != classCount {
				return fmt.Errorf("node %d: leaf has %d weights, want %d", i, len(node.Value), classCount)
			}
			total := 0.0
			for _, v := range node.Value {
				if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
					return fmt.Errorf("node %d: invalid leaf weight %v", i, v)
				}
				total += v
			}
			if total <= 0 {
				return fmt.Errorf("node %d: leaf weights sum to zero", i)
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= featureCount {
			return fmt.Errorf("node %d: feature index %d out of range", i, node.FeatureIdx)
		}
		if math.IsNaN(node.Threshold) {
			return fmt.Errorf("node %d: threshold is NaN", i)
		}
		for _, child := range []int{node.LeftChild, node.RightChild} {
			if child <= i || child >= len(nodes) {
				return fmt.Errorf("node %d: invalid child %d", i, child)
			}
		}
	}
	return nil
}
