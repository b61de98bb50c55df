package ml

import (
	"errors"
	"fmt"
)

// RandomForest averages the class probabilities of its trees, the way
// scikit-learn's RandomForestClassifier does.
type RandomForest struct {
	classes     []int
	importances []float64
	trees       [][]TreeNode
}

// NewRandomForest validates every estimator against the shared header.
func NewRandomForest(classes []int, importances []float64, trees [][]TreeNode) (*RandomForest, error) {
	if err := validateHeader(classes, importances); err != nil {
		return nil, err
	}
	if len(trees) == 0 {
		return nil, errors.New("forest has no estimators")
	}
	f := &RandomForest{
		classes:     append([]int(nil), classes...),
		importances: append([]float64(nil), importances...),
		trees:       make([][]TreeNode, len(trees)),
	}
	for i, nodes := range trees {
		if err := validateNodes(nodes, len(classes), len(importances)); err != nil {
			return nil, fmt.Errorf("estimator %d: %w", i, err)
		}
		f.trees[i] = cloneNodes(nodes)
	}
	return f, nil
}

func (f *RandomForest) Classes() []int {
	return append([]int(nil), f.classes...)
}

func (f *RandomForest) FeatureImportances() []float64 {
	return append([]float64(nil), f.importances...)
}

// Estimators returns the number of trees.
func (f *RandomForest) Estimators() int {
	return len(f.trees)
}

func (f *RandomForest) Predict(features [][]float64) ([]int, error) {
	proba, err := f.PredictProba(features)
	if err != nil {
		return nil, err
	}
	return argmaxLabels(f.classes, proba), nil
}

func (f *RandomForest) PredictProba(features [][]float64) ([][]float64, error) {
	out := make([][]float64, len(features))
	weight := 1 / float64(len(f.trees))
	for i, row := range features {
		if err := checkRow(row, len(f.importances)); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		acc := make([]float64, len(f.classes))
		for t, nodes := range f.trees {
			leaf, err := leafFor(nodes, row)
			if err != nil {
				return nil, fmt.Errorf("row %d, estimator %d: %w", i, t, err)
			}
			for j, p := range normalize(leaf.Value) {
				acc[j] += p * weight
			}
		}
		out[i] = acc
	}
	return out, nil
}
