// Package predict turns a (geo code, year) query into a prediction view: row
// selection, classifier inference and the derived probability and importance
// series.
package predict

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"droughtdash/dataset"
	"droughtdash/ml"
)

const probabilityTolerance = 1e-6

// Predictor answers prediction queries.
type Predictor interface {
	PredictFor(geoCode string, year int) (*View, error)
}

// Pipeline runs queries against one dataset and one classifier. Both are
// only read, so a Pipeline is safe for concurrent use.
type Pipeline struct {
	table *dataset.Table
	model ml.Classifier
}

func NewPipeline(table *dataset.Table, model ml.Classifier) *Pipeline {
	return &Pipeline{table: table, model: model}
}

// PredictFor selects the rows matching geoCode exactly, then year, and scores
// the first match. It returns ErrUnknownLocation or ErrNoDataForYear for empty
// selections and *InferenceError for everything that goes wrong afterwards.
func (p *Pipeline) PredictFor(geoCode string, year int) (*View, error) {
	if p.table == nil || p.model == nil {
		return nil, &InferenceError{GeoCode: geoCode, Year: year, Err: errors.New("pipeline not initialized")}
	}

	rows, err := p.table.Select(geoCode, year)
	if err != nil {
		return nil, err
	}
	view, err := p.score(rows)
	if err != nil {
		return nil, &InferenceError{GeoCode: geoCode, Year: year, Err: err}
	}
	view.GeoCode = geoCode
	view.Year = year
	return view, nil
}

func (p *Pipeline) score(rows []dataset.Observation) (*View, error) {
	first := rows[0]
	if err := first.Validate(); err != nil {
		return nil, err
	}
	batch := [][]float64{first.FeatureVector()}

	labels, err := p.model.Predict(batch)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if len(labels) != 1 {
		return nil, fmt.Errorf("predict returned %d labels for 1 row", len(labels))
	}
	proba, err := p.model.PredictProba(batch)
	if err != nil {
		return nil, fmt.Errorf("predict_proba: %w", err)
	}
	if len(proba) != 1 {
		return nil, fmt.Errorf("predict_proba returned %d rows for 1 row", len(proba))
	}

	classes, probabilities, err := pairProbabilities(p.model.Classes(), proba[0])
	if err != nil {
		return nil, err
	}
	if _, ok := probabilities[labels[0]]; !ok {
		return nil, fmt.Errorf("predicted label %d is not a known class", labels[0])
	}
	ranked, err := rankImportances(p.model.FeatureImportances())
	if err != nil {
		return nil, err
	}

	return &View{
		PredictedLabel:    labels[0],
		Probabilities:     probabilities,
		Classes:           classes,
		RankedImportances: ranked,
		Features:          first.FeatureVector(),
		MatchedRows:       len(rows),
	}, nil
}

// pairProbabilities aligns proba[i] with classes[i].
func pairProbabilities(classes []int, proba []float64) ([]ClassProbability, map[int]float64, error) {
	if len(classes) == 0 {
		return nil, nil, errors.New("classifier has no classes")
	}
	if len(proba) != len(classes) {
		return nil, nil, fmt.Errorf("probability vector has %d entries for %d classes", len(proba), len(classes))
	}
	pairs := make([]ClassProbability, len(classes))
	byLabel := make(map[int]float64, len(classes))
	total := 0.0
	for i, label := range classes {
		pr := proba[i]
		if math.IsNaN(pr) || pr < -probabilityTolerance || pr > 1+probabilityTolerance {
			return nil, nil, fmt.Errorf("probability %v for class %d is out of range", pr, label)
		}
		if _, dup := byLabel[label]; dup {
			return nil, nil, fmt.Errorf("duplicate class %d", label)
		}
		pairs[i] = ClassProbability{Label: label, Probability: pr}
		byLabel[label] = pr
		total += pr
	}
	if math.Abs(total-1) > probabilityTolerance {
		return nil, nil, fmt.Errorf("probabilities sum to %v", total)
	}
	return pairs, byLabel, nil
}

// rankImportances pairs importances with the canonical feature names and
// sorts them descending; equal values keep feature order.
func rankImportances(importances []float64) ([]FeatureImportance, error) {
	cols := dataset.FeatureColumns()
	if len(importances) != len(cols) {
		return nil, fmt.Errorf("classifier has %d feature importances, expected %d", len(importances), len(cols))
	}
	ranked := make([]FeatureImportance, len(cols))
	for i, col := range cols {
		if math.IsNaN(importances[i]) {
			return nil, fmt.Errorf("importance of %s is NaN", col.Key)
		}
		ranked[i] = FeatureImportance{Feature: col.Key, Label: col.Label, Importance: importances[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Importance > ranked[j].Importance
	})
	return ranked, nil
}
