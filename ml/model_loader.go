package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Model types accepted by LoadModel.
const (
	TypeDecisionTree = "decision_tree"
	TypeRandomForest = "random_forest"
)

// modelFile is the JSON export of a fitted classifier.
type modelFile struct {
	Type               string       `json:"type"`
	Classes            []int        `json:"classes"`
	FeatureNames       []string     `json:"feature_names"`
	FeatureImportances []float64    `json:"feature_importances"`
	Estimators         [][]TreeNode `json:"estimators"`
}

// LoadModel reads a JSON model export and checks it against the canonical
// feature list.
func LoadModel(modelType, path string) (Classifier, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseModel(modelType, payload)
}

// ParseModel decodes a model export. An empty modelType accepts whatever type
// the payload declares.
func ParseModel(modelType string, payload []byte) (Classifier, error) {
	var file modelFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if modelType == "" {
		modelType = file.Type
	}
	if file.Type != "" && file.Type != modelType {
		return nil, fmt.Errorf("model file is a %s, expected %s", file.Type, modelType)
	}
	if err := checkFeatureNames(file.FeatureNames); err != nil {
		return nil, err
	}
	if len(file.FeatureImportances) != len(featureNames()) {
		return nil, fmt.Errorf("model has %d feature importances, expected %d", len(file.FeatureImportances), len(featureNames()))
	}

	switch modelType {
	case TypeDecisionTree:
		if len(file.Estimators) != 1 {
			return nil, fmt.Errorf("decision tree needs exactly one estimator, got %d", len(file.Estimators))
		}
		return NewDecisionTree(file.Classes, file.FeatureImportances, file.Estimators[0])
	case TypeRandomForest:
		return NewRandomForest(file.Classes, file.FeatureImportances, file.Estimators)
	default:
		return nil, errors.New("unsupported model type")
	}
}

func (dt *DecisionTree) Save(path string) error {
	return writeModel(path, modelFile{
		Type:               TypeDecisionTree,
		Classes:            dt.classes,
		FeatureNames:       featureNames(),
		FeatureImportances: dt.importances,
		Estimators:         [][]TreeNode{dt.nodes},
	})
}

func (f *RandomForest) Save(path string) error {
	return writeModel(path, modelFile{
		Type:               TypeRandomForest,
		Classes:            f.classes,
		FeatureNames:       featureNames(),
		FeatureImportances: f.importances,
		Estimators:         f.trees,
	})
}

func writeModel(path string, file modelFile) error {
	payload, err := json.Marshal(file)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}
