package ml

// Classifier is a trained model over the canonical feature vector. Rows passed
// to Predict and PredictProba must be ordered like dataset.FeatureNames().
//
// Implementations are read-only after loading and safe for concurrent use.
type Classifier interface {
	// Classes returns the ordered class labels. PredictProba column i
	// belongs to Classes()[i].
	Classes() []int
	Predict(features [][]float64) ([]int, error)
	PredictProba(features [][]float64) ([][]float64, error)
	// FeatureImportances returns one non-negative weight per feature,
	// summing to 1.
	FeatureImportances() []float64
}
