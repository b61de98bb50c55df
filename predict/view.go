package predict

// ClassProbability is one slice of the probability donut.
type ClassProbability struct {
	Label       int     `json:"label"`
	Probability float64 `json:"probability"`
}

// FeatureImportance is one bar of the importance chart.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Label      string  `json:"label"`
	Importance float64 `json:"importance"`
}

// View is the render-ready outcome of one PredictFor call.
type View struct {
	GeoCode        string          `json:"geo_code"`
	Year           int             `json:"year"`
	PredictedLabel int             `json:"predicted_label"`
	Probabilities  map[int]float64 `json:"probabilities"`
	// Classes lists the same probabilities in the classifier's class order.
	Classes           []ClassProbability  `json:"classes"`
	RankedImportances []FeatureImportance `json:"ranked_importances"`
	Features          []float64           `json:"features"`
	// MatchedRows counts the rows sharing (GeoCode, Year). Only the first
	// one is scored.
	MatchedRows int `json:"matched_rows"`
}

// Clone returns a deep copy.
func (v *View) Clone() *View {
	if v == nil {
		return nil
	}
	out := *v
	out.Probabilities = make(map[int]float64, len(v.Probabilities))
	for k, p := range v.Probabilities {
		out.Probabilities[k] = p
	}
	out.Classes = append([]ClassProbability(nil), v.Classes...)
	out.RankedImportances = append([]FeatureImportance(nil), v.RankedImportances...)
	out.Features = append([]float64(nil), v.Features...)
	return &out
}
