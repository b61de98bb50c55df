// Package dataset holds the commune/year climate observations the dashboard
// works on, indexed for exact-match selection.
package dataset

// Column keys as they appear in the GeoPackage.
const (
	ColumnDry                    = "dry"
	ColumnLiquidPrecipitation    = "PRELIQ_MENS"
	ColumnTemperature            = "T_MENS"
	ColumnEvaporation            = "EVAP_MENS"
	ColumnEvapotranspiration     = "ETP_MENS"
	ColumnEffectivePrecipitation = "PE_MENS"
	ColumnSoilWetness            = "SWI_MENS"
)

// FeatureCount is the width of a feature vector.
const FeatureCount = 6

// Column pairs a storage key with its display label.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

var columns = []Column{
	{Key: ColumnDry, Label: "arrêtés CAT NAT"},
	{Key: ColumnLiquidPrecipitation, Label: "Précipitation liquides"},
	{Key: ColumnTemperature, Label: "Températures"},
	{Key: ColumnEvaporation, Label: "Evaporation"},
	{Key: ColumnEvapotranspiration, Label: "Evapotranspiration"},
	{Key: ColumnEffectivePrecipitation, Label: "Précipitations effectives"},
	{Key: ColumnSoilWetness, Label: "SWI"},
}

// Columns returns every thematic column, outcome first.
func Columns() []Column {
	return append([]Column(nil), columns...)
}

// FeatureColumns returns the six climate columns in training order.
func FeatureColumns() []Column {
	return append([]Column(nil), columns[1:]...)
}

// FeatureNames returns the canonical feature keys in training order. The
// classifier's feature importances and input vectors are aligned to it.
func FeatureNames() []string {
	names := make([]string, 0, FeatureCount)
	for _, c := range columns[1:] {
		names = append(names, c.Key)
	}
	return names
}

// ColumnKeys returns the keys of Columns.
func ColumnKeys() []string {
	keys := make([]string, 0, len(columns))
	for _, c := range columns {
		keys = append(keys, c.Key)
	}
	return keys
}

// LookupColumn finds a column by key or by display label.
func LookupColumn(name string) (Column, bool) {
	for _, c := range columns {
		if c.Key == name || c.Label == name {
			return c, true
		}
	}
	return Column{}, false
}

func featureIndex(key string) int {
	for i, name := range FeatureNames() {
		if name == key {
			return i
		}
	}
	return -1
}
