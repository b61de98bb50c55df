package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureRows() []Observation {
	return []Observation{
		{GeoCode: "75056", Year: 2019, Features: [FeatureCount]float64{10.2, 5.1, 3.3, 4.0, 6.6, 0.8}, Label: 0, HasLabel: true},
		{GeoCode: "75056", Year: 2020, Features: [FeatureCount]float64{8.0, 6.0, 3.9, 4.4, 5.0, 0.6}, Label: 1, HasLabel: true},
		{GeoCode: "01001", Year: 2019, Features: [FeatureCount]float64{12.0, 4.2, 2.0, 3.1, 8.1, 0.9}, Label: 0, HasLabel: true},
		{GeoCode: "01001", Year: 2021, Features: [FeatureCount]float64{3.0, 8.9, 5.5, 6.0, 1.2, 0.2}, Label: 1, HasLabel: true},
	}
}

func TestFeatureNamesOrder(t *testing.T) {
	assert.Equal(t, []string{"PRELIQ_MENS", "T_MENS", "EVAP_MENS", "ETP_MENS", "PE_MENS", "SWI_MENS"}, FeatureNames())
	assert.Len(t, FeatureColumns(), FeatureCount)
	assert.Equal(t, ColumnDry, Columns()[0].Key)
}

func TestLookupColumn(t *testing.T) {
	col, ok := LookupColumn("Températures")
	require.True(t, ok)
	assert.Equal(t, ColumnTemperature, col.Key)

	col, ok = LookupColumn(ColumnSoilWetness)
	require.True(t, ok)
	assert.Equal(t, "SWI", col.Label)

	_, ok = LookupColumn("geometry")
	assert.False(t, ok)
}

func TestTableSelect(t *testing.T) {
	table := NewTable(fixtureRows())

	tests := []struct {
		name    string
		code    string
		year    int
		wantErr error
		wantLen int
	}{
		{name: "match", code: "75056", year: 2019, wantLen: 1},
		{name: "unknown code", code: "00000", year: 2019, wantErr: ErrUnknownLocation},
		{name: "known code unknown year", code: "75056", year: 2030, wantErr: ErrNoDataForYear},
		{name: "year present elsewhere only", code: "75056", year: 2021, wantErr: ErrNoDataForYear},
		{name: "codes are not trimmed", code: " 75056", year: 2019, wantErr: ErrUnknownLocation},
		{name: "negative year is plain input", code: "01001", year: -1, wantErr: ErrNoDataForYear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := table.Select(tt.code, tt.year)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, rows)
				return
			}
			require.NoError(t, err)
			assert.Len(t, rows, tt.wantLen)
			for _, row := range rows {
				assert.Equal(t, tt.code, row.GeoCode)
				assert.Equal(t, tt.year, row.Year)
			}
		})
	}
}

func TestTableKeepsDuplicatesInOrder(t *testing.T) {
	rows := fixtureRows()
	dup := rows[0]
	dup.Features[0] = 99
	table := NewTable(append(rows, dup))

	matches, err := table.Select("75056", 2019)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, 10.2, matches[0].Features[0])
	assert.Equal(t, 99.0, matches[1].Features[0])
}

func TestTableIsolatedFromCaller(t *testing.T) {
	rows := fixtureRows()
	table := NewTable(rows)
	rows[0].GeoCode = "mutated"

	_, err := table.Select("75056", 2019)
	require.NoError(t, err)

	out := table.ByGeoCode("75056")
	out[0].Features[0] = -1
	again := table.ByGeoCode("75056")
	assert.Equal(t, 10.2, again[0].Features[0])
}

func TestTableIndexes(t *testing.T) {
	table := NewTable(fixtureRows())
	assert.Equal(t, 4, table.Len())
	assert.Equal(t, []int{2019, 2020, 2021}, table.Years())
	assert.Equal(t, []string{"75056", "01001"}, table.GeoCodes())
	assert.Empty(t, table.ByGeoCode("nope"))
}

func TestTableValues(t *testing.T) {
	table := NewTable(fixtureRows())

	values, err := table.Values(2019, ColumnTemperature)
	require.NoError(t, err)
	assert.Equal(t, []ThematicValue{{GeoCode: "75056", Value: 5.1}, {GeoCode: "01001", Value: 4.2}}, values)

	values, err = table.Values(2019, "arrêtés CAT NAT")
	require.NoError(t, err)
	assert.Len(t, values, 2)

	values, err = table.Values(1999, ColumnTemperature)
	require.NoError(t, err)
	assert.Empty(t, values)

	_, err = table.Values(2019, "geometry")
	assert.Error(t, err)
}

func TestObservationValidate(t *testing.T) {
	row := fixtureRows()[0]
	require.NoError(t, row.Validate())

	row.Features[3] = math.NaN()
	err := row.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ETP_MENS")
}

func TestCorrelation(t *testing.T) {
	table := NewTable(fixtureRows())

	m, err := table.Correlation(nil)
	require.NoError(t, err)
	require.Len(t, m.Values, len(Columns()))
	assert.Equal(t, 4, m.Rows)
	for i := range m.Values {
		assert.Equal(t, 1.0, m.At(i, i))
		for j := range m.Values {
			assert.InDelta(t, m.At(i, j), m.At(j, i), 1e-12)
			assert.LessOrEqual(t, math.Abs(m.At(i, j)), 1.0+1e-9)
		}
	}
}

func TestCorrelationPerfectlyLinear(t *testing.T) {
	rows := []Observation{
		{GeoCode: "a", Year: 1, Features: [FeatureCount]float64{1, 2, 0, 0, 0, 0}},
		{GeoCode: "b", Year: 1, Features: [FeatureCount]float64{2, 4, 0, 0, 0, 0}},
		{GeoCode: "c", Year: 1, Features: [FeatureCount]float64{3, 6, 0, 0, 0, 0}},
	}
	m, err := NewTable(rows).Correlation([]string{ColumnLiquidPrecipitation, ColumnTemperature, ColumnEvaporation})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, m.At(0, 1), 1e-9)
	assert.Equal(t, 0.0, m.At(0, 2), "constant column")
}

func TestCorrelationPairwiseComplete(t *testing.T) {
	labeled := fixtureRows()
	unlabeled := Observation{GeoCode: "13055", Year: 2019, Features: [FeatureCount]float64{1.0, 9.5, 6.1, 6.4, 0.2, 0.1}}
	keys := []string{ColumnDry, ColumnLiquidPrecipitation, ColumnTemperature}

	withRow, err := NewTable(append(fixtureRows(), unlabeled)).Correlation(keys)
	require.NoError(t, err)
	assert.Equal(t, 5, withRow.Rows)

	allFeatures := NewTable(append(fixtureRows(), unlabeled))
	featuresOnly, err := allFeatures.Correlation(keys[1:])
	require.NoError(t, err)
	assert.InDelta(t, featuresOnly.At(0, 1), withRow.At(1, 2), 1e-12, "unlabeled row counts between features")

	labeledOnly, err := NewTable(labeled).Correlation(keys)
	require.NoError(t, err)
	assert.InDelta(t, labeledOnly.At(0, 1), withRow.At(0, 1), 1e-12, "unlabeled row is skipped for the label")
	assert.NotEqual(t, labeledOnly.At(1, 2), withRow.At(1, 2))
}

func TestCorrelationErrors(t *testing.T) {
	table := NewTable(fixtureRows()[:1])
	_, err := table.Correlation(nil)
	assert.Error(t, err)

	_, err = NewTable(fixtureRows()).Correlation([]string{"nope"})
	assert.Error(t, err)
}
