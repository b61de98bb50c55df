package charts

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"droughtdash/dataset"
	"droughtdash/locale"
	"droughtdash/predict"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func french(t *testing.T) *locale.Localizer {
	t.Helper()
	b, err := locale.NewBundle("fr")
	require.NoError(t, err)
	return b.Default()
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, PNG, f)

	f, err = ParseFormat("SVG")
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", f.ContentType())

	_, err = ParseFormat("gif")
	assert.Error(t, err)
}

func TestDonutRenders(t *testing.T) {
	p, err := Donut([]predict.ClassProbability{{Label: 0, Probability: 0.7}, {Label: 1, Probability: 0.3}}, french(t))
	require.NoError(t, err)

	var png bytes.Buffer
	require.NoError(t, Render(&png, p, PNG, DonutSize))
	assert.True(t, bytes.HasPrefix(png.Bytes(), pngMagic))

	var svg bytes.Buffer
	require.NoError(t, Render(&svg, p, SVG, DonutSize))
	assert.Contains(t, svg.String(), "<svg")
	assert.Contains(t, svg.String(), "Classe 0 : 70,00 %")
}

func TestDonutRejectsEmpty(t *testing.T) {
	_, err := Donut(nil, french(t))
	assert.Error(t, err)
}

func TestImportanceBarsRenders(t *testing.T) {
	ranked := []predict.FeatureImportance{
		{Feature: "T_MENS", Label: "Températures", Importance: 0.25},
		{Feature: "SWI_MENS", Label: "SWI", Importance: 0.25},
		{Feature: "ETP_MENS", Label: "Evapotranspiration", Importance: 0.2},
		{Feature: "PE_MENS", Label: "Précipitations effectives", Importance: 0.15},
		{Feature: "PRELIQ_MENS", Label: "Précipitation liquides", Importance: 0.1},
		{Feature: "EVAP_MENS", Label: "Evaporation", Importance: 0.05},
	}
	p, err := ImportanceBars(ranked, french(t))
	require.NoError(t, err)

	var svg bytes.Buffer
	require.NoError(t, Render(&svg, p, SVG, ImportanceSize))
	assert.Contains(t, svg.String(), "Températures")
	assert.Contains(t, svg.String(), "0,250")

	_, err = ImportanceBars(nil, french(t))
	assert.Error(t, err)
}

func TestHeatmapRenders(t *testing.T) {
	m := &dataset.Matrix{
		Keys:   []string{"T_MENS", "SWI_MENS"},
		Labels: []string{"Températures", "SWI"},
		Values: [][]float64{{1, -0.42}, {-0.42, 1}},
		Rows:   10,
	}
	p, err := Heatmap(m, french(t))
	require.NoError(t, err)

	var png bytes.Buffer
	require.NoError(t, Render(&png, p, PNG, HeatmapSize))
	assert.True(t, bytes.HasPrefix(png.Bytes(), pngMagic))

	grid := matrixGrid{m}
	c, r := grid.Dims()
	assert.Equal(t, 2, c)
	assert.Equal(t, 2, r)
	assert.Equal(t, -0.42, grid.Z(0, 0), "bottom-left cell is the last row's first column")

	_, err = Heatmap(&dataset.Matrix{}, french(t))
	assert.Error(t, err)
}

func TestClassifyValues(t *testing.T) {
	values := []dataset.ThematicValue{
		{GeoCode: "75056", Value: 0},
		{GeoCode: "13055", Value: 5},
		{GeoCode: "69123", Value: 10},
		{GeoCode: "31555", Value: 2.5},
	}
	got, err := ClassifyValues(values, 5)
	require.NoError(t, err)

	require.Len(t, got.Bins, 5)
	assert.Equal(t, "#ffffd4", got.Bins[0].Color)
	assert.Equal(t, "#993404", got.Bins[4].Color)
	assert.Equal(t, 10.0, got.Bins[4].Max)

	classes := make(map[string]int)
	for _, v := range got.Values {
		classes[v.GeoCode] = v.Class
	}
	assert.Equal(t, map[string]int{"75056": 0, "13055": 2, "69123": 4, "31555": 1}, classes)

	total := 0
	for _, b := range got.Bins {
		total += b.Count
	}
	assert.Equal(t, len(values), total)
}

func TestClassifyValuesEdgeCases(t *testing.T) {
	flat, err := ClassifyValues([]dataset.ThematicValue{{GeoCode: "a", Value: 3}, {GeoCode: "b", Value: 3}}, 0)
	require.NoError(t, err)
	assert.Len(t, flat.Bins, DefaultClasses)
	for _, v := range flat.Values {
		assert.Zero(t, v.Class)
	}

	empty, err := ClassifyValues(nil, 4)
	require.NoError(t, err)
	assert.Empty(t, empty.Values)
	assert.Len(t, empty.Bins, 4)

	_, err = ClassifyValues(nil, 12)
	assert.Error(t, err)
}

func TestClassifyValuesRejectsNonFinite(t *testing.T) {
	for _, bad := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		values := []dataset.ThematicValue{{GeoCode: "75056", Value: 1}, {GeoCode: "13055", Value: bad}}
		_, err := ClassifyValues(values, 5)
		assert.ErrorIs(t, err, ErrNonFinite, "value %v", bad)
	}
}

func TestHex(t *testing.T) {
	assert.Equal(t, "#ff6f61", Hex(highlight))
	assert.Equal(t, "#a2d5f2", Hex(accent))
}
