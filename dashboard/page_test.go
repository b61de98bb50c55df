package dashboard

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"droughtdash/locale"
)

func TestWritePage(t *testing.T) {
	f := newFixture(t)
	bundle, err := locale.NewBundle("fr")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePage(&buf, f.dispatcher.NewPageData(bundle.Default())))
	html := buf.String()

	assert.Contains(t, html, `<html lang="fr">`)
	assert.Contains(t, html, "Carte des communes")
	assert.Contains(t, html, "Modèle prédictif")
	assert.Contains(t, html, `value="75056"`)
	assert.Contains(t, html, `min="2019" max="2022"`)
	assert.Contains(t, html, `<option value="SWI_MENS">SWI</option>`)
	assert.Contains(t, html, `"DefaultGeoCode":"75056"`)
}

func TestWriteReport(t *testing.T) {
	f := newFixture(t)
	bundle, err := locale.NewBundle("en")
	require.NoError(t, err)
	loc := bundle.Default()

	panel := f.dispatcher.Dispatch(context.Background(), Command{Page: PageModel, Action: ActionPredict, GeoCode: "75056", Year: 2019, Locale: "en"})
	require.Equal(t, StatusOK, panel.Status)

	svg := []byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"><text>donut</text></svg>`)
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, NewReport(loc, "75056", 2019, panel, svg, svg)))
	html := buf.String()

	assert.Contains(t, html, "Predictive model")
	assert.Contains(t, html, "Predicted class: 0")
	assert.Contains(t, html, "<svg xmlns")
	assert.NotContains(t, html, "<?xml")
}

func TestWriteReportWarning(t *testing.T) {
	f := newFixture(t)
	bundle, err := locale.NewBundle("fr")
	require.NoError(t, err)

	panel := f.dispatcher.Dispatch(context.Background(), Command{Page: PageModel, Action: ActionPredict, GeoCode: "00000", Year: 2019})
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, NewReport(bundle.Default(), "00000", 2019, panel, nil, nil)))
	assert.Contains(t, buf.String(), "Code INSEE non valide.")
	assert.Contains(t, buf.String(), `class="status warning"`)
}
