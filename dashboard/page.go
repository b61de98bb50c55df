package dashboard

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"droughtdash/dataset"
	"droughtdash/locale"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"toJSON": toJSON,
}).ParseFS(templateFS, "templates/*.html"))

// PageData feeds the interactive dashboard page.
type PageData struct {
	Lang           string
	Title          string
	Pages          []PageLink
	Columns        []dataset.Column
	DefaultGeoCode string
	MinYear        int
	MaxYear        int
	Labels         map[string]string
}

// PageLink is one sidebar entry.
type PageLink struct {
	Page  Page
	Title string
}

// NewPageData builds the page settings for loc.
func (d *Dispatcher) NewPageData(loc *locale.Localizer) PageData {
	base, _ := loc.Tag().Base()
	return PageData{
		Lang:  base.String(),
		Title: "Sécheresse & CAT NAT",
		Pages: []PageLink{
			{Page: PageMap, Title: loc.Text(locale.TitleMap)},
			{Page: PageHeatmap, Title: loc.Text(locale.TitleHeatmap)},
			{Page: PageModel, Title: loc.Text(locale.TitleModel)},
		},
		Columns:        dataset.Columns(),
		DefaultGeoCode: d.opts.DefaultGeoCode,
		MinYear:        d.opts.MinYear,
		MaxYear:        d.opts.MaxYear,
		Labels: map[string]string{
			"geo_code":    loc.Text(locale.LabelGeoCode),
			"year":        loc.Text(locale.LabelYear),
			"column":      loc.Text(locale.LabelColumn),
			"predict":     loc.Text(locale.ActionPredict),
			"probability": loc.Text(locale.TitleProbability),
			"importance":  loc.Text(locale.TitleImportance),
		},
	}
}

// WritePage renders the interactive dashboard.
func WritePage(w io.Writer, data PageData) error {
	return templates.ExecuteTemplate(w, "index.html", data)
}

// ReportData feeds the static prediction report.
type ReportData struct {
	Lang        string
	Title       string
	GeoCode     string
	Year        int
	Panel       Panel
	Probability template.HTML
	Importance  template.HTML
	GeneratedAt string
}

// NewReport prepares a static report for a model panel. The charts are
// inline SVG documents produced by the charts package.
func NewReport(loc *locale.Localizer, geoCode string, year int, panel Panel, probabilitySVG, importanceSVG []byte) ReportData {
	base, _ := loc.Tag().Base()
	return ReportData{
		Lang:        base.String(),
		Title:       loc.Text(locale.TitleModel),
		GeoCode:     geoCode,
		Year:        year,
		Panel:       panel,
		Probability: inlineSVG(probabilitySVG),
		Importance:  inlineSVG(importanceSVG),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// WriteReport renders a static prediction report.
func WriteReport(w io.Writer, data ReportData) error {
	return templates.ExecuteTemplate(w, "report.html", data)
}

// inlineSVG drops the XML prolog so the document can sit inside HTML.
func inlineSVG(doc []byte) template.HTML {
	if i := bytes.Index(doc, []byte("<svg")); i > 0 {
		doc = doc[i:]
	}
	return template.HTML(doc)
}

func toJSON(v any) (template.JS, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode template data: %w", err)
	}
	return template.JS(b), nil
}
