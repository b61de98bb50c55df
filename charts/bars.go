package charts

import (
	"errors"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"droughtdash/locale"
	"droughtdash/predict"
)

// ImportanceBars draws ranked feature importances as horizontal bars, the
// most important at the top.
func ImportanceBars(ranked []predict.FeatureImportance, loc *locale.Localizer) (*plot.Plot, error) {
	if len(ranked) == 0 {
		return nil, errors.New("no feature importances to draw")
	}
	p := newPlot(loc.Text(locale.TitleImportance))
	p.HideX()
	p.Y.LineStyle.Width = 0
	p.Y.Tick.LineStyle.Width = 0
	p.Y.Tick.Label.Color = textColor

	n := len(ranked)
	names := make([]string, n)
	var (
		top    float64
		points = make(plotter.XYs, n)
		texts  = make([]string, n)
	)
	for _, fi := range ranked {
		if fi.Importance > top {
			top = fi.Importance
		}
	}
	for i, fi := range ranked {
		y := n - 1 - i
		names[y] = fi.Label

		bar, err := plotter.NewBarChart(plotter.Values{fi.Importance}, vg.Points(18))
		if err != nil {
			return nil, err
		}
		bar.Horizontal = true
		bar.XMin = float64(y)
		bar.Color = seriesColors[i%len(seriesColors)]
		bar.LineStyle.Width = 0
		p.Add(bar)

		points[i] = plotter.XY{X: fi.Importance + top*0.08, Y: float64(y)}
		texts[i] = loc.Decimal(fi.Importance, 3)
	}

	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: points, Labels: texts})
	if err != nil {
		return nil, err
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].Color = textColor
		labels.TextStyle[i].YAlign = draw.YCenter
	}
	p.Add(labels)

	p.NominalY(names...)
	p.X.Min = 0
	p.X.Max = top * 1.2
	if p.X.Max == 0 {
		p.X.Max = 1
	}
	return p, nil
}
