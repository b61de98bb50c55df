package charts

import (
	"errors"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg/draw"

	"droughtdash/dataset"
	"droughtdash/locale"
)

// Heatmap draws an annotated correlation matrix on a blue-white-red scale
// fixed to [-1, 1]. The first column is drawn on the top row.
func Heatmap(m *dataset.Matrix, loc *locale.Localizer) (*plot.Plot, error) {
	n := len(m.Keys)
	if n == 0 {
		return nil, errors.New("empty correlation matrix")
	}

	scale := moreland.SmoothBlueRed()
	scale.SetMin(-1)
	scale.SetMax(1)

	hm := plotter.NewHeatMap(matrixGrid{m}, scale.Palette(255))
	hm.Min = -1
	hm.Max = 1

	p := newPlot(loc.Text(locale.TitleHeatmap))
	p.Add(hm)

	var (
		points = make(plotter.XYs, 0, n*n)
		texts  = make([]string, 0, n*n)
		shades []color.Color
	)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			v := m.At(r, c)
			points = append(points, plotter.XY{X: float64(c), Y: float64(n - 1 - r)})
			texts = append(texts, loc.Decimal(v, 2))
			if math.Abs(v) > 0.6 {
				shades = append(shades, color.White)
			} else {
				shades = append(shades, textColor)
			}
		}
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: points, Labels: texts})
	if err != nil {
		return nil, err
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].Color = shades[i]
		labels.TextStyle[i].XAlign = draw.XCenter
		labels.TextStyle[i].YAlign = draw.YCenter
	}
	p.Add(labels)

	xNames := make([]string, n)
	yNames := make([]string, n)
	for i, label := range m.Labels {
		xNames[i] = label
		yNames[n-1-i] = label
	}
	p.NominalX(xNames...)
	p.NominalY(yNames...)
	p.X.Tick.Label.Rotation = math.Pi / 6
	p.X.Tick.Label.XAlign = draw.XRight
	return p, nil
}

// matrixGrid adapts a correlation matrix to plotter.GridXYZ. Row r of the
// grid is matrix row n-1-r so the matrix reads top-down.
type matrixGrid struct {
	m *dataset.Matrix
}

func (g matrixGrid) Dims() (c, r int) {
	n := len(g.m.Keys)
	return n, n
}

func (g matrixGrid) Z(c, r int) float64 {
	n := len(g.m.Keys)
	return g.m.At(n-1-r, c)
}

func (g matrixGrid) X(c int) float64 { return float64(c) }

func (g matrixGrid) Y(r int) float64 { return float64(r) }
