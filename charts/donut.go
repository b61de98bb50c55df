package charts

import (
	"errors"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"droughtdash/locale"
	"droughtdash/predict"
)

// ringWidth is the ring thickness as a share of the outer radius.
const ringWidth = 0.3

// Donut draws the class probabilities as a ring starting at 12 o'clock and
// running counter-clockwise.
func Donut(classes []predict.ClassProbability, loc *locale.Localizer) (*plot.Plot, error) {
	if len(classes) == 0 {
		return nil, errors.New("no class probabilities to draw")
	}
	p := newPlot(loc.Text(locale.TitleProbability))
	p.HideAxes()

	ring := &donut{}
	for i, c := range classes {
		s := slice{
			share: c.Probability,
			color: seriesColors[i%len(seriesColors)],
			label: loc.ClassShare(c.Label, c.Probability),
		}
		ring.slices = append(ring.slices, s)
		p.Legend.Add(s.label, swatch{s.color})
	}
	p.Add(ring)
	p.Legend.Top = true
	p.Legend.TextStyle.Color = textColor
	return p, nil
}

type slice struct {
	share float64
	color color.Color
	label string
}

type donut struct {
	slices []slice
}

// Plot implements plot.Plotter.
func (d *donut) Plot(c draw.Canvas, _ *plot.Plot) {
	center := c.Center()
	outer := 0.4 * math.Min(float64(c.Max.X-c.Min.X), float64(c.Max.Y-c.Min.Y))
	inner := outer * (1 - ringWidth)
	sty := labelStyle(vg.Points(10), textColor)

	total := 0.0
	for _, s := range d.slices {
		total += s.share
	}
	if total <= 0 {
		return
	}

	start := math.Pi / 2
	for _, s := range d.slices {
		sweep := 2 * math.Pi * s.share / total
		if sweep <= 0 {
			continue
		}
		end := start + sweep

		var path vg.Path
		path.Move(polar(center, outer, start))
		path.Arc(center, vg.Length(outer), start, sweep)
		path.Line(polar(center, inner, end))
		path.Arc(center, vg.Length(inner), end, -sweep)
		path.Close()
		c.SetColor(s.color)
		c.Fill(path)

		mid := start + sweep/2
		c.FillText(sty, polar(center, outer*1.18, mid), s.label)
		start = end
	}
}

// DataRange implements plot.DataRanger so the ring stays centered.
func (d *donut) DataRange() (xmin, xmax, ymin, ymax float64) {
	return -1, 1, -1, 1
}

func polar(center vg.Point, r, angle float64) vg.Point {
	return vg.Point{
		X: center.X + vg.Length(r*math.Cos(angle)),
		Y: center.Y + vg.Length(r*math.Sin(angle)),
	}
}

// swatch is a filled legend thumbnail.
type swatch struct {
	color color.Color
}

func (s swatch) Thumbnail(c *draw.Canvas) {
	pts := []vg.Point{
		{X: c.Min.X, Y: c.Min.Y},
		{X: c.Min.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Min.Y},
	}
	c.FillPolygon(s.color, pts)
}
