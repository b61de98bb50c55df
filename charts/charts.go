// Package charts renders the dashboard's figures with gonum/plot: the class
// probability donut, the feature importance bars and the correlation
// heatmap. It also assigns choropleth colors for the map page.
package charts

import (
	"fmt"
	"image/color"
	"io"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Format is an output image format.
type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

// ParseFormat accepts png and svg, case-insensitively. Empty means png.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "png":
		return PNG, nil
	case "svg":
		return SVG, nil
	default:
		return "", fmt.Errorf("unsupported image format %q", s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// Size is the rendered canvas size.
type Size struct {
	Width, Height vg.Length
}

var (
	DonutSize      = Size{Width: 5 * vg.Inch, Height: 5 * vg.Inch}
	ImportanceSize = Size{Width: 7 * vg.Inch, Height: 4 * vg.Inch}
	HeatmapSize    = Size{Width: 8 * vg.Inch, Height: 7 * vg.Inch}
)

var (
	highlight = hexColor("#FF6F61")
	accent    = hexColor("#A2D5F2")
	textColor = hexColor("#34495E")

	seriesColors = []color.Color{highlight, accent}
)

// Render encodes p into w.
func Render(w io.Writer, p *plot.Plot, format Format, size Size) error {
	wt, err := p.WriterTo(size.Width, size.Height, string(format))
	if err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}
	_, err = wt.WriteTo(w)
	return err
}

func newPlot(title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.Title.TextStyle.Color = textColor
	p.Title.Padding = vg.Points(8)
	return p
}

func labelStyle(size vg.Length, clr color.Color) text.Style {
	return text.Style{
		Color:   clr,
		Font:    font.From(plot.DefaultFont, size),
		Handler: plot.DefaultTextHandler,
		XAlign:  draw.XCenter,
		YAlign:  draw.YCenter,
	}
}

// hexColor parses #RRGGBB. It panics on malformed input and is only used on
// constants.
func hexColor(s string) color.RGBA {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		panic(fmt.Sprintf("bad color %q: %v", s, err))
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// Hex formats c as #rrggbb.
func Hex(c color.Color) string {
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	return fmt.Sprintf("#%02x%02x%02x", rgba.R, rgba.G, rgba.B)
}
