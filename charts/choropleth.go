package charts

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/plot/palette/brewer"

	"droughtdash/dataset"
)

// DefaultClasses is the number of map classes when none is requested.
const DefaultClasses = 5

// ErrClassCount is returned for a class count the YlOrBr scheme cannot serve.
var ErrClassCount = errors.New("class count outside 3..9")

// ErrNonFinite is returned when a thematic value is NaN or infinite.
var ErrNonFinite = errors.New("non-finite thematic value")

// Bin is one equal-interval map class.
type Bin struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Color string  `json:"color"`
	Count int     `json:"count"`
}

// ClassifiedValue is a thematic value with its map class.
type ClassifiedValue struct {
	GeoCode string  `json:"geo_code"`
	Value   float64 `json:"value"`
	Class   int     `json:"class"`
	Color   string  `json:"color"`
}

// Classification colors a year of thematic values for the map page.
type Classification struct {
	Bins   []Bin             `json:"bins"`
	Values []ClassifiedValue `json:"values"`
}

// ClassifyValues splits the value range into n equal intervals colored with
// the YlOrBr scheme, light for low values. n must be within 3..9. When every
// value is equal they all fall in the first class. A NaN or infinite value
// fails with ErrNonFinite.
func ClassifyValues(values []dataset.ThematicValue, n int) (*Classification, error) {
	if n == 0 {
		n = DefaultClasses
	}
	if n < 3 || n > 9 {
		return nil, fmt.Errorf("%w: %d", ErrClassCount, n)
	}
	for _, v := range values {
		if math.IsNaN(v.Value) || math.IsInf(v.Value, 0) {
			return nil, fmt.Errorf("%w: %s = %v", ErrNonFinite, v.GeoCode, v.Value)
		}
	}
	pal, err := brewer.GetPalette(brewer.TypeSequential, "YlOrBr", n)
	if err != nil {
		return nil, fmt.Errorf("load YlOrBr palette: %w", err)
	}
	colors := pal.Colors()

	out := &Classification{
		Bins:   make([]Bin, n),
		Values: make([]ClassifiedValue, 0, len(values)),
	}
	if len(values) == 0 {
		for i := range out.Bins {
			out.Bins[i].Color = Hex(colors[i])
		}
		return out, nil
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v.Value)
		hi = math.Max(hi, v.Value)
	}
	step := (hi - lo) / float64(n)
	for i := range out.Bins {
		out.Bins[i] = Bin{
			Min:   lo + float64(i)*step,
			Max:   lo + float64(i+1)*step,
			Color: Hex(colors[i]),
		}
	}
	out.Bins[n-1].Max = hi

	for _, v := range values {
		class := 0
		if step > 0 {
			class = int((v.Value - lo) / step)
			if class >= n {
				class = n - 1
			}
		}
		out.Bins[class].Count++
		out.Values = append(out.Values, ClassifiedValue{
			GeoCode: v.GeoCode,
			Value:   v.Value,
			Class:   class,
			Color:   out.Bins[class].Color,
		})
	}
	return out, nil
}
