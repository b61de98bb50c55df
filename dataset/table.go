package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrUnknownLocation is returned when no row carries the geo code.
	ErrUnknownLocation = errors.New("unknown location")
	// ErrNoDataForYear is returned when the geo code exists but not for the year.
	ErrNoDataForYear = errors.New("no data for year")
)

// Observation is one row of the joined dataset.
type Observation struct {
	GeoCode  string                `json:"geo_code"`
	Year     int                   `json:"year"`
	Features [FeatureCount]float64 `json:"features"`
	Label    int                   `json:"label,omitempty"`
	HasLabel bool                  `json:"has_label"`
}

// FeatureVector returns the features as a fresh slice in training order.
func (o Observation) FeatureVector() []float64 {
	vector := make([]float64, FeatureCount)
	copy(vector, o.Features[:])
	return vector
}

// Value returns the value of a thematic column for this row.
func (o Observation) Value(key string) (float64, bool) {
	if key == ColumnDry {
		return float64(o.Label), o.HasLabel
	}
	idx := featureIndex(key)
	if idx < 0 {
		return 0, false
	}
	return o.Features[idx], true
}

// Validate reports non-finite features.
func (o Observation) Validate() error {
	for i, v := range o.Features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s/%d: feature %s is not finite", o.GeoCode, o.Year, FeatureNames()[i])
		}
	}
	return nil
}

// Table is an immutable set of observations. All methods are safe for
// concurrent use and never expose the internal slices.
type Table struct {
	rows  []Observation
	byGeo map[string][]int
	codes []string
	years []int
}

// NewTable copies rows and indexes them by geo code, keeping dataset order.
func NewTable(rows []Observation) *Table {
	t := &Table{
		rows:  append([]Observation(nil), rows...),
		byGeo: make(map[string][]int),
	}
	yearSet := make(map[int]struct{})
	for i, row := range t.rows {
		if _, ok := t.byGeo[row.GeoCode]; !ok {
			t.codes = append(t.codes, row.GeoCode)
		}
		t.byGeo[row.GeoCode] = append(t.byGeo[row.GeoCode], i)
		yearSet[row.Year] = struct{}{}
	}
	for y := range yearSet {
		t.years = append(t.years, y)
	}
	sort.Ints(t.years)
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns a copy of every row.
func (t *Table) Rows() []Observation {
	return append([]Observation(nil), t.rows...)
}

// Years returns the distinct years, ascending.
func (t *Table) Years() []int {
	return append([]int(nil), t.years...)
}

// GeoCodes returns the distinct geo codes in first-seen order.
func (t *Table) GeoCodes() []string {
	return append([]string(nil), t.codes...)
}

// ByGeoCode returns every row whose geo code matches exactly.
func (t *Table) ByGeoCode(code string) []Observation {
	idx := t.byGeo[code]
	out := make([]Observation, 0, len(idx))
	for _, i := range idx {
		out = append(out, t.rows[i])
	}
	return out
}

// Select narrows the table to (code, year). The geo code is checked first so
// callers can tell an unknown location from a missing year.
func (t *Table) Select(code string, year int) ([]Observation, error) {
	idx, ok := t.byGeo[code]
	if !ok || len(idx) == 0 {
		return nil, ErrUnknownLocation
	}
	var out []Observation
	for _, i := range idx {
		if t.rows[i].Year == year {
			out = append(out, t.rows[i])
		}
	}
	if len(out) == 0 {
		return nil, ErrNoDataForYear
	}
	return out, nil
}

// ThematicValue is the value of one column for one geo code.
type ThematicValue struct {
	GeoCode string  `json:"geo_code"`
	Value   float64 `json:"value"`
}

// Values returns the column values for a year, one entry per matching row in
// dataset order. Rows without a value for the column are skipped.
func (t *Table) Values(year int, key string) ([]ThematicValue, error) {
	col, ok := LookupColumn(key)
	if !ok {
		return nil, fmt.Errorf("unknown column %q", key)
	}
	out := make([]ThematicValue, 0)
	for _, row := range t.rows {
		if row.Year != year {
			continue
		}
		v, ok := row.Value(col.Key)
		if !ok {
			continue
		}
		out = append(out, ThematicValue{GeoCode: row.GeoCode, Value: v})
	}
	return out, nil
}
