package dataset

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Matrix is a square correlation matrix over named columns.
type Matrix struct {
	Keys   []string    `json:"keys"`
	Labels []string    `json:"labels"`
	Values [][]float64 `json:"values"`
	// Rows counts the rows with a value in at least one column.
	Rows int `json:"rows"`
}

// At returns the coefficient for columns i and j.
func (m *Matrix) At(i, j int) float64 {
	return m.Values[i][j]
}

// Correlation computes the Pearson correlation of the given columns. Each
// coefficient uses every row that has a value for both of its columns, so an
// unlabeled row still counts between two climate columns. An empty key list
// means Columns(). Coefficients involving a constant column, or backed by
// fewer than two rows, are reported as 0.
func (t *Table) Correlation(keys []string) (*Matrix, error) {
	if len(keys) == 0 {
		keys = ColumnKeys()
	}
	cols := make([]Column, len(keys))
	for i, key := range keys {
		col, ok := LookupColumn(key)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", key)
		}
		cols[i] = col
	}

	// values[i][r] is only meaningful where present[i][r].
	values := make([][]float64, len(cols))
	present := make([][]bool, len(cols))
	for i := range cols {
		values[i] = make([]float64, len(t.rows))
		present[i] = make([]bool, len(t.rows))
	}
	rows := 0
	for r, row := range t.rows {
		seen := false
		for i, col := range cols {
			values[i][r], present[i][r] = row.Value(col.Key)
			seen = seen || present[i][r]
		}
		if seen {
			rows++
		}
	}
	if rows < 2 {
		return nil, errors.New("not enough rows for correlation")
	}

	m := &Matrix{
		Keys:   make([]string, len(cols)),
		Labels: make([]string, len(cols)),
		Values: make([][]float64, len(cols)),
		Rows:   rows,
	}
	for i, col := range cols {
		m.Keys[i] = col.Key
		m.Labels[i] = col.Label
		m.Values[i] = make([]float64, len(cols))
	}
	var x, y []float64
	for i := range cols {
		m.Values[i][i] = 1
		for j := i + 1; j < len(cols); j++ {
			x, y = x[:0], y[:0]
			for r := range t.rows {
				if present[i][r] && present[j][r] {
					x = append(x, values[i][r])
					y = append(y, values[j][r])
				}
			}
			coef := 0.0
			if len(x) >= 2 {
				coef = stat.Correlation(x, y, nil)
			}
			if math.IsNaN(coef) {
				// constant column
				coef = 0
			}
			m.Values[i][j] = coef
			m.Values[j][i] = coef
		}
	}
	return m, nil
}
