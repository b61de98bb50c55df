// Package db reads the joined commune dataset out of a GeoPackage file. A
// GeoPackage is an SQLite database, so it is opened with the sqlite3 driver
// in read-only mode.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"droughtdash/dataset"
)

// Options selects the table and columns to read. Empty fields take the
// defaults of DefaultOptions.
type Options struct {
	Table       string
	GeoColumn   string
	YearColumn  string
	LabelColumn string
}

// DefaultOptions matches the export of the joining notebook.
func DefaultOptions() Options {
	return Options{
		GeoColumn:   "codgeo",
		YearColumn:  "year",
		LabelColumn: dataset.ColumnDry,
	}
}

// GeoPackage is an open, read-only GeoPackage.
type GeoPackage struct {
	db   *sql.DB
	path string
}

// fileDSN builds an SQLite URI for path. The path is escaped so '?', '#' and
// '%' in file or directory names are not read as URI syntax.
func fileDSN(path, query string) string {
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?" + query
}

// OpenGeoPackage opens path read-only and checks it carries the GeoPackage
// contents table.
func OpenGeoPackage(path string) (*GeoPackage, error) {
	database, err := sql.Open("sqlite3", fileDSN(path, "mode=ro&_busy_timeout=5000"))
	if err != nil {
		return nil, fmt.Errorf("open geopackage: %w", err)
	}
	gp := &GeoPackage{db: database, path: path}
	var name string
	err = database.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'gpkg_contents'`).Scan(&name)
	if err != nil {
		database.Close()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s is not a geopackage: gpkg_contents missing", path)
		}
		return nil, fmt.Errorf("open geopackage %s: %w", path, err)
	}
	return gp, nil
}

// Close releases the database handle.
func (g *GeoPackage) Close() error {
	return g.db.Close()
}

// FeatureTables lists the feature tables declared in gpkg_contents.
func (g *GeoPackage) FeatureTables(ctx context.Context) ([]string, error) {
	rows, err := g.db.QueryContext(ctx, `
        SELECT table_name
        FROM gpkg_contents
        WHERE data_type = 'features'
        ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// LoadTable reads every observation. The geo code is read as text so INSEE
// codes keep their leading zeros. A NULL or non-finite feature and a NULL
// year fail the load; a NULL or absent label leaves the row unlabeled.
func (g *GeoPackage) LoadTable(ctx context.Context, opts Options) (*dataset.Table, error) {
	opts = withDefaults(opts)
	if opts.Table == "" {
		tables, err := g.FeatureTables(ctx)
		if err != nil {
			return nil, fmt.Errorf("list feature tables: %w", err)
		}
		if len(tables) == 0 {
			return nil, fmt.Errorf("%s declares no feature table", g.path)
		}
		opts.Table = tables[0]
	}

	hasLabel, err := g.hasColumn(ctx, opts.Table, opts.LabelColumn)
	if err != nil {
		return nil, err
	}

	columns := []string{
		"CAST(" + quoteIdent(opts.GeoColumn) + " AS TEXT)",
		quoteIdent(opts.YearColumn),
	}
	for _, name := range dataset.FeatureNames() {
		columns = append(columns, quoteIdent(name))
	}
	if hasLabel {
		columns = append(columns, quoteIdent(opts.LabelColumn))
	}
	query := "SELECT " + strings.Join(columns, ", ") + " FROM " + quoteIdent(opts.Table)

	rows, err := g.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", opts.Table, err)
	}
	defer rows.Close()

	var observations []dataset.Observation
	line := 0
	for rows.Next() {
		line++
		var (
			geo      sql.NullString
			year     sql.NullInt64
			features [dataset.FeatureCount]sql.NullFloat64
			label    sql.NullInt64
		)
		dest := []any{&geo, &year}
		for i := range features {
			dest = append(dest, &features[i])
		}
		if hasLabel {
			dest = append(dest, &label)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		if !geo.Valid || !year.Valid {
			return nil, fmt.Errorf("row %d: geo code or year is NULL", line)
		}
		obs := dataset.Observation{
			GeoCode:  geo.String,
			Year:     int(year.Int64),
			Label:    int(label.Int64),
			HasLabel: label.Valid,
		}
		for i, f := range features {
			if !f.Valid {
				return nil, fmt.Errorf("row %d (%s/%d): %s is NULL", line, obs.GeoCode, obs.Year, dataset.FeatureNames()[i])
			}
			obs.Features[i] = f.Float64
		}
		if err := obs.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return dataset.NewTable(observations), nil
}

func (g *GeoPackage) hasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := g.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", table, err)
	}
	defer rows.Close()

	found := false
	seen := false
	for rows.Next() {
		seen = true
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		return false, err
	}
	if !seen {
		return false, fmt.Errorf("table %q not found", table)
	}
	return found, nil
}

// LoadFile opens path, loads the table and closes the file again.
func LoadFile(ctx context.Context, path string, opts Options) (*dataset.Table, error) {
	gp, err := OpenGeoPackage(path)
	if err != nil {
		return nil, err
	}
	defer gp.Close()
	return gp.LoadTable(ctx, opts)
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.GeoColumn == "" {
		opts.GeoColumn = def.GeoColumn
	}
	if opts.YearColumn == "" {
		opts.YearColumn = def.YearColumn
	}
	if opts.LabelColumn == "" {
		opts.LabelColumn = def.LabelColumn
	}
	return opts
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
