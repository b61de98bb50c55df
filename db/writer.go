package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"droughtdash/dataset"
)

// WriteGeoPackage creates a minimal GeoPackage at path holding observations
// in table. Geometries are not written; the table is registered in
// gpkg_contents as an attribute-only feature table.
func WriteGeoPackage(ctx context.Context, path, table string, observations []dataset.Observation) error {
	database, err := sql.Open("sqlite3", fileDSN(path, "mode=rwc"))
	if err != nil {
		return err
	}
	defer database.Close()

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	columns := []string{"fid INTEGER PRIMARY KEY AUTOINCREMENT", "codgeo TEXT NOT NULL", "year INTEGER NOT NULL"}
	for _, name := range dataset.FeatureNames() {
		columns = append(columns, quoteIdent(name)+" REAL")
	}
	columns = append(columns, quoteIdent(dataset.ColumnDry)+" INTEGER")

	schema := []string{
		`CREATE TABLE IF NOT EXISTS gpkg_contents (
            table_name TEXT NOT NULL PRIMARY KEY,
            data_type TEXT NOT NULL,
            identifier TEXT UNIQUE,
            description TEXT DEFAULT '',
            last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
            min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
            srs_id INTEGER
        )`,
		"CREATE TABLE " + quoteIdent(table) + " (" + strings.Join(columns, ", ") + ")",
	}
	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gpkg_contents (table_name, data_type, identifier) VALUES (?, 'features', ?)`,
		table, table); err != nil {
		return fmt.Errorf("register %s: %w", table, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", dataset.FeatureCount+3), ", ")
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+quoteIdent(table)+
		" (codgeo, year, "+quotedFeatureList()+", "+quoteIdent(dataset.ColumnDry)+") VALUES ("+placeholders+")")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, obs := range observations {
		args := []any{obs.GeoCode, obs.Year}
		for _, v := range obs.Features {
			args = append(args, v)
		}
		if obs.HasLabel {
			args = append(args, obs.Label)
		} else {
			args = append(args, nil)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %s/%d: %w", obs.GeoCode, obs.Year, err)
		}
	}
	return tx.Commit()
}

func quotedFeatureList() string {
	names := dataset.FeatureNames()
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quoteIdent(name)
	}
	return strings.Join(quoted, ", ")
}
