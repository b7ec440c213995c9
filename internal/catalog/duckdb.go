// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2"
)

const productsSchema = `
CREATE TABLE IF NOT EXISTS products (
    sku_id     VARCHAR PRIMARY KEY,
    title      VARCHAR NOT NULL,
    brand      VARCHAR NOT NULL,
    image_path VARCHAR NOT NULL
)`

// DBSource reads catalog rows from a DuckDB products table. Relative image
// paths resolve against the database file's directory.
type DBSource struct {
	db   *sql.DB
	path string
}

// NewDBSource opens a DuckDB-backed source. Returns ErrSourceNotFound if the
// database file does not exist.
func NewDBSource(path string) (*DBSource, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database %s: %w", path, err)
	}
	return &DBSource{db: db, path: path}, nil
}

// Dir returns the directory containing the database file.
func (s *DBSource) Dir() string {
	return filepath.Dir(s.path)
}

// Close releases the underlying database handle.
func (s *DBSource) Close() error {
	return s.db.Close()
}

// Rows returns all products ordered by sku_id.
func (s *DBSource) Rows(ctx context.Context) ([]Row, error) {
	query := `SELECT sku_id, title, brand, image_path FROM products ORDER BY sku_id`
	rs, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rs.Close()

	var rows []Row
	for rs.Next() {
		var r Row
		if err := rs.Scan(&r.SKUID, &r.Title, &r.Brand, &r.ImagePath); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		rows = append(rows, r)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	return rows, nil
}

// EnsureSchema creates the products table if it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, productsSchema); err != nil {
		return fmt.Errorf("failed to create products table: %w", err)
	}
	return nil
}

// ImportCSV seeds a DuckDB products table from a catalog CSV file, replacing
// any rows with matching sku_id values.
func ImportCSV(ctx context.Context, dbPath, csvPath string) (int, error) {
	src, err := NewCSVSource(csvPath)
	if err != nil {
		return 0, err
	}
	rows, err := src.Rows(ctx)
	if err != nil {
		return 0, err
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open catalog database %s: %w", dbPath, err)
	}
	defer db.Close()

	if err := EnsureSchema(ctx, db); err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO products (sku_id, title, brand, image_path) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare product insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.SKUID, r.Title, r.Brand, r.ImagePath); err != nil {
			return 0, fmt.Errorf("failed to insert product %s: %w", r.SKUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit product import: %w", err)
	}

	return len(rows), nil
}
