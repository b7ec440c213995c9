// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

// Command initdb seeds a DuckDB catalog database from a catalog CSV file,
// for deployments that serve the catalog from a database instead of the
// flat file.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/tomtom215/pic2product/internal/catalog"
	"github.com/tomtom215/pic2product/internal/logging"
)

func main() {
	csvPath := flag.String("csv", "catalog/catalog.csv", "catalog CSV file to import")
	dbPath := flag.String("db", "catalog/catalog.db", "DuckDB database file to create or update")
	flag.Parse()

	logging.Init(logging.DefaultConfig())

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
		logging.Fatal().Err(err).Msg("Failed to create database directory")
	}

	n, err := catalog.ImportCSV(context.Background(), *dbPath, *csvPath)
	if err != nil {
		logging.Fatal().Err(err).Str("csv", *csvPath).Msg("Catalog import failed")
	}

	logging.Info().Int("rows", n).Str("db", *dbPath).Msg("Catalog database seeded")
}
