// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

package catalog

import (
	"context"
	"path/filepath"
	"testing"
)

func TestImportCSVRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping DuckDB test in short mode")
	}

	csvPath := writeTempCSV(t, "sku_id,title,brand,image_path\nSKU2,Blue Hat,Zenith,images/blue.jpg\nSKU1,Red Shoe,Acme,images/red.jpg\n")
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	ctx := context.Background()

	n, err := ImportCSV(ctx, dbPath, csvPath)
	if err != nil {
		t.Fatalf("ImportCSV() error = %v", err)
	}
	if n != 2 {
		t.Errorf("ImportCSV() imported %d rows, want 2", n)
	}

	readRows := func() []Row {
		t.Helper()
		src, err := NewDBSource(dbPath)
		if err != nil {
			t.Fatalf("NewDBSource() error = %v", err)
		}
		defer src.Close()
		rows, err := src.Rows(ctx)
		if err != nil {
			t.Fatalf("Rows() error = %v", err)
		}
		return rows
	}

	rows := readRows()
	if len(rows) != 2 {
		t.Fatalf("Rows() returned %d rows, want 2", len(rows))
	}
	// The source orders by sku_id regardless of CSV order.
	if rows[0].SKUID != "SKU1" || rows[1].SKUID != "SKU2" {
		t.Errorf("row order = %s, %s, want SKU1, SKU2", rows[0].SKUID, rows[1].SKUID)
	}
	if rows[0].Title != "Red Shoe" || rows[0].Brand != "Acme" || rows[0].ImagePath != "images/red.jpg" {
		t.Errorf("row = %+v, want Red Shoe/Acme/images/red.jpg", rows[0])
	}

	// Re-importing replaces rows with matching sku_id values.
	if _, err := ImportCSV(ctx, dbPath, csvPath); err != nil {
		t.Fatalf("ImportCSV() second run error = %v", err)
	}
	if rows = readRows(); len(rows) != 2 {
		t.Errorf("Rows() after re-import returned %d rows, want 2", len(rows))
	}
}
