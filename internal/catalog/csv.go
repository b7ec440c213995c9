// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// requiredColumns are the CSV columns every catalog file must carry.
var requiredColumns = []string{"sku_id", "title", "brand", "image_path"}

// CSVSource reads catalog rows from a CSV file with a
// sku_id,title,brand,image_path header. Relative image paths resolve against
// the CSV file's directory.
type CSVSource struct {
	path string
}

// NewCSVSource creates a CSV-backed source. Returns ErrSourceNotFound if the
// file does not exist.
func NewCSVSource(path string) (*CSVSource, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
	}
	return &CSVSource{path: path}, nil
}

// Dir returns the directory containing the CSV file.
func (s *CSVSource) Dir() string {
	return filepath.Dir(s.path)
}

// Rows reads and returns all catalog rows in file order.
func (s *CSVSource) Rows(_ context.Context) ([]Row, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, s.path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("catalog CSV %s has no header: %w", s.path, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("catalog CSV %s missing required columns: %v", s.path, missing)
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog CSV %s: %w", s.path, err)
		}
		rows = append(rows, Row{
			SKUID:     record[cols["sku_id"]],
			Title:     record[cols["title"]],
			Brand:     record[cols["brand"]],
			ImagePath: record[cols["image_path"]],
		})
	}

	return rows, nil
}
