// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

// Package catalog defines the product catalog row model and the sources that
// supply rows for index builds: a flat CSV file or a DuckDB products table.
package catalog

import (
	"context"
	"errors"
	"strings"
)

// Row is one catalog item. Rows are immutable once loaded; the index build
// relies on the row order a Source returns being stable across calls.
type Row struct {
	// SKUID is the unique, stable item identifier.
	SKUID string `json:"sku_id" validate:"required"`

	Title string `json:"title" validate:"required"`
	Brand string `json:"brand"`

	// ImagePath is the product shot location, resolvable relative to the
	// source (CSV directory or DB working directory) or absolute.
	ImagePath string `json:"image_path" validate:"required"`
}

// Text returns the text-embedding input for the row: "brand title" trimmed.
func (r Row) Text() string {
	return strings.TrimSpace(r.Brand + " " + r.Title)
}

// Source supplies catalog rows for an index build.
type Source interface {
	// Rows returns all catalog rows in a stable order.
	Rows(ctx context.Context) ([]Row, error)

	// Dir returns the directory relative image paths resolve against.
	Dir() string
}

// ErrSourceNotFound indicates the configured catalog source does not exist.
var ErrSourceNotFound = errors.New("catalog source not found")
