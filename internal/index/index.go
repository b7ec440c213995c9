// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

package index

import (
	"fmt"

	"github.com/tomtom215/pic2product/internal/catalog"
)

// Index is an immutable snapshot of the product catalog with parallel
// per-row image and text embeddings. Row i of every slice describes the
// same product.
type Index struct {
	rows    []catalog.Row
	imgEmbs [][]float32
	txtEmbs [][]float32
	dim     int
}

// New builds an Index after checking that the three arrays are parallel and
// every embedding has the same dimensionality.
func New(rows []catalog.Row, imgEmbs, txtEmbs [][]float32) (*Index, error) {
	n := len(rows)
	if len(imgEmbs) != n || len(txtEmbs) != n {
		return nil, fmt.Errorf("misaligned index: %d rows, %d image embeddings, %d text embeddings",
			n, len(imgEmbs), len(txtEmbs))
	}
	if n == 0 {
		return nil, ErrCatalogEmpty
	}

	dim := len(imgEmbs[0])
	for i := 0; i < n; i++ {
		if len(imgEmbs[i]) != dim || len(txtEmbs[i]) != dim {
			return nil, fmt.Errorf("inconsistent embedding dimension at row %d: img=%d txt=%d want=%d",
				i, len(imgEmbs[i]), len(txtEmbs[i]), dim)
		}
	}

	return &Index{rows: rows, imgEmbs: imgEmbs, txtEmbs: txtEmbs, dim: dim}, nil
}

// Size returns the number of indexed products.
func (ix *Index) Size() int {
	return len(ix.rows)
}

// Dim returns the embedding dimensionality.
func (ix *Index) Dim() int {
	return ix.dim
}

// Row returns the catalog row at position i.
func (ix *Index) Row(i int) catalog.Row {
	return ix.rows[i]
}

// Lookup returns the rows for the requested SKU identifiers, preserving
// request order, together with the identifiers that are not indexed.
func (ix *Index) Lookup(skuIDs []string) (items []catalog.Row, missing []string) {
	bySKU := make(map[string]int, len(ix.rows))
	for i, r := range ix.rows {
		bySKU[r.SKUID] = i
	}
	for _, id := range skuIDs {
		if i, ok := bySKU[id]; ok {
			items = append(items, ix.rows[i])
		} else {
			missing = append(missing, id)
		}
	}
	return items, missing
}
