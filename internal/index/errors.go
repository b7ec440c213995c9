// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

package index

import "errors"

var (
	// ErrNotReady indicates no catalog index has been built or loaded yet.
	ErrNotReady = errors.New("catalog index not ready")

	// ErrCatalogEmpty indicates a build produced zero usable rows.
	ErrCatalogEmpty = errors.New("catalog has no usable rows")

	// ErrCacheCorrupt indicates a cache pair that is missing, partial, or
	// inconsistent with itself.
	ErrCacheCorrupt = errors.New("catalog cache corrupt")
)
