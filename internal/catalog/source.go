// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Source backend types.
const (
	SourceTypeCSV    = "csv"
	SourceTypeDuckDB = "duckdb"
)

// NewSource returns a source for the configured backend. The backing file is
// resolved lazily on first use, so the service can start before a catalog
// exists and pick it up on the next rebuild.
func NewSource(sourceType, path string) (Source, error) {
	switch sourceType {
	case SourceTypeCSV, SourceTypeDuckDB:
		return &lazySource{sourceType: sourceType, path: path}, nil
	default:
		return nil, fmt.Errorf("unknown catalog source type %q", sourceType)
	}
}

// CheckSource verifies the backing file exists. Startup tolerates a missing
// source until the first build, but a caller repointing a live manager must
// reject an unresolvable path up front.
func CheckSource(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, path)
	}
	return nil
}

type lazySource struct {
	sourceType string
	path       string

	mu    sync.Mutex
	inner Source
}

func (s *lazySource) resolve() (Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inner != nil {
		return s.inner, nil
	}

	var (
		src Source
		err error
	)
	switch s.sourceType {
	case SourceTypeDuckDB:
		src, err = NewDBSource(s.path)
	default:
		src, err = NewCSVSource(s.path)
	}
	if err != nil {
		return nil, err
	}
	s.inner = src
	return src, nil
}

func (s *lazySource) Rows(ctx context.Context) ([]Row, error) {
	src, err := s.resolve()
	if err != nil {
		return nil, err
	}
	return src.Rows(ctx)
}

func (s *lazySource) Dir() string {
	return filepath.Dir(s.path)
}
