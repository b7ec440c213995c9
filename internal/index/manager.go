// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/pic2product/internal/catalog"
	"github.com/tomtom215/pic2product/internal/logging"
	"github.com/tomtom215/pic2product/internal/metrics"
)

// Embedder produces catalog embeddings during index builds.
type Embedder interface {
	EmbedImageFile(ctx context.Context, path string) ([]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// BuildReport summarizes the outcome of a Build call.
type BuildReport struct {
	Status  string `json:"status"`
	Size    int    `json:"size"`
	Dim     int    `json:"dim"`
	Skipped int    `json:"skipped,omitempty"`
}

const (
	// StatusLoaded marks an index restored from the embedding cache.
	StatusLoaded = "loaded"
	// StatusBuilt marks an index freshly built from the catalog source.
	StatusBuilt = "success"
)

// Manager owns the live catalog index. Readers get a consistent snapshot via
// Current while builds assemble a replacement off to the side and swap it in
// atomically. At most one build runs at a time; readers are never blocked.
type Manager struct {
	source   catalog.Source
	embedder Embedder
	cache    *Cache

	current atomic.Pointer[Index]
	buildMu sync.Mutex
}

// NewManager creates a Manager with no index loaded.
func NewManager(source catalog.Source, embedder Embedder, cache *Cache) *Manager {
	return &Manager{source: source, embedder: embedder, cache: cache}
}

// SetSource replaces the catalog source used by subsequent builds.
func (m *Manager) SetSource(src catalog.Source) {
	m.buildMu.Lock()
	defer m.buildMu.Unlock()
	m.source = src
}

// Current returns the live index, or ErrNotReady before the first successful
// build or cache load.
func (m *Manager) Current() (*Index, error) {
	ix := m.current.Load()
	if ix == nil {
		return nil, ErrNotReady
	}
	return ix, nil
}

// Ready reports whether a catalog index is live.
func (m *Manager) Ready() bool {
	return m.current.Load() != nil
}

// Build makes an index live. Unless force is set it first tries the embedding
// cache; an absent or corrupt cache falls back to a full rebuild from the
// catalog source. Concurrent calls serialize.
func (m *Manager) Build(ctx context.Context, force bool) (*BuildReport, error) {
	m.buildMu.Lock()
	defer m.buildMu.Unlock()

	log := logging.Ctx(ctx)

	if !force {
		ix, err := m.cache.Load()
		if err == nil {
			m.publish(ix)
			metrics.CacheHits.Inc()
			log.Info().Int("size", ix.Size()).Int("dim", ix.Dim()).
				Msg("Catalog index restored from cache")
			return &BuildReport{Status: StatusLoaded, Size: ix.Size(), Dim: ix.Dim()}, nil
		}
		metrics.CacheMisses.Inc()
		log.Warn().Err(err).Msg("Catalog cache unusable, rebuilding from source")
	}

	start := time.Now()
	ix, skipped, err := m.buildFromSource(ctx)
	if err != nil {
		return nil, err
	}
	metrics.IndexBuildDuration.Observe(time.Since(start).Seconds())

	if err := m.cache.Save(ix); err != nil {
		log.Warn().Err(err).Msg("Failed to persist catalog index cache")
	}

	m.publish(ix)
	log.Info().Int("size", ix.Size()).Int("dim", ix.Dim()).Int("skipped", skipped).
		Dur("elapsed", time.Since(start)).Msg("Catalog index built")
	return &BuildReport{Status: StatusBuilt, Size: ix.Size(), Dim: ix.Dim(), Skipped: skipped}, nil
}

func (m *Manager) publish(ix *Index) {
	m.current.Store(ix)
	metrics.IndexSize.Set(float64(ix.Size()))
}

// buildFromSource embeds every catalog row, skipping rows whose image is
// missing or whose embedding fails.
func (m *Manager) buildFromSource(ctx context.Context) (*Index, int, error) {
	log := logging.Ctx(ctx)

	srcRows, err := m.source.Rows(ctx)
	if err != nil {
		return nil, 0, err
	}

	var (
		rows    []catalog.Row
		imgEmbs [][]float32
		txtEmbs [][]float32
		skipped int
	)
	for _, row := range srcRows {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		imgPath := row.ImagePath
		if !filepath.IsAbs(imgPath) {
			imgPath = filepath.Join(m.source.Dir(), imgPath)
		}
		if _, err := os.Stat(imgPath); err != nil {
			log.Warn().Str("sku_id", row.SKUID).Str("image_path", imgPath).
				Msg("Skipping catalog row with missing image")
			metrics.IndexRowsSkipped.Inc()
			skipped++
			continue
		}

		imgEmb, err := m.embedder.EmbedImageFile(ctx, imgPath)
		if err != nil {
			log.Warn().Err(err).Str("sku_id", row.SKUID).
				Msg("Skipping catalog row, image embedding failed")
			metrics.IndexRowsSkipped.Inc()
			skipped++
			continue
		}
		txtEmb, err := m.embedder.EmbedText(ctx, row.Text())
		if err != nil {
			log.Warn().Err(err).Str("sku_id", row.SKUID).
				Msg("Skipping catalog row, text embedding failed")
			metrics.IndexRowsSkipped.Inc()
			skipped++
			continue
		}

		rows = append(rows, row)
		imgEmbs = append(imgEmbs, normalize(imgEmb))
		txtEmbs = append(txtEmbs, normalize(txtEmb))
	}

	if len(rows) == 0 {
		return nil, skipped, fmt.Errorf("%w: %d rows skipped", ErrCatalogEmpty, skipped)
	}

	ix, err := New(rows, imgEmbs, txtEmbs)
	if err != nil {
		return nil, skipped, err
	}
	return ix, skipped, nil
}
