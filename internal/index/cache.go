// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

package index

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/pic2product/internal/catalog"
)

const (
	embeddingsFile = "catalog_embeddings.bin"
	manifestFile   = "catalog_index.json"

	cacheMagic = "P2PEMB1\x00"
)

// cacheManifest is the JSON half of a cache pair. Its rows and sku_ids are
// parallel to the matrices in the binary half.
type cacheManifest struct {
	Rows    []catalog.Row `json:"rows"`
	SKUIDs  []string      `json:"sku_ids"`
	Dim     int           `json:"dim"`
	Size    int           `json:"size"`
	BuiltAt time.Time     `json:"built_at"`
}

// Cache persists an Index as an embeddings file plus a row manifest in a
// single directory.
type Cache struct {
	dir string
}

// NewCache creates a cache rooted at dir, creating the directory if needed.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Save writes the index to disk. Both halves are staged to temporary files
// and renamed into place, matrices before manifest, so readers never observe
// a manifest ahead of its matrices.
func (c *Cache) Save(ix *Index) error {
	if err := c.writeEmbeddings(ix); err != nil {
		return err
	}
	return c.writeManifest(ix)
}

func (c *Cache) writeEmbeddings(ix *Index) error {
	path := filepath.Join(c.dir, embeddingsFile)
	tmp, err := os.CreateTemp(c.dir, embeddingsFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to stage embeddings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if _, err := w.WriteString(cacheMagic); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write embeddings header: %w", err)
	}
	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], uint32(ix.dim))
	binary.LittleEndian.PutUint32(header[4:8], uint32(ix.Size()))
	if _, err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write embeddings header: %w", err)
	}

	for _, matrix := range [][][]float32{ix.imgEmbs, ix.txtEmbs} {
		for _, vec := range matrix {
			for _, v := range vec {
				var buf [4]byte
				binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
				if _, err := w.Write(buf[:]); err != nil {
					tmp.Close()
					return fmt.Errorf("failed to write embedding matrix: %w", err)
				}
			}
		}
	}

	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush embeddings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close embeddings file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to publish embeddings file: %w", err)
	}
	return nil
}

func (c *Cache) writeManifest(ix *Index) error {
	path := filepath.Join(c.dir, manifestFile)
	skuIDs := make([]string, len(ix.rows))
	for i, row := range ix.rows {
		skuIDs[i] = row.SKUID
	}
	data, err := json.Marshal(cacheManifest{
		Rows:    ix.rows,
		SKUIDs:  skuIDs,
		Dim:     ix.dim,
		Size:    ix.Size(),
		BuiltAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache manifest: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, manifestFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to stage cache manifest: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to publish cache manifest: %w", err)
	}
	return nil
}

// Load reads a cache pair back into an Index. Any missing, truncated, or
// internally inconsistent pair returns ErrCacheCorrupt so callers can fall
// back to a rebuild.
func (c *Cache) Load() (*Index, error) {
	manifest, err := c.readManifest()
	if err != nil {
		return nil, err
	}

	imgEmbs, txtEmbs, err := c.readEmbeddings(manifest.Dim, manifest.Size)
	if err != nil {
		return nil, err
	}

	ix, err := New(manifest.Rows, imgEmbs, txtEmbs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}
	return ix, nil
}

func (c *Cache) readManifest() (*cacheManifest, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("%w: manifest unreadable: %v", ErrCacheCorrupt, err)
	}
	var m cacheManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest malformed: %v", ErrCacheCorrupt, err)
	}
	if m.Size != len(m.Rows) || m.Size != len(m.SKUIDs) || m.Size <= 0 || m.Dim <= 0 {
		return nil, fmt.Errorf("%w: manifest declares size=%d dim=%d with %d rows and %d sku_ids",
			ErrCacheCorrupt, m.Size, m.Dim, len(m.Rows), len(m.SKUIDs))
	}
	for i, row := range m.Rows {
		if row.SKUID != m.SKUIDs[i] {
			return nil, fmt.Errorf("%w: manifest sku_ids out of step with rows at %d", ErrCacheCorrupt, i)
		}
	}
	return &m, nil
}

func (c *Cache) readEmbeddings(dim, size int) (imgEmbs, txtEmbs [][]float32, err error) {
	f, err := os.Open(filepath.Join(c.dir, embeddingsFile))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: embeddings unreadable: %v", ErrCacheCorrupt, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic := make([]byte, len(cacheMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != cacheMagic {
		return nil, nil, fmt.Errorf("%w: bad embeddings magic", ErrCacheCorrupt)
	}
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, nil, fmt.Errorf("%w: truncated embeddings header", ErrCacheCorrupt)
	}
	gotDim := int(binary.LittleEndian.Uint32(header[0:4]))
	gotSize := int(binary.LittleEndian.Uint32(header[4:8]))
	if gotDim != dim || gotSize != size {
		return nil, nil, fmt.Errorf("%w: embeddings declare dim=%d size=%d, manifest says dim=%d size=%d",
			ErrCacheCorrupt, gotDim, gotSize, dim, size)
	}

	readMatrix := func() ([][]float32, error) {
		matrix := make([][]float32, size)
		buf := make([]byte, dim*4)
		for i := 0; i < size; i++ {
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("%w: truncated embedding matrix at row %d", ErrCacheCorrupt, i)
			}
			vec := make([]float32, dim)
			for j := 0; j < dim; j++ {
				vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4 : j*4+4]))
			}
			matrix[i] = vec
		}
		return matrix, nil
	}

	if imgEmbs, err = readMatrix(); err != nil {
		return nil, nil, err
	}
	if txtEmbs, err = readMatrix(); err != nil {
		return nil, nil, err
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return nil, nil, fmt.Errorf("%w: trailing data in embeddings file", ErrCacheCorrupt)
	}
	return imgEmbs, txtEmbs, nil
}
