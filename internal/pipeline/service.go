// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

// Package pipeline runs the photo-to-recommendation flow: persist the
// upload, detect object instances, embed each crop and rank catalog
// products against it.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tomtom215/pic2product/internal/config"
	"github.com/tomtom215/pic2product/internal/index"
	"github.com/tomtom215/pic2product/internal/logging"
	"github.com/tomtom215/pic2product/internal/metrics"
	"github.com/tomtom215/pic2product/internal/vision"
)

// Options tunes a single recommendation request. Nil fields fall back to
// the configured defaults; an explicit TopK of zero returns no matches.
type Options struct {
	TopK      *int
	AlphaImg  *float64
	ReturnVis bool
}

// ProductMatch is one recommended catalog product.
type ProductMatch struct {
	SKUID    string  `json:"sku_id"`
	Title    string  `json:"title"`
	Brand    string  `json:"brand"`
	ImageURL string  `json:"image_url"`
	Score    float64 `json:"score"`
}

// InstanceResult is one detected object with its product recommendations.
type InstanceResult struct {
	Bbox    [4]int         `json:"bbox"`
	Class   string         `json:"class"`
	DetConf float64        `json:"det_conf"`
	TopK    []ProductMatch `json:"top_k"`
	Top1    *ProductMatch  `json:"top1"`
}

// Result is the outcome of one recommendation request.
type Result struct {
	ImageURL  string           `json:"image_url"`
	VisURL    string           `json:"vis_url,omitempty"`
	Instances []InstanceResult `json:"instances"`
}

// Service wires the model gateways and catalog index into the
// recommendation flow.
type Service struct {
	detector vision.Detector
	encoder  vision.Encoder
	manager  *index.Manager
	runsDir  string
	defaults config.RecommendConfig
}

// NewService creates the recommendation service. The runs directory and its
// uploads subdirectory are created if needed.
func NewService(detector vision.Detector, encoder vision.Encoder, manager *index.Manager,
	runsDir string, defaults config.RecommendConfig) (*Service, error) {
	if err := os.MkdirAll(filepath.Join(runsDir, "uploads"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &Service{
		detector: detector,
		encoder:  encoder,
		manager:  manager,
		runsDir:  runsDir,
		defaults: defaults,
	}, nil
}

// Ready reports whether the catalog index is live.
func (s *Service) Ready() bool {
	return s.manager.Ready()
}

// Recommend persists the upload, detects object instances and ranks catalog
// products for each one. The upload is written to disk before anything can
// fail, so the artifact survives even when the request does not.
func (s *Service) Recommend(ctx context.Context, filename string, imageData []byte, opts Options) (*Result, error) {
	// The upload is persisted before anything else, so a failed request
	// still leaves its artifact behind for inspection.
	savedName, err := s.saveUpload(filename, imageData)
	if err != nil {
		return nil, err
	}
	result := &Result{
		ImageURL:  "/runs/uploads/" + savedName,
		Instances: []InstanceResult{},
	}

	// A single index snapshot serves the whole request, so every instance
	// scores against the same catalog even if a rebuild lands mid-flight.
	ix, err := s.manager.Current()
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}

	instances, err := s.detector.Detect(ctx, imageData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetection, err)
	}
	metrics.DetectionsTotal.Add(float64(len(instances)))

	topK := s.defaults.DefaultTopK
	if opts.TopK != nil {
		topK = *opts.TopK
	}
	if topK > s.defaults.MaxTopK {
		topK = s.defaults.MaxTopK
	}
	alpha := s.defaults.DefaultAlphaImg
	if opts.AlphaImg != nil {
		alpha = *opts.AlphaImg
	}

	log := logging.Ctx(ctx)
	bounds := img.Bounds()
	for _, inst := range instances {
		box, ok := vision.ClipRect(inst.Box, bounds)
		if !ok {
			log.Debug().Str("class", inst.Class).
				Msg("Dropping detection with degenerate box")
			continue
		}

		crop, err := vision.CropJPEG(img, box)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		query, err := s.encoder.EmbedImage(ctx, crop)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}

		matches := ix.TopK(query, topK, alpha)
		ir := InstanceResult{
			Bbox:    [4]int{box.Min.X, box.Min.Y, box.Max.X, box.Max.Y},
			Class:   inst.Class,
			DetConf: inst.Confidence,
			TopK:    make([]ProductMatch, 0, len(matches)),
		}
		for _, m := range matches {
			row := ix.Row(m.Row)
			ir.TopK = append(ir.TopK, ProductMatch{
				SKUID:    row.SKUID,
				Title:    row.Title,
				Brand:    row.Brand,
				ImageURL: row.ImagePath,
				Score:    m.Score,
			})
		}
		if len(ir.TopK) > 0 {
			ir.Top1 = &ir.TopK[0]
		}
		result.Instances = append(result.Instances, ir)
	}

	if opts.ReturnVis && len(result.Instances) > 0 {
		visName, err := s.renderVis(savedName, img, result.Instances)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to render annotated image")
		} else {
			result.VisURL = "/runs/" + visName
		}
	}

	return result, nil
}

// saveUpload writes the raw upload under runs/uploads with a millisecond
// timestamp prefix and returns the stored file name.
func (s *Service) saveUpload(filename string, data []byte) (string, error) {
	name := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), sanitizeFilename(filename))
	path := filepath.Join(s.runsDir, "uploads", name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to persist upload: %w", err)
	}
	return name, nil
}

// sanitizeFilename strips path components and characters that do not belong
// in a stored file name.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 || strings.Trim(b.String(), "._") == "" {
		return "upload.jpg"
	}
	return b.String()
}
