// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

package vision

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// StubDetector returns a single centered detection for any decodable image.
// It exists for local development without a detector backend.
type StubDetector struct {
	Class      string
	Confidence float64
}

// Detect decodes the image and reports one box covering its middle half.
func (d *StubDetector) Detect(_ context.Context, imageData []byte) ([]Instance, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("stub detector: undecodable image: %w", err)
	}

	class := d.Class
	if class == "" {
		class = "object"
	}
	conf := d.Confidence
	if conf == 0 {
		conf = 0.9
	}
	return []Instance{{
		Box:        image.Rect(cfg.Width/4, cfg.Height/4, cfg.Width*3/4, cfg.Height*3/4),
		Class:      class,
		Confidence: conf,
	}}, nil
}

// StubEncoder derives a deterministic unit-length embedding from the bytes of
// its input. Identical inputs embed identically, so similarity behaves
// sensibly for development and tests.
type StubEncoder struct {
	Dim int
}

func (e *StubEncoder) dim() int {
	if e.Dim <= 0 {
		return 64
	}
	return e.Dim
}

func (e *StubEncoder) embed(data []byte) []float32 {
	vec := make([]float32, e.dim())
	h := fnv.New64a()
	for i := range vec {
		h.Write(data)
		h.Write([]byte{byte(i)})
		vec[i] = float32(h.Sum64()%1000) - 500
	}
	return Normalize(vec)
}

// EmbedImage embeds an encoded image.
func (e *StubEncoder) EmbedImage(_ context.Context, imageData []byte) ([]float32, error) {
	return e.embed(imageData), nil
}

// EmbedImageFile embeds an image read from disk.
func (e *StubEncoder) EmbedImageFile(ctx context.Context, path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return e.EmbedImage(ctx, data)
}

// EmbedText embeds a text description.
func (e *StubEncoder) EmbedText(_ context.Context, text string) ([]float32, error) {
	return e.embed([]byte(text)), nil
}
