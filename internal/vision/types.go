// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

// Package vision abstracts the object detection and embedding model
// backends and the image geometry helpers the pipeline needs.
package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"math"
)

// Instance is one detected object in a photo.
type Instance struct {
	Box        image.Rectangle
	Class      string
	Confidence float64
}

// Detector finds object instances in an encoded image.
type Detector interface {
	Detect(ctx context.Context, imageData []byte) ([]Instance, error)
}

// Encoder embeds images and text into a shared vector space.
type Encoder interface {
	EmbedImage(ctx context.Context, imageData []byte) ([]float32, error)
	EmbedImageFile(ctx context.Context, path string) ([]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ClipRect intersects r with bounds. The second return is false when the
// clipped box has no area.
func ClipRect(r, bounds image.Rectangle) (image.Rectangle, bool) {
	clipped := r.Intersect(bounds)
	if clipped.Dx() <= 0 || clipped.Dy() <= 0 {
		return image.Rectangle{}, false
	}
	return clipped, true
}

// CropJPEG extracts rect from img and re-encodes it as JPEG.
func CropJPEG(img image.Image, rect image.Rectangle) ([]byte, error) {
	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	si, ok := img.(subImager)
	if !ok {
		return nil, fmt.Errorf("image type %T does not support cropping", img)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, si.SubImage(rect), &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}
	return buf.Bytes(), nil
}

// Normalize scales vec to unit length in place and returns it. Near-zero
// vectors are returned unchanged.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm < 1e-8 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
