// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

package vision

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"math"
	"testing"
)

func TestClipRect(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 80)

	tests := []struct {
		name   string
		box    image.Rectangle
		want   image.Rectangle
		wantOK bool
	}{
		{"inside", image.Rect(10, 10, 50, 50), image.Rect(10, 10, 50, 50), true},
		{"overhangs right and bottom", image.Rect(80, 60, 150, 120), image.Rect(80, 60, 100, 80), true},
		{"negative origin", image.Rect(-20, -10, 30, 30), image.Rect(0, 0, 30, 30), true},
		{"fully outside", image.Rect(200, 200, 300, 300), image.Rectangle{}, false},
		{"degenerate after clip", image.Rect(100, 0, 140, 40), image.Rectangle{}, false},
		{"zero area input", image.Rect(10, 10, 10, 40), image.Rectangle{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ClipRect(tt.box, bounds)
			if ok != tt.wantOK {
				t.Fatalf("ClipRect() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ClipRect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCropJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	data, err := CropJPEG(img, image.Rect(10, 10, 30, 30))
	if err != nil {
		t.Fatalf("CropJPEG() error = %v", err)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("crop is not valid JPEG: %v", err)
	}
	b := decoded.Bounds()
	if b.Dx() != 20 || b.Dy() != 20 {
		t.Errorf("crop size = %dx%d, want 20x20", b.Dx(), b.Dy())
	}
}

func TestNormalize(t *testing.T) {
	vec := Normalize([]float32{3, 4})
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(sum)-1) > 1e-6 {
		t.Errorf("Normalize() norm = %v, want 1", math.Sqrt(sum))
	}

	zero := Normalize([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("Normalize() of zero vector = %v, want unchanged", zero)
	}
}

func TestStubEncoderDeterministic(t *testing.T) {
	enc := &StubEncoder{Dim: 16}
	ctx := context.Background()

	a, err := enc.EmbedText(ctx, "Acme Red Shoe")
	if err != nil {
		t.Fatalf("EmbedText() error = %v", err)
	}
	b, err := enc.EmbedText(ctx, "Acme Red Shoe")
	if err != nil {
		t.Fatalf("EmbedText() error = %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("identical inputs produced different embeddings")
		}
	}

	c, err := enc.EmbedText(ctx, "Zenith Blue Hat")
	if err != nil {
		t.Fatalf("EmbedText() error = %v", err)
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different inputs produced identical embeddings")
	}
}

func TestStubDetector(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 100, 80)), nil); err != nil {
		t.Fatal(err)
	}

	det := &StubDetector{}
	instances, err := det.Detect(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(instances) != 1 {
		t.Fatalf("Detect() returned %d instances, want 1", len(instances))
	}
	if got, want := instances[0].Box, image.Rect(25, 20, 75, 60); got != want {
		t.Errorf("Detect() box = %v, want %v", got, want)
	}
}
