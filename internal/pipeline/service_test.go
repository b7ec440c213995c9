// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomtom215/pic2product/internal/catalog"
	"github.com/tomtom215/pic2product/internal/config"
	"github.com/tomtom215/pic2product/internal/index"
	"github.com/tomtom215/pic2product/internal/vision"
)

// memSource serves catalog rows whose image files live in dir.
type memSource struct {
	dir  string
	rows []catalog.Row
}

func (s *memSource) Rows(context.Context) ([]catalog.Row, error) { return s.rows, nil }
func (s *memSource) Dir() string                                 { return s.dir }

// routedEncoder returns a fixed embedding per catalog image file and a fixed
// embedding for every query crop, so tests control similarity exactly.
type routedEncoder struct {
	byFile map[string][]float32
	query  []float32
	text   []float32
	err    error
}

func (e *routedEncoder) EmbedImage(context.Context, []byte) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.query, nil
}

func (e *routedEncoder) EmbedImageFile(_ context.Context, path string) ([]float32, error) {
	if v, ok := e.byFile[filepath.Base(path)]; ok {
		return v, nil
	}
	return e.query, nil
}

func (e *routedEncoder) EmbedText(context.Context, string) ([]float32, error) {
	return e.text, nil
}

// fixedDetector returns the same instances for every image.
type fixedDetector struct {
	instances []vision.Instance
	err       error
}

func (d *fixedDetector) Detect(context.Context, []byte) ([]vision.Instance, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.instances, nil
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func defaults() config.RecommendConfig {
	return config.RecommendConfig{DefaultTopK: 3, MaxTopK: 50, DefaultAlphaImg: 0.7}
}

// builtManager returns a manager with SKU1 and SKU2 indexed. SKU1's image
// embedding matches the query exactly, SKU2's is orthogonal.
func builtManager(t *testing.T, enc *routedEncoder) *index.Manager {
	t.Helper()
	dir := t.TempDir()
	src := &memSource{dir: dir}
	for _, sku := range []string{"SKU1", "SKU2"} {
		name := sku + ".jpg"
		if err := os.WriteFile(filepath.Join(dir, name), []byte("jpg"), 0o644); err != nil {
			t.Fatal(err)
		}
		src.rows = append(src.rows, catalog.Row{
			SKUID: sku, Title: "Item " + sku, Brand: "Acme", ImagePath: name,
		})
	}

	enc.byFile = map[string][]float32{
		"SKU1.jpg": {1, 0},
		"SKU2.jpg": {0, 1},
	}

	cache, err := index.NewCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	m := index.NewManager(src, enc, cache)
	if _, err := m.Build(context.Background(), true); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return m
}

func newTestService(t *testing.T, det vision.Detector, enc *routedEncoder, m *index.Manager) (*Service, string) {
	t.Helper()
	runsDir := t.TempDir()
	svc, err := NewService(det, enc, m, runsDir, defaults())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc, runsDir
}

func TestRecommendEndToEnd(t *testing.T) {
	enc := &routedEncoder{query: []float32{1, 0}, text: []float32{0, 0}}
	m := builtManager(t, enc)
	det := &fixedDetector{instances: []vision.Instance{
		{Box: image.Rect(10, 10, 50, 50), Class: "shoe", Confidence: 0.93},
	}}
	svc, runsDir := newTestService(t, det, enc, m)

	alpha := 1.0
	topK := 2
	result, err := svc.Recommend(context.Background(), "photo.jpg", testJPEG(t, 100, 100),
		Options{TopK: &topK, AlphaImg: &alpha, ReturnVis: true})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	if len(result.Instances) != 1 {
		t.Fatalf("got %d instances, want 1", len(result.Instances))
	}
	inst := result.Instances[0]
	if inst.Class != "shoe" || inst.DetConf != 0.93 {
		t.Errorf("instance = %+v, want shoe/0.93", inst)
	}
	if inst.Bbox != [4]int{10, 10, 50, 50} {
		t.Errorf("bbox = %v, want [10 10 50 50]", inst.Bbox)
	}
	if len(inst.TopK) != 2 {
		t.Fatalf("got %d matches, want 2", len(inst.TopK))
	}
	if inst.Top1 == nil || inst.Top1.SKUID != "SKU1" {
		t.Fatalf("top1 = %+v, want SKU1", inst.Top1)
	}
	// Identical image embeddings with alpha=1 score 1 up to the norm epsilon.
	if inst.Top1.Score < 0.999 {
		t.Errorf("top1 score = %v, want ~1.0", inst.Top1.Score)
	}
	if inst.TopK[1].SKUID != "SKU2" || inst.TopK[1].Score > 0.001 {
		t.Errorf("second match = %+v, want SKU2 near 0", inst.TopK[1])
	}

	if !strings.HasPrefix(result.ImageURL, "/runs/uploads/") || !strings.HasSuffix(result.ImageURL, "_photo.jpg") {
		t.Errorf("image_url = %q, want /runs/uploads/<ts>_photo.jpg", result.ImageURL)
	}
	if !strings.HasPrefix(result.VisURL, "/runs/") || !strings.HasSuffix(result.VisURL, "_vis.jpg") {
		t.Errorf("vis_url = %q, want /runs/<stem>_vis.jpg", result.VisURL)
	}
	if _, err := os.Stat(filepath.Join(runsDir, strings.TrimPrefix(result.VisURL, "/runs/"))); err != nil {
		t.Errorf("annotated image not written: %v", err)
	}
}

func TestRecommendNoDetections(t *testing.T) {
	enc := &routedEncoder{query: []float32{1, 0}, text: []float32{0, 0}}
	m := builtManager(t, enc)
	svc, _ := newTestService(t, &fixedDetector{}, enc, m)

	result, err := svc.Recommend(context.Background(), "photo.jpg", testJPEG(t, 50, 50), Options{})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(result.Instances) != 0 {
		t.Errorf("got %d instances, want 0", len(result.Instances))
	}
	if result.ImageURL == "" {
		t.Error("image_url missing for zero-detection result")
	}
}

func TestRecommendExplicitZeroTopK(t *testing.T) {
	enc := &routedEncoder{query: []float32{1, 0}, text: []float32{0, 0}}
	m := builtManager(t, enc)
	det := &fixedDetector{instances: []vision.Instance{
		{Box: image.Rect(10, 10, 40, 40), Class: "shoe", Confidence: 0.9},
	}}
	svc, _ := newTestService(t, det, enc, m)

	// topk=0 asks for zero matches; it must not fall back to the default.
	topK := 0
	result, err := svc.Recommend(context.Background(), "photo.jpg", testJPEG(t, 50, 50),
		Options{TopK: &topK})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(result.Instances) != 1 {
		t.Fatalf("got %d instances, want 1", len(result.Instances))
	}
	inst := result.Instances[0]
	if len(inst.TopK) != 0 {
		t.Errorf("got %d matches, want 0", len(inst.TopK))
	}
	if inst.Top1 != nil {
		t.Errorf("top1 = %+v, want nil", inst.Top1)
	}
}

func TestRecommendCatalogNotReady(t *testing.T) {
	enc := &routedEncoder{query: []float32{1, 0}, text: []float32{0, 0}}
	cache, err := index.NewCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	m := index.NewManager(&memSource{dir: t.TempDir()}, enc, cache)
	svc, runsDir := newTestService(t, &fixedDetector{}, enc, m)

	_, err = svc.Recommend(context.Background(), "photo.jpg", testJPEG(t, 50, 50), Options{})
	if !errors.Is(err, index.ErrNotReady) {
		t.Fatalf("Recommend() error = %v, want ErrNotReady", err)
	}

	// The upload artifact survives the failed request.
	entries, err := os.ReadDir(filepath.Join(runsDir, "uploads"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d upload artifacts, want 1", len(entries))
	}
}

func TestRecommendDetectionFailure(t *testing.T) {
	enc := &routedEncoder{query: []float32{1, 0}, text: []float32{0, 0}}
	m := builtManager(t, enc)
	det := &fixedDetector{err: errors.New("backend down")}
	svc, runsDir := newTestService(t, det, enc, m)

	_, err := svc.Recommend(context.Background(), "photo.jpg", testJPEG(t, 50, 50), Options{})
	if !errors.Is(err, ErrDetection) {
		t.Fatalf("Recommend() error = %v, want ErrDetection", err)
	}

	entries, _ := os.ReadDir(filepath.Join(runsDir, "uploads"))
	if len(entries) != 1 {
		t.Errorf("got %d upload artifacts, want 1", len(entries))
	}
}

func TestRecommendEncodingFailure(t *testing.T) {
	enc := &routedEncoder{query: []float32{1, 0}, text: []float32{0, 0}}
	m := builtManager(t, enc)
	enc.err = errors.New("backend down")
	det := &fixedDetector{instances: []vision.Instance{
		{Box: image.Rect(0, 0, 20, 20), Class: "shoe", Confidence: 0.9},
	}}
	svc, _ := newTestService(t, det, enc, m)

	_, err := svc.Recommend(context.Background(), "photo.jpg", testJPEG(t, 50, 50), Options{})
	if !errors.Is(err, ErrEncoding) {
		t.Fatalf("Recommend() error = %v, want ErrEncoding", err)
	}
}

func TestRecommendBadImage(t *testing.T) {
	enc := &routedEncoder{query: []float32{1, 0}, text: []float32{0, 0}}
	m := builtManager(t, enc)
	svc, _ := newTestService(t, &fixedDetector{}, enc, m)

	_, err := svc.Recommend(context.Background(), "junk.jpg", []byte("not an image"), Options{})
	if !errors.Is(err, ErrBadImage) {
		t.Fatalf("Recommend() error = %v, want ErrBadImage", err)
	}
}

func TestRecommendDropsDegenerateBoxes(t *testing.T) {
	enc := &routedEncoder{query: []float32{1, 0}, text: []float32{0, 0}}
	m := builtManager(t, enc)
	det := &fixedDetector{instances: []vision.Instance{
		{Box: image.Rect(200, 200, 300, 300), Class: "ghost", Confidence: 0.8},
		{Box: image.Rect(-10, -10, 30, 30), Class: "shoe", Confidence: 0.9},
	}}
	svc, _ := newTestService(t, det, enc, m)

	result, err := svc.Recommend(context.Background(), "photo.jpg", testJPEG(t, 50, 50), Options{})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(result.Instances) != 1 {
		t.Fatalf("got %d instances, want 1 after dropping out-of-frame box", len(result.Instances))
	}
	if result.Instances[0].Bbox != [4]int{0, 0, 30, 30} {
		t.Errorf("bbox = %v, want clipped [0 0 30 30]", result.Instances[0].Bbox)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "photo.jpg", "photo.jpg"},
		{"path traversal", "../../etc/passwd", "passwd"},
		{"windows path", `C:\tmp\photo.jpg`, "photo.jpg"},
		{"spaces and unicode", "my photo é.jpg", "my_photo__.jpg"},
		{"empty", "", "upload.jpg"},
		{"only dots", "..", "upload.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeFilename(tt.in); got != tt.want {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
