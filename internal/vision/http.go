// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/pic2product/internal/logging"
	"github.com/tomtom215/pic2product/internal/metrics"
)

// BackendConfig tunes the HTTP model gateways.
type BackendConfig struct {
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

func breakerSettings(name string, cfg BackendConfig) gobreaker.Settings {
	return gobreaker.Settings{
		Name:    name,
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("backend", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("Model backend circuit breaker state changed")
		},
	}
}

func postMultipart(ctx context.Context, client *http.Client, url string, data []byte) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return doRequest(client, req)
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return doRequest(client, req)
}

func doRequest(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read backend response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// detectionWire is the detector backend's response row.
type detectionWire struct {
	Box        [4]float64 `json:"box"`
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
}

// HTTPDetector calls an object detection backend over HTTP, guarded by a
// circuit breaker.
type HTTPDetector struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]Instance]
}

// NewHTTPDetector creates a detector gateway for the given base URL.
func NewHTTPDetector(baseURL string, cfg BackendConfig) *HTTPDetector {
	return &HTTPDetector{
		url:     baseURL + "/detect",
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[[]Instance](breakerSettings("detector", cfg)),
	}
}

// Detect posts the image to the backend and returns the detected instances.
func (d *HTTPDetector) Detect(ctx context.Context, imageData []byte) ([]Instance, error) {
	return d.breaker.Execute(func() ([]Instance, error) {
		body, err := postMultipart(ctx, d.client, d.url, imageData)
		if err != nil {
			return nil, fmt.Errorf("detector: %w", err)
		}

		var wire struct {
			Detections []detectionWire `json:"detections"`
		}
		if err := json.Unmarshal(body, &wire); err != nil {
			return nil, fmt.Errorf("detector returned malformed response: %w", err)
		}

		instances := make([]Instance, 0, len(wire.Detections))
		for _, det := range wire.Detections {
			instances = append(instances, Instance{
				Box: image.Rect(
					int(det.Box[0]), int(det.Box[1]),
					int(det.Box[2]), int(det.Box[3]),
				),
				Class:      det.Class,
				Confidence: det.Confidence,
			})
		}
		return instances, nil
	})
}

// HTTPEncoder calls an image/text embedding backend over HTTP, guarded by a
// circuit breaker. Returned embeddings are unit-normalized.
type HTTPEncoder struct {
	imageURL string
	textURL  string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[[]float32]
}

// NewHTTPEncoder creates an encoder gateway for the given base URL.
func NewHTTPEncoder(baseURL string, cfg BackendConfig) *HTTPEncoder {
	return &HTTPEncoder{
		imageURL: baseURL + "/embed/image",
		textURL:  baseURL + "/embed/text",
		client:   &http.Client{Timeout: cfg.Timeout},
		breaker:  gobreaker.NewCircuitBreaker[[]float32](breakerSettings("encoder", cfg)),
	}
}

// EmbedImage embeds an encoded image.
func (e *HTTPEncoder) EmbedImage(ctx context.Context, imageData []byte) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.EncodeDuration.WithLabelValues("image").Observe(time.Since(start).Seconds()) }()

	return e.breaker.Execute(func() ([]float32, error) {
		body, err := postMultipart(ctx, e.client, e.imageURL, imageData)
		if err != nil {
			return nil, fmt.Errorf("encoder: %w", err)
		}
		return decodeEmbedding(body)
	})
}

// EmbedImageFile embeds an image read from disk.
func (e *HTTPEncoder) EmbedImageFile(ctx context.Context, path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", filepath.Base(path), err)
	}
	return e.EmbedImage(ctx, data)
}

// EmbedText embeds a text description.
func (e *HTTPEncoder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.EncodeDuration.WithLabelValues("text").Observe(time.Since(start).Seconds()) }()

	return e.breaker.Execute(func() ([]float32, error) {
		body, err := postJSON(ctx, e.client, e.textURL, map[string]string{"text": text})
		if err != nil {
			return nil, fmt.Errorf("encoder: %w", err)
		}
		return decodeEmbedding(body)
	})
}

func decodeEmbedding(body []byte) ([]float32, error) {
	var wire struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("encoder returned malformed response: %w", err)
	}
	if len(wire.Embedding) == 0 {
		return nil, fmt.Errorf("encoder returned empty embedding")
	}
	return Normalize(wire.Embedding), nil
}
