// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

// Package metrics defines the Prometheus instrumentation for the service.
// All collectors are registered with the default registry at package load.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts API requests by method, route and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pic2product_http_requests_total",
			Help: "Total HTTP requests processed, by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes API request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pic2product_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds, by method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// DetectionsTotal counts detected object instances per processed photo.
	DetectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pic2product_detections_total",
			Help: "Total object instances detected across all recommendation requests",
		},
	)

	// EncodeDuration observes embedding backend latency by kind (image, text).
	EncodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pic2product_encode_duration_seconds",
			Help:    "Embedding backend latency in seconds, by input kind",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"kind"},
	)

	// IndexSize reports the number of products in the live catalog index.
	IndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pic2product_index_size",
			Help: "Number of products in the live catalog index",
		},
	)

	// IndexBuildDuration observes full catalog index build time.
	IndexBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pic2product_index_build_duration_seconds",
			Help:    "Catalog index build time in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	// IndexRowsSkipped counts catalog rows dropped during a build.
	IndexRowsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pic2product_index_rows_skipped_total",
			Help: "Catalog rows skipped during index builds due to missing images or encode failures",
		},
	)

	// CacheHits counts index loads served from the embedding cache.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pic2product_cache_hits_total",
			Help: "Catalog index loads served from the embedding cache",
		},
	)

	// CacheMisses counts cache loads that fell back to a rebuild.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pic2product_cache_misses_total",
			Help: "Catalog cache loads that were absent or corrupt and fell back to a rebuild",
		},
	)
)
