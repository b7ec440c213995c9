// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

// Package api exposes the HTTP surface of the service.
package api

import (
	"errors"
	"io"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/pic2product/internal/catalog"
	"github.com/tomtom215/pic2product/internal/index"
	"github.com/tomtom215/pic2product/internal/logging"
	"github.com/tomtom215/pic2product/internal/pipeline"
	"github.com/tomtom215/pic2product/internal/validation"
)

// maxUploadBytes caps a single photo upload.
const maxUploadBytes = 20 << 20

// Handler serves the API routes.
type Handler struct {
	service   *pipeline.Service
	manager   *index.Manager
	newSource func(path string) (catalog.Source, error)
}

// NewHandler creates the API handler. newSource builds a catalog source from
// a path supplied in a rebuild request; pass nil to disallow source overrides.
func NewHandler(service *pipeline.Service, manager *index.Manager,
	newSource func(path string) (catalog.Source, error)) *Handler {
	return &Handler{service: service, manager: manager, newSource: newSource}
}

// healthData is the health endpoint payload.
type healthData struct {
	OK           bool `json:"ok"`
	ModelsReady  bool `json:"models_ready"`
	CatalogReady bool `json:"catalog_ready"`
}

// Health reports liveness plus model and catalog readiness. It always
// returns 200 so orchestrators can distinguish "up but warming" from down.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, healthData{
		OK:           true,
		ModelsReady:  true,
		CatalogReady: h.manager.Ready(),
	})
}

// Recommend accepts a multipart photo upload and returns ranked product
// recommendations for every detected object instance.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "expected multipart form with a file field")
		return
	}

	req, err := parseRecommendRequest(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "image field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "failed to read upload")
		return
	}

	result, err := h.service.Recommend(r.Context(), header.Filename, data, pipeline.Options{
		TopK:      req.TopK,
		AlphaImg:  req.AlphaImg,
		ReturnVis: req.ReturnVis,
	})
	if err != nil {
		h.respondPipelineError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, result)
}

func (h *Handler) respondPipelineError(w http.ResponseWriter, r *http.Request, err error) {
	log := logging.Ctx(r.Context())
	switch {
	case errors.Is(err, index.ErrNotReady):
		respondError(w, r, http.StatusBadRequest, CodeCatalogNotReady,
			"catalog index is not built yet, POST /catalog/rebuild or wait for warmup")
	case errors.Is(err, pipeline.ErrBadImage):
		respondError(w, r, http.StatusBadRequest, CodeBadImage, "upload is not a decodable image")
	case errors.Is(err, pipeline.ErrDetection):
		log.Error().Err(err).Msg("Detection backend failed")
		respondError(w, r, http.StatusBadGateway, CodeDetectionFailure, "object detection backend failed")
	case errors.Is(err, pipeline.ErrEncoding):
		log.Error().Err(err).Msg("Embedding backend failed")
		respondError(w, r, http.StatusBadGateway, CodeEncodingFailure, "embedding backend failed")
	default:
		log.Error().Err(err).Msg("Recommendation request failed")
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

// CatalogRebuild rebuilds the index. The optional JSON body can force a
// rebuild past the cache and can point subsequent builds at a different
// catalog source.
func (h *Handler) CatalogRebuild(w http.ResponseWriter, r *http.Request) {
	var req rebuildRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			respondError(w, r, http.StatusBadRequest, CodeValidation, "malformed JSON body")
			return
		}
	}

	if req.CatalogSource != "" {
		if h.newSource == nil {
			respondError(w, r, http.StatusBadRequest, CodeValidation, "catalog source overrides are not enabled")
			return
		}
		// The override must resolve before the manager is repointed, so a
		// bad path leaves the current source in place.
		if err := catalog.CheckSource(req.CatalogSource); err != nil {
			respondError(w, r, http.StatusNotFound, CodeCatalogSourceGone, "catalog source not found")
			return
		}
		src, err := h.newSource(req.CatalogSource)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, CodeValidation, err.Error())
			return
		}
		h.manager.SetSource(src)
	}

	report, err := h.manager.Build(r.Context(), req.Force)
	if err != nil {
		log := logging.Ctx(r.Context())
		switch {
		case errors.Is(err, catalog.ErrSourceNotFound):
			respondError(w, r, http.StatusNotFound, CodeCatalogSourceGone, "catalog source not found")
		case errors.Is(err, index.ErrCatalogEmpty):
			respondError(w, r, http.StatusInternalServerError, CodeCatalogEmpty,
				"catalog produced no usable rows")
		default:
			log.Error().Err(err).Msg("Catalog rebuild failed")
			respondError(w, r, http.StatusInternalServerError, CodeInternal, "catalog rebuild failed")
		}
		return
	}

	respondJSON(w, r, http.StatusOK, report)
}

// queryItem is one catalog row in a query response. The stored image path is
// exposed as image_url, matching the recommendation payload.
type queryItem struct {
	SKUID    string `json:"sku_id"`
	Title    string `json:"title"`
	Brand    string `json:"brand"`
	ImageURL string `json:"image_url"`
}

// catalogQueryData is the catalog query payload.
type catalogQueryData struct {
	Items   []queryItem `json:"items"`
	Missing []string    `json:"missing"`
}

// CatalogQuery returns the indexed rows for the requested SKU identifiers
// and lists the identifiers that are not in the index.
func (h *Handler) CatalogQuery(w http.ResponseWriter, r *http.Request) {
	var req catalogQueryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "malformed JSON body")
		return
	}
	if err := validation.Struct(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}

	ix, err := h.manager.Current()
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeCatalogNotReady,
			"catalog index is not built yet")
		return
	}

	rows, missing := ix.Lookup(req.SKUIDs)
	items := make([]queryItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, queryItem{
			SKUID:    row.SKUID,
			Title:    row.Title,
			Brand:    row.Brand,
			ImageURL: row.ImagePath,
		})
	}
	if missing == nil {
		missing = []string{}
	}
	respondJSON(w, r, http.StatusOK, catalogQueryData{Items: items, Missing: missing})
}
