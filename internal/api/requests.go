// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/tomtom215/pic2product/internal/validation"
)

// recommendRequest is the parsed form portion of a recommendation request.
// TopK is capped server-side and alpha_img is clamped to [0, 1] downstream,
// so only outright negative counts are rejected here. Nil pointers mean the
// field was absent; an explicit topk=0 asks for zero matches and is distinct
// from the default.
type recommendRequest struct {
	TopK      *int `validate:"omitempty,gte=0"`
	AlphaImg  *float64
	ReturnVis bool
}

// parseRecommendRequest reads the optional tuning fields from the multipart
// form. Absent fields keep their zero values and fall back to server
// defaults downstream.
func parseRecommendRequest(r *http.Request) (*recommendRequest, error) {
	req := &recommendRequest{ReturnVis: true}

	if v := r.FormValue("topk"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("topk must be an integer")
		}
		req.TopK = &n
	}
	if v := r.FormValue("alpha_img"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("alpha_img must be a number")
		}
		req.AlphaImg = &f
	}
	if v := r.FormValue("return_vis"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("return_vis must be a boolean")
		}
		req.ReturnVis = b
	}

	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return req, nil
}

// catalogQueryRequest asks for catalog rows by SKU identifier.
type catalogQueryRequest struct {
	SKUIDs []string `json:"sku_ids" validate:"required,min=1,max=500,dive,required,max=128"`
}

// rebuildRequest is the optional body of a rebuild call. CatalogSource, when
// set, repoints subsequent builds at a different catalog file.
type rebuildRequest struct {
	Force         bool   `json:"force"`
	CatalogSource string `json:"catalog_source"`
}
