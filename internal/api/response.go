// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

package api

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/pic2product/internal/logging"
)

// APIResponse is the envelope every JSON endpoint returns.
type APIResponse struct {
	Status   string    `json:"status"`
	Data     any       `json:"data,omitempty"`
	Error    *APIError `json:"error,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// APIError carries a stable machine-readable code plus a human message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Metadata is attached to every response.
type Metadata struct {
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes returned by the API.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeBadImage          = "BAD_IMAGE"
	CodeCatalogNotReady   = "CATALOG_NOT_READY"
	CodeCatalogSourceGone = "CATALOG_SOURCE_NOT_FOUND"
	CodeCatalogEmpty      = "CATALOG_EMPTY"
	CodeDetectionFailure  = "DETECTION_FAILURE"
	CodeEncodingFailure   = "ENCODING_FAILURE"
	CodeInternal          = "INTERNAL_ERROR"
	CodeNotFound          = "NOT_FOUND"
)

func newMetadata(r *http.Request) *Metadata {
	return &Metadata{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: logging.RequestIDFromContext(r.Context()),
	}
}

// respondJSON writes a success envelope. Cacheable GET responses get a weak
// ETag so clients can revalidate cheaply.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	resp := APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: newMetadata(r),
	}

	body, err := json.Marshal(resp)
	if err != nil {
		log := logging.Ctx(r.Context())
		log.Error().Err(err).Msg("Failed to encode response")
		http.Error(w, `{"status":"error","error":{"code":"INTERNAL_ERROR","message":"encoding failed"}}`,
			http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if r.Method == http.MethodGet && status == http.StatusOK {
		w.Header().Set("ETag", weakETag(body))
	}
	w.WriteHeader(status)
	w.Write(body)
}

// respondError writes an error envelope with a stable code.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	resp := APIResponse{
		Status:   "error",
		Error:    &APIError{Code: code, Message: message},
		Metadata: newMetadata(r),
	}

	body, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}

func weakETag(body []byte) string {
	h := fnv.New64a()
	h.Write(body)
	return fmt.Sprintf(`W/"%x"`, h.Sum64())
}
