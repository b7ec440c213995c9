// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

package pipeline

import "errors"

var (
	// ErrDetection indicates the object detection backend failed.
	ErrDetection = errors.New("object detection failed")

	// ErrEncoding indicates the embedding backend failed.
	ErrEncoding = errors.New("embedding failed")

	// ErrBadImage indicates the upload could not be decoded as an image.
	ErrBadImage = errors.New("upload is not a decodable image")
)
