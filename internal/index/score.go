// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

package index

import (
	"math"
	"sort"
)

// normEpsilon guards cosine similarity against zero vectors.
const normEpsilon = 1e-8

// Match is one scored catalog row.
type Match struct {
	Row   int
	Score float64
}

// CosineSimilarity computes the cosine of the angle between a and b. Vectors
// of mismatched length or near-zero norm score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(na)*math.Sqrt(nb) + normEpsilon
	return dot / denom
}

// normalize scales vec to unit length in place. Near-zero vectors are left
// alone, CosineSimilarity's epsilon absorbs them.
func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm < normEpsilon {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// clampAlpha constrains the image weight to [0, 1].
func clampAlpha(alpha float64) float64 {
	if alpha < 0 {
		return 0
	}
	if alpha > 1 {
		return 1
	}
	return alpha
}

// TopK scores a query embedding against every indexed product and returns the
// k best matches. The fused score weights the image channel by alpha and the
// text channel by 1-alpha. Ties keep catalog row order. k is clamped to
// [0, Size].
func (ix *Index) TopK(query []float32, k int, alpha float64) []Match {
	n := ix.Size()
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}
	alpha = clampAlpha(alpha)

	matches := make([]Match, n)
	for i := 0; i < n; i++ {
		simg := CosineSimilarity(query, ix.imgEmbs[i])
		stxt := CosineSimilarity(query, ix.txtEmbs[i])
		matches[i] = Match{Row: i, Score: alpha*simg + (1-alpha)*stxt}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})

	return matches[:k]
}
