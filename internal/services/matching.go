package services

import (
	"math"
	"sort"

	"github.com/nivekithan/gig-marketplace/internal/models"
)

const DefaultSimilarLimit = 3

type gigCandidate struct {
	gig   *models.Gig
	score float64
}

// cosineSimilarity returns 0 for mismatched or zero-length vectors.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// rankBySimilarity returns up to limit gigs, most similar first.
func rankBySimilarity(target []float64, gigs []*models.Gig, limit int) []*models.Gig {
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}
	candidates := make([]gigCandidate, 0, len(gigs))
	for _, g := range gigs {
		if len(g.Embedding) != len(target) {
			continue
		}
		candidates = append(candidates, gigCandidate{gig: g, score: cosineSimilarity(target, g.Embedding)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]*models.Gig, len(candidates))
	for i := range candidates {
		out[i] = candidates[i].gig
	}
	return out
}
