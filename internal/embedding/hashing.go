package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/hyperjump/kotaeru/internal/vector"
)

// DefaultDimensions matches all-MiniLM-L6-v2.
const DefaultDimensions = 384

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"did": {}, "do": {}, "does": {}, "for": {}, "from": {}, "how": {}, "in": {},
	"is": {}, "it": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {},
	"this": {}, "to": {}, "was": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"who": {}, "why": {}, "with": {},
}

// HashingEmbedder is an offline bag-of-words embedder. Terms are hashed into a
// fixed number of buckets with a sign bit, weighted by sublinear term frequency,
// and the vector is L2-normalized. Texts that share terms land close together.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder returns a hashing embedder with the given dimension.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &HashingEmbedder{dimensions: dimensions}
}

func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, term := range Terms(text) {
		if _, stop := stopwords[term]; stop {
			continue
		}
		counts[term]++
	}
	vec := make([]float32, e.dimensions)
	for term, n := range counts {
		h := fnv.New64a()
		_, _ = h.Write([]byte(term))
		sum := h.Sum64()
		bucket := int(sum % uint64(e.dimensions))
		weight := float32(1 + math.Log(float64(n)))
		if sum>>63 == 1 {
			weight = -weight
		}
		vec[bucket] += weight
	}
	vector.Normalize(vec)
	return vec, nil
}

func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

func (e *HashingEmbedder) Dimensions() int { return e.dimensions }
func (e *HashingEmbedder) Close() error    { return nil }
