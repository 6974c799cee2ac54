package embedding

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/hyperjump/kotaeru/internal/vector"
)

// MockEmbedder is a deterministic embedder for tests. The same text always gets
// the same unit vector. It counts embedded texts and can be made to fail.
type MockEmbedder struct {
	dimensions int

	mu    sync.Mutex
	calls int
	err   error
}

// NewMockEmbedder returns a mock embedder of the given dimension.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &MockEmbedder{dimensions: dimensions}
}

// SetError makes every following call fail with err. nil restores success.
func (e *MockEmbedder) SetError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// Calls returns how many texts have been embedded.
func (e *MockEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Embed returns a pseudo-random unit vector seeded by the text.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	err := e.err
	if err == nil {
		e.calls++
	}
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	state := h.Sum64() | 1
	emb := make([]float32, e.dimensions)
	for i := range emb {
		// xorshift64
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		emb[i] = float32(int64(state>>11)%2001-1000) / 1000
	}
	vector.Normalize(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *MockEmbedder) Close() error {
	return nil
}
