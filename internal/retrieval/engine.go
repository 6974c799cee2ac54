// Package retrieval ingests documents into the corpus and answers nearest-passage queries.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/kotaeru/internal/corpus"
	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/indexer"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/vector"
	"go.uber.org/zap"
)

var (
	// ErrEmptyDocument is returned when a document has no non-whitespace text.
	ErrEmptyDocument = errors.New("document has no text")
	// ErrEmbedding wraps failures of the embedding provider.
	ErrEmbedding = errors.New("embedding failed")
)

// DefaultTopK is the number of rows searched when a query does not set one.
const DefaultTopK = 5

// Engine chunks, embeds and commits documents, and retrieves passages for questions.
type Engine struct {
	state    *corpus.State
	embedder embedding.Embedder
	chunker  *indexer.Chunker
	topK     int
	logger   *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithTopK sets the default number of rows searched per query.
func WithTopK(k int) EngineOption {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// NewEngine creates an engine over state.
func NewEngine(state *corpus.State, embedder embedding.Embedder, chunker *indexer.Chunker, opts ...EngineOption) *Engine {
	e := &Engine{
		state:    state,
		embedder: embedder,
		chunker:  chunker,
		topK:     DefaultTopK,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IngestResult reports a committed document.
type IngestResult struct {
	Document *models.Document
	Rows     []vector.RowID
}

// Ingest chunks and embeds input and commits it to the corpus. Embedding runs
// before any state is touched, so a failure leaves the corpus unchanged.
func (e *Engine) Ingest(ctx context.Context, input *models.DocumentInput) (*IngestResult, error) {
	return e.ingest(ctx, input, e.state.Commit)
}

// Replace is Ingest for a document that may already exist: the new version is
// embedded first and swapped in whole, so a failure keeps the old version.
func (e *Engine) Replace(ctx context.Context, input *models.DocumentInput) (*IngestResult, error) {
	return e.ingest(ctx, input, e.state.Replace)
}

type commitFunc func(context.Context, *models.Document, []models.Chunk, [][]float32) ([]vector.RowID, error)

func (e *Engine) ingest(ctx context.Context, input *models.DocumentInput, commit commitFunc) (*IngestResult, error) {
	if indexer.IsBlank(input.Content) {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, input.Name)
	}
	var (
		chunks []models.Chunk
		texts  []string
	)
	for ord, text := range e.chunker.Chunks(input.Content) {
		chunks = append(chunks, models.Chunk{DocumentID: input.ID, Ordinal: ord, Text: text})
		texts = append(texts, text)
	}

	start := time.Now()
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbedding, len(vectors), len(texts))
	}

	doc := &models.Document{
		ID:         input.ID,
		Name:       input.Name,
		Content:    input.Content,
		SourcePath: input.SourcePath,
		CreatedAt:  time.Now().UTC(),
	}
	rows, err := commit(ctx, doc, chunks, vectors)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("retrieval ingested document",
		zap.String("doc_id", doc.ID),
		zap.String("name", doc.Name),
		zap.Int("chunks", len(chunks)),
		zap.Duration("embed_time", time.Since(start)))
	return &IngestResult{Document: doc, Rows: rows}, nil
}

// Query embeds question, searches the topK nearest rows and returns at most one
// passage per document, nearest first. topK <= 0 selects the engine default.
// An empty corpus yields an empty result.
func (e *Engine) Query(ctx context.Context, question string, topK int) ([]models.SearchResult, error) {
	if topK <= 0 {
		topK = e.topK
	}
	if e.state.Len() == 0 {
		return []models.SearchResult{}, nil
	}
	q, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	hits, err := e.state.Search(ctx, q, topK)
	if err != nil {
		return nil, err
	}
	results := Dedupe(hits)
	e.logger.Debug("retrieval query",
		zap.Int("top_k", topK), zap.Int("hits", len(hits)), zap.Int("documents", len(results)))
	return results, nil
}

// Dedupe keeps the first, and therefore nearest, result of each document.
// hits must be ordered by ascending distance.
func Dedupe(hits []models.SearchResult) []models.SearchResult {
	seen := make(map[string]bool, len(hits))
	out := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		if seen[h.DocumentID] {
			continue
		}
		seen[h.DocumentID] = true
		out = append(out, h)
	}
	return out
}
