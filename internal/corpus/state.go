// Package corpus holds the process-wide retrieval state: the vector index, the
// chunk registry and the document store, kept consistent under one lock.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/registry"
	"github.com/hyperjump/kotaeru/internal/storage"
	"github.com/hyperjump/kotaeru/internal/vector"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned for an unknown document id.
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned when committing a document id that is already present.
	ErrExists = errors.New("document already exists")
)

// State owns the vector index, the chunk registry and the document store.
// Writers hold the write lock across index add, registry record and document put,
// so a reader never observes a row without its registry entry and document.
type State struct {
	mu       sync.RWMutex
	index    vector.VectorIndex
	registry *registry.Registry
	docs     *DocumentStore
	store    storage.Storage
	logger   *zap.Logger
}

// Option configures a State.
type Option func(*State)

// WithStorage enables write-through persistence of documents and registry rows.
func WithStorage(s storage.Storage) Option {
	return func(st *State) { st.store = s }
}

// WithLogger sets a logger for debug output and skipped rows.
func WithLogger(l *zap.Logger) Option {
	return func(st *State) { st.logger = l }
}

// New creates an empty State around index.
func New(index vector.VectorIndex, opts ...Option) *State {
	s := &State{
		index:    index,
		registry: registry.New(),
		docs:     NewDocumentStore(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Commit adds doc with its chunks and their embeddings. chunks[i] is stored
// at the row allocated for vectors[i]. On any failure nothing is left behind.
func (s *State) Commit(ctx context.Context, doc *models.Document, chunks []models.Chunk, vectors [][]float32) ([]vector.RowID, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}

	s.mu.Lock()
	if _, ok := s.docs.Get(doc.ID); ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrExists, doc.ID)
	}
	rows, err := s.index.Add(ctx, vectors)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	for i, row := range rows {
		e := registry.Entry{DocumentID: doc.ID, Ordinal: chunks[i].Ordinal, Text: chunks[i].Text}
		if err := s.registry.Record(row, e); err != nil {
			s.registry.Forget(rows[:i]...)
			_ = s.index.Remove(ctx, rows)
			s.mu.Unlock()
			return nil, err
		}
	}
	s.docs.Put(doc)
	s.mu.Unlock()

	if s.store != nil {
		persisted := make([]storage.ChunkRow, len(rows))
		for i, row := range rows {
			persisted[i] = storage.ChunkRow{Row: int64(row), Chunk: chunks[i]}
		}
		if err := s.store.SaveDocument(ctx, doc, persisted); err != nil {
			s.mu.Lock()
			s.drop(ctx, doc.ID, rows)
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to persist document: %w", err)
		}
	}
	s.logger.Debug("corpus committed document",
		zap.String("doc_id", doc.ID), zap.Int("rows", len(rows)))
	return rows, nil
}

// Replace swaps the document with doc.ID for doc, or adds doc when the id is
// unknown. The new rows are recorded and persisted before the old ones are
// dropped; on any failure the previous version stays searchable. The write
// lock is held through persistence so readers see either version whole.
func (s *State) Replace(ctx context.Context, doc *models.Document, chunks []models.Chunk, vectors [][]float32) ([]vector.RowID, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.registry.RowsFor(doc.ID)
	rows, err := s.index.Add(ctx, vectors)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		e := registry.Entry{DocumentID: doc.ID, Ordinal: chunks[i].Ordinal, Text: chunks[i].Text}
		if err := s.registry.Record(row, e); err != nil {
			s.registry.Forget(rows[:i]...)
			_ = s.index.Remove(ctx, rows)
			return nil, err
		}
	}
	if s.store != nil {
		persisted := make([]storage.ChunkRow, len(rows))
		for i, row := range rows {
			persisted[i] = storage.ChunkRow{Row: int64(row), Chunk: chunks[i]}
		}
		if err := s.store.ReplaceDocument(ctx, doc, persisted); err != nil {
			s.registry.Forget(rows...)
			_ = s.index.Remove(ctx, rows)
			return nil, fmt.Errorf("failed to persist document: %w", err)
		}
	}

	if err := s.index.Remove(ctx, old); err != nil {
		s.logger.Warn("corpus failed to remove replaced rows", zap.String("doc_id", doc.ID), zap.Error(err))
	}
	s.registry.Forget(old...)
	s.docs.Delete(doc.ID)
	s.docs.Put(doc)
	s.logger.Debug("corpus replaced document",
		zap.String("doc_id", doc.ID), zap.Int("old_rows", len(old)), zap.Int("rows", len(rows)))
	return rows, nil
}

// drop removes a document's in-memory state. Caller holds the write lock.
func (s *State) drop(ctx context.Context, id string, rows []vector.RowID) {
	if err := s.index.Remove(ctx, rows); err != nil {
		s.logger.Warn("corpus failed to remove rows", zap.String("doc_id", id), zap.Error(err))
	}
	s.registry.Forget(rows...)
	s.docs.Delete(id)
}

// Delete removes a document and all of its rows and returns it.
func (s *State) Delete(ctx context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	doc, ok := s.docs.Get(id)
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.drop(ctx, id, s.registry.RowsFor(id))
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.DeleteDocument(ctx, id); err != nil {
			return doc, fmt.Errorf("failed to delete persisted document: %w", err)
		}
	}
	s.logger.Debug("corpus deleted document", zap.String("doc_id", id))
	return doc, nil
}

// Search returns up to k passages nearest to query, nearest first. Rows whose
// registry entry or document cannot be resolved are logged and skipped.
func (s *State) Search(ctx context.Context, query []float32, k int) ([]models.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits, err := s.index.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	results := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		e, err := s.registry.Resolve(h.Row)
		if err != nil {
			s.logger.Warn("corpus skipping unresolved row", zap.Int64("row", int64(h.Row)), zap.Error(err))
			continue
		}
		doc, ok := s.docs.Get(e.DocumentID)
		if !ok {
			s.logger.Warn("corpus skipping row of unknown document",
				zap.Int64("row", int64(h.Row)), zap.String("doc_id", e.DocumentID))
			continue
		}
		results = append(results, models.SearchResult{
			DocumentID:   doc.ID,
			DocumentName: doc.Name,
			ChunkText:    e.Text,
			Ordinal:      e.Ordinal,
			Row:          int64(h.Row),
			Distance:     h.Distance,
		})
	}
	return results, nil
}

// Document returns the document with id.
func (s *State) Document(id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc, nil
}

// Documents returns all documents in insertion order.
func (s *State) Documents() []*models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs.List()
}

// Len returns the number of documents.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs.Len()
}

// Stats describes the corpus.
type Stats struct {
	Documents  int    `json:"documents"`
	Chunks     int    `json:"chunks"`
	Vectors    int    `json:"vectors"`
	Dimensions int    `json:"dimensions"`
	IndexType  string `json:"index_type"`
}

// Stats returns current counts.
func (s *State) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Documents:  s.docs.Len(),
		Chunks:     s.registry.Len(),
		Vectors:    s.index.Size(),
		Dimensions: s.index.Dimensions(),
		IndexType:  s.index.Type(),
	}
}

// Save writes the vector index to path.
func (s *State) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Save(path)
}
