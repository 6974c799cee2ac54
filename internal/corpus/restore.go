package corpus

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotaeru/internal/registry"
	"github.com/hyperjump/kotaeru/internal/vector"
	"go.uber.org/zap"
)

// RestoreReport summarizes what Restore loaded and discarded.
type RestoreReport struct {
	Documents     int
	Rows          int
	OrphanVectors int
	MissingRows   int
}

// Restore loads the vector index from indexPath and the documents and registry
// rows from storage, then reconciles them: vectors without a registry row are
// removed, and registry rows without a vector are dropped. Row allocation
// resumes past the highest persisted id. It must run before the State is shared.
func (s *State) Restore(ctx context.Context, indexPath string) (RestoreReport, error) {
	var report RestoreReport
	if s.store == nil {
		return report, fmt.Errorf("restore requires storage")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Load(indexPath); err != nil {
		return report, fmt.Errorf("failed to load vector index: %w", err)
	}
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list documents: %w", err)
	}
	for _, d := range docs {
		if s.docs.Put(d) {
			report.Documents++
		}
	}
	chunks, err := s.store.ListChunks(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list chunk rows: %w", err)
	}

	var next vector.RowID
	for _, c := range chunks {
		if vector.RowID(c.Row) >= next {
			next = vector.RowID(c.Row) + 1
		}
	}
	s.index.Reserve(next)

	live := make(map[vector.RowID]bool)
	for _, row := range s.index.Rows() {
		live[row] = true
	}
	for _, c := range chunks {
		row := vector.RowID(c.Row)
		if !live[row] {
			report.MissingRows++
			continue
		}
		if _, ok := s.docs.Get(c.DocumentID); !ok {
			report.MissingRows++
			continue
		}
		e := registry.Entry{DocumentID: c.DocumentID, Ordinal: c.Ordinal, Text: c.Text}
		if err := s.registry.Record(row, e); err != nil {
			return report, err
		}
		delete(live, row)
		report.Rows++
	}
	if len(live) > 0 {
		orphans := make([]vector.RowID, 0, len(live))
		for row := range live {
			orphans = append(orphans, row)
		}
		if err := s.index.Remove(ctx, orphans); err != nil {
			return report, fmt.Errorf("failed to remove orphan vectors: %w", err)
		}
		report.OrphanVectors = len(orphans)
	}
	if report.OrphanVectors > 0 || report.MissingRows > 0 {
		s.logger.Warn("corpus reconciled persisted state",
			zap.Int("orphan_vectors", report.OrphanVectors),
			zap.Int("missing_rows", report.MissingRows))
	}
	return report, nil
}
