// Package registry maps vector row ids back to the chunk they were computed from.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/kotaeru/internal/vector"
)

var (
	// ErrNotFound is returned when a row id has no entry.
	ErrNotFound = errors.New("row not found in registry")
	// ErrDuplicate is returned when a row id is recorded twice.
	ErrDuplicate = errors.New("row already recorded")
)

// Entry describes the chunk stored at a row.
type Entry struct {
	DocumentID string
	Ordinal    int
	Text       string
}

// Registry is the row id to chunk mapping. It is safe for concurrent use; callers
// that must keep it consistent with a vector index coordinate through their own lock.
type Registry struct {
	mu      sync.RWMutex
	entries map[vector.RowID]Entry
	byDoc   map[string][]vector.RowID
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[vector.RowID]Entry),
		byDoc:   make(map[string][]vector.RowID),
	}
}

// Record stores the entry for row.
func (r *Registry) Record(row vector.RowID, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[row]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicate, row)
	}
	r.entries[row] = e
	r.byDoc[e.DocumentID] = append(r.byDoc[e.DocumentID], row)
	return nil
}

// Resolve returns the entry recorded for row.
func (r *Registry) Resolve(row vector.RowID) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[row]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %d", ErrNotFound, row)
	}
	return e, nil
}

// Forget removes rows. Unknown rows are ignored.
func (r *Registry) Forget(rows ...vector.RowID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		e, ok := r.entries[row]
		if !ok {
			continue
		}
		delete(r.entries, row)
		kept := r.byDoc[e.DocumentID][:0]
		for _, id := range r.byDoc[e.DocumentID] {
			if id != row {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(r.byDoc, e.DocumentID)
		} else {
			r.byDoc[e.DocumentID] = kept
		}
	}
}

// RowsFor returns the rows of a document in ascending order.
func (r *Registry) RowsFor(documentID string) []vector.RowID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows := append([]vector.RowID(nil), r.byDoc[documentID]...)
	sort.Slice(rows, func(i, j int) bool { return rows[i] < rows[j] })
	return rows
}

// Rows returns every recorded row in ascending order.
func (r *Registry) Rows() []vector.RowID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows := make([]vector.RowID, 0, len(r.entries))
	for row := range r.entries {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i] < rows[j] })
	return rows
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
