// Package vector provides exact nearest-neighbor indexes over chunk embeddings.
package vector

import (
	"context"
	"errors"
	"fmt"
)

// RowID identifies one stored vector. Ids are allocated in strictly increasing
// order and are never reused, even after removal.
type RowID int64

// ErrShape is matched by every *ShapeError.
var ErrShape = errors.New("vector dimensionality mismatch")

// ShapeError reports a vector whose length differs from the index dimensionality.
type ShapeError struct {
	Got  int
	Want int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: got %d, expected %d", e.Got, e.Want)
}

// Is makes errors.Is(err, ErrShape) true for any ShapeError.
func (e *ShapeError) Is(target error) bool {
	return target == ErrShape
}

// VectorIndex stores vectors under allocated row ids and answers k-nearest queries.
type VectorIndex interface {
	// Add validates the whole batch before storing any of it and returns the
	// ids allocated to the vectors, in input order.
	Add(ctx context.Context, vectors [][]float32) ([]RowID, error)
	// Search returns at most k hits ordered by ascending distance, ties broken
	// by the lower row id. An empty index yields no hits and no error.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	Remove(ctx context.Context, rows []RowID) error
	// Reserve makes future allocations start at next or later.
	Reserve(next RowID)
	Rows() []RowID
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// Hit is a single search result. Distance is the squared Euclidean distance.
type Hit struct {
	Row      RowID
	Distance float64
}

func checkBatch(vectors [][]float32, dims int) error {
	for _, vec := range vectors {
		if len(vec) != dims {
			return &ShapeError{Got: len(vec), Want: dims}
		}
	}
	return nil
}
