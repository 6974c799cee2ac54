//go:build !faiss || !cgo
// +build !faiss !cgo

package vector

import (
	"context"
	"errors"
)

const faissCompiled = false

var errFAISSUnavailable = errors.New("FAISS not available: build with -tags=faiss and install the FAISS C library")

// FAISSIndex is a placeholder used when the binary is built without FAISS.
type FAISSIndex struct{}

// NewFAISSIndex always fails without the faiss build tag.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	return nil, errFAISSUnavailable
}

func (f *FAISSIndex) Add(ctx context.Context, vectors [][]float32) ([]RowID, error) {
	return nil, errFAISSUnavailable
}

func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	return nil, errFAISSUnavailable
}

func (f *FAISSIndex) Remove(ctx context.Context, rows []RowID) error { return errFAISSUnavailable }
func (f *FAISSIndex) Reserve(next RowID)                             {}
func (f *FAISSIndex) Rows() []RowID                                  { return nil }
func (f *FAISSIndex) Save(path string) error                         { return errFAISSUnavailable }
func (f *FAISSIndex) Load(path string) error                         { return errFAISSUnavailable }
func (f *FAISSIndex) Size() int                                      { return 0 }
func (f *FAISSIndex) Dimensions() int                                { return 0 }
func (f *FAISSIndex) Close() error                                   { return nil }

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}
