// Package storage defines the persistence interface for documents and their chunk rows.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/kotaeru/internal/models"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// ChunkRow is a persisted registry entry: the chunk stored at a vector row.
type ChunkRow struct {
	Row int64
	models.Chunk
}

// Storage persists documents and the row to chunk mapping.
type Storage interface {
	// SaveDocument stores a document and its chunk rows atomically.
	SaveDocument(ctx context.Context, doc *models.Document, chunks []ChunkRow) error
	// ReplaceDocument atomically swaps a document and its chunk rows for a new version.
	ReplaceDocument(ctx context.Context, doc *models.Document, chunks []ChunkRow) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	// ListDocuments returns documents in the order they were saved.
	ListDocuments(ctx context.Context) ([]*models.Document, error)
	// DeleteDocument removes a document and its chunk rows.
	DeleteDocument(ctx context.Context, id string) error
	// ListChunks returns every chunk row ordered by row.
	ListChunks(ctx context.Context) ([]ChunkRow, error)

	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
