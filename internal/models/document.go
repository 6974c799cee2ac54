// Package models defines core data structures for documents, questions, and answers.
package models

import "time"

// Document is an ingested source document. It is immutable once stored.
type Document struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Content    string    `json:"content" db:"content"`
	SourcePath string    `json:"source_path,omitempty" db:"source_path"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Summary returns the listing view of the document.
func (d *Document) Summary() DocumentSummary {
	return DocumentSummary{ID: d.ID, Name: d.Name}
}

// DocumentSummary is the listing view of a document.
type DocumentSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Chunk is a contiguous piece of a document's text.
type Chunk struct {
	DocumentID string `json:"document_id" db:"document_id"`
	Ordinal    int    `json:"ordinal" db:"ordinal"`
	Text       string `json:"text" db:"content"`
}

// DocumentInput is the input for ingesting a document.
type DocumentInput struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	SourcePath string `json:"source_path,omitempty"`
}
