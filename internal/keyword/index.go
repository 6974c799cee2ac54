// Package keyword keeps a full-text index of document names and contents for
// filtering the document listing.
package keyword

import (
	"context"

	"github.com/hyperjump/kotaeru/internal/models"
)

// SearchOptions tunes a keyword search. Nil means defaults.
type SearchOptions struct {
	// NameBoost multiplies the score of matches in the document name. Values
	// <= 1 search name and content as one field.
	NameBoost float64
	// Fuzzy enables typo-tolerant matching within Fuzziness edits (default 1).
	Fuzzy     bool
	Fuzziness int
}

// KeywordIndex indexes documents for keyword search.
type KeywordIndex interface {
	Index(ctx context.Context, doc *models.Document) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]Result, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// Result is one matching document, best first.
type Result struct {
	ID    string
	Score float64
}
