package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/regexp"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/kotaeru/internal/models"
)

const defaultFuzziness = 1

// indexedDocument is the shape stored in bleve.
type indexedDocument struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// BleveIndex implements KeywordIndex with bleve.
type BleveIndex struct {
	index bleve.Index
}

const (
	nameTokenizer = "kotaeru_name_tokens"
	nameAnalyzer  = "kotaeru_name"
)

// newMapping indexes content with the standard analyzer and names with an
// analyzer that also splits on dots, underscores and dashes, so "invoice.pdf"
// and "q3_invoice-final.docx" both match "invoice".
func newMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	if err := im.AddCustomTokenizer(nameTokenizer, map[string]interface{}{
		"type":   regexp.Name,
		"regexp": `[\p{L}\p{N}]+`,
	}); err != nil {
		return nil, fmt.Errorf("name tokenizer: %w", err)
	}
	if err := im.AddCustomAnalyzer(nameAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     nameTokenizer,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("name analyzer: %w", err)
	}

	doc := bleve.NewDocumentMapping()
	name := bleve.NewTextFieldMapping()
	name.Analyzer = nameAnalyzer
	doc.AddFieldMappingsAt("name", name)
	content := bleve.NewTextFieldMapping()
	// No stemming: a query for "bayes" should not turn into "bay".
	content.Analyzer = standard.Name
	doc.AddFieldMappingsAt("content", content)
	im.DefaultMapping = doc
	return im, nil
}

// NewBleveIndex opens the index at path, creating it when missing. An empty
// path creates an in-memory index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		m, err := newMapping()
		if err != nil {
			return nil, err
		}
		index, err := bleve.NewMemOnly(m)
		if err != nil {
			return nil, fmt.Errorf("create in-memory keyword index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}
	if _, err := os.Stat(path); err == nil {
		index, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open keyword index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}
	m, err := newMapping()
	if err != nil {
		return nil, err
	}
	index, err := bleve.New(path, m)
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index adds or replaces doc.
func (b *BleveIndex) Index(ctx context.Context, doc *models.Document) error {
	return b.index.Index(doc.ID, indexedDocument{Name: doc.Name, Content: doc.Content})
}

// Search returns up to limit documents matching query, best first. Equal
// scores are ordered by id.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]Result, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return []Result{}, nil
	}
	var o SearchOptions
	if opts != nil {
		o = *opts
	}
	if o.Fuzzy && o.Fuzziness <= 0 {
		o.Fuzziness = defaultFuzziness
	}

	if o.NameBoost <= 1 {
		scores, err := b.scores(ctx, b.query(query, "", o), limit)
		if err != nil {
			return nil, err
		}
		return ranked(scores, limit), nil
	}

	// Over-fetch each field so the merged top limit is complete.
	size := limit * 2
	if size < 50 {
		size = 50
	}
	names, err := b.scores(ctx, b.query(query, "name", o), size)
	if err != nil {
		return nil, err
	}
	contents, err := b.scores(ctx, b.query(query, "content", o), size)
	if err != nil {
		return nil, err
	}
	for id, s := range names {
		contents[id] += s * o.NameBoost
	}
	return ranked(contents, limit), nil
}

// query matches any term of text. An empty field searches all fields.
func (b *BleveIndex) query(text, field string, o SearchOptions) blevequery.Query {
	if !o.Fuzzy {
		mq := bleve.NewMatchQuery(text)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}
	terms := strings.Fields(strings.ToLower(text))
	qs := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(o.Fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		qs = append(qs, fq)
	}
	return bleve.NewDisjunctionQuery(qs...)
}

func (b *BleveIndex) scores(ctx context.Context, q blevequery.Query, size int) (map[string]float64, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = size
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	out := make(map[string]float64, len(res.Hits))
	for _, hit := range res.Hits {
		out[hit.ID] = hit.Score
	}
	return out, nil
}

func ranked(scores map[string]float64, limit int) []Result {
	out := make([]Result, 0, len(scores))
	for id, s := range scores {
		out = append(out, Result{ID: id, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Delete removes a document. Unknown ids are not an error.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the number of indexed documents.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
