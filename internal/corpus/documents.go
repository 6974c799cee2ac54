package corpus

import (
	"encoding/json"
	"fmt"

	"github.com/hyperjump/kotaeru/internal/models"
)

// DocumentStore holds documents by id and remembers insertion order.
// It has no lock of its own; State guards it.
type DocumentStore struct {
	docs  map[string]*models.Document
	order []string
}

// NewDocumentStore returns an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]*models.Document)}
}

// Put adds doc. It reports false if the id is already present.
func (s *DocumentStore) Put(doc *models.Document) bool {
	if _, ok := s.docs[doc.ID]; ok {
		return false
	}
	s.docs[doc.ID] = doc
	s.order = append(s.order, doc.ID)
	return true
}

// Get returns the document with id.
func (s *DocumentStore) Get(id string) (*models.Document, bool) {
	doc, ok := s.docs[id]
	return doc, ok
}

// Delete removes the document with id and reports whether it existed.
func (s *DocumentStore) Delete(id string) bool {
	if _, ok := s.docs[id]; !ok {
		return false
	}
	delete(s.docs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns documents in insertion order.
func (s *DocumentStore) List() []*models.Document {
	out := make([]*models.Document, len(s.order))
	for i, id := range s.order {
		out[i] = s.docs[id]
	}
	return out
}

// Len returns the number of documents.
func (s *DocumentStore) Len() int {
	return len(s.order)
}

// MarshalJSON encodes the store as a list of documents in insertion order.
func (s *DocumentStore) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// UnmarshalJSON replaces the store's contents with a list of documents.
func (s *DocumentStore) UnmarshalJSON(data []byte) error {
	var docs []*models.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return err
	}
	fresh := NewDocumentStore()
	for _, d := range docs {
		if d == nil {
			continue
		}
		if !fresh.Put(d) {
			return fmt.Errorf("duplicate document id %q", d.ID)
		}
	}
	*s = *fresh
	return nil
}
