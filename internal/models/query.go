package models

import (
	"fmt"
	"strings"
)

// AskRequest is a question against the corpus.
type AskRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

// Validate trims the question, rejects an empty one, and clamps TopK.
// A zero TopK means the configured default.
func (q *AskRequest) Validate() error {
	q.Question = strings.TrimSpace(q.Question)
	if q.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if q.TopK < 0 {
		q.TopK = 0
	}
	if q.TopK > 100 {
		q.TopK = 100
	}
	return nil
}
