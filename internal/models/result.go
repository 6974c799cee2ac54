package models

// SearchResult is one retrieved passage, at most one per document.
type SearchResult struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	ChunkText    string  `json:"chunk_text"`
	Ordinal      int     `json:"ordinal"`
	Row          int64   `json:"row"`
	Distance     float64 `json:"distance"`
}

// AnswerRecord is the answer synthesized from one document.
// Failed is set when Answer holds an error placeholder instead of model output.
type AnswerRecord struct {
	DocID    string `json:"doc_id"`
	DocName  string `json:"doc_name"`
	Answer   string `json:"answer"`
	Citation string `json:"citation"`
	Failed   bool   `json:"failed,omitempty"`
}

// AskResponse is the full answer to a question.
type AskResponse struct {
	Question          string         `json:"question"`
	IndividualAnswers []AnswerRecord `json:"individual_answers"`
	ThemeSummary      string         `json:"theme_summary"`
}

// UploadResponse acknowledges an ingested document.
type UploadResponse struct {
	Message string `json:"message"`
	DocID   string `json:"doc_id"`
	Preview string `json:"preview"`
	Chunks  int    `json:"chunks"`
}
