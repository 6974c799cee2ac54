// Package qa is the application layer behind the HTTP API and the CLI: it
// uploads, lists and deletes documents and answers questions against them.
package qa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/kotaeru/internal/corpus"
	"github.com/hyperjump/kotaeru/internal/extract"
	"github.com/hyperjump/kotaeru/internal/keyword"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/retrieval"
	"github.com/hyperjump/kotaeru/internal/synthesis"
	"github.com/hyperjump/kotaeru/pkg/utils"
	"go.uber.org/zap"
)

var (
	// ErrNoDocuments is returned by Ask when the corpus is empty.
	ErrNoDocuments = errors.New("no documents uploaded yet")
	// ErrInvalidQuestion is returned by Ask for an empty question.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrInvalidUpload is returned for an upload without a usable file name.
	ErrInvalidUpload = errors.New("invalid upload")
)

// UploadMessage acknowledges a successful upload.
const UploadMessage = "File uploaded and processed successfully."

// DefaultPreviewChars is the length of the text preview returned by Upload.
const DefaultPreviewChars = 300

// Service wires extraction, retrieval and synthesis over one corpus.
type Service struct {
	state        *corpus.State
	engine       *retrieval.Engine
	synthesizer  *synthesis.Synthesizer
	themes       *synthesis.ThemeAggregator
	extractor    *extract.Extractor
	keywords     keyword.KeywordIndex
	uploadDir    string
	previewChars int
	logger       *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithKeywordIndex enables keyword filtering of the document listing.
func WithKeywordIndex(k keyword.KeywordIndex) Option {
	return func(s *Service) { s.keywords = k }
}

// WithUploadDir saves the raw bytes of every upload under dir.
func WithUploadDir(dir string) Option {
	return func(s *Service) { s.uploadDir = dir }
}

// WithPreviewChars sets the preview length returned by Upload.
func WithPreviewChars(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.previewChars = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service.
func NewService(
	state *corpus.State,
	engine *retrieval.Engine,
	synthesizer *synthesis.Synthesizer,
	themes *synthesis.ThemeAggregator,
	extractor *extract.Extractor,
	opts ...Option,
) *Service {
	s := &Service{
		state:        state,
		engine:       engine,
		synthesizer:  synthesizer,
		themes:       themes,
		extractor:    extractor,
		previewChars: DefaultPreviewChars,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload saves, extracts and ingests one file under a new random id.
// On failure the saved file is removed again.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader) (*models.UploadResponse, error) {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: missing file name", ErrInvalidUpload)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	id := uuid.NewString()

	var saved string
	if s.uploadDir != "" {
		if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
		saved = filepath.Join(s.uploadDir, id+"_"+name)
		if err := os.WriteFile(saved, data, 0644); err != nil {
			return nil, fmt.Errorf("save upload: %w", err)
		}
	}
	discard := func() {
		if saved != "" {
			_ = os.Remove(saved)
		}
	}

	text, err := s.extractor.ExtractBytes(ctx, data, filepath.Ext(name))
	if err != nil {
		discard()
		return nil, err
	}
	res, err := s.Ingest(ctx, &models.DocumentInput{ID: id, Name: name, Content: text, SourcePath: saved})
	if err != nil {
		discard()
		return nil, err
	}
	s.logger.Info("document uploaded",
		zap.String("doc_id", id), zap.String("name", name), zap.Int("chunks", len(res.Rows)))
	return &models.UploadResponse{
		Message: UploadMessage,
		DocID:   id,
		Preview: utils.Prefix(text, s.previewChars),
		Chunks:  len(res.Rows),
	}, nil
}

// UploadBytes is Upload for content already in memory.
func (s *Service) UploadBytes(ctx context.Context, filename string, data []byte) (*models.UploadResponse, error) {
	return s.Upload(ctx, filename, bytes.NewReader(data))
}

// Ingest commits already extracted text and indexes it for keyword filtering.
// A keyword index failure is logged; the document stays answerable.
func (s *Service) Ingest(ctx context.Context, input *models.DocumentInput) (*retrieval.IngestResult, error) {
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	return s.commit(ctx, input, s.engine.Ingest)
}

// Replace commits a new version of input.ID, or adds it when unknown. On
// failure the previous version stays answerable.
func (s *Service) Replace(ctx context.Context, input *models.DocumentInput) (*retrieval.IngestResult, error) {
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	return s.commit(ctx, input, s.engine.Replace)
}

func (s *Service) commit(
	ctx context.Context,
	input *models.DocumentInput,
	ingest func(context.Context, *models.DocumentInput) (*retrieval.IngestResult, error),
) (*retrieval.IngestResult, error) {
	res, err := ingest(ctx, input)
	if err != nil {
		return nil, err
	}
	if s.keywords != nil {
		if err := s.keywords.Index(ctx, res.Document); err != nil {
			s.logger.Warn("keyword index failed", zap.String("doc_id", input.ID), zap.Error(err))
		}
	}
	return res, nil
}

// Documents lists documents in ingestion order. A non-empty query keeps only
// documents whose name or content matches it, best match first.
func (s *Service) Documents(ctx context.Context, query string) ([]models.DocumentSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		docs := s.state.Documents()
		out := make([]models.DocumentSummary, len(docs))
		for i, d := range docs {
			out[i] = d.Summary()
		}
		return out, nil
	}
	if s.keywords == nil {
		return s.filterBySubstring(query), nil
	}
	hits, err := s.keywords.Search(ctx, query, s.state.Len(), &keyword.SearchOptions{NameBoost: 2})
	if err != nil {
		return nil, err
	}
	out := make([]models.DocumentSummary, 0, len(hits))
	for _, h := range hits {
		doc, err := s.state.Document(h.ID)
		if err != nil {
			continue
		}
		out = append(out, doc.Summary())
	}
	return out, nil
}

func (s *Service) filterBySubstring(query string) []models.DocumentSummary {
	q := strings.ToLower(query)
	out := []models.DocumentSummary{}
	for _, d := range s.state.Documents() {
		if strings.Contains(strings.ToLower(d.Name), q) || strings.Contains(strings.ToLower(d.Content), q) {
			out = append(out, d.Summary())
		}
	}
	return out
}

// Document returns one document.
func (s *Service) Document(ctx context.Context, id string) (*models.Document, error) {
	return s.state.Document(id)
}

// Delete removes a document from the corpus and the keyword index. A file
// saved by Upload is removed as well; watched source files are left alone.
func (s *Service) Delete(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.state.Delete(ctx, id)
	if err != nil && doc == nil {
		return nil, err
	}
	if s.keywords != nil {
		if kerr := s.keywords.Delete(ctx, id); kerr != nil {
			s.logger.Warn("keyword delete failed", zap.String("doc_id", id), zap.Error(kerr))
		}
	}
	if s.ownsFile(doc.SourcePath) {
		if rerr := os.Remove(doc.SourcePath); rerr != nil && !os.IsNotExist(rerr) {
			s.logger.Warn("failed to remove uploaded file", zap.String("path", doc.SourcePath), zap.Error(rerr))
		}
	}
	return doc, err
}

func (s *Service) ownsFile(path string) bool {
	if path == "" || s.uploadDir == "" {
		return false
	}
	return filepath.Clean(filepath.Dir(path)) == filepath.Clean(s.uploadDir)
}

// Ask answers question from each matching document and summarizes the themes
// across the answers. Only successful answers reach the summary unless every
// answer failed, in which case the placeholders are summarized.
func (s *Service) Ask(ctx context.Context, req *models.AskRequest) (*models.AskResponse, error) {
	if s.state.Len() == 0 {
		return nil, ErrNoDocuments
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuestion, err)
	}
	results, err := s.engine.Query(ctx, req.Question, req.TopK)
	if err != nil {
		return nil, err
	}
	records := s.synthesizer.AnswerAll(ctx, req.Question, results)
	summary := s.themes.Summarize(ctx, req.Question, summaryInputs(records))
	return &models.AskResponse{
		Question:          req.Question,
		IndividualAnswers: records,
		ThemeSummary:      summary,
	}, nil
}

func summaryInputs(records []models.AnswerRecord) []string {
	var ok, all []string
	for _, r := range records {
		all = append(all, r.Answer)
		if !r.Failed {
			ok = append(ok, r.Answer)
		}
	}
	if len(ok) == 0 {
		return all
	}
	return ok
}

// Status describes the service for /status and the status command.
type Status struct {
	corpus.Stats
	KeywordDocuments uint64 `json:"keyword_documents"`
}

// Status returns corpus counts.
func (s *Service) Status(ctx context.Context) Status {
	st := Status{Stats: s.state.Stats()}
	if s.keywords != nil {
		if n, err := s.keywords.DocCount(); err == nil {
			st.KeywordDocuments = n
		}
	}
	return st
}

// IngestDocument commits input, for callers that only need the outcome.
func (s *Service) IngestDocument(ctx context.Context, input *models.DocumentInput) error {
	_, err := s.Ingest(ctx, input)
	return err
}

// ReplaceDocument swaps in a new version of a document, for callers that only
// need the outcome.
func (s *Service) ReplaceDocument(ctx context.Context, input *models.DocumentInput) error {
	_, err := s.Replace(ctx, input)
	return err
}

// DeleteDocument removes a document, for callers that do not need it back.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.Delete(ctx, id)
	return err
}
