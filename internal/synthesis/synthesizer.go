// Package synthesis turns retrieved passages into per-document answers and a
// cross-document theme summary.
package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kotaeru/internal/llm"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultAnswerTemperature = 0.4
	DefaultAnswerMaxTokens   = 512
	DefaultWorkers           = 4

	citationNameChars = 30
)

const answerPrompt = `You are a helpful AI assistant. Given the following context, answer the user's question.
Context:
"""
%s
"""

Question: %s
Answer:`

// Synthesizer asks the completion backend to answer a question from one passage.
type Synthesizer struct {
	completer   llm.Completer
	temperature float64
	maxTokens   int
	workers     int
	logger      *zap.Logger
}

// Option configures a Synthesizer or ThemeAggregator.
type Option func(*settings)

type settings struct {
	temperature float64
	maxTokens   int
	workers     int
	logger      *zap.Logger
}

// WithSampling overrides temperature and the completion token limit.
// Zero values keep the defaults.
func WithSampling(temperature float64, maxTokens int) Option {
	return func(s *settings) {
		if temperature > 0 {
			s.temperature = temperature
		}
		if maxTokens > 0 {
			s.maxTokens = maxTokens
		}
	}
}

// WithWorkers bounds the number of concurrent completions in AnswerAll.
func WithWorkers(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the logger used for degraded answers.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// NewSynthesizer creates a Synthesizer over completer.
func NewSynthesizer(completer llm.Completer, opts ...Option) *Synthesizer {
	s := settings{
		temperature: DefaultAnswerTemperature,
		maxTokens:   DefaultAnswerMaxTokens,
		workers:     DefaultWorkers,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &Synthesizer{
		completer:   completer,
		temperature: s.temperature,
		maxTokens:   s.maxTokens,
		workers:     s.workers,
		logger:      s.logger,
	}
}

// Answer answers question from passage. A completion failure never propagates:
// the returned text is an error placeholder and ok is false.
func (s *Synthesizer) Answer(ctx context.Context, question, passage string) (string, bool) {
	text, err := s.completer.Complete(ctx, llm.Request{
		Prompt:      fmt.Sprintf(answerPrompt, passage, question),
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		s.logger.Warn("answer synthesis failed", zap.Error(err))
		return fmt.Sprintf("[Error during LLM answer generation: %v]", err), false
	}
	return strings.TrimSpace(text), true
}

// AnswerAll answers question once per result with at most workers completions
// in flight. The records are in the same order as results.
func (s *Synthesizer) AnswerAll(ctx context.Context, question string, results []models.SearchResult) []models.AnswerRecord {
	records := make([]models.AnswerRecord, len(results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, r := range results {
		g.Go(func() error {
			answer, ok := s.Answer(gctx, question, r.ChunkText)
			records[i] = models.AnswerRecord{
				DocID:    r.DocumentID,
				DocName:  r.DocumentName,
				Answer:   answer,
				Citation: Citation(r.DocumentName),
				Failed:   !ok,
			}
			return nil
		})
	}
	_ = g.Wait()
	return records
}

// Citation returns the citation label shown next to an answer.
func Citation(docName string) string {
	return "Doc: " + utils.Prefix(docName, citationNameChars) + "..."
}
