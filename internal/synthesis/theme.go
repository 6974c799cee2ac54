package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kotaeru/internal/llm"
	"go.uber.org/zap"
)

const (
	DefaultSummaryTemperature = 0.5
	DefaultSummaryMaxTokens   = 600
)

// InsufficientData is the summary returned when there are no answers to summarize.
const InsufficientData = "Insufficient data: no answers were available to summarize."

const summaryPrompt = `You are a summarization assistant. Your task is to identify common themes from the following answers to a user question.

User Question: %s

Answers:
%s

Please provide a concise theme-based summary:`

// ThemeAggregator condenses per-document answers into one summary.
type ThemeAggregator struct {
	completer   llm.Completer
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// NewThemeAggregator creates a ThemeAggregator over completer.
func NewThemeAggregator(completer llm.Completer, opts ...Option) *ThemeAggregator {
	s := settings{
		temperature: DefaultSummaryTemperature,
		maxTokens:   DefaultSummaryMaxTokens,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &ThemeAggregator{
		completer:   completer,
		temperature: s.temperature,
		maxTokens:   s.maxTokens,
		logger:      s.logger,
	}
}

// Summarize makes one completion over all answers. With no answers it returns
// InsufficientData without calling the backend. Failures become a placeholder.
func (a *ThemeAggregator) Summarize(ctx context.Context, question string, answers []string) string {
	if len(answers) == 0 {
		return InsufficientData
	}
	bullets := make([]string, len(answers))
	for i, ans := range answers {
		bullets[i] = "- " + ans
	}
	text, err := a.completer.Complete(ctx, llm.Request{
		Prompt:      fmt.Sprintf(summaryPrompt, question, strings.Join(bullets, "\n\n")),
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		a.logger.Warn("theme summarization failed", zap.Int("answers", len(answers)), zap.Error(err))
		return fmt.Sprintf("[Error during theme summarization: %v]", err)
	}
	return strings.TrimSpace(text)
}
