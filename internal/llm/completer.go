// Package llm provides text completion backends for answer synthesis.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/kotaeru/internal/config"
)

var (
	// ErrCompletion wraps every failure of a completion backend.
	ErrCompletion = errors.New("completion failed")
	// ErrTimeout is returned when a completion exceeds its deadline.
	ErrTimeout = errors.New("completion timed out")
)

// Request is a single-prompt completion request.
type Request struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Completer turns a prompt into text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// EchoCompleter returns the last non-empty line of the prompt's context block.
// It needs no network and is meant for local runs without an API key.
type EchoCompleter struct{}

func (EchoCompleter) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	lines := strings.Split(strings.TrimSpace(req.Prompt), "\n")
	var kept []string
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	if len(kept) > 6 {
		kept = kept[len(kept)-6:]
	}
	return strings.Join(kept, " "), nil
}

type timeoutCompleter struct {
	next    Completer
	timeout time.Duration
}

// WithTimeout wraps c so each call fails with ErrTimeout after d, even if c
// ignores its context. A non-positive d returns c unchanged.
func WithTimeout(c Completer, d time.Duration) Completer {
	if d <= 0 {
		return c
	}
	return &timeoutCompleter{next: c, timeout: d}
}

type completion struct {
	text string
	err  error
}

func (t *timeoutCompleter) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	done := make(chan completion, 1)
	go func() {
		text, err := t.next.Complete(ctx, req)
		done <- completion{text: text, err: err}
	}()
	select {
	case c := <-done:
		return c.text, c.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w: %w after %s", ErrCompletion, ErrTimeout, t.timeout)
		}
		return "", fmt.Errorf("%w: %w", ErrCompletion, ctx.Err())
	}
}

// New builds the configured completer with its timeout applied.
func New(cfg *config.CompletionConfig) (Completer, error) {
	var c Completer
	switch cfg.Provider {
	case "openai", "":
		key := cfg.APIKey()
		if key == "" {
			return nil, fmt.Errorf("completion provider openai: %s is not set", cfg.APIKeyEnv)
		}
		c = NewOpenAICompleter(OpenAIOptions{APIKey: key, BaseURL: cfg.BaseURL, Model: cfg.Model})
	case "echo":
		c = EchoCompleter{}
	default:
		return nil, fmt.Errorf("unknown completion provider: %s (supported: openai, echo)", cfg.Provider)
	}
	return WithTimeout(c, cfg.Timeout), nil
}
