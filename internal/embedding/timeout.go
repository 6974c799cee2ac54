package embedding

import (
	"context"
	"fmt"
	"time"
)

// TimeoutEmbedder bounds every call to the wrapped embedder. It returns when the
// deadline passes even if the wrapped call ignores its context.
type TimeoutEmbedder struct {
	next    Embedder
	timeout time.Duration
}

// WithTimeout wraps e so each call fails with ErrTimeout after d.
// A non-positive d returns e unchanged.
func WithTimeout(e Embedder, d time.Duration) Embedder {
	if d <= 0 {
		return e
	}
	return &TimeoutEmbedder{next: e, timeout: d}
}

type embedResult struct {
	vecs [][]float32
	err  error
}

func (t *TimeoutEmbedder) run(ctx context.Context, fn func(context.Context) ([][]float32, error)) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	done := make(chan embedResult, 1)
	go func() {
		vecs, err := fn(ctx)
		done <- embedResult{vecs: vecs, err: err}
	}()
	select {
	case r := <-done:
		return r.vecs, r.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, t.timeout)
		}
		return nil, ctx.Err()
	}
}

func (t *TimeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := t.run(ctx, func(ctx context.Context) ([][]float32, error) {
		v, err := t.next.Embed(ctx, text)
		return [][]float32{v}, err
	})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (t *TimeoutEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return t.run(ctx, func(ctx context.Context) ([][]float32, error) {
		return t.next.EmbedBatch(ctx, texts)
	})
}

func (t *TimeoutEmbedder) Dimensions() int { return t.next.Dimensions() }
func (t *TimeoutEmbedder) Close() error    { return t.next.Close() }
