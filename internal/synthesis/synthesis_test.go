package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/kotaeru/internal/llm"
	"github.com/hyperjump/kotaeru/internal/models"
)

func results(names ...string) []models.SearchResult {
	out := make([]models.SearchResult, len(names))
	for i, n := range names {
		out[i] = models.SearchResult{DocumentID: "id-" + n, DocumentName: n, ChunkText: "passage from " + n}
	}
	return out
}

func TestSynthesizer_AnswerUsesPromptAndSampling(t *testing.T) {
	var got llm.Request
	s := NewSynthesizer(llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		got = req
		return "  the cat sat on the mat \n", nil
	}))
	text, ok := s.Answer(context.Background(), "Where did the cat sit?", "The cat sat on the mat.")
	if !ok || text != "the cat sat on the mat" {
		t.Fatalf("Answer = %q, %v", text, ok)
	}
	if !strings.Contains(got.Prompt, "\"\"\"\nThe cat sat on the mat.\n\"\"\"") {
		t.Errorf("passage not quoted in prompt: %q", got.Prompt)
	}
	if !strings.HasSuffix(got.Prompt, "Question: Where did the cat sit?\nAnswer:") {
		t.Errorf("prompt tail: %q", got.Prompt)
	}
	if got.Temperature != DefaultAnswerTemperature || got.MaxTokens != DefaultAnswerMaxTokens {
		t.Errorf("sampling = %v/%d", got.Temperature, got.MaxTokens)
	}
}

func TestSynthesizer_AnswerFailureIsPlaceholder(t *testing.T) {
	s := NewSynthesizer(llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		return "", fmt.Errorf("%w: rate limited", llm.ErrCompletion)
	}))
	text, ok := s.Answer(context.Background(), "q", "p")
	if ok {
		t.Fatal("ok = true on failure")
	}
	if !strings.HasPrefix(text, "[Error during LLM answer generation: ") || !strings.Contains(text, "rate limited") {
		t.Errorf("placeholder = %q", text)
	}
}

func TestSynthesizer_AnswerAllKeepsInputOrder(t *testing.T) {
	var inflight, peak int32
	s := NewSynthesizer(llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		n := atomic.AddInt32(&inflight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		defer atomic.AddInt32(&inflight, -1)
		// Earlier documents finish last.
		switch {
		case strings.Contains(req.Prompt, "passage from a"):
			time.Sleep(30 * time.Millisecond)
			return "answer a", nil
		case strings.Contains(req.Prompt, "passage from b"):
			time.Sleep(15 * time.Millisecond)
			return "answer b", nil
		default:
			return "answer c", nil
		}
	}), WithWorkers(2))

	recs := s.AnswerAll(context.Background(), "q", results("a", "b", "c"))
	if len(recs) != 3 {
		t.Fatalf("records = %d", len(recs))
	}
	for i, want := range []string{"a", "b", "c"} {
		if recs[i].DocName != want || recs[i].Answer != "answer "+want || recs[i].DocID != "id-"+want {
			t.Errorf("record %d = %+v", i, recs[i])
		}
	}
	if peak > 2 {
		t.Errorf("peak concurrency %d exceeds workers", peak)
	}
}

func TestSynthesizer_AnswerAllPartialFailure(t *testing.T) {
	s := NewSynthesizer(llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		if strings.Contains(req.Prompt, "passage from bad") {
			return "", errors.New("boom")
		}
		return "fine", nil
	}))
	recs := s.AnswerAll(context.Background(), "q", results("good", "bad"))
	if recs[0].Failed || recs[0].Answer != "fine" {
		t.Errorf("good record = %+v", recs[0])
	}
	if !recs[1].Failed || !strings.Contains(recs[1].Answer, "boom") {
		t.Errorf("bad record = %+v", recs[1])
	}
}

func TestSynthesizer_AnswerAllEmpty(t *testing.T) {
	s := NewSynthesizer(llm.EchoCompleter{})
	if recs := s.AnswerAll(context.Background(), "q", nil); len(recs) != 0 {
		t.Errorf("records = %v", recs)
	}
}

func TestCitation(t *testing.T) {
	if got := Citation("report.pdf"); got != "Doc: report.pdf..." {
		t.Errorf("short name: %q", got)
	}
	long := strings.Repeat("x", 29) + "éabc"
	if got := Citation(long); got != "Doc: "+strings.Repeat("x", 29)+"é..." {
		t.Errorf("long name: %q", got)
	}
}

func TestThemeAggregator_EmptyAnswersSkipsCompletion(t *testing.T) {
	called := false
	a := NewThemeAggregator(llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		called = true
		return "", nil
	}))
	if got := a.Summarize(context.Background(), "q", nil); got != InsufficientData {
		t.Errorf("Summarize = %q", got)
	}
	if called {
		t.Error("completion called for empty answers")
	}
}

func TestThemeAggregator_Summarize(t *testing.T) {
	var got llm.Request
	a := NewThemeAggregator(llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		got = req
		return " theme \n", nil
	}))
	out := a.Summarize(context.Background(), "What now?", []string{"one", "two"})
	if out != "theme" {
		t.Errorf("Summarize = %q", out)
	}
	if !strings.Contains(got.Prompt, "User Question: What now?\n\nAnswers:\n- one\n\n- two\n\nPlease provide") {
		t.Errorf("prompt = %q", got.Prompt)
	}
	if got.Temperature != DefaultSummaryTemperature || got.MaxTokens != DefaultSummaryMaxTokens {
		t.Errorf("sampling = %v/%d", got.Temperature, got.MaxTokens)
	}
}

func TestThemeAggregator_FailureIsPlaceholder(t *testing.T) {
	a := NewThemeAggregator(llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		return "", errors.New("down")
	}))
	if got := a.Summarize(context.Background(), "q", []string{"x"}); got != "[Error during theme summarization: down]" {
		t.Errorf("Summarize = %q", got)
	}
}

func TestWithSamplingOverrides(t *testing.T) {
	var got llm.Request
	c := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		got = req
		return "ok", nil
	})
	NewSynthesizer(c, WithSampling(0.1, 64)).Answer(context.Background(), "q", "p")
	if got.Temperature != 0.1 || got.MaxTokens != 64 {
		t.Errorf("sampling = %v/%d", got.Temperature, got.MaxTokens)
	}
}
