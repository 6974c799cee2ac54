package embedding

import (
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, _ := tok.Tokenize("hello world", 10)
	if len(ids) != 10 {
		t.Errorf("len(ids)=%d", len(ids))
	}
	if ids[0] != 101 {
		t.Errorf("expected CLS 101, got %d", ids[0])
	}
	if ids[3] != 102 {
		t.Errorf("expected SEP 102 after two words, got %d", ids[3])
	}
	if attn[0] != 1 || attn[4] != 0 {
		t.Errorf("attention=%v", attn)
	}
}

func TestTerms(t *testing.T) {
	got := Terms("The Cat's mat, 2024 — naïve!")
	want := []string{"the", "cat's", "mat", "2024", "naïve"}
	if len(got) != len(want) {
		t.Fatalf("Terms=%q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("term %d=%q, want %q", i, got[i], want[i])
		}
	}
	if Terms("  ... ") != nil {
		t.Error("punctuation only should return nil")
	}
}

func TestHashString(t *testing.T) {
	if HashString("cat") != HashString("cat") {
		t.Error("hash not deterministic")
	}
	if HashString("a very long string that overflows the accumulator many times") < 0 {
		t.Error("hash negative")
	}
}
