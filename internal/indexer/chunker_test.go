package indexer

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunker_RoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		text      string
		wantCount int
	}{
		{"empty", 5, "", 0},
		{"shorter than size", 5, "abc", 1},
		{"exactly size", 5, "abcde", 1},
		{"one over", 5, "abcdef", 2},
		{"several", 3, "one two three", 5},
		{"multibyte", 2, "日本語のテキスト", 4},
		{"mixed", 4, "héllo wörld ✓", 4},
		{"default size", 0, strings.Repeat("x", 1001), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChunker(tt.size)
			var b strings.Builder
			n := 0
			for ord, chunk := range c.Chunks(tt.text) {
				if ord != n {
					t.Errorf("ordinal=%d, want %d", ord, n)
				}
				if got := utf8.RuneCountInString(chunk); got > c.Size() || got == 0 {
					t.Errorf("chunk %d has %d characters (max %d)", ord, got, c.Size())
				}
				if !utf8.ValidString(chunk) {
					t.Errorf("chunk %d is not valid UTF-8: %q", ord, chunk)
				}
				b.WriteString(chunk)
				n++
			}
			if n != tt.wantCount {
				t.Errorf("got %d chunks, want %d", n, tt.wantCount)
			}
			if b.String() != tt.text {
				t.Errorf("round trip mismatch: %q != %q", b.String(), tt.text)
			}
		})
	}
}

func TestChunker_OnlyLastChunkShort(t *testing.T) {
	c := NewChunker(4)
	chunks := c.Split("abcdefghij")
	want := []string{"abcd", "efgh", "ij"}
	if len(chunks) != len(want) {
		t.Fatalf("chunks=%q", chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d=%q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestChunker_Restartable(t *testing.T) {
	seq := NewChunker(3).Chunks("abcdefgh")
	first := collect(seq)
	second := collect(seq)
	if strings.Join(first, "|") != strings.Join(second, "|") {
		t.Errorf("second pass differs: %q vs %q", first, second)
	}
}

func TestChunker_EarlyBreak(t *testing.T) {
	n := 0
	for range NewChunker(1).Chunks("abcdef") {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("n=%d", n)
	}
}

func collect(seq func(func(int, string) bool)) []string {
	var out []string
	seq(func(_ int, s string) bool {
		out = append(out, s)
		return true
	})
	return out
}
