package indexer

import "testing"

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"trim and collapse", "  one \n\n two\t\tthree  ", "one two three"},
		{"control characters dropped", "form\x0cfeed\x00 null", "form feed null"},
		{"non-breaking space", "a  b", "a b"},
		{"multibyte kept", "日本語  テキスト", "日本語 テキスト"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preprocess(tt.in); got != tt.want {
				t.Errorf("Preprocess(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsBlank(t *testing.T) {
	for in, want := range map[string]bool{"": true, " \n\t": true, "　": true, " x ": false} {
		if got := IsBlank(in); got != want {
			t.Errorf("IsBlank(%q) = %v, want %v", in, got, want)
		}
	}
}
