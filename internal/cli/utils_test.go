package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/kotaeru/internal/models"
)

func sampleAnswer() *models.AskResponse {
	return &models.AskResponse{
		Question: "Where did the cat sit?",
		IndividualAnswers: []models.AnswerRecord{
			{DocID: "doc-1", DocName: "cats.txt", Answer: "On the mat.", Citation: "Doc: cats.txt..."},
			{DocID: "doc-2", DocName: "dogs.txt", Answer: "[Error during LLM answer generation: boom]", Citation: "Doc: dogs.txt...", Failed: true},
		},
		ThemeSummary: "Cats sit on mats.",
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{" JSON ", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteAnswer_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, sampleAnswer(), OutputJSON); err != nil {
		t.Fatalf("WriteAnswer(json): %v", err)
	}
	var decoded models.AskResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Question != "Where did the cat sit?" || len(decoded.IndividualAnswers) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
	if !decoded.IndividualAnswers[1].Failed || decoded.ThemeSummary != "Cats sit on mats." {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteAnswer_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, sampleAnswer(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Question: Where did the cat sit?",
		"[1] Doc: cats.txt... (doc-1)",
		"On the mat.",
		"[2] Doc: dogs.txt... (doc-2)",
		"=== Theme summary ===",
		"Cats sit on mats.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteAnswer_textNoPassages(t *testing.T) {
	var buf bytes.Buffer
	WriteAnswer(&buf, &models.AskResponse{Question: "q", ThemeSummary: "none"}, OutputText)
	if !strings.Contains(buf.String(), "No matching passages.") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestWriteUpload(t *testing.T) {
	resp := &models.UploadResponse{Message: "File uploaded and processed successfully.", DocID: "abc", Preview: "hello world", Chunks: 2}
	var buf bytes.Buffer
	WriteUpload(&buf, resp, OutputText)
	out := buf.String()
	if !strings.Contains(out, "ID: abc") || !strings.Contains(out, "Chunks: 2") || !strings.Contains(out, "hello world") {
		t.Errorf("text output = %q", out)
	}

	buf.Reset()
	WriteUpload(&buf, resp, OutputJSON)
	var decoded models.UploadResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil || decoded != *resp {
		t.Errorf("json output = %q err = %v", buf.String(), err)
	}
}

func TestWriteDocuments(t *testing.T) {
	var buf bytes.Buffer
	WriteDocuments(&buf, nil, OutputJSON)
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty json = %q", buf.String())
	}

	buf.Reset()
	WriteDocuments(&buf, nil, OutputText)
	if !strings.Contains(buf.String(), "No documents.") {
		t.Errorf("empty text = %q", buf.String())
	}

	buf.Reset()
	WriteDocuments(&buf, []models.DocumentSummary{{ID: "1", Name: "a.txt"}, {ID: "2", Name: "b.pdf"}}, OutputText)
	if buf.String() != "1\ta.txt\n2\tb.pdf\n" {
		t.Errorf("text = %q", buf.String())
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxWords int
		want     string
	}{
		{"empty", "", 3, ""},
		{"few words", "one two", 3, "one two"},
		{"exact", "one two three", 3, "one two three"},
		{"more", "one two three four", 3, "one two three..."},
		{"single long", "word", 1, "word"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateWords(tt.s, tt.maxWords)
			if got != tt.want {
				t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.s, tt.maxWords, got, tt.want)
			}
		})
	}
}
