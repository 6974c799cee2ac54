// Package extract turns uploaded files into plain text, with OCR for images and scanned PDFs.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrExtraction is returned when no text could be obtained from a file.
var ErrExtraction = errors.New("text extraction failed")

var imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// Extractor extracts plain text from document files.
type Extractor struct {
	ocr    OCR
	logger *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithOCR sets the OCR backend. A nil OCR disables images and scanned PDFs.
func WithOCR(o OCR) Option {
	return func(e *Extractor) { e.ocr = o }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor returns an Extractor that uses tesseract for OCR.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{ocr: NewTesseract(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads the file at path and extracts its text.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read file: %w", ErrExtraction, err)
	}
	return e.ExtractBytes(ctx, content, filepath.Ext(path))
}

// ExtractBytes extracts text from content according to ext (".pdf", ".png", ...).
// Unknown extensions are read as UTF-8 text. Every failure, including output
// with no visible text, matches ErrExtraction.
func (e *Extractor) ExtractBytes(ctx context.Context, content []byte, ext string) (string, error) {
	ext = strings.ToLower(ext)
	text, err := e.extract(ctx, content, ext)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no text detected in %q file", ErrExtraction, ext)
	}
	return text, nil
}

func (e *Extractor) extract(ctx context.Context, content []byte, ext string) (string, error) {
	switch {
	case ext == ".pdf":
		return e.extractPDF(ctx, content)
	case imageExtensions[ext]:
		if e.ocr == nil {
			return "", ErrOCRUnavailable
		}
		return e.ocr.Image(ctx, content, ext)
	case ext == ".docx":
		return extractDOCX(content)
	case ext == ".odt", ext == ".rtf":
		return extractWithCat(content)
	case ext == ".xlsx":
		return extractExcel(content)
	case ext == ".pptx":
		return extractPPTX(content)
	case ext == ".odp":
		return extractODP(content)
	case ext == ".ods":
		return extractODS(content)
	default:
		return extractPlain(content), nil
	}
}

// extractPDF falls back to OCR when the text layer is empty.
func (e *Extractor) extractPDF(ctx context.Context, content []byte) (string, error) {
	text, err := extractPDFText(content)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) != "" || e.ocr == nil {
		return text, nil
	}
	e.logger.Info("pdf has no text layer, falling back to OCR", zap.Int("bytes", len(content)))
	return e.ocr.PDF(ctx, content)
}

// IsImage reports whether ext is handled by OCR.
func IsImage(ext string) bool {
	return imageExtensions[strings.ToLower(ext)]
}
