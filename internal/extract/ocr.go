package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// ErrOCRUnavailable is returned when the OCR tools are not installed.
var ErrOCRUnavailable = errors.New("ocr tools not available")

// OCR recognizes text in images and in PDFs without a text layer.
type OCR interface {
	Image(ctx context.Context, image []byte, ext string) (string, error)
	PDF(ctx context.Context, doc []byte) (string, error)
}

// Tesseract runs the tesseract binary, rasterizing PDF pages with pdftoppm first.
type Tesseract struct {
	TesseractPath string
	PdftoppmPath  string
	// Language is passed to tesseract -l. Empty uses tesseract's default.
	Language string
	// DPI for PDF rasterization.
	DPI int
}

// NewTesseract returns a Tesseract using binaries found on PATH.
func NewTesseract() *Tesseract {
	return &Tesseract{TesseractPath: "tesseract", PdftoppmPath: "pdftoppm", DPI: 300}
}

func lookPath(name string) (string, error) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrOCRUnavailable, name, err)
	}
	return p, nil
}

// Image writes image to a temporary file and recognizes it.
func (t *Tesseract) Image(ctx context.Context, image []byte, ext string) (string, error) {
	dir, err := os.MkdirTemp("", "kotaeru-ocr-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "image"+ext)
	if err := os.WriteFile(path, image, 0600); err != nil {
		return "", err
	}
	return t.recognize(ctx, path)
}

// PDF rasterizes every page and recognizes the pages in order.
func (t *Tesseract) PDF(ctx context.Context, doc []byte) (string, error) {
	pdftoppm, err := lookPath(t.PdftoppmPath)
	if err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp("", "kotaeru-ocr-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)
	in := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(in, doc, 0600); err != nil {
		return "", err
	}
	dpi := t.DPI
	if dpi <= 0 {
		dpi = 300
	}
	cmd := exec.CommandContext(ctx, pdftoppm, "-r", fmt.Sprint(dpi), "-png", in, filepath.Join(dir, "page"))
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(out)))
	}
	pages, err := filepath.Glob(filepath.Join(dir, "page*.png"))
	if err != nil {
		return "", err
	}
	// pdftoppm zero-pads page numbers within one run.
	sort.Strings(pages)
	var b strings.Builder
	for _, page := range pages {
		text, err := t.recognize(ctx, page)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func (t *Tesseract) recognize(ctx context.Context, path string) (string, error) {
	bin, err := lookPath(t.TesseractPath)
	if err != nil {
		return "", err
	}
	args := []string{path, "stdout"}
	if t.Language != "" {
		args = append(args, "-l", t.Language)
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
