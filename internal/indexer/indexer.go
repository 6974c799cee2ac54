package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kotaeru/internal/corpus"
	"github.com/hyperjump/kotaeru/internal/extract"
	"github.com/hyperjump/kotaeru/internal/models"
	"go.uber.org/zap"
)

const fileIDPrefix = "inbox:"

// Ingester commits and removes documents. qa.Service implements it.
type Ingester interface {
	IngestDocument(ctx context.Context, input *models.DocumentInput) error
	// ReplaceDocument swaps in a new version; on failure the old one is kept.
	ReplaceDocument(ctx context.Context, input *models.DocumentInput) error
	DeleteDocument(ctx context.Context, id string) error
	Document(ctx context.Context, id string) (*models.Document, error)
}

// Indexer ingests files from disk under ids derived from their paths, so a
// changed file replaces its earlier version.
type Indexer struct {
	ingester   Ingester
	extractor  *extract.Extractor
	extensions []string
	logger     *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an Indexer. An empty extensions list accepts every file.
func NewIndexer(ingester Ingester, extractor *extract.Extractor, extensions []string, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		ingester:   ingester,
		extractor:  extractor,
		extensions: extensions,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// FileDocID returns the stable document id of the file at path.
func FileDocID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sum := sha256.Sum256([]byte(filepath.Clean(abs)))
	return fileIDPrefix + hex.EncodeToString(sum[:])
}

// Accepts reports whether path has an allowed extension.
func (idx *Indexer) Accepts(path string) bool {
	return len(idx.extensions) == 0 || extensionAllowed(filepath.Ext(path), idx.extensions)
}

// IndexFile ingests the file at path and reports whether it was (re)ingested.
// A file already ingested after its last modification, or whose extracted
// text is unchanged, is skipped.
func (idx *Indexer) IndexFile(ctx context.Context, path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("absolute path: %w", err)
	}
	if !idx.Accepts(abs) {
		return false, fmt.Errorf("extension %q not in allowed list", filepath.Ext(abs))
	}
	info, err := os.Stat(abs)
	if err != nil {
		return false, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("not a regular file: %s", abs)
	}

	id := FileDocID(abs)
	existing, _ := idx.ingester.Document(ctx, id)
	if existing != nil && !existing.CreatedAt.Before(info.ModTime()) {
		idx.logger.Debug("indexer skipping unchanged file", zap.String("path", abs))
		return false, nil
	}
	text, err := idx.extractor.Extract(ctx, abs)
	if err != nil {
		return false, err
	}
	text = Preprocess(text)
	input := &models.DocumentInput{ID: id, Name: filepath.Base(abs), Content: text, SourcePath: abs}
	if existing == nil {
		err = idx.ingester.IngestDocument(ctx, input)
	} else {
		if existing.Content == text {
			return false, nil
		}
		err = idx.ingester.ReplaceDocument(ctx, input)
	}
	if err != nil {
		return false, err
	}
	idx.logger.Debug("indexer file ingested", zap.String("path", abs), zap.String("doc_id", id))
	return true, nil
}

// IndexDirectory ingests every accepted regular file under dir. A failing
// file does not stop the walk; all failures are joined into the returned error.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string, recursive bool) (int, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", abs)
	}
	var (
		n    int
		errs []error
	)
	walkErr := filepath.WalkDir(abs, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if d.IsDir() {
			if path != abs && (!recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !idx.Accepts(path) || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		// Follow symlinks; only regular targets are ingested.
		if fi, err := os.Stat(path); err != nil || !fi.Mode().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := idx.IndexFile(ctx, path)
		if err != nil {
			idx.logger.Warn("indexer failed to ingest file", zap.String("path", path), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			return nil
		}
		if ok {
			n++
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return n, errors.Join(errs...)
}

// RemoveFile deletes the document ingested from path. Unknown files are ignored.
func (idx *Indexer) RemoveFile(ctx context.Context, path string) error {
	id := FileDocID(path)
	if err := idx.ingester.DeleteDocument(ctx, id); err != nil && !errors.Is(err, corpus.ErrNotFound) {
		return err
	}
	idx.logger.Debug("indexer file removed", zap.String("path", path), zap.String("doc_id", id))
	return nil
}

func extensionAllowed(ext string, allowed []string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == ext {
			return true
		}
	}
	return false
}
