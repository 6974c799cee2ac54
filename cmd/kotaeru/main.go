// Package main is the Kotaeru CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/kotaeru/internal/config"
	"github.com/hyperjump/kotaeru/internal/corpus"
	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/extract"
	"github.com/hyperjump/kotaeru/internal/indexer"
	"github.com/hyperjump/kotaeru/internal/keyword"
	"github.com/hyperjump/kotaeru/internal/llm"
	"github.com/hyperjump/kotaeru/internal/qa"
	"github.com/hyperjump/kotaeru/internal/retrieval"
	"github.com/hyperjump/kotaeru/internal/storage"
	"github.com/hyperjump/kotaeru/internal/synthesis"
	"github.com/hyperjump/kotaeru/internal/vector"
	"github.com/hyperjump/kotaeru/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotaeru/config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads config from path. When path is the default and a config.yaml
// exists in the current directory, that file is used instead.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// Components holds initialized services.
type Components struct {
	Config       *config.Config
	Storage      storage.Storage
	VectorIndex  vector.VectorIndex
	State        *corpus.State
	Embedder     embedding.Embedder
	KeywordIndex keyword.KeywordIndex
	Engine       *retrieval.Engine
	Service      *qa.Service
	Indexer      *indexer.Indexer
	logger       *zap.Logger
}

// SaveIndex writes the vector index so the next start resumes from it.
func (c *Components) SaveIndex() {
	if err := c.State.Save(c.Config.Storage.VectorIndexPath); err != nil {
		c.logger.Warn("vector index save failed",
			zap.String("path", c.Config.Storage.VectorIndexPath), zap.Error(err))
	}
}

func (c *Components) Close() {
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// initializeComponents builds the corpus and everything around it. Without
// completion the answer backend is replaced by an echo completer, so commands
// that never ask do not need an API key.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, completion bool) (*Components, error) {
	c := &Components{Config: cfg, logger: logger}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	embedder, err := embedding.New(&cfg.Embedding)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedder

	index, err := vector.NewVectorIndex(cfg.Retrieval.IndexType, embedder.Dimensions())
	if err != nil {
		if cfg.Retrieval.IndexType == string(vector.IndexTypeMemory) || cfg.Retrieval.IndexType == "" {
			c.Close()
			return nil, fmt.Errorf("failed to initialize vector index: %w", err)
		}
		logger.Warn("failed to create vector index, falling back to memory",
			zap.String("requested_type", cfg.Retrieval.IndexType), zap.Error(err))
		if index, err = vector.NewVectorIndex(string(vector.IndexTypeMemory), embedder.Dimensions()); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize vector index: %w", err)
		}
	}
	c.VectorIndex = index
	logger.Info("vector index initialized",
		zap.String("type", index.Type()),
		zap.Int("dimensions", index.Dimensions()),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))

	c.State = corpus.New(index, corpus.WithStorage(store), corpus.WithLogger(logger))
	report, err := c.State.Restore(ctx, cfg.Storage.VectorIndexPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to restore corpus: %w", err)
	}
	logger.Info("corpus restored",
		zap.Int("documents", report.Documents),
		zap.Int("rows", report.Rows),
		zap.Int("orphan_vectors", report.OrphanVectors),
		zap.Int("missing_rows", report.MissingRows))

	var completer llm.Completer = llm.EchoCompleter{}
	if completion {
		if completer, err = llm.New(&cfg.Completion); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize completion: %w", err)
		}
	}

	keywords, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.KeywordIndex = keywords

	c.Engine = retrieval.NewEngine(c.State, embedder, indexer.NewChunker(cfg.Retrieval.ChunkSize),
		retrieval.WithTopK(cfg.Retrieval.TopK), retrieval.WithLogger(logger))
	synth := synthesis.NewSynthesizer(completer,
		synthesis.WithSampling(cfg.Completion.AnswerTemperature, cfg.Completion.AnswerMaxTokens),
		synthesis.WithWorkers(cfg.Retrieval.Workers),
		synthesis.WithLogger(logger))
	themes := synthesis.NewThemeAggregator(completer,
		synthesis.WithSampling(cfg.Completion.SummaryTemperature, cfg.Completion.SummaryMaxTokens),
		synthesis.WithLogger(logger))
	extractor := extract.NewExtractor(extract.WithLogger(logger))

	c.Service = qa.NewService(c.State, c.Engine, synth, themes, extractor,
		qa.WithKeywordIndex(keywords),
		qa.WithUploadDir(cfg.Server.UploadDir),
		qa.WithPreviewChars(cfg.Retrieval.PreviewChars),
		qa.WithLogger(logger))
	c.Indexer = indexer.NewIndexer(c.Service, extractor, cfg.Watch.Extensions, indexer.WithLogger(logger))
	return c, nil
}

// setup loads config, builds a logger and initializes components.
func setup(ctx context.Context, opts *rootOptions, completion bool) (*Components, *zap.Logger, error) {
	cfg, path, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || opts.debug
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", path), zap.Bool("debug", debug))
	c, err := initializeComponents(ctx, cfg, logger, completion)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return c, logger, nil
}
