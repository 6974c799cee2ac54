package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/storage"
)

// client talks to a running kotaeru server.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *client) Ask(ctx context.Context, req *models.AskRequest) (*models.AskResponse, error) {
	var resp models.AskResponse
	if err := c.do(ctx, http.MethodPost, "/ask", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) Documents(ctx context.Context, query string) ([]models.DocumentSummary, error) {
	path := "/documents"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var docs []models.DocumentSummary
	if err := c.do(ctx, http.MethodGet, path, nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *client) Status(ctx context.Context) (*statusResponse, error) {
	var s statusResponse
	if err := c.do(ctx, http.MethodGet, "/status", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// statusConfigResponse holds configuration info returned by status.
type statusConfigResponse struct {
	VectorIndexType    string `json:"vector_index_type"`
	EmbeddingProvider  string `json:"embedding_provider,omitempty"`
	EmbeddingDimension int    `json:"embedding_dimension,omitempty"`
	CompletionProvider string `json:"completion_provider,omitempty"`
	CompletionModel    string `json:"completion_model,omitempty"`
	ChunkSize          int    `json:"chunk_size,omitempty"`
	TopK               int    `json:"top_k,omitempty"`
	DatabasePath       string `json:"database_path,omitempty"`
	VectorIndexPath    string `json:"vector_index_path,omitempty"`
	KeywordIndexPath   string `json:"keyword_index_path,omitempty"`
	UploadDir          string `json:"upload_dir,omitempty"`
}

// statusResponse is the shape of the GET /status response.
type statusResponse struct {
	Documents        int                   `json:"documents"`
	Chunks           int                   `json:"chunks"`
	VectorIndexSize  int                   `json:"vector_index_size"`
	KeywordDocuments uint64                `json:"keyword_documents"`
	DiskUsageBytes   *int64                `json:"disk_usage_bytes,omitempty"`
	WatchDirectories []string              `json:"watch_directories,omitempty"`
	Config           *statusConfigResponse `json:"config,omitempty"`
}

func localStatus(ctx context.Context, c *Components) *statusResponse {
	st := c.Service.Status(ctx)
	cfg := c.Config
	status := &statusResponse{
		Documents:        st.Documents,
		Chunks:           st.Chunks,
		VectorIndexSize:  st.Vectors,
		KeywordDocuments: st.KeywordDocuments,
		WatchDirectories: cfg.Watch.Directories,
		Config: &statusConfigResponse{
			VectorIndexType:    st.IndexType,
			EmbeddingProvider:  cfg.Embedding.Provider,
			EmbeddingDimension: st.Dimensions,
			CompletionProvider: cfg.Completion.Provider,
			CompletionModel:    cfg.Completion.Model,
			ChunkSize:          cfg.Retrieval.ChunkSize,
			TopK:               cfg.Retrieval.TopK,
			DatabasePath:       cfg.Storage.DatabasePath,
			VectorIndexPath:    cfg.Storage.VectorIndexPath,
			KeywordIndexPath:   cfg.Storage.KeywordIndexPath,
			UploadDir:          cfg.Server.UploadDir,
		},
	}
	if n, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.VectorIndexPath,
		cfg.Storage.KeywordIndexPath, cfg.Server.UploadDir); err == nil {
		status.DiskUsageBytes = &n
	}
	return status
}

func writeStatusText(w io.Writer, s *statusResponse) {
	fmt.Fprintf(w, "documents:          %d   # count of ingested documents\n", s.Documents)
	fmt.Fprintf(w, "chunks:             %d   # count of text chunks\n", s.Chunks)
	fmt.Fprintf(w, "vector_index_size:  %d   # count of vectors in the index\n", s.VectorIndexSize)
	fmt.Fprintf(w, "keyword_documents:  %d\n", s.KeywordDocuments)
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # storage + indices on disk\n", *s.DiskUsageBytes)
	}
	for _, d := range s.WatchDirectories {
		fmt.Fprintf(w, "watching:           %s\n", d)
	}
	if s.Config == nil {
		return
	}
	c := s.Config
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# configuration")
	fmt.Fprintf(w, "vector_index_type:  %s\n", c.VectorIndexType)
	if c.EmbeddingProvider != "" {
		fmt.Fprintf(w, "embedding:          %s (%d dims)\n", c.EmbeddingProvider, c.EmbeddingDimension)
	}
	if c.CompletionProvider != "" {
		fmt.Fprintf(w, "completion:         %s %s\n", c.CompletionProvider, c.CompletionModel)
	}
	if c.ChunkSize > 0 {
		fmt.Fprintf(w, "chunk_size:         %d\n", c.ChunkSize)
	}
	if c.TopK > 0 {
		fmt.Fprintf(w, "top_k:              %d\n", c.TopK)
	}
	if c.DatabasePath != "" {
		fmt.Fprintf(w, "database_path:      %s\n", c.DatabasePath)
	}
	if c.VectorIndexPath != "" {
		fmt.Fprintf(w, "vector_index_path:  %s\n", c.VectorIndexPath)
	}
	if c.KeywordIndexPath != "" {
		fmt.Fprintf(w, "keyword_index_path: %s\n", c.KeywordIndexPath)
	}
}
