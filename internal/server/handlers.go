package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/kotaeru/internal/corpus"
	"github.com/hyperjump/kotaeru/internal/extract"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/qa"
	"github.com/hyperjump/kotaeru/internal/retrieval"
	"github.com/hyperjump/kotaeru/internal/storage"
	"go.uber.org/zap"
)

const noDocumentsMessage = "No documents uploaded yet."

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"message": WelcomeMessage})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxMB := s.config.Server.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 32
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxMB)<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		s.respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	s.logger.Debug("upload request", zap.String("filename", header.Filename), zap.Int64("size", header.Size))
	resp, err := s.service.Upload(r.Context(), header.Filename, file)
	if err != nil {
		s.respondFailure(w, "upload failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.service.Documents(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.respondFailure(w, "list documents failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.Document(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, "get document failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if _, err := s.service.Delete(r.Context(), id); err != nil {
		s.respondFailure(w, "delete failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// handleAsk accepts the question as a form field or as a JSON body.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	} else {
		req.Question = r.FormValue("question")
	}
	s.logger.Debug("ask request", zap.String("question", req.Question), zap.Int("top_k", req.TopK))
	resp, err := s.service.Ask(r.Context(), &req)
	if err != nil {
		s.respondFailure(w, "ask failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.service.Status(r.Context())
	cfg := s.config
	resp := map[string]interface{}{
		"documents":         st.Documents,
		"chunks":            st.Chunks,
		"vector_index_size": st.Vectors,
		"keyword_documents": st.KeywordDocuments,
		"config": map[string]interface{}{
			"vector_index_type":   st.IndexType,
			"embedding_provider":  cfg.Embedding.Provider,
			"embedding_dimension": st.Dimensions,
			"completion_provider": cfg.Completion.Provider,
			"completion_model":    cfg.Completion.Model,
			"chunk_size":          cfg.Retrieval.ChunkSize,
			"top_k":               cfg.Retrieval.TopK,
			"database_path":       cfg.Storage.DatabasePath,
			"vector_index_path":   cfg.Storage.VectorIndexPath,
			"keyword_index_path":  cfg.Storage.KeywordIndexPath,
			"upload_dir":          cfg.Server.UploadDir,
		},
	}
	if s.watch != nil {
		resp["watch_directories"] = s.watch.Directories()
	}
	if n, err := storage.DiskUsageBytes(
		cfg.Storage.DatabasePath,
		cfg.Storage.VectorIndexPath,
		cfg.Storage.KeywordIndexPath,
		cfg.Server.UploadDir,
	); err == nil {
		resp["disk_usage_bytes"] = n
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, qa.ErrNoDocuments),
		errors.Is(err, qa.ErrInvalidQuestion),
		errors.Is(err, qa.ErrInvalidUpload):
		return http.StatusBadRequest
	case errors.Is(err, corpus.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, corpus.ErrExists):
		return http.StatusConflict
	case errors.Is(err, extract.ErrExtraction),
		errors.Is(err, retrieval.ErrEmptyDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, retrieval.ErrEmbedding):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondFailure(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, qa.ErrNoDocuments) {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"message": noDocumentsMessage})
		return
	}
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
