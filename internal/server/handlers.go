package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/chunkstore/internal/models"
	"github.com/hyperjump/chunkstore/internal/storage"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500

	// defaultMaxBodyBytes caps ingest and query request bodies.
	defaultMaxBodyBytes = 32 << 20
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req models.IngestRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.logger.Debug("ingest request", zap.String("document_id", req.DocumentID), zap.Int("chars", len(req.Text)))
	res, err := s.store.IngestDocument(r.Context(), &req)
	if err != nil {
		s.fail(w, "ingest failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, res)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.logger.Debug("query request",
		zap.String("text", req.Text),
		zap.String("filter", req.Filter.String()),
		zap.Int("k", req.K))
	res, err := s.store.Query(r.Context(), &req)
	if err != nil {
		s.fail(w, "query failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ledger := s.store.Ledger()
	if ledger == nil {
		s.respondError(w, http.StatusNotImplemented, "ledger not enabled")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	docs, err := ledger.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.fail(w, "list documents failed", err)
		return
	}
	total, err := ledger.CountDocuments(r.Context())
	if err != nil {
		s.fail(w, "count documents failed", err)
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"total":     total,
		"offset":    offset,
		"limit":     limit,
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, chunks, err := s.store.Document(r.Context(), id)
	if err != nil {
		s.fail(w, "get document failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"document": doc,
		"chunks":   chunks,
	})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.store.Entry(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "get entry failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, e)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.store.Status().Initialized {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "initializing"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.store.Status()
	resp := map[string]interface{}{
		"index": st,
	}
	if ledger := s.store.Ledger(); ledger != nil {
		ctx := r.Context()
		docCount, err := ledger.CountDocuments(ctx)
		if err != nil {
			s.fail(w, "status: count documents failed", err)
			return
		}
		chunkCount, err := ledger.CountChunks(ctx)
		if err != nil {
			s.fail(w, "status: count chunks failed", err)
			return
		}
		resp["documents"] = docCount
		resp["chunks"] = chunkCount
	}
	diskBytes, err := storage.DiskUsageBytes(s.config.Storage.IndexDir, s.config.Storage.DatabasePath)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	} else {
		s.logger.Warn("status: disk usage failed", zap.Error(err))
	}
	resp["config"] = map[string]interface{}{
		"embedding_provider":   s.config.Embedding.Provider,
		"embedding_model":      s.config.Embedding.Model,
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"default_k":            s.config.Retrieval.DefaultK,
		"max_k":                s.config.Retrieval.MaxK,
		"filter_keys":          s.config.Retrieval.FilterKeys,
		"database_path":        s.config.Storage.DatabasePath,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectories(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

// statusFor maps store errors to HTTP status codes.
// decodeBody reads a JSON body of at most s.maxBody bytes into v. On failure it writes
// 413 or 400 and returns false.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.respondError(w, http.StatusRequestEntityTooLarge,
			"request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
		return false
	}
	s.respondError(w, http.StatusBadRequest, "invalid request body")
	return false
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidQuery),
		errors.Is(err, models.ErrExtractionEmpty),
		errors.Is(err, models.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrIndexConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrIndexUninitialized),
		errors.Is(err, models.ErrStoreClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrEmbeddingFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
