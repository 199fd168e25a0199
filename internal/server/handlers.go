package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/autocat/internal/embedding"
	"github.com/hyperjump/autocat/internal/engine"
	"github.com/hyperjump/autocat/internal/models"
	"github.com/hyperjump/autocat/internal/prototype"
	"github.com/hyperjump/autocat/internal/storage"
)

func (s *Server) handleClassifyItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var opts engine.ClassifyOptions
	q := r.URL.Query()
	if v := q.Get("dry_run"); v != "" {
		dryRun, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "dry_run must be a boolean", nil)
			return
		}
		opts.DryRun = dryRun
	}
	if v := q.Get("threshold"); v != "" {
		th, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "threshold must be a number", nil)
			return
		}
		if apiErr := validateVar("threshold", th, "gte=-1,lte=1"); apiErr != nil {
			s.respondAPIError(w, http.StatusBadRequest, apiErr)
			return
		}
		opts.Threshold = &th
	}

	s.logger.Debug("classify request", zap.String("item_id", id), zap.Bool("dry_run", opts.DryRun))
	out, err := s.engine.ClassifyItem(r.Context(), id, opts)
	if err != nil {
		s.respondEngineError(w, "classify failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleEmbedItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.engine.EmbedItem(r.Context(), id)
	if err != nil {
		s.respondEngineError(w, "embed failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"item_id":   id,
		"model_key": rec.ModelKey,
		"dim":       rec.Dim,
	})
}

type setCategoryRequest struct {
	CategoryID string `json:"category_id" validate:"required"`
}

func (s *Server) handleSetCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req setCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body", nil)
		return
	}
	if apiErr := validateStruct(&req); apiErr != nil {
		s.respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}
	if err := s.engine.SetCategory(r.Context(), id, req.CategoryID); err != nil {
		s.respondEngineError(w, "set category failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"item_id":            id,
		"category_id":        req.CategoryID,
		"is_category_locked": true,
	})
}

func (s *Server) handleLock(locked bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := s.engine.SetLock(r.Context(), id, locked); err != nil {
			s.respondEngineError(w, "set lock failed", err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]any{
			"status":             "ok",
			"item_id":            id,
			"is_category_locked": locked,
		})
	}
}

func (s *Server) handleReclassify(w http.ResponseWriter, r *http.Request) {
	req := models.DefaultReclassifyRequest(s.engine.Settings().Reclassify.DefaultLimit)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body", nil)
		return
	}
	if apiErr := validateStruct(&req); apiErr != nil {
		s.respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	s.logger.Info("reclassify request",
		zap.Int("limit", req.Limit), zap.Bool("dry_run", req.DryRun),
		zap.Bool("force", req.Force), zap.Bool("only_uncategorized", req.OnlyUncategorized))
	report, err := s.engine.Reclassify(r.Context(), req)
	if err != nil {
		s.respondEngineError(w, "reclassify failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Settings()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"auto_category": st.Classify,
	})
}

func (s *Server) handlePrototypes(w http.ResponseWriter, r *http.Request) {
	set, err := s.engine.Prototypes(r.Context())
	if err != nil {
		s.respondEngineError(w, "prototype build failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"model_key":  s.engine.ModelKey(),
		"count":      len(set),
		"prototypes": set,
	})
}

func (s *Server) handleCategoryEmbeddings(w http.ResponseWriter, r *http.Request) {
	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "force must be a boolean", nil)
			return
		}
		force = b
	}
	n, err := s.engine.EnsureCategoryEmbeddings(r.Context(), force)
	if err != nil {
		s.respondEngineError(w, "category embedding failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "encoded": n})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var paths []string
	if s.config != nil {
		paths = storage.DatabaseFiles(s.config.Storage.DatabasePath)
	}
	st, err := s.engine.Status(r.Context(), paths...)
	if err != nil {
		s.respondEngineError(w, "status failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondEngineError maps engine errors to status codes and error codes.
func (s *Server) respondEngineError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, prototype.ErrNoCategoriesAvailable):
		s.logger.Error(msg, zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "NO_CATEGORIES", "no categories available; seed categories first", nil)
	case errors.Is(err, embedding.ErrEncoderUnavailable):
		s.respondError(w, http.StatusServiceUnavailable, "ENCODER_UNAVAILABLE", err.Error(), nil)
	case errors.Is(err, engine.ErrNoImage):
		s.respondError(w, http.StatusUnprocessableEntity, "NO_IMAGE", err.Error(), nil)
	default:
		s.logger.Error(msg, zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), nil)
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(data)
}

func (s *Server) respondAPIError(w http.ResponseWriter, status int, apiErr *apiError) {
	s.respondJSON(w, status, map[string]*apiError{"error": apiErr})
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	s.respondAPIError(w, status, &apiError{Code: code, Message: message, Details: details})
}
