package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/veglens/veglens"
)

type handler struct {
	engine veglens.Engine
}

func newHandler(e veglens.Engine) *handler {
	return &handler{engine: e}
}

// POST /menu/analyze
// Accepts JSON with OCR texts, or a multipart PDF upload.
func (h *handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Multipart upload: a PDF menu under the "file" field.
	if err := r.ParseMultipartForm(32 << 20); err == nil { // 32MB max
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()

			// Unique temp file per upload so concurrent requests with the
			// same filename cannot clobber each other.
			ext := filepath.Ext(filepath.Base(header.Filename))
			dst, err := os.CreateTemp("", "menu-upload-*"+ext)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to process file")
				slog.Error("creating temp file", "error", err)
				return
			}
			tmpPath := dst.Name()
			defer os.Remove(tmpPath)
			if _, err := io.Copy(dst, file); err != nil {
				dst.Close()
				writeError(w, http.StatusInternalServerError, "failed to save file")
				slog.Error("saving uploaded file", "error", err)
				return
			}
			dst.Close()

			analysis, err := h.engine.AnalyzePDF(ctx, tmpPath)
			if err != nil {
				writeEngineError(w, err, "pdf analysis failed")
				return
			}
			writeJSON(w, http.StatusOK, analysis)
			return
		}
	}

	var req struct {
		Texts []string `json:"texts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'texts'")
		return
	}

	analysis, err := h.engine.AnalyzeTexts(ctx, req.Texts)
	if err != nil {
		writeEngineError(w, err, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// POST /review
func (h *handler) handleReview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequestID   string `json:"request_id"`
		Corrections []struct {
			Name         string `json:"name"`
			IsVegetarian bool   `json:"is_vegetarian"`
		} `json:"corrections"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.RequestID == "" {
		writeError(w, http.StatusBadRequest, "request_id is required")
		return
	}

	corrections := make(map[string]bool, len(req.Corrections))
	for _, c := range req.Corrections {
		corrections[c.Name] = c.IsVegetarian
	}

	analysis, err := h.engine.SubmitReview(r.Context(), req.RequestID, corrections)
	if err != nil {
		writeEngineError(w, err, "review failed")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Store().Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "degraded",
			"error":  "store unreachable",
		})
		slog.Error("health check store error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"dishes":     stats.Dishes,
		"embeddings": stats.Embeddings,
		"time":       time.Now().UTC().Format(time.RFC3339),
	})
}

// writeEngineError maps engine errors onto HTTP statuses. Validation
// errors are the caller's fault; everything else is a 500.
func writeEngineError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, veglens.ErrInvalidInput), errors.Is(err, veglens.ErrNoCorrections):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, veglens.ErrNoText), errors.Is(err, veglens.ErrNoItems):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, veglens.ErrReviewNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback)
		slog.Error("engine error", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
