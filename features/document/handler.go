package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

type Handler struct {
	service       *Service
	maxUploadSize int64
}

func NewHandler(service *Service, maxUploadSize int64) *Handler {
	if maxUploadSize <= 0 {
		maxUploadSize = 50 << 20
	}
	return &Handler{service: service, maxUploadSize: maxUploadSize}
}

// Create accepts a raw document body. The owner comes from X-Owner-ID, set by
// the (out of scope) authenticating front door.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get("X-Owner-ID")
	if ownerID == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "X-Owner-ID header is required", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "unable to read body", http.StatusRequestEntityTooLarge)
		return
	}
	if len(raw) == 0 {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "empty body", http.StatusBadRequest)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc, err := h.service.Submit(r.Context(), ownerID, raw, contentType)
	if errors.Is(err, ErrDuplicate) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		h.encode(w, map[string]interface{}{"data": doc, "error": map[string]string{
			"code":    "DUPLICATE",
			"message": "identical content already submitted by this owner",
		}})
		return
	}
	if err != nil {
		slog.Error("document submit failed", "error", err, "owner_id", ownerID)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	h.encode(w, map[string]interface{}{"data": doc})
}

// Get returns the document plus its pipeline job history.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status, err := h.service.Status(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		h.writeError(r.Context(), w, "NOT_FOUND", "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	// Owners only see their own documents.
	if owner := r.Header.Get("X-Owner-ID"); owner != "" && owner != status.Document.OwnerID {
		h.writeError(r.Context(), w, "NOT_FOUND", "document not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	h.encode(w, map[string]interface{}{"data": status})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get("X-Owner-ID")
	if ownerID == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "X-Owner-ID header is required", http.StatusBadRequest)
		return
	}

	docs, err := h.service.List(r.Context(), ownerID)
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []Document{}
	}

	w.Header().Set("Content-Type", "application/json")
	h.encode(w, map[string]interface{}{"data": docs, "total": len(docs)})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	doc, err := h.service.Get(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		h.writeError(r.Context(), w, "NOT_FOUND", "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if owner := r.Header.Get("X-Owner-ID"); owner != "" && owner != doc.OwnerID {
		h.writeError(r.Context(), w, "NOT_FOUND", "document not found", http.StatusNotFound)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) encode(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	slog.WarnContext(ctx, "request error", "code", code, "message", message, "status", status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	h.encode(w, map[string]interface{}{"error": map[string]string{"code": code, "message": message}})
}
