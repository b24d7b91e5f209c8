package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"docpipe/internal/retrieval"
)

type queryHandler struct {
	retrieval *retrieval.Service
}

func newQueryHandler(svc *retrieval.Service) *queryHandler {
	return &queryHandler{retrieval: svc}
}

type queryRequest struct {
	Query     string    `json:"query,omitempty"`
	Vector    []float32 `json:"vector,omitempty"`
	Threshold float32   `json:"threshold,omitempty"`
	MaxTokens int       `json:"max_tokens,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

type queryResponse struct {
	Results []retrieval.ScoredChunk `json:"results"`
}

// Query accepts either free text (embedded server-side) or a raw vector.
func (h *queryHandler) Query(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get("X-Owner-ID")
	if ownerID == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "X-Owner-ID header is required", http.StatusBadRequest)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Query == "" && len(req.Vector) == 0 {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "either query or vector is required", http.StatusBadRequest)
		return
	}

	opts := retrieval.Options{Threshold: req.Threshold, MaxTokens: req.MaxTokens, Limit: req.Limit}

	var (
		results []retrieval.ScoredChunk
		err     error
	)
	if req.Query != "" {
		results, err = h.retrieval.Query(r.Context(), ownerID, req.Query, opts)
	} else {
		results, err = h.retrieval.Retrieve(r.Context(), ownerID, req.Vector, opts)
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "query failed", "owner_id", ownerID, "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "query failed", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []retrieval.ScoredChunk{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(queryResponse{Results: results}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode query response", "error", err)
	}
}

func (h *queryHandler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}
