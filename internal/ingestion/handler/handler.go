// Package handler exposes the asynchronous reindex endpoints: requests are
// validated, queued on Kafka and acknowledged with 202.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/logger"
)

// Requester queues reindex requests. *publisher.Publisher satisfies it.
type Requester interface {
	Request(ctx context.Context, bookID string) (*ingestion.ReindexAccepted, error)
}

type Handler struct {
	requester Requester
	logger    *slog.Logger
}

func New(requester Requester) *Handler {
	return &Handler{
		requester: requester,
		logger:    slog.Default().With("component", "reindex-handler"),
	}
}

// Reindex queues the book named by the {book} path value, or the whole
// collection when the route has none.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	req := ingestion.ReindexRequest{BookID: r.PathValue("book")}
	if err := validator.ValidateReindexRequest(&req); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"kind":   apperrors.Kind(apperrors.ErrInvalidInput),
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	accepted, err := h.requester.Request(ctx, req.BookID)
	if err != nil {
		log.Error("queueing reindex failed", "book_id", req.BookID, "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "reindex queue unavailable",
			"kind":  apperrors.Kind(apperrors.ErrIndexUnavailable),
		})
		return
	}
	log.Info("reindex accepted", "book_id", req.BookID, "request_id", accepted.RequestID)
	h.writeJSON(w, http.StatusAccepted, accepted)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
