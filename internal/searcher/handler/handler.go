// Package handler serves the book search HTTP API: book listing, metadata,
// table of contents, search with highlight regions, reindex and delete.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/hocr"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/library"
	apperrors "github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/logger"
)

// Library is the service behind the API. *library.Service satisfies it.
type Library interface {
	Search(ctx context.Context, query, bookID string) (*library.SearchResponse, error)
	Reindex(ctx context.Context, bookID string) (*library.ReindexReport, error)
	DeleteBook(ctx context.Context, bookID string) error
	Metadata(ctx context.Context, bookID string) (hocr.Metadata, error)
	TOC(ctx context.Context, bookID string) ([]hocr.TOCEntry, error)
	Books(ctx context.Context) ([]library.BookSummary, error)
}

// CacheAdmin exposes result-cache statistics and manual invalidation.
type CacheAdmin interface {
	Stats() (hits, misses int64)
	Invalidate(ctx context.Context, bookID string) error
}

type Handler struct {
	library      Library
	cache        CacheAdmin
	asyncReindex http.HandlerFunc
	logger       *slog.Logger
}

// New creates a Handler. cache may be nil. When asyncReindex is set,
// reindex routes are queued through it instead of running inline.
func New(lib Library, cache CacheAdmin, asyncReindex http.HandlerFunc) *Handler {
	return &Handler{
		library:      lib,
		cache:        cache,
		asyncReindex: asyncReindex,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every API route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/books", h.ListBooks)
	mux.HandleFunc("GET /api/v1/books/{book}", h.BookMetadata)
	mux.HandleFunc("GET /api/v1/books/{book}/toc", h.BookTOC)
	mux.HandleFunc("GET /api/v1/books/{book}/search", h.Search)
	mux.HandleFunc("DELETE /api/v1/books/{book}", h.DeleteBook)
	mux.HandleFunc("GET /api/v1/search", h.Search)
	if h.asyncReindex != nil {
		mux.HandleFunc("POST /api/v1/reindex", h.asyncReindex)
		mux.HandleFunc("POST /api/v1/books/{book}/reindex", h.asyncReindex)
	} else {
		mux.HandleFunc("POST /api/v1/reindex", h.Reindex)
		mux.HandleFunc("POST /api/v1/books/{book}/reindex", h.Reindex)
	}
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search answers both /search?q=&book= and /books/{book}/search?q=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	bookID := r.PathValue("book")
	if bookID == "" {
		bookID = r.URL.Query().Get("book")
	}
	resp, err := h.library.Search(r.Context(), query, bookID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.library.Books(r.Context())
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"books": books, "count": len(books)})
}

func (h *Handler) BookMetadata(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("book")
	md, err := h.library.Metadata(r.Context(), bookID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"book_id": bookID, "metadata": md})
}

func (h *Handler) BookTOC(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("book")
	toc, err := h.library.TOC(r.Context(), bookID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"book_id": bookID, "toc": toc})
}

// Reindex rebuilds one book or the whole collection inline. A full rebuild
// with per-book failures answers 207 with the report.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	report, err := h.library.Reindex(r.Context(), r.PathValue("book"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	status := http.StatusOK
	if !report.OK() {
		status = http.StatusMultiStatus
	}
	h.writeJSON(w, status, report)
}

func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("book")
	if err := h.library.DeleteBook(r.Context(), bookID); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"book_id": bookID, "status": "deleted"})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled", "index_unavailable")
		return
	}

	if err := h.cache.Invalidate(r.Context(), r.URL.Query().Get("book")); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed", "internal")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	kind := apperrors.Kind(err)
	log := logger.FromContext(r.Context())
	message := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", r.URL.Path, "kind", kind, "error", err)
		if kind == "internal" {
			message = "internal error"
		}
	} else {
		log.Info("request rejected", "path", r.URL.Path, "kind", kind, "error", err)
	}
	h.writeError(w, status, message, kind)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, kind string) {
	h.writeJSON(w, status, map[string]string{"error": message, "kind": kind})
}
