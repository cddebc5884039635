package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/ingestion"
)

type fakeRequester struct {
	err   error
	books []string
}

func (f *fakeRequester) Request(_ context.Context, bookID string) (*ingestion.ReindexAccepted, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.books = append(f.books, bookID)
	return &ingestion.ReindexAccepted{RequestID: "r1", BookID: bookID, Status: "PENDING"}, nil
}

func serve(h *Handler, method, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/reindex", h.Reindex)
	mux.HandleFunc("POST /api/v1/books/{book}/reindex", h.Reindex)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestReindexAccepted(t *testing.T) {
	req := &fakeRequester{}
	rec := serve(New(req), http.MethodPost, "/api/v1/books/cats/reindex")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var got ingestion.ReindexAccepted
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.BookID != "cats" || got.RequestID != "r1" {
		t.Errorf("accepted = %+v", got)
	}

	rec = serve(New(req), http.MethodPost, "/api/v1/reindex")
	if rec.Code != http.StatusAccepted || req.books[1] != "" {
		t.Errorf("whole collection: status %d, books %v", rec.Code, req.books)
	}
}

func TestReindexRejectsHiddenBook(t *testing.T) {
	req := &fakeRequester{}
	rec := serve(New(req), http.MethodPost, "/api/v1/books/.index/reindex")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(req.books) != 0 {
		t.Error("invalid request was queued")
	}
}

func TestReindexQueueDown(t *testing.T) {
	rec := serve(New(&fakeRequester{err: errors.New("no brokers")}), http.MethodPost, "/api/v1/reindex")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}
