package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestServerIndexListsMountedRoutes(t *testing.T) {
	s := NewServer("Book Search Indexer", 0)
	s.Handle("GET /health/ready", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "ok")
	}))

	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("index status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Book Search Indexer", `href="/health/ready"`, `href="/metrics"`} {
		if !strings.Contains(body, want) {
			t.Errorf("index page missing %q:\n%s", want, body)
		}
	}

	rec = httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Body.String() != "ok" {
		t.Errorf("mounted handler body = %q", rec.Body.String())
	}
}

func TestServerUnknownPathIsNotFound(t *testing.T) {
	s := NewServer("Book Search", 0)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
