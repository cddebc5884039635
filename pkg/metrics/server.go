package metrics

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
)

var indexPage = template.Must(template.New("index").Parse(
	`<html><body><h1>{{.Name}}</h1><ul>{{range .Routes}}<li><a href="{{.}}">{{.}}</a></li>{{end}}</ul></body></html>`))

// Server is the operational listener of a binary: /metrics plus whatever
// else it mounts, typically health probes for processes without an API.
type Server struct {
	name   string
	mux    *http.ServeMux
	routes []string
	srv    *http.Server
	logger *slog.Logger
}

func NewServer(name string, port int) *Server {
	s := &Server{
		name:   name,
		mux:    http.NewServeMux(),
		logger: slog.Default().With("component", "metrics-server"),
	}
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.Handle("/metrics", Handler())
	s.mux.HandleFunc("/{$}", s.index)
	return s
}

// Handle mounts h at pattern and lists its path on the index page. Call
// before Start.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
	path := pattern
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		path = pattern[i+1:]
	}
	s.routes = append(s.routes, path)
	sort.Strings(s.routes)
}

// Start serves in the background and returns the shutdown func.
func (s *Server) Start() (shutdown func(context.Context) error) {
	go func() {
		s.logger.Info("metrics server listening", "addr", s.srv.Addr, "routes", s.routes)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", "error", err)
		}
	}()
	return s.srv.Shutdown
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := indexPage.Execute(w, struct {
		Name   string
		Routes []string
	}{s.name, s.routes})
	if err != nil {
		s.logger.Error("rendering index page", "error", err)
	}
}
