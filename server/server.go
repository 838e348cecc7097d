package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xhad/hexauthor/internal/types"
	"github.com/xhad/hexauthor/pkg/ingest"
	"github.com/xhad/hexauthor/pkg/llm"
	"github.com/xhad/hexauthor/pkg/selection"
	"github.com/xhad/hexauthor/pkg/store"
	"github.com/xhad/hexauthor/pkg/tokens"
)

// Generator drafts proposals from a prompt and curated sections.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
	Usage(req llm.Request) tokens.Usage
}

type Config struct {
	MinSelectionLength int
	SelectionDebounce  time.Duration
	MaxUploadBytes     int64
	// LoadTimeout bounds how long a websocket load waits for an ingest job.
	LoadTimeout time.Duration
	SaveTimeout time.Duration
}

// Server exposes ingestion, section storage and proposal generation over
// REST, and interactive chunk curation over a websocket.
type Server struct {
	router    chi.Router
	config    Config
	sections  types.SectionStore
	jobs      *ingest.Service
	generator Generator
	embedder  types.Embedder
}

// NewServer wires the HTTP routes. generator and embedder may be nil; the
// endpoints that need them then report 503.
func NewServer(config Config, sections types.SectionStore, jobs *ingest.Service, generator Generator, embedder types.Embedder) *Server {
	if config.MinSelectionLength <= 0 {
		config.MinSelectionLength = selection.DefaultMinLength
	}
	if config.SelectionDebounce <= 0 {
		config.SelectionDebounce = selection.DefaultDebounce
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = ingest.DefaultMaxUploadBytes
	}
	if config.LoadTimeout <= 0 {
		config.LoadTimeout = 2 * time.Minute
	}
	if config.SaveTimeout <= 0 {
		config.SaveTimeout = 30 * time.Second
	}

	s := &Server{
		config:    config,
		sections:  sections,
		jobs:      jobs,
		generator: generator,
		embedder:  embedder,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Post("/ingest", s.handleIngestURL)
		r.Post("/ingest/upload", s.handleIngestUpload)
		r.Get("/ingest/{jobID}", s.handleIngestStatus)

		r.Get("/tags", s.handleSearchTags)

		r.Post("/workspaces/{workspaceID}/sections", s.handleCreateSections)
		r.Get("/workspaces/{workspaceID}/sections", s.handleListSections)

		r.Post("/proposals", s.handleGenerate)
		r.Post("/proposals/usage", s.handleUsage)
	})

	s.router = r
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("starting server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Printf("%s %s %d %dms [%s]", r.Method, r.URL.Path, ww.Status(),
			time.Since(start).Milliseconds(), middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps package errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, ingest.ErrInvalidSource),
		errors.Is(err, ingest.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, llm.ErrBudgetExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ingest.ErrJobNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	jsonError(w, err.Error(), code)
}
