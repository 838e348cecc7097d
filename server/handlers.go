package server

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/xhad/hexauthor/internal/models"
	"github.com/xhad/hexauthor/pkg/llm"
	"github.com/xhad/hexauthor/pkg/store"
)

func (s *Server) handleIngestURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	job, err := s.jobs.SubmitURL(r.Context(), req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleIngestUpload(w http.ResponseWriter, r *http.Request) {
	// extra 1MB for form overhead
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	job, err := s.jobs.SubmitFile(r.Context(), sanitizeFilename(header.Filename), file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.Job(chi.URLParam(r, "jobID"))
	if !ok {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleSearchTags(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", store.DefaultTagLimit)

	tags, err := s.sections.SearchTags(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

type createSectionsRequest struct {
	SourceLabel string                `json:"sourceLabel"`
	Chunks      []models.SectionInput `json:"chunks"`
}

func (s *Server) handleCreateSections(w http.ResponseWriter, r *http.Request) {
	var req createSectionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	created, err := s.sections.BulkCreate(r.Context(), chi.URLParam(r, "workspaceID"), req.SourceLabel, req.Chunks)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"sections": created})
}

// handleListSections lists a workspace's sections. With q set they are
// ranked by similarity to q instead.
func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	var (
		sections []models.Section
		err      error
	)
	if q == "" {
		sections, err = s.sections.ListSections(r.Context(), workspaceID)
	} else {
		if s.embedder == nil {
			jsonError(w, "similarity search is not configured", http.StatusServiceUnavailable)
			return
		}
		var vectors [][]float32
		vectors, err = s.embedder.CreateEmbedding(r.Context(), []string{q})
		if err == nil && len(vectors) == 1 {
			sections, err = s.sections.Similar(r.Context(), workspaceID, vectors[0], queryInt(r, "limit", 5))
		}
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if sections == nil {
		sections = []models.Section{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sections": sections})
}

func (s *Server) decodeProposal(w http.ResponseWriter, r *http.Request) (llm.Request, bool) {
	if s.generator == nil {
		jsonError(w, "generation is not configured", http.StatusServiceUnavailable)
		return llm.Request{}, false
	}
	var req llm.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return llm.Request{}, false
	}
	return req, true
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeProposal(w, r)
	if !ok {
		return
	}

	usage := s.generator.Usage(req)
	if usage.Exceeded {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": llm.ErrBudgetExceeded.Error(),
			"usage": usage,
		})
		return
	}

	draft, err := s.generator.Generate(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"draft": draft, "usage": usage})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeProposal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.generator.Usage(req))
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
