// Package api exposes the render pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"bmsrender/internal/diag"
	"bmsrender/internal/jobs"
	"bmsrender/internal/logging"
	"bmsrender/internal/render"
	"bmsrender/internal/renderclient"
	"bmsrender/internal/storage"
)

// Renderer runs one pipeline invocation. Satisfied by *render.Pipeline.
type Renderer interface {
	Render(ctx context.Context, operationID, url, destPath string, obs diag.Observer) *diag.Diagnostics
}

// Server hosts the render operation and the reporting view.
type Server struct {
	renderer Renderer
	objects  storage.Provider
	store    *jobs.Store
	logger   *slog.Logger
}

// New constructs the server. objects and store may be nil; the corresponding
// behaviors (artifact upload, the jobs view) are then disabled.
func New(renderer Renderer, objects storage.Provider, store *jobs.Store, logger *slog.Logger) *Server {
	return &Server{
		renderer: renderer,
		objects:  objects,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "api"),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Put("/render/{operationID}", s.handleRender)
	r.Get("/jobs", s.handleJobs)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleRender runs the pipeline synchronously with respect to the request,
// streaming each diagnostics event as an NDJSON fragment. The full
// diagnostics object is always the final, authoritative line; only malformed
// input is rejected with an error status.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	operationID := chi.URLParam(r, "operationID")

	var req renderclient.RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if !validSourceURL(req.URL) {
		http.Error(w, "url must use an http or https scheme", http.StatusBadRequest)
		return
	}

	logger := s.logger.With(logging.String(logging.FieldOperationID, operationID))
	logger.Info("render accepted", logging.String("url", req.URL))

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	encoder := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)

	stream := func(d *diag.Diagnostics) {
		// Incremental fragments are best-effort noise for the caller; only
		// the final line is authoritative.
		if err := encoder.Encode(d); err != nil {
			logger.Warn("stream fragment", logging.Error(err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	d := s.renderer.Render(r.Context(), operationID, req.URL, "", stream)

	if d.OutFile != "" && s.objects != nil {
		key := operationID + ".mp3"
		objectKey, err := s.objects.Put(r.Context(), key, d.OutFile)
		if err != nil {
			// The attempt must end in a result or an error; an artifact that
			// never reached the store is not a result.
			logger.Error("artifact upload failed", logging.Error(err))
			d.OutFile = ""
			d.Fail("upload " + key + ": " + err.Error())
		} else {
			logger.Info("artifact uploaded",
				logging.String("object_key", objectKey),
				logging.String("provider", s.objects.Name()),
			)
			d.Record(render.EventUploaded)
		}
		d.Finish()
	}

	if err := encoder.Encode(d); err != nil {
		logger.Warn("write final diagnostics", logging.Error(err))
	}
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "job store unavailable", http.StatusNotFound)
		return
	}
	list, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("list jobs", logging.Error(err))
		http.Error(w, "list jobs failed", http.StatusInternalServerError)
		return
	}

	type jobView struct {
		ID         int64  `json:"id"`
		URL        string `json:"url"`
		Batch      string `json:"batch"`
		AddedAt    string `json:"addedAt"`
		RenderedAt string `json:"renderedAt,omitempty"`
		Error      string `json:"error,omitempty"`
		Rendered   bool   `json:"rendered"`
	}
	views := make([]jobView, 0, len(list))
	for _, job := range list {
		view := jobView{
			ID:       job.ID,
			URL:      job.URL,
			Batch:    job.Batch,
			AddedAt:  job.AddedAt.Format(time.RFC3339),
			Error:    job.ErrorText,
			Rendered: job.Succeeded(),
		}
		if job.RenderedAt != nil {
			view.RenderedAt = job.RenderedAt.Format(time.RFC3339)
		}
		views = append(views, view)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(views); err != nil {
		s.logger.Warn("encode jobs view", logging.Error(err))
	}
}

// validSourceURL accepts only absolute URLs with a recognized transfer scheme.
func validSourceURL(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return parsed.Host != ""
	default:
		return false
	}
}
