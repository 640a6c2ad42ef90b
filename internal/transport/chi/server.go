// Package chi is the HTTP transport of the project index.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/propindex/internal/domain"
	"github.com/kailas-cloud/propindex/internal/domain/project"
	"github.com/kailas-cloud/propindex/internal/logger"
	healthuc "github.com/kailas-cloud/propindex/internal/usecase/health"
	"github.com/kailas-cloud/propindex/internal/usecase/syncer"
	"github.com/kailas-cloud/propindex/internal/version"
)

// maxBodyBytes caps request bodies; project records with long descriptions fit well below it.
const maxBodyBytes = 1 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	embeddings    Generator
	collections   Collections
	sync          Syncer
	search        Searcher
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	embeddings Generator,
	collections Collections,
	sync Syncer,
	search Searcher,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		embeddings:  embeddings,
		collections: collections,
		sync:        sync,
		search:      search,
		health:      health,
		logger:      logger,
	}
	// Order matters: the first matching sentinel wins.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusNotFound, codeCollectionNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrConflict, http.StatusConflict, codeConflict),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadGateway, codeVectorDimMismatch),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrUpstreamUnavailable, http.StatusServiceUnavailable, codeUpstream),
	}
	return s
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/", s.Info)
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/embeddings/generate", s.GenerateEmbedding)
	r.Get("/collections/{name}", s.GetCollection)

	r.Post("/projects/index", s.IndexProject)
	r.Put("/projects/{id}", s.UpdateProject)
	r.Delete("/projects/{id}", s.DeleteProject)
	r.Post("/sync/projects", s.SyncProjects)
	r.Post("/webhook/project-sync", s.ProjectSyncWebhook)

	r.Post("/search", s.SearchProjects)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})
}

// Info handles GET /.
func (s *Server) Info(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, infoResponse{
		Service: "propindex",
		Version: version.Version,
		Commit:  version.Commit,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{Status: string(report.Status), Checks: checks})
}

// GenerateEmbedding handles POST /embeddings/generate.
func (s *Server) GenerateEmbedding(w http.ResponseWriter, r *http.Request) {
	var req embeddingRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	vec, err := s.embeddings.Generate(ctx, req.Text)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, embeddingResponse{
		Embedding: vec,
		Dimension: len(vec),
		Model:     s.embeddings.Model(),
	})
}

// GetCollection handles GET /collections/{name}.
func (s *Server) GetCollection(w http.ResponseWriter, r *http.Request) {
	info, err := s.collections.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// IndexProject handles POST /projects/index.
func (s *Server) IndexProject(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.readBody(w, r)
	if !ok {
		return
	}
	p, err := project.Decode(raw)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.sync.Index(ctx, &p)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Message:       fmt.Sprintf("Project %d indexed successfully", p.ID),
		ProjectID:     p.ID,
		DocumentID:    res.DocumentID,
		OwnerDegraded: res.OwnerDegraded,
	})
}

// UpdateProject handles PUT /projects/{id}. The path ID wins over any ID in the body.
func (s *Server) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}
	raw, ok := s.readBody(w, r)
	if !ok {
		return
	}
	p, err := project.DecodeWithID(raw, id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.sync.Reindex(ctx, &p)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Message:       fmt.Sprintf("Project %d updated successfully", id),
		ProjectID:     id,
		DocumentID:    res.DocumentID,
		OwnerDegraded: res.OwnerDegraded,
	})
}

// DeleteProject handles DELETE /projects/{id}.
func (s *Server) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}
	if err := s.sync.Deindex(r.Context(), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Message:   fmt.Sprintf("Project %d deleted successfully", id),
		ProjectID: id,
	})
}

// SyncProjects handles POST /sync/projects. The run is synchronous.
func (s *Server) SyncProjects(w http.ResponseWriter, r *http.Request) {
	summary, err := s.sync.Resync(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponseFrom(summary))
}

// ProjectSyncWebhook handles POST /webhook/project-sync. The status code tells
// the sender whether redelivery can help: 400 never, 503 yes.
func (s *Server) ProjectSyncWebhook(w http.ResponseWriter, r *http.Request) {
	var ev syncer.Event
	if !s.decodeBody(w, r, &ev) {
		return
	}

	out := s.sync.HandleWebhook(r.Context(), ev)
	switch out.Status {
	case syncer.StatusOK:
		writeJSON(w, http.StatusOK, MessageResponse{
			Message:   fmt.Sprintf("Project %d %s via webhook", ev.ProjectID, webhookVerb(ev.Action)),
			ProjectID: ev.ProjectID,
		})
	case syncer.StatusInvalid:
		writeError(w, http.StatusBadRequest, codeValidationFailed, out.Err.Error())
	default:
		logger.FromContextOr(r.Context(), s.logger).Warn("Webhook failed, sender may retry",
			zap.Int64("project_id", ev.ProjectID), zap.String("action", ev.Action), zap.Error(out.Err))
		writeError(w, http.StatusServiceUnavailable, codeUpstream, safeDomainMessage(out.Err))
	}
}

// SearchProjects handles POST /search.
func (s *Server) SearchProjects(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	q, err := req.toQuery()
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp, err := s.search.Search(ctx, q)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponseFrom(resp))
}

func (s *Server) projectID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "project id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	var raw json.RawMessage
	if !s.decodeBody(w, r, &raw) {
		return nil, false
	}
	return raw, true
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func webhookVerb(action string) string {
	switch action {
	case syncer.ActionCreate:
		return "indexed"
	case syncer.ActionUpdate:
		return "updated"
	default:
		return "deleted"
	}
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.Tokens()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a message for the client without exposing internals.
// Validation errors carry the offending field, so their full text is returned.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrValidation) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrCollectionNotFound,
		domain.ErrNotFound,
		domain.ErrConflict,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingProviderError,
		domain.ErrUpstreamUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}
