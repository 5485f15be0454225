package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/jobportal-api/internal/alerts"
	"github.com/maauso/jobportal-api/internal/apperr"
	"github.com/maauso/jobportal-api/internal/auth"
	"github.com/maauso/jobportal-api/internal/health"
	"github.com/maauso/jobportal-api/internal/jobs"
	"github.com/maauso/jobportal-api/internal/storage"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	jobs        *jobs.Service
	auth        *auth.Authenticator
	limiter     *auth.ClientLimiter
	media       storage.MediaHost
	mediaFolder string
	maxUpload   int64
	alerts      *alerts.Service
	health      *health.Checker
	validator   *validator.Validate
	logger      *slog.Logger
	development bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithLoginLimiter throttles POST /auth/login per client address.
func WithLoginLimiter(l *auth.ClientLimiter) HandlerOption {
	return func(h *Handlers) {
		h.limiter = l
	}
}

// WithMediaHost enables POST /upload. Objects are stored under folder and
// bodies larger than maxBytes are rejected.
func WithMediaHost(m storage.MediaHost, folder string, maxBytes int64) HandlerOption {
	return func(h *Handlers) {
		h.media = m
		h.mediaFolder = folder
		if maxBytes > 0 {
			h.maxUpload = maxBytes
		}
	}
}

// WithAlerts enables the alert configuration endpoints.
func WithAlerts(a *alerts.Service) HandlerOption {
	return func(h *Handlers) {
		h.alerts = a
	}
}

// WithHealthChecker reports dependency status from GET /health.
func WithHealthChecker(c *health.Checker) HandlerOption {
	return func(h *Handlers) {
		h.health = c
	}
}

// WithDevelopment exposes store error details in responses.
func WithDevelopment(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.development = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc *jobs.Service, authn *auth.Authenticator, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		jobs:        svc,
		auth:        authn,
		mediaFolder: "job-ads",
		maxUpload:   5 << 20,
		validator:   validator.New(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ListJobs handles GET /jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	page, err := h.jobs.List(r.Context(), jobs.ParseListQuery(r.URL.Query()))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// AdminListJobs handles GET /admin/jobs requests.
func (h *Handlers) AdminListJobs(w http.ResponseWriter, r *http.Request) {
	page, err := h.jobs.AdminList(r.Context(), jobs.ParseListQuery(r.URL.Query()))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// JobsByType handles GET /jobs/type/{employmentType} requests.
func (h *Handlers) JobsByType(w http.ResponseWriter, r *http.Request) {
	page, err := h.jobs.ByEmploymentType(r.Context(), r.PathValue("employmentType"), jobs.ParseListQuery(r.URL.Query()))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// PopularJobs handles GET /jobs/popular requests.
func (h *Handlers) PopularJobs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.jobs.Popular(r.Context(), limit)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PopularResponse{Items: items})
}

// JobStats handles GET /jobs/stats/overview requests.
func (h *Handlers) JobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.jobs.Stats(r.Context())
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	p, err := h.jobs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreateJob handles POST /jobs requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var d jobs.Draft
	if !h.decodeJSON(w, r, &d) {
		return
	}
	p, err := h.jobs.Create(r.Context(), d)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.audit(r, "job.created", p.ID)
	w.Header().Set("Location", "/jobs/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

// UpdateJob handles PUT /jobs/{id} requests. Only supplied fields change.
func (h *Handlers) UpdateJob(w http.ResponseWriter, r *http.Request) {
	var patch jobs.Patch
	if !h.decodeJSON(w, r, &patch) {
		return
	}
	if patch.IsEmpty() {
		writeError(w, http.StatusBadRequest, "request body contains no fields to update", "EMPTY_UPDATE")
		return
	}
	p, err := h.jobs.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.audit(r, "job.updated", p.ID)
	writeJSON(w, http.StatusOK, p)
}

// DeleteJob handles DELETE /jobs/{id} requests.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.jobs.Delete(r.Context(), id); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.audit(r, "job.deleted", id)
	writeJSON(w, http.StatusOK, DeleteJobResponse{ID: id, Deleted: true})
}

// ApplyJob handles POST /jobs/{id}/apply requests.
func (h *Handlers) ApplyJob(w http.ResponseWriter, r *http.Request) {
	p, err := h.jobs.Apply(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ApplyResponse{
		ID:           p.ID,
		ApplyURL:     p.ApplyURL,
		Applications: p.Applications,
	})
}

// audit records which admin performed a mutation.
func (h *Handlers) audit(r *http.Request, action, jobID string) {
	admin := "unknown"
	if id, ok := IdentityFromContext(r.Context()); ok {
		admin = id.Email
	}
	h.logger.Info("admin action",
		slog.String("action", action),
		slog.String("job_id", jobID),
		slog.String("admin", admin),
		slog.String("request_id", RequestIDFromContext(r.Context())),
	)
}

// decodeJSON reads a JSON body into dst. Unknown fields are ignored. It
// writes the error response itself and reports whether decoding succeeded.
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "PAYLOAD_TOO_LARGE")
			return false
		}
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
			slog.String("request_id", RequestIDFromContext(r.Context())),
		)
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		writeError(w, http.StatusBadRequest, msg, "INVALID_JSON")
		return false
	}
	return true
}

// writeAppError maps an apperr taxonomy error onto the HTTP response.
func (h *Handlers) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.New(apperr.TypeStore, "unexpected error", err)
	}

	switch ae.Type {
	case apperr.TypeValidation:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:     ae.Message,
			Code:      "VALIDATION_ERROR",
			Fields:    ae.Fields,
			RequestID: w.Header().Get(RequestIDHeader),
		})
	case apperr.TypeNotFound:
		writeError(w, http.StatusNotFound, ae.Message, "NOT_FOUND")
	case apperr.TypeUnauthorized:
		writeError(w, http.StatusUnauthorized, ae.Message, "UNAUTHORIZED")
	case apperr.TypeUnavailable:
		h.logger.Warn("collaborator unavailable",
			slog.String("error", err.Error()),
			slog.String("request_id", RequestIDFromContext(r.Context())),
		)
		writeError(w, http.StatusServiceUnavailable, ae.Message, "SERVICE_UNAVAILABLE")
	default:
		h.logger.Error("store error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.String("stack", string(ae.Stack)),
		)
		msg := "internal server error"
		if h.development {
			msg = err.Error()
		}
		writeError(w, http.StatusInternalServerError, msg, "STORE_ERROR")
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: w.Header().Get(RequestIDHeader),
	})
}
