package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// MediaDir, when set, is served under /media/ for the local media host.
	MediaDir string
	// TracerName names the tracer of the request spans.
	TracerName string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
		TracerName:     "jobportal-api/http",
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TracerName == "" {
		cfg.TracerName = DefaultConfig().TracerName
	}
	admin := func(next http.HandlerFunc) http.HandlerFunc {
		return RequireAdmin(h.auth, logger, next)
	}

	mux := http.NewServeMux()

	// Operational
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /version", h.Version)

	// Public job routes. Literal segments take precedence over {id}.
	mux.HandleFunc("GET /jobs", h.ListJobs)
	mux.HandleFunc("GET /jobs/stats/overview", h.JobStats)
	mux.HandleFunc("GET /jobs/popular", h.PopularJobs)
	mux.HandleFunc("GET /jobs/type/{employmentType}", h.JobsByType)
	mux.HandleFunc("GET /jobs/{id}", h.GetJob)
	mux.HandleFunc("POST /jobs/{id}/apply", h.ApplyJob)

	// Admin job routes
	mux.HandleFunc("POST /jobs", admin(h.CreateJob))
	mux.HandleFunc("PUT /jobs/{id}", admin(h.UpdateJob))
	mux.HandleFunc("DELETE /jobs/{id}", admin(h.DeleteJob))
	mux.HandleFunc("GET /admin/jobs", admin(h.AdminListJobs))

	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /upload", admin(h.Upload))

	mux.HandleFunc("GET /alerts/config", admin(h.GetAlertConfig))
	mux.HandleFunc("POST /alerts/config", admin(h.SetAlertConfig))
	mux.HandleFunc("POST /alerts/test", admin(h.SendTestAlert))
	mux.HandleFunc("GET /alerts/history", admin(h.AlertHistory))

	if cfg.MediaDir != "" {
		mux.Handle("GET /media/", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.MediaDir))))
	}

	// Apply middleware chain
	chain := ChainMiddleware(
		RequestIDMiddleware(),
		SecurityHeadersMiddleware(),
		RecoveryMiddleware(logger),
		TracingMiddleware(cfg.TracerName),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
