package server

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/jobportal-api/internal/apperr"
	"github.com/maauso/jobportal-api/internal/auth"
)

// Login handles POST /auth/login requests.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		h.logger.Warn("login rate limited",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("request_id", RequestIDFromContext(r.Context())),
		)
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "too many login attempts, try again later", "RATE_LIMITED")
		return
	}

	var req LoginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:     "email and password are required",
			Code:      "VALIDATION_ERROR",
			Fields:    loginFields(err),
			RequestID: w.Header().Get(RequestIDHeader),
		})
		return
	}

	token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.logger.Warn("failed login attempt",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("request_id", RequestIDFromContext(r.Context())),
			)
			h.writeAppError(w, r, apperr.Unauthorized("invalid credentials", err))
			return
		}
		h.logger.Error("failed to issue token", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
		return
	}

	identity, err := h.auth.Authorize(token.Token)
	if err != nil {
		h.logger.Error("issued token failed verification", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
		return
	}

	h.logger.Info("admin logged in", slog.String("email", identity.Email))
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
		User:      identity,
	})
}

// clientKey identifies the caller for rate limiting. Forwarding headers are
// not trusted.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func loginFields(err error) map[string]string {
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fields
	}
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "email":
			fields[name] = name + " must be a valid email address"
		default:
			fields[name] = name + " is required"
		}
	}
	return fields
}
