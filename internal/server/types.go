// Package server provides the HTTP server for the Job Portal API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/jobportal-api/internal/alerts"
	"github.com/maauso/jobportal-api/internal/auth"
	"github.com/maauso/jobportal-api/internal/jobs"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
	// Fields maps each invalid field to its reason. Only set for VALIDATION_ERROR.
	Fields map[string]string `json:"fields,omitempty"`
	// RequestID echoes the X-Request-ID of the failed request.
	RequestID string `json:"requestId,omitempty"`
}

// LoginRequest is the HTTP request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the HTTP response after a successful login.
type LoginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	User      auth.Identity `json:"user"`
}

// DeleteJobResponse is the HTTP response for DELETE /jobs/{id}.
type DeleteJobResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// ApplyResponse is the HTTP response for POST /jobs/{id}/apply.
type ApplyResponse struct {
	ID           string `json:"id"`
	ApplyURL     string `json:"applyUrl,omitempty"`
	Applications int64  `json:"applications"`
}

// PopularResponse is the HTTP response for GET /jobs/popular.
type PopularResponse struct {
	Items []*jobs.Posting `json:"items"`
}

// UploadResponse is the HTTP response for POST /upload.
type UploadResponse struct {
	URL         string        `json:"url"`
	Key         string        `json:"key"`
	ContentType string        `json:"contentType"`
	Size        int64         `json:"size"`
	Job         *jobs.Posting `json:"job,omitempty"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// AlertHistoryResponse is the HTTP response for GET /alerts/history.
type AlertHistoryResponse struct {
	Items []alerts.Alert `json:"items"`
	Count int            `json:"count"`
}
