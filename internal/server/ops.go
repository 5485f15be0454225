package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/maauso/jobportal-api/internal/alerts"
	"github.com/maauso/jobportal-api/internal/health"
	"github.com/maauso/jobportal-api/internal/version"
)

// Health handles GET /health requests. A degraded report is served with 503
// so load balancers take the instance out of rotation.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		writeJSON(w, http.StatusOK, health.Report{Status: health.StatusHealthy, Services: map[string]health.ServiceStatus{}})
		return
	}
	report := h.health.Check(r.Context())
	status := http.StatusOK
	if report.Status != health.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Version handles GET /version requests.
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

// GetAlertConfig handles GET /alerts/config requests.
func (h *Handlers) GetAlertConfig(w http.ResponseWriter, r *http.Request) {
	if !h.alertsEnabled(w) {
		return
	}
	cfg, err := h.alerts.Config(r.Context())
	if err != nil {
		if errors.Is(err, alerts.ErrNoConfig) {
			writeError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
			return
		}
		h.logger.Error("failed to load alert configuration", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "failed to load alert configuration", "SERVICE_UNAVAILABLE")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// SetAlertConfig handles POST /alerts/config requests.
func (h *Handlers) SetAlertConfig(w http.ResponseWriter, r *http.Request) {
	if !h.alertsEnabled(w) {
		return
	}
	var req alerts.Config
	if !h.decodeJSON(w, r, &req) {
		return
	}
	cfg, err := h.alerts.SetConfig(r.Context(), req)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// SendTestAlert handles POST /alerts/test requests.
func (h *Handlers) SendTestAlert(w http.ResponseWriter, r *http.Request) {
	if !h.alertsEnabled(w) {
		return
	}
	if err := h.alerts.SendTest(r.Context()); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "test alert sent"})
}

// AlertHistory handles GET /alerts/history requests.
func (h *Handlers) AlertHistory(w http.ResponseWriter, r *http.Request) {
	if !h.alertsEnabled(w) {
		return
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > alerts.HistoryLimit {
		limit = alerts.HistoryLimit
	}
	items, err := h.alerts.History(r.Context(), limit)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AlertHistoryResponse{Items: items, Count: len(items)})
}

func (h *Handlers) alertsEnabled(w http.ResponseWriter) bool {
	if h.alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "alerting not configured", "SERVICE_UNAVAILABLE")
		return false
	}
	return true
}
