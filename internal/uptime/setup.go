package uptime

import (
	"context"
	"log/slog"
	"strings"
)

// defaultAlertContacts notifies the account's default contact on every state change.
const defaultAlertContacts = "0_0_0"

// Client is the subset of the UptimeRobot API used for provisioning.
type Client interface {
	CreateMonitor(ctx context.Context, m Monitor) (int64, error)
	ListMonitors(ctx context.Context) ([]Monitor, error)
}

// DefaultMonitors returns the monitors for an API at baseURL and, when set,
// its frontend.
func DefaultMonitors(baseURL, frontendURL string) []Monitor {
	baseURL = strings.TrimRight(baseURL, "/")
	monitors := []Monitor{
		{Name: "Backend API Health", URL: baseURL + "/health", Type: MonitorTypeHTTP, Interval: 300, AlertContacts: defaultAlertContacts},
		{Name: "Jobs API", URL: baseURL + "/jobs", Type: MonitorTypeHTTP, Interval: 600, AlertContacts: defaultAlertContacts},
	}
	if frontendURL != "" {
		monitors = append(monitors, Monitor{
			Name: "Frontend Website", URL: frontendURL, Type: MonitorTypeHTTP, Interval: 300, AlertContacts: defaultAlertContacts,
		})
	}
	return monitors
}

// Result summarizes a provisioning run.
type Result struct {
	Created []string
	Skipped []string
	Failed  map[string]error
}

// Provision creates every monitor whose URL is not monitored yet. A failure
// on one monitor does not stop the others.
func Provision(ctx context.Context, c Client, monitors []Monitor, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	existing, err := c.ListMonitors(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(existing))
	for _, m := range existing {
		known[strings.TrimRight(m.URL, "/")] = true
	}

	res := &Result{Failed: make(map[string]error)}
	for _, m := range monitors {
		if known[strings.TrimRight(m.URL, "/")] {
			logger.Info("monitor already exists", slog.String("name", m.Name), slog.String("url", m.URL))
			res.Skipped = append(res.Skipped, m.Name)
			continue
		}
		id, err := c.CreateMonitor(ctx, m)
		if err != nil {
			logger.Warn("could not create monitor",
				slog.String("name", m.Name),
				slog.String("error", err.Error()),
			)
			res.Failed[m.Name] = err
			continue
		}
		logger.Info("monitor created",
			slog.String("name", m.Name),
			slog.String("url", m.URL),
			slog.Int64("id", id),
		)
		res.Created = append(res.Created, m.Name)
	}
	return res, nil
}
