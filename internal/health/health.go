// Package health reports the status of the API's dependencies and raises
// alerts when they degrade.
package health

import (
	"context"
	"log/slog"
	"math"
	"os"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/jobportal-api/internal/alerts"
)

// Overall statuses.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Dependency statuses.
const (
	StateConnected    = "connected"
	StateError        = "error"
	StateUnconfigured = "unconfigured"
)

const (
	probeTimeout = 5 * time.Second
	alertTimeout = 30 * time.Second
)

// LatencyPinger is a dependency that reports its round trip.
type LatencyPinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// Pinger is a dependency that can only report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Alerter receives the outcome of each check.
type Alerter interface {
	Raise(ctx context.Context, alertType, message string) bool
	Resolve(ctx context.Context, alertType string)
	Thresholds(ctx context.Context) alerts.Thresholds
}

// Timed adapts a Pinger into a LatencyPinger by timing the call.
func Timed(p Pinger) LatencyPinger {
	return timedPinger{p}
}

type timedPinger struct {
	p Pinger
}

func (t timedPinger) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := t.p.Ping(ctx); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Dependency is one probed service.
type Dependency struct {
	// Name is the key in the report, and AlertType the alert raised when it fails.
	Name      string
	AlertType string
	// Critical dependencies are always probed. Others are reported as
	// unconfigured when Probe is nil.
	Critical bool
	Probe    LatencyPinger
}

// ServiceStatus is the report entry of one dependency.
type ServiceStatus struct {
	Status     string `json:"status"`
	Configured bool   `json:"configured"`
	Latency    *int64 `json:"latency"`
	Error      string `json:"error,omitempty"`
}

// MemoryInfo summarizes runtime memory use.
type MemoryInfo struct {
	Alloc       uint64  `json:"alloc"`
	HeapInuse   uint64  `json:"heapInuse"`
	Sys         uint64  `json:"sys"`
	UsedPercent float64 `json:"usedPercent"`
}

// SystemInfo describes the running process.
type SystemInfo struct {
	Uptime     int64      `json:"uptime"`
	Memory     MemoryInfo `json:"memory"`
	Goroutines int        `json:"goroutines"`
	Timestamp  time.Time  `json:"timestamp"`
	PID        int        `json:"pid"`
	GoVersion  string     `json:"goVersion"`
	Env        string     `json:"env"`
}

// Report is the health endpoint response.
type Report struct {
	Status   string                   `json:"status"`
	Services map[string]ServiceStatus `json:"services"`
	System   SystemInfo               `json:"system"`
}

// Checker probes dependencies concurrently.
type Checker struct {
	deps    []Dependency
	alerter Alerter
	logger  *slog.Logger
	env     string
	// exposeErrors includes raw probe errors in the report.
	exposeErrors bool
	started      time.Time
	now          func() time.Time
	background   sync.WaitGroup
}

// Option configures a Checker.
type Option func(*Checker)

// WithAlerter raises and resolves alerts after every check.
func WithAlerter(a Alerter) Option {
	return func(c *Checker) {
		c.alerter = a
	}
}

// WithEnvironment sets the reported environment name. Development exposes
// probe errors in the report.
func WithEnvironment(env string, development bool) Option {
	return func(c *Checker) {
		c.env = env
		c.exposeErrors = development
	}
}

// NewChecker creates a Checker over deps.
func NewChecker(deps []Dependency, logger *slog.Logger, opts ...Option) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Checker{
		deps:    deps,
		logger:  logger,
		env:     "production",
		started: time.Now(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wait blocks until alert evaluation of previous checks has finished.
func (c *Checker) Wait() {
	c.background.Wait()
}

// Check probes every dependency and builds the report. The overall status is
// degraded when a critical dependency or a configured optional one fails.
func (c *Checker) Check(ctx context.Context) *Report {
	statuses := make([]ServiceStatus, len(c.deps))
	errs := make([]error, len(c.deps))

	g, gctx := errgroup.WithContext(ctx)
	for i, dep := range c.deps {
		if dep.Probe == nil {
			statuses[i] = ServiceStatus{Status: StateUnconfigured}
			continue
		}
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, probeTimeout)
			defer cancel()
			latency, err := dep.Probe.Ping(pctx)
			statuses[i], errs[i] = c.status(latency, err), err
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{
		Status:   StatusHealthy,
		Services: make(map[string]ServiceStatus, len(c.deps)),
		System:   c.system(),
	}
	for i, dep := range c.deps {
		report.Services[dep.Name] = statuses[i]
		failed := errs[i] != nil || (dep.Critical && dep.Probe == nil)
		if failed {
			report.Status = StatusDegraded
		}
	}

	if report.Status == StatusDegraded {
		c.logger.Warn("health check degraded", slog.Any("services", report.Services))
	}
	if c.alerter != nil {
		c.background.Add(1)
		go func() {
			defer c.background.Done()
			actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
			defer cancel()
			c.evaluate(actx, report, errs)
		}()
	}
	return report
}

func (c *Checker) status(latency time.Duration, err error) ServiceStatus {
	if err != nil {
		msg := "Connection error"
		if c.exposeErrors {
			msg = err.Error()
		}
		return ServiceStatus{Status: StateError, Configured: true, Error: msg}
	}
	ms := latency.Milliseconds()
	return ServiceStatus{Status: StateConnected, Configured: true, Latency: &ms}
}

// evaluate raises an alert for every failing dependency or exceeded
// threshold and resolves the ones that recovered.
func (c *Checker) evaluate(ctx context.Context, report *Report, errs []error) {
	limits := c.alerter.Thresholds(ctx)

	for i, dep := range c.deps {
		if dep.AlertType == "" || dep.Probe == nil {
			continue
		}
		if errs[i] != nil {
			c.alerter.Raise(ctx, dep.AlertType, dep.Name+" health check failed: "+errs[i].Error())
			continue
		}
		c.alerter.Resolve(ctx, dep.AlertType)

		if dep.Critical {
			if lat := report.Services[dep.Name].Latency; lat != nil && *lat > int64(limits.ResponseTime) {
				c.alerter.Raise(ctx, alerts.TypeLatency, dep.Name+" response time exceeded threshold")
			} else {
				c.alerter.Resolve(ctx, alerts.TypeLatency)
			}
		}
	}

	if report.System.Memory.UsedPercent > float64(limits.Memory) {
		c.alerter.Raise(ctx, alerts.TypeMemory, "memory usage exceeded threshold")
	} else {
		c.alerter.Resolve(ctx, alerts.TypeMemory)
	}
}

func (c *Checker) system() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemInfo{
		Uptime: int64(c.now().Sub(c.started).Seconds()),
		Memory: MemoryInfo{
			Alloc:       m.Alloc,
			HeapInuse:   m.HeapInuse,
			Sys:         m.Sys,
			UsedPercent: usedPercent(&m),
		},
		Goroutines: runtime.NumGoroutine(),
		Timestamp:  c.now().UTC(),
		PID:        os.Getpid(),
		GoVersion:  runtime.Version(),
		Env:        c.env,
	}
}

// usedPercent is memory use against GOMEMLIMIT when one is set, otherwise
// heap in use against heap obtained from the OS.
func usedPercent(m *runtime.MemStats) float64 {
	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit != math.MaxInt64 {
		return math.Round(float64(m.Sys)/float64(limit)*10000) / 100
	}
	if m.HeapSys == 0 {
		return 0
	}
	return math.Round(float64(m.HeapInuse)/float64(m.HeapSys)*10000) / 100
}
