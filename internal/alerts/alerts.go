// Package alerts stores the operator alert configuration, keeps a history of
// raised alerts and notifies recipients by email.
package alerts

import (
	"errors"
	"time"
)

var (
	// ErrNoConfig is returned when no alert configuration has been saved yet.
	ErrNoConfig = errors.New("alert configuration not set")
	// ErrNotifierUnavailable is returned when no email transport is configured.
	ErrNotifierUnavailable = errors.New("email service not configured")
)

// Alert types raised by the health checker.
const (
	TypeDatabase = "database"
	TypeMedia    = "media"
	TypeCache    = "cache"
	TypeMemory   = "memory"
	TypeLatency  = "api"
	TypeTest     = "test"
)

// Default thresholds applied when a configuration omits them.
const (
	DefaultMemoryPercent  = 85
	DefaultCPUPercent     = 90
	DefaultResponseTimeMs = 1000
)

// Thresholds are the limits above which an alert is raised.
type Thresholds struct {
	// Memory is the percentage of runtime memory in use.
	Memory int `json:"memory" validate:"omitempty,min=1,max=100"`
	// CPU is the process CPU percentage. Stored for operators; not sampled.
	CPU int `json:"cpu" validate:"omitempty,min=1,max=100"`
	// ResponseTime is the document store round trip in milliseconds.
	ResponseTime int `json:"responseTime" validate:"omitempty,min=1"`
}

func (t Thresholds) withDefaults() Thresholds {
	if t.Memory == 0 {
		t.Memory = DefaultMemoryPercent
	}
	if t.CPU == 0 {
		t.CPU = DefaultCPUPercent
	}
	if t.ResponseTime == 0 {
		t.ResponseTime = DefaultResponseTimeMs
	}
	return t
}

// DefaultThresholds returns the thresholds used before any configuration is saved.
func DefaultThresholds() Thresholds {
	return Thresholds{}.withDefaults()
}

// Config is the persisted alert configuration record.
type Config struct {
	Emails     []string   `json:"emails" validate:"required,min=1,max=20,dive,required,email"`
	Thresholds Thresholds `json:"thresholds"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Alert is one raised alert.
type Alert struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Message    string     `json:"message"`
	Timestamp  time.Time  `json:"timestamp"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolvedAt"`
}
