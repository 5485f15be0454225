package alerts

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/maauso/jobportal-api/internal/apperr"
)

// DefaultThrottle is the minimum interval between two alerts of one type.
const DefaultThrottle = 15 * time.Minute

const subjectPrefix = "Job Portal - "

// Service owns the alert configuration and raises alerts.
type Service struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
	throttle time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithThrottle sets the minimum interval between alerts of one type.
func WithThrottle(d time.Duration) Option {
	return func(s *Service) {
		s.throttle = d
	}
}

// NewService creates a Service. notifier may be nil when no email transport
// is configured; alerts are then only recorded.
func NewService(store Store, notifier Notifier, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	s := &Service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		validate: v,
		now:      time.Now,
		throttle: DefaultThrottle,
		lastSent: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetConfig validates and persists cfg, filling default thresholds.
func (s *Service) SetConfig(ctx context.Context, cfg Config) (*Config, error) {
	for i, e := range cfg.Emails {
		cfg.Emails[i] = strings.TrimSpace(e)
	}
	if err := s.validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, fmt.Errorf("validate alert config: %w", err)
		}
		fields := make(map[string]string)
		for _, fe := range verrs {
			name, _, _ := strings.Cut(fe.Namespace(), "[")
			name = strings.TrimPrefix(name, "Config.")
			if _, seen := fields[name]; !seen {
				fields[name] = configMessage(name, fe)
			}
		}
		return nil, apperr.Validation(fields)
	}

	cfg.Thresholds = cfg.Thresholds.withDefaults()
	cfg.UpdatedAt = s.now().UTC()
	if err := s.store.SaveConfig(ctx, cfg); err != nil {
		return nil, apperr.Unavailable("failed to save alert configuration", err)
	}
	s.logger.Info("alert configuration updated", slog.Int("recipients", len(cfg.Emails)))
	return &cfg, nil
}

func configMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "min":
		if field == "emails" {
			return "at least one valid email address is required"
		}
		return field + " is out of range"
	case "max":
		return field + " is out of range"
	case "email":
		return field + " must contain valid email addresses"
	default:
		return field + " is invalid"
	}
}

// Config returns the saved configuration.
func (s *Service) Config(ctx context.Context) (*Config, error) {
	return s.store.GetConfig(ctx)
}

// Thresholds returns the configured thresholds or the defaults.
func (s *Service) Thresholds(ctx context.Context) Thresholds {
	cfg, err := s.store.GetConfig(ctx)
	if err != nil {
		return DefaultThresholds()
	}
	return cfg.Thresholds.withDefaults()
}

// SendTest emails a test alert to the configured recipients.
func (s *Service) SendTest(ctx context.Context) error {
	if s.notifier == nil {
		return apperr.Unavailable(ErrNotifierUnavailable.Error(), ErrNotifierUnavailable)
	}
	cfg, err := s.store.GetConfig(ctx)
	if err != nil {
		if errors.Is(err, ErrNoConfig) {
			return apperr.Validation(map[string]string{"emails": "no alert emails configured"})
		}
		return apperr.Unavailable("failed to load alert configuration", err)
	}

	body := fmt.Sprintf(`<h2>Test Alert from Job Portal Monitoring System</h2>
<p>This is a test alert to verify your notification system is working correctly.</p>
<p>If you received this email, your alert configuration is working properly.</p>
<hr>
<p>Timestamp: %s</p>`, s.now().UTC().Format(time.RFC3339))

	if err := s.notifier.Send(ctx, cfg.Emails, subjectPrefix+"Test Alert", body); err != nil {
		s.logger.Error("failed to send test alert", slog.String("error", err.Error()))
		return apperr.Unavailable("failed to send test alert", err)
	}
	s.logger.Info("test alert sent", slog.Int("recipients", len(cfg.Emails)))
	return nil
}

// History returns up to limit recent alerts, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]Alert, error) {
	out, err := s.store.History(ctx, limit)
	if err != nil {
		return nil, apperr.Unavailable("failed to load alert history", err)
	}
	if out == nil {
		out = []Alert{}
	}
	return out, nil
}

// Raise records an alert and emails it when recipients are configured.
// Alerts of one type are throttled; it reports whether the alert was raised.
func (s *Service) Raise(ctx context.Context, alertType, message string) bool {
	now := s.now()

	s.mu.Lock()
	if last, ok := s.lastSent[alertType]; ok && now.Sub(last) < s.throttle {
		s.mu.Unlock()
		return false
	}
	s.lastSent[alertType] = now
	s.mu.Unlock()

	a := Alert{
		ID:        uuid.NewString(),
		Type:      alertType,
		Message:   message,
		Timestamp: now.UTC(),
	}
	s.logger.Warn("alert raised",
		slog.String("alert_id", a.ID),
		slog.String("type", alertType),
		slog.String("message", message),
	)
	if err := s.store.Append(ctx, a); err != nil {
		s.logger.Error("failed to record alert", slog.String("error", err.Error()))
	}

	if s.notifier == nil {
		return true
	}
	cfg, err := s.store.GetConfig(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoConfig) {
			s.logger.Error("failed to load alert configuration", slog.String("error", err.Error()))
		}
		return true
	}
	body := fmt.Sprintf("<h2>%s alert</h2>\n<p>%s</p>\n<hr>\n<p>Timestamp: %s</p>",
		html.EscapeString(alertType), html.EscapeString(message), a.Timestamp.Format(time.RFC3339))
	if err := s.notifier.Send(ctx, cfg.Emails, subjectPrefix+strings.ToUpper(alertType)+" Alert", body); err != nil {
		s.logger.Error("failed to send alert email",
			slog.String("alert_id", a.ID),
			slog.String("error", err.Error()),
		)
	}
	return true
}

// Resolve marks open alerts of alertType as resolved and re-arms the throttle.
// It is a no-op unless this process raised an alert of that type.
func (s *Service) Resolve(ctx context.Context, alertType string) {
	s.mu.Lock()
	_, open := s.lastSent[alertType]
	delete(s.lastSent, alertType)
	s.mu.Unlock()
	if !open {
		return
	}

	n, err := s.store.Resolve(ctx, alertType, s.now())
	if err != nil {
		s.logger.Error("failed to resolve alerts",
			slog.String("type", alertType),
			slog.String("error", err.Error()),
		)
		return
	}
	if n > 0 {
		s.logger.Info("alerts resolved", slog.String("type", alertType), slog.Int("count", n))
	}
}

// Ping checks the alert store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
