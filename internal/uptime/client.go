// Package uptime provisions external UptimeRobot monitors for the API and
// its frontend.
package uptime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Static errors for UptimeRobot client operations.
var (
	// ErrAPIKeyRequired is returned when no API key is provided.
	ErrAPIKeyRequired = errors.New("uptime: API key is required")
	// ErrRejected is returned when the API answers with stat "fail".
	ErrRejected = errors.New("uptime: request rejected")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("uptime: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("uptime: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("uptime: request failed")
)

// MonitorTypeHTTP is the UptimeRobot type of an HTTP(S) monitor.
const MonitorTypeHTTP = 1

// Monitor is an UptimeRobot monitor definition.
type Monitor struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"friendly_name"`
	URL  string `json:"url"`
	Type int    `json:"type"`
	// Interval is the check period in seconds.
	Interval int `json:"interval"`
	// AlertContacts uses the API's id_threshold_recurrence format.
	AlertContacts string `json:"-"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type apiResponse struct {
	Stat     string    `json:"stat"`
	Error    *apiError `json:"error,omitempty"`
	Monitor  *Monitor  `json:"monitor,omitempty"`
	Monitors []Monitor `json:"monitors,omitempty"`
}

// HTTPClient talks to the UptimeRobot v2 API.
type HTTPClient struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the UptimeRobot API.
func WithBaseURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = strings.TrimRight(u, "/")
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new UptimeRobot client.
func NewClient(apiKey string, opts ...ClientOption) (*HTTPClient, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	c := &HTTPClient{
		apiKey:      apiKey,
		baseURL:     "https://api.uptimerobot.com/v2",
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateMonitor creates m and returns its id.
func (c *HTTPClient) CreateMonitor(ctx context.Context, m Monitor) (int64, error) {
	form := url.Values{}
	form.Set("type", strconv.Itoa(m.Type))
	form.Set("url", m.URL)
	form.Set("friendly_name", m.Name)
	form.Set("interval", strconv.Itoa(m.Interval))
	if m.AlertContacts != "" {
		form.Set("alert_contacts", m.AlertContacts)
	}

	var resp apiResponse
	if err := c.doRequestWithRetry(ctx, "newMonitor", form, &resp); err != nil {
		return 0, err
	}
	if resp.Monitor == nil {
		return 0, fmt.Errorf("%w: no monitor in response", ErrRejected)
	}
	return resp.Monitor.ID, nil
}

// ListMonitors returns the monitors of the account.
func (c *HTTPClient) ListMonitors(ctx context.Context) ([]Monitor, error) {
	var resp apiResponse
	if err := c.doRequestWithRetry(ctx, "getMonitors", url.Values{}, &resp); err != nil {
		return nil, err
	}
	return resp.Monitors, nil
}

// doRequestWithRetry performs an API call with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, method string, form url.Values, result *apiResponse) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("uptime: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, method, form, result)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("uptime: max retries exceeded: %w", lastErr)
}

// doRequest performs a single form-encoded POST.
func (c *HTTPClient) doRequest(ctx context.Context, method string, form url.Values, result *apiResponse) error {
	body := url.Values{}
	for k, v := range form {
		body[k] = v
	}
	body.Set("api_key", c.apiKey)
	body.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, strings.NewReader(body.Encode()))
	if err != nil {
		return fmt.Errorf("uptime: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("uptime: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("uptime: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	*result = apiResponse{}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("uptime: unmarshal response: %w", err)
	}
	if result.Stat != "ok" {
		msg := "unknown error"
		if result.Error != nil {
			msg = result.Error.Message
		}
		return fmt.Errorf("%w: %s", ErrRejected, msg)
	}
	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
