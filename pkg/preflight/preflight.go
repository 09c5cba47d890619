// Package preflight checks that the application under test is being served
// before any browser is launched.
package preflight

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	herrors "github.com/ashparshp/hairone/pkg/errors"
	"github.com/ashparshp/hairone/pkg/logging"
)

// Checker probes a base URL with retries.
type Checker struct {
	client *retryablehttp.Client
	logger *logging.Logger
}

// Option customizes a Checker.
type Option func(*Checker)

// WithRetries sets how many times a failed probe is retried.
func WithRetries(n int) Option {
	return func(c *Checker) { c.client.RetryMax = n }
}

// WithTimeout bounds each probe.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.client.HTTPClient.Timeout = d
		}
	}
}

// WithBackoff sets the wait between retries.
func WithBackoff(min, max time.Duration) Option {
	return func(c *Checker) {
		c.client.RetryWaitMin = min
		c.client.RetryWaitMax = max
	}
}

// WithLogger logs each retry.
func WithLogger(l *logging.Logger) Option {
	return func(c *Checker) { c.logger = l }
}

// New creates a Checker. By default it retries 3 times, waiting 500ms to 5s.
func New(opts ...Option) *Checker {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 5 * time.Second
	client.Logger = nil

	c := &Checker{client: client}
	for _, opt := range opts {
		opt(c)
	}
	client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			c.logger.Warn(logging.CategoryRun, "preflight_retry", "base URL not answering yet", map[string]any{
				"url":     req.URL.String(),
				"attempt": attempt,
			})
		}
	}
	return c
}

// Check succeeds once baseURL answers with a status below 500. Connection
// errors and 5xx answers are retried; when retries run out it returns a
// retryable BASE_URL_UNREACHABLE error.
func (c *Checker) Check(ctx context.Context, baseURL string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return herrors.Wrap(err, herrors.ErrCodeConfigInvalid, "invalid base URL").WithContext("url", baseURL)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return unreachable(baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return unreachable(baseURL, nil).WithContext("status", resp.StatusCode)
	}
	c.logger.Debug(logging.CategoryRun, "preflight_ok", "base URL reachable", map[string]any{
		"url":    baseURL,
		"status": resp.StatusCode,
	})
	return nil
}

func unreachable(baseURL string, err error) *herrors.Error {
	var e *herrors.Error
	if err != nil {
		e = herrors.Wrap(err, herrors.ErrCodeBaseURLUnreachable, "application is not reachable")
	} else {
		e = herrors.New(herrors.ErrCodeBaseURLUnreachable, "application is not reachable")
	}
	return e.WithContext("url", baseURL).
		WithRetryable(true).
		WithUserMessage("The app under test is not running at " + baseURL).
		WithRemediation("start the web client (e.g. `npx expo start --web`)", "or pass --base-url / set UIVERIFY_BASE_URL")
}
