// Package roster implements the client for the roster source API, a Google
// Apps Script web app in front of the school's assessment spreadsheet. The
// endpoint speaks GET-only with an "action" query parameter and always
// answers HTTP 200; failures arrive as an {"error": ...} body.
package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ishebot/insight-hub/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the roster client.
type ClientConfig struct {
	// BaseURL is the deployed Apps Script web app URL
	BaseURL string

	// Token is an optional shared-secret token passed as a query parameter
	Token string

	// Timeout is the HTTP request timeout. Apps Script cold starts are
	// slow, so this should stay generous.
	Timeout time.Duration

	// RateLimiterConfig for request throttling
	RateLimiterConfig RateLimiterConfig

	// CircuitBreakerConfig for fault tolerance
	CircuitBreakerConfig CircuitBreakerConfig

	// RetryConfig for retry behavior
	RetryConfig RetryConfig

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables debug logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:              baseURL,
		Timeout:              45 * time.Second,
		RateLimiterConfig:    DefaultRateLimiterConfig(),
		CircuitBreakerConfig: DefaultCircuitBreakerConfig(),
		RetryConfig:          DefaultRetryConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the roster source API client.
type Client struct {
	config         ClientConfig
	httpClient     *http.Client
	logger         *slog.Logger
	rateLimiter    *RateLimiter
	circuitBreaker *circuitbreaker.CircuitBreaker
	mapper         *Mapper
}

// NewClient creates a new roster client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	log := config.Logger

	breaker := circuitbreaker.New(
		"roster-source",
		circuitbreaker.WithFailureThreshold(config.CircuitBreakerConfig.FailureThreshold),
		circuitbreaker.WithSuccessThreshold(config.CircuitBreakerConfig.SuccessThreshold),
		circuitbreaker.WithTimeout(config.CircuitBreakerConfig.Timeout),
		circuitbreaker.WithMaxHalfOpenRequests(config.CircuitBreakerConfig.HalfOpenMaxRetries),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		}),
		// Cancelled requests say nothing about the source's health.
		circuitbreaker.WithIsFailure(func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}),
	)

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:         log,
		rateLimiter:    NewRateLimiter(config.RateLimiterConfig),
		circuitBreaker: breaker,
		mapper:         NewMapper(),
	}
}

// Mapper returns the DTO-to-domain mapper bound to this client.
func (c *Client) Mapper() *Mapper {
	return c.mapper
}

// ══════════════════════════════════════════════════════════════════════════════
// READ OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// FetchAllStudents fetches every student row from the source.
func (c *Client) FetchAllStudents(ctx context.Context) ([]StudentDTO, error) {
	var payload StudentsPayload
	if err := c.doRequest(ctx, "getAllStudents", nil, &payload); err != nil {
		return nil, fmt.Errorf("fetch all students: %w", err)
	}

	return payload.Students, nil
}

// FetchStudent fetches a single student row by code.
func (c *Client) FetchStudent(ctx context.Context, code string) (*StudentDTO, error) {
	params := url.Values{}
	params.Set("studentId", code)

	var dto StudentDTO
	if err := c.doRequest(ctx, "getStudent", params, &dto); err != nil {
		return nil, fmt.Errorf("fetch student %s: %w", code, err)
	}

	return &dto, nil
}

// FetchStats fetches upstream roster statistics.
func (c *Client) FetchStats(ctx context.Context) (*StatsDTO, error) {
	var stats StatsDTO
	if err := c.doRequest(ctx, "getStats", nil, &stats); err != nil {
		return nil, fmt.Errorf("fetch stats: %w", err)
	}

	return &stats, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SYNC AND ANALYSIS OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// TriggerSync asks the source to pull new form responses into its sheet.
func (c *Client) TriggerSync(ctx context.Context) (*SyncResultDTO, error) {
	var result SyncResultDTO
	if err := c.doRequest(ctx, "syncStudents", nil, &result); err != nil {
		return nil, fmt.Errorf("trigger sync: %w", err)
	}

	return &result, nil
}

// TriggerInitialSync asks the source to import the full backlog.
// Used once during first-time setup.
func (c *Client) TriggerInitialSync(ctx context.Context) (*SyncResultDTO, error) {
	var result SyncResultDTO
	if err := c.doRequest(ctx, "initialSync", nil, &result); err != nil {
		return nil, fmt.Errorf("trigger initial sync: %w", err)
	}

	return &result, nil
}

// RequestAnalysis asks the source to run its AI analysis for one student.
// The call is fire-and-wait: the source answers only once the analysis row
// has been written.
func (c *Client) RequestAnalysis(ctx context.Context, code string) (*AnalyzeResultDTO, error) {
	params := url.Values{}
	params.Set("studentId", code)

	var result AnalyzeResultDTO
	if err := c.doRequest(ctx, "analyzeOneStudent", params, &result); err != nil {
		return nil, fmt.Errorf("request analysis for %s: %w", code, err)
	}

	return &result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST PLUMBING
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs a GET with circuit breaking, rate limiting and retries.
// One breaker execution covers the whole retry budget, so a flaky request
// that eventually succeeds does not push the circuit towards open.
func (c *Client) doRequest(ctx context.Context, action string, params url.Values, result interface{}) error {
	return c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		return c.doWithRetries(ctx, action, params, result)
	})
}

func (c *Client) doWithRetries(ctx context.Context, action string, params url.Values, result interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.config.RetryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.config.RetryConfig.CalculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		if wait := c.rateLimiter.WaitTime(); wait > 0 {
			c.logger.Debug("throttling roster request",
				"action", action,
				"wait", wait.String(),
			)
		}
		if err := c.rateLimiter.Allow(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		err := c.doSingleRequest(ctx, action, params, result)
		if err == nil {
			return nil
		}

		lastErr = err

		if !c.isRetryable(err) {
			return err
		}

		var rateLimitErr *RateLimitError
		if errors.As(err, &rateLimitErr) {
			c.rateLimiter.RecordRateLimitHit(rateLimitErr.RetryAfter)
		}
	}

	return fmt.Errorf("request failed after %d retries: %w", c.config.RetryConfig.MaxRetries, lastErr)
}

// doSingleRequest performs a single HTTP GET against the source.
func (c *Client) doSingleRequest(ctx context.Context, action string, params url.Values, result interface{}) error {
	fullURL, err := c.buildURL(action, params)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if c.config.Debug {
		c.logger.Debug("roster api request", "action", action)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 60 * time.Second
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{
			RetryAfter: retryAfter,
			Message:    "rate limit exceeded",
		}
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("server error: status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("api error: status %d", resp.StatusCode)
	}

	// The endpoint reports failures inside a 200 body.
	var probe APIErrorDTO
	if err := json.Unmarshal(respBody, &probe); err == nil && probe.ErrorText != "" {
		return &probe
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// buildURL assembles the action URL with the optional access token.
func (c *Client) buildURL(action string, params url.Values) (string, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}

	q := u.Query()
	q.Set("action", action)
	if c.config.Token != "" {
		q.Set("token", c.config.Token)
	}
	for key, values := range params {
		for _, v := range values {
			q.Set(key, v)
		}
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// isRetryable checks if an error is worth retrying.
func (c *Client) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	var apiErr *APIErrorDTO
	if errors.As(err, &apiErr) {
		// Apps Script surfaces its own quota hits as error bodies.
		return strings.Contains(strings.ToLower(apiErr.ErrorText), "rate limit")
	}

	errStr := err.Error()
	for _, marker := range []string{"timeout", "connection refused", "temporary", "reset", "EOF", "server error"} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// IsHealthy checks if the roster source is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	var stats StatsDTO
	return c.doSingleRequest(ctx, "getStats", nil, &stats) == nil
}

// ClientStatus describes the current state of the client's protections.
type ClientStatus struct {
	RateLimiter   RateLimiterStatus
	BreakerState  string
	BreakerCounts circuitbreaker.Counts
	IsHealthy     bool
}

// Status returns the current status of the client.
func (c *Client) Status(ctx context.Context) ClientStatus {
	return ClientStatus{
		RateLimiter:   c.rateLimiter.Status(),
		BreakerState:  c.circuitBreaker.State().String(),
		BreakerCounts: c.circuitBreaker.Counts(),
		IsHealthy:     c.IsHealthy(ctx),
	}
}

// Reset resets the rate limiter and circuit breaker.
func (c *Client) Reset() {
	c.rateLimiter.Reset()
	c.circuitBreaker.Reset()
}
