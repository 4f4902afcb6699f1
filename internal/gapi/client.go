package gapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
)

// Retry and backoff constants. Retries only ever apply to GET requests.
const (
	baseBackoff    = 1 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
	defaultAgent   = "expedientes-go/0.1"
)

// Default Google API base URLs.
const (
	DefaultSheetsURL   = "https://sheets.googleapis.com/v4"
	DefaultDriveURL    = "https://www.googleapis.com/drive/v3"
	DefaultUploadURL   = "https://www.googleapis.com/upload/drive/v3"
	DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// Endpoints holds the base URLs of the APIs a Client talks to. Tests point
// all of them at a single httptest server.
type Endpoints struct {
	Sheets   string
	Drive    string
	Upload   string
	UserInfo string
}

// DefaultEndpoints returns the production Google API base URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Sheets:   DefaultSheetsURL,
		Drive:    DefaultDriveURL,
		Upload:   DefaultUploadURL,
		UserInfo: DefaultUserInfoURL,
	}
}

// TokenSource provides OAuth2 bearer tokens. Defined at the consumer
// (gapi package) so the session can hand out its current token without
// importing this package's auth code.
type TokenSource interface {
	Token() (string, error)
}

// Client is an HTTP client shared by the index, store and profile clients.
// It handles authentication, request pacing, optional retry of reads, and
// error classification.
type Client struct {
	endpoints  Endpoints
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
	limiter    *rate.Limiter
	maxRetries int
	userAgent  string

	// sleepFunc is called to wait between retries. Tests override this to
	// avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit paces every request through a token bucket. A non-positive
// rate disables pacing.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}

		if burst < 1 {
			burst = 1
		}

		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithMaxRetries enables retry with exponential backoff for GET requests
// that fail with a network error, 408 or 5xx. Zero disables retry.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = max(n, 0)
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient creates a Google API client.
func NewClient(endpoints Endpoints, httpClient *http.Client, token TokenSource, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Client{
		endpoints:  endpoints,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
		userAgent:  defaultAgent,
		sleepFunc:  timeSleep,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Do executes an authenticated request against url. contentType is set when
// body is non-nil. On a 2xx response the caller owns the response body; any
// other status is returned as *APIError with the body already consumed.
func (c *Client) Do(ctx context.Context, method, url, contentType string, body io.Reader) (*http.Response, error) {
	retries := 0
	if method == http.MethodGet {
		retries = c.maxRetries
	}

	var attempt int
	for {
		resp, err := c.doOnce(ctx, method, url, contentType, body)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("gapi: request canceled: %w", ctx.Err())
			}

			if attempt < retries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("method", method),
					slog.String("url", url),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("gapi: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("gapi: %s %s: %w", method, url, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			c.logger.Debug("request succeeded",
				slog.String("method", method),
				slog.String("url", url),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		apiErr := newAPIError(resp)

		if isRetryable(apiErr.StatusCode) && attempt < retries {
			backoff := c.calcBackoff(attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("method", method),
				slog.String("url", url),
				slog.Int("status", apiErr.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("gapi: request canceled: %w", err)
			}

			attempt++

			continue
		}

		c.logger.Debug("request failed",
			slog.String("method", method),
			slog.String("url", url),
			slog.Int("status", apiErr.StatusCode),
			slog.Int("attempts", attempt+1),
		)

		return nil, apiErr
	}
}

// doOnce executes a single HTTP request (no retry).
func (c *Client) doOnce(ctx context.Context, method, url, contentType string, body io.Reader) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	tok, err := c.token.Token()
	if err != nil {
		return nil, fmt.Errorf("obtaining token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", c.userAgent)

	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return c.httpClient.Do(req)
}

// newAPIError reads and closes a non-2xx response body. Google wraps errors
// in {"error":{"code":..,"message":..}}; googleapi.CheckResponse extracts the
// message and keeps the raw body.
func newAPIError(resp *http.Response) *APIError {
	defer resp.Body.Close()

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Err:        classifyStatus(resp.StatusCode),
	}

	var gerr *googleapi.Error
	if errors.As(googleapi.CheckResponse(resp), &gerr) {
		apiErr.Message = gerr.Message
		apiErr.Body = gerr.Body
	}

	return apiErr
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
