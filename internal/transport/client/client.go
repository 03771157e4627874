package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joshdurbin/shortlink-console/internal/domain"
	"github.com/joshdurbin/shortlink-console/internal/logging"
	"github.com/joshdurbin/shortlink-console/internal/metrics"
)

// DefaultTimeout is the request timeout when none is configured
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is read
const maxErrorBody = 64 << 10

// TokenSource supplies the bearer token for authenticated requests
type TokenSource interface {
	Token() string
}

// Client represents an HTTP client for the URL shortener API
type Client struct {
	serverURL  string
	httpClient *http.Client
	tokens     TokenSource
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// Option configures a Client
type Option func(*Client)

// WithTokenSource attaches a bearer token to authenticated requests
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// WithHTTPClient uses a copy of httpClient; nil keeps the default
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient == nil {
			return
		}
		cp := *httpClient
		c.httpClient = &cp
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the request logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics instruments the transport with m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a new URL shortener client
func NewClient(serverURL string, opts ...Option) *Client {
	c := &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrNop(c.logger)

	if c.metrics != nil {
		instrumented := *c.httpClient
		instrumented.Transport = c.metrics.InstrumentRoundTripper(c.httpClient.Transport)
		c.httpClient = &instrumented
	}

	return c
}

// ServerURL returns the API base URL
func (c *Client) ServerURL() string {
	return c.serverURL
}

// Login exchanges credentials for a session
func (c *Client) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResponse, error) {
	var result domain.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, false, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Register creates an account using the emailed verification code
func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error) {
	var result domain.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", req, false, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendEmailCode asks the service to email a verification code
func (c *Client) SendEmailCode(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodGet, "/api/auth/register/"+url.PathEscape(email), nil, false, nil)
}

// ResetPassword sets a new password using the emailed verification code
func (c *Client) ResetPassword(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error) {
	var result domain.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/forget", req, false, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateURL creates a short URL
func (c *Client) CreateURL(ctx context.Context, req domain.CreateURLRequest) (*domain.CreateURLResponse, error) {
	var result domain.CreateURLResponse
	if err := c.do(ctx, http.MethodPost, "/api/url", req, true, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListURLs retrieves one page of the user's short URLs
func (c *Client) ListURLs(ctx context.Context, page, size int) (*domain.ListURLsResponse, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))

	var result domain.ListURLsResponse
	if err := c.do(ctx, http.MethodGet, "/api/urls?"+query.Encode(), nil, true, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateURLExpiry moves the expiry of the link identified by shortCode
func (c *Client) UpdateURLExpiry(ctx context.Context, shortCode string, expiresAt time.Time) error {
	req := domain.UpdateURLRequest{ExpiredAt: expiresAt.UTC()}
	return c.do(ctx, http.MethodPatch, "/api/url/"+url.PathEscape(shortCode), req, true, nil)
}

// DeleteURL deletes a short URL
func (c *Client) DeleteURL(ctx context.Context, shortCode string) error {
	return c.do(ctx, http.MethodDelete, "/api/url/"+url.PathEscape(shortCode), nil, true, nil)
}

// do sends one JSON request. Any 2xx status is success; out, when non-nil,
// receives the decoded body.
func (c *Client) do(ctx context.Context, method, path string, body any, authenticated bool, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	if authenticated && c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("api request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// readErrorMessage extracts "message" or "error" from a JSON error body
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}

	var body domain.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}
