// Package client provides the HTTP client used to reach the Rent-a-Ride REST
// backend. It includes bearer authentication, retry logic for reads and
// error message extraction.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/config"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/logger"
)

// HeaderRequestID carries the per-request correlation id.
const HeaderRequestID = "X-Request-ID"

// Client is the REST client shared by every resource.
type Client struct {
	http      *resty.Client
	baseURL   string
	apiPrefix string
	auth      *AuthManager
	limiter   *rate.Limiter
	logger    *zap.Logger

	signOutOnUnauthorized bool
}

// Option configures a Client.
type Option func(*Client)

// WithAuth attaches an auth manager supplying bearer tokens.
func WithAuth(am *AuthManager) Option {
	return func(c *Client) { c.auth = am }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.Named("client")
		}
	}
}

// WithSignOutOnUnauthorized signs the session out after any 401/403 answer.
func WithSignOutOnUnauthorized(enabled bool) Option {
	return func(c *Client) { c.signOutOnUnauthorized = enabled }
}

// NewClient creates a client for the backend described by cfg.
func NewClient(cfg config.TargetConfig, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute, got: %s", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiPrefix: normalizePrefix(cfg.APIPrefix),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "rentctl/1.0"
	}

	c.http = resty.New().
		SetBaseURL(c.baseURL).
		SetTimeout(cfg.Timeout).
		SetCookieJar(jar).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent).
		SetHeaders(cfg.Headers).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		AddRetryCondition(retryCondition)

	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	c.http.OnBeforeRequest(c.beforeRequest)
	return c, nil
}

// retryCondition retries idempotent reads on network errors, 5xx, 408 and 429.
func retryCondition(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

func (c *Client) beforeRequest(_ *resty.Client, r *resty.Request) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(r.Context()); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}
	if r.Header.Get(HeaderRequestID) == "" {
		id := logger.GetRequestID(r.Context())
		if id == "" {
			id = uuid.NewString()
		}
		r.SetHeader(HeaderRequestID, id)
	}
	if c.auth != nil {
		token, err := c.auth.Token(r.Context())
		if err != nil {
			return err
		}
		if token != "" {
			r.SetAuthToken(token)
		}
	}
	return nil
}

// Request represents an HTTP request to be executed.
type Request struct {
	Method      string
	Path        string
	QueryParams map[string]string
	Headers     map[string]string
	Body        any
}

// Response represents an HTTP response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Do executes req. Non-2xx answers and write answers reporting
// success=false return *APIError; transport failures wrap ErrNetwork.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	path := c.path(req.Path)
	r := c.http.R().SetContext(ctx)
	if len(req.QueryParams) > 0 {
		r.SetQueryParams(req.QueryParams)
	}
	if len(req.Headers) > 0 {
		r.SetHeaders(req.Headers)
	}
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.Body)
	}

	start := time.Now()
	resp, err := r.Execute(req.Method, path)
	out := &Response{Duration: time.Since(start)}
	log := c.logger.With(zap.String("method", req.Method), zap.String("path", path))

	if err != nil {
		return out, c.transportError(ctx, req.Method, path, err)
	}

	out.StatusCode = resp.StatusCode()
	out.Headers = resp.Header()
	out.Body = resp.Body()
	log = log.With(zap.Int("status", out.StatusCode), zap.Duration("duration", out.Duration))

	if !resp.IsSuccess() {
		apiErr := &APIError{
			StatusCode: out.StatusCode,
			Message:    ExtractMessage(out.StatusCode, out.Body),
			Body:       out.Body,
		}
		log.Debug("request failed", zap.String("message", apiErr.Message))
		if IsAuthFailure(apiErr) {
			c.handleUnauthorized(ctx)
		}
		return out, apiErr
	}

	if req.Method != http.MethodGet {
		if err := checkSuccess(out.StatusCode, out.Body); err != nil {
			log.Debug("request reported failure", zap.Error(err))
			return out, err
		}
	}

	log.Debug("request completed")
	return out, nil
}

func (c *Client) transportError(ctx context.Context, method, path string, err error) error {
	switch {
	case errors.Is(err, ErrSessionExpired):
		return &APIError{StatusCode: http.StatusUnauthorized, Message: "session expired", Err: err}
	case ctx.Err() != nil:
		return fmt.Errorf("%s %s: %w", method, path, ctx.Err())
	default:
		c.logger.Debug("request could not be sent",
			zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, path, err)
	}
}

func (c *Client) handleUnauthorized(ctx context.Context) {
	if !c.signOutOnUnauthorized || c.auth == nil {
		return
	}
	if err := c.auth.SignOut(ctx); err != nil {
		c.logger.Warn("sign-out after unauthorized answer failed", zap.Error(err))
		return
	}
	c.logger.Info("signed out after unauthorized answer")
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, queryParams map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, QueryParams: queryParams})
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path})
}

// path prefixes p with the API prefix unless it already carries it.
func (c *Client) path(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if c.apiPrefix != "" && p != c.apiPrefix && !strings.HasPrefix(p, c.apiPrefix+"/") {
		p = c.apiPrefix + p
	}
	return p
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Auth returns the auth manager, or nil.
func (c *Client) Auth() *AuthManager {
	return c.auth
}
