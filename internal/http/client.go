package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/fivetwenty-io/apisix-client/internal/constants"
	"github.com/fivetwenty-io/apisix-client/pkg/apisix"
)

// Client is the transport for one gateway upstream (admin or control).
// It owns the base URL, the API key, the per-call timeout and the retry
// policy. Reads go through a retrying client; writes never retry.
type Client struct {
	baseURL   string
	upstream  string
	apiKey    string
	userAgent string
	timeout   time.Duration

	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration

	httpClient *http.Client
	reader     *retryablehttp.Client
	writer     *retryablehttp.Client

	logger  apisix.Logger
	debug   bool
	metrics *Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the key sent as X-API-KEY.
func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithTimeout sets the per-call timeout. A shorter context deadline still wins.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithUpstream names the upstream in logs and metrics.
func WithUpstream(upstream string) Option {
	return func(c *Client) {
		c.upstream = upstream
	}
}

// WithLogger sets the logger.
func WithLogger(logger apisix.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithRetryConfig sets the retry policy for idempotent reads.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.retryMax = retryMax
		c.retryWaitMin = waitMin
		c.retryWaitMax = waitMax
	}
}

// WithMetrics records every request on m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Request is one call against the upstream.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Headers map[string]string
	// Timeout overrides the client-wide timeout for this call.
	Timeout time.Duration
}

// Response is a completed call. Body is fully read.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// NewClient creates a new transport for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		upstream:     constants.UpstreamAdmin,
		userAgent:    constants.DefaultUserAgent,
		timeout:      constants.DefaultHTTPTimeout,
		retryMax:     constants.DefaultRetryMax,
		retryWaitMin: constants.DefaultRetryWaitMin,
		retryWaitMax: constants.DefaultRetryWaitMax,
	}

	for _, opt := range opts {
		opt(client)
	}

	client.reader = client.newRetryableClient(client.retryMax)
	client.writer = client.newRetryableClient(0)

	return client
}

func (c *Client) newRetryableClient(retryMax int) *retryablehttp.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = retryMax
	retryClient.RetryWaitMin = c.retryWaitMin
	retryClient.RetryWaitMax = c.retryWaitMax
	retryClient.CheckRetry = retryablehttp.DefaultRetryPolicy
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil

	if c.httpClient != nil {
		retryClient.HTTPClient = c.httpClient
	}

	if c.debug && c.logger != nil {
		retryClient.Logger = &leveledLogger{logger: c.logger}
		retryClient.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
			if attempt > 0 {
				c.logger.Warn("HTTP Retry", map[string]interface{}{
					"upstream": c.upstream,
					"method":   req.Method,
					"url":      req.URL.String(),
					"attempt":  attempt,
				})
			}
		}
	}

	return retryClient
}

// BaseURL returns the upstream base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Upstream returns the upstream name.
func (c *Client) Upstream() string {
	return c.upstream
}

// Do performs a request. A non-2xx response is returned together with an
// *apisix.HTTPError; connection failures yield *apisix.NetworkError and
// deadline overruns *apisix.TimeoutError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	fullURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var body []byte

	if req.Body != nil {
		var err error

		body, err = encodeBody(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
	}

	timeout := c.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	applied := appliedTimeout(ctx, timeout)

	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, fullURL, bodyReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	requestID := c.setHeaders(httpReq, req, body != nil)

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"upstream":   c.upstream,
			"method":     req.Method,
			"url":        fullURL,
			"request_id": requestID,
		})
	}

	start := time.Now()

	httpResp, err := c.clientFor(req.Method).Do(httpReq)
	if err != nil {
		c.metrics.observe(c.upstream, req.Method, "error", time.Since(start))

		return nil, classify(req.Method, fullURL, applied, err)
	}

	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.metrics.observe(c.upstream, req.Method, "error", time.Since(start))

		return nil, classify(req.Method, fullURL, applied, err)
	}

	duration := time.Since(start)
	c.metrics.observe(c.upstream, req.Method, fmt.Sprintf("%d", httpResp.StatusCode), duration)

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"upstream":    c.upstream,
			"status":      httpResp.StatusCode,
			"duration":    duration.String(),
			"request_id":  requestID,
			"body_length": len(respBody),
		})
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return resp, apisix.NewHTTPError(req.Method, fullURL, httpResp.StatusCode, respBody)
	}

	return resp, nil
}

func (c *Client) clientFor(method string) *retryablehttp.Client {
	if method == http.MethodGet || method == http.MethodHead {
		return c.reader
	}

	return c.writer
}

func (c *Client) setHeaders(httpReq *retryablehttp.Request, req *Request, hasBody bool) string {
	httpReq.Header.Set(constants.HeaderAccept, constants.ContentTypeJSON)
	httpReq.Header.Set(constants.HeaderUserAgent, c.userAgent)

	if hasBody {
		httpReq.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	}

	if c.apiKey != "" {
		httpReq.Header.Set(constants.HeaderAPIKey, c.apiKey)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	requestID := httpReq.Header.Get(constants.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
		httpReq.Header.Set(constants.HeaderRequestID, requestID)
	}

	return requestID
}

// appliedTimeout is the wait budget of a call: the call timeout, or what is
// left of the caller's deadline when that expires first.
func appliedTimeout(ctx context.Context, timeout time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return timeout
	}

	remaining := time.Until(deadline)
	if timeout <= 0 || remaining < timeout {
		return remaining
	}

	return timeout
}

func classify(method, fullURL string, timeout time.Duration, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &apisix.TimeoutError{Method: method, URL: fullURL, Timeout: timeout, Err: err}
	}

	return &apisix.NetworkError{Method: method, URL: fullURL, Err: err}
}

func encodeBody(body interface{}) ([]byte, error) {
	switch value := body.(type) {
	case []byte:
		return value, nil
	case json.RawMessage:
		return value, nil
	default:
		return json.Marshal(body)
	}
}

func bodyReader(body []byte) interface{} {
	if body == nil {
		return nil
	}

	return bytes.NewReader(body)
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}
