package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/safekart/safekart/internal/errors"
	"github.com/safekart/safekart/internal/log"
	"github.com/safekart/safekart/internal/metrics"
	"github.com/safekart/safekart/internal/telemetry"
	"github.com/safekart/safekart/internal/version"
)

const (
	// DefaultTimeout bounds every request unless WithTimeout or WithHTTPClient says otherwise
	DefaultTimeout = 30 * time.Second

	// maxBodySize caps how much of a response body is read
	maxBodySize = 1 << 20

	// RequestIDHeader carries a per-request uuid
	RequestIDHeader = "X-Request-ID"
)

// Client is the SafeKart API client
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	metrics    *metrics.Metrics
	logger     *log.Logger
	userAgent  string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the underlying http.Client. The client is copied, so
// WithTimeout never changes the caller's value.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the overall per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMetrics records request counts and latency
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the logger for request diagnostics
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for the API rooted at baseURL, e.g.
// http://localhost:3000/api/v1/. A missing trailing slash is added.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.NewInvalidURLError(baseURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, errors.NewInvalidURLError(baseURL, fmt.Errorf("URL must be absolute"))
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     log.Discard(),
		userAgent:  "safekart/" + version.Version,
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := *c.httpClient
	if c.timeout > 0 {
		hc.Timeout = c.timeout
	}
	c.httpClient = &hc
	return c, nil
}

// BaseURL returns the normalized API root
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// envelope is the response wrapper every endpoint uses. Older handlers
// report "status":"success" instead of a boolean.
type envelope struct {
	Success *bool           `json:"success"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Error   json.RawMessage `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func (e *envelope) ok() bool {
	if e.Success != nil {
		return *e.Success
	}
	if e.Status != "" {
		return e.Status == "success"
	}
	return true
}

// errorDetails pulls code and message out of the "error" field, which is
// either a string or an object.
func (e *envelope) errorDetails() (code, message string) {
	code, message = e.Code, e.Message
	if len(e.Error) == 0 || string(e.Error) == "null" {
		return code, message
	}

	var s string
	if err := json.Unmarshal(e.Error, &s); err == nil {
		if message == "" {
			message = s
		}
		return code, message
	}

	var obj struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(e.Error, &obj); err == nil {
		if code == "" {
			code = obj.Code
		}
		if message == "" {
			message = obj.Message
		}
	}
	return code, message
}

// do sends one request and decodes the envelope's data into out.
// endpoint is relative to the base URL, without a leading slash.
func (c *Client) do(ctx context.Context, method, endpoint, token string, body, out any) error {
	ctx, span := telemetry.StartClientSpan(ctx, method, endpoint)
	defer span.End()

	requestID := uuid.NewString()
	span.SetAttributes(attribute.String("request.id", requestID))

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	target := c.baseURL.ResolveReference(&url.URL{Path: endpoint})
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	telemetry.InjectHeaders(ctx, req.Header)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordHTTPRequest(endpoint, 0, time.Since(start))
		terr := &TransportError{
			Kind:     classifyTransport(err),
			Method:   method,
			Endpoint: endpoint,
			Err:      err,
		}
		telemetry.RecordError(span, terr, attribute.String("transport.kind", terr.Kind.String()))
		c.logger.DebugContext(ctx, "request failed", "request_id", requestID, "error", terr)
		return terr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	c.metrics.RecordHTTPRequest(endpoint, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.DebugContext(ctx, "request completed",
		"request_id", requestID,
		"method", method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	if err != nil {
		terr := &TransportError{Kind: classifyTransport(err), Method: method, Endpoint: endpoint, Err: err}
		telemetry.RecordError(span, terr)
		return terr
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Endpoint: endpoint}
		if decodeErr == nil {
			apiErr.Code, apiErr.Message = env.errorDetails()
		} else if text := strings.TrimSpace(string(raw)); text != "" && !strings.HasPrefix(text, "<") {
			apiErr.Message = text
		}
		telemetry.RecordError(span, apiErr)
		return apiErr
	}

	if decodeErr != nil {
		err := fmt.Errorf("failed to decode %s response: %w", endpoint, decodeErr)
		telemetry.RecordError(span, err)
		return err
	}

	if !env.ok() {
		apiErr := &APIError{Status: resp.StatusCode, Endpoint: endpoint}
		apiErr.Code, apiErr.Message = env.errorDetails()
		telemetry.RecordError(span, apiErr)
		return apiErr
	}

	if out != nil {
		if len(env.Data) == 0 || string(env.Data) == "null" {
			err := fmt.Errorf("%s response has no data", endpoint)
			telemetry.RecordError(span, err)
			return err
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			err = fmt.Errorf("failed to decode %s response data: %w", endpoint, err)
			telemetry.RecordError(span, err)
			return err
		}
	}

	telemetry.RecordSuccess(span)
	return nil
}
