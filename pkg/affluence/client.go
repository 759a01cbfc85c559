package affluence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/me/affluence/pkg/session"
)

// UnauthorizedFunc is called after a 401 has cleared the token. target is
// the login page the user should be sent to.
type UnauthorizedFunc func(target string)

// Client talks to the Affluence backend on behalf of one session.
type Client struct {
	httpClient     *http.Client
	config         Config
	session        *session.Manager
	logger         *slog.Logger
	onUnauthorized UnauthorizedFunc
}

// Option configures optional Client dependencies.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout is left alone; the
// per-request timeout from Config still applies.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUnauthorizedHandler sets the callback run after a 401 response.
func WithUnauthorizedHandler(fn UnauthorizedFunc) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// New creates a Client. sess must not be nil.
func New(config Config, sess *session.Manager, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	c := &Client{
		httpClient: &http.Client{},
		config:     config,
		session:    sess,
		logger:     logger.With("component", "affluence-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the resolved API base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Session returns the session manager backing this client.
func (c *Client) Session() *session.Manager {
	return c.session
}

// Response is a fully read backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// IsJSON is true when the response declared a JSON content type.
	IsJSON bool
}

// Decode unmarshals a JSON body into out. A *string out receives the body
// text whatever the content type.
func (r *Response) Decode(out any) error {
	if out == nil {
		return nil
	}
	if s, ok := out.(*string); ok {
		*s = string(r.Body)
		return nil
	}
	if !r.IsJSON {
		return fmt.Errorf("unexpected non-JSON response (status %d): %s", r.StatusCode, truncate(r.Text(), 200))
	}
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("unmarshaling response: %w", err)
	}
	return nil
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// requestOptions collects per-request settings.
type requestOptions struct {
	skipAuth       bool
	noSessionReset bool
	header   http.Header
	query    url.Values
	form     url.Values
}

// RequestOption configures a single request.
type RequestOption func(*requestOptions)

// SkipAuth sends the request without the bearer token.
func SkipAuth() RequestOption {
	return func(o *requestOptions) { o.skipAuth = true }
}

// noSessionReset keeps the session and skips the unauthorized handler on
// a 401. Logins use it: a rejected password is not an expired session.
func noSessionReset() RequestOption {
	return func(o *requestOptions) { o.noSessionReset = true }
}

// WithHeader adds a request header.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.header == nil {
			o.header = make(http.Header)
		}
		o.header.Add(key, value)
	}
}

// WithQuery merges q into the endpoint query string.
func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) {
		if o.query == nil {
			o.query = make(url.Values)
		}
		for k, vs := range q {
			for _, v := range vs {
				o.query.Add(k, v)
			}
		}
	}
}

// WithForm sends form as an application/x-www-form-urlencoded body instead
// of the JSON body.
func WithForm(form url.Values) RequestOption {
	return func(o *requestOptions) { o.form = form }
}

// Request issues an HTTP request against endpoint and returns the read
// response. Non-2xx statuses are returned as *APIError; a 401 also clears
// the stored token and runs the unauthorized handler.
func (c *Client) Request(ctx context.Context, method, endpoint string, body any, opts ...RequestOption) (*Response, error) {
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	u, err := c.buildURL(endpoint, ro.query)
	if err != nil {
		return nil, err
	}

	var payload []byte
	contentType := "application/json"
	switch {
	case ro.form != nil:
		payload = []byte(ro.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case body != nil:
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
	}

	op := method + " " + endpoint
	logger := c.logger.With("method", method, "url", u)

	attempts := 1
	if method == http.MethodGet && c.config.MaxRetries > 0 {
		attempts += c.config.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.config.RetryDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			logger.Debug("retrying after delay", "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, &Error{Op: op, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		resp, err := c.doOnce(ctx, op, method, u, payload, contentType, &ro)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil || !IsRetryable(err) || attempt == attempts-1 {
			break
		}
		logger.Debug("request failed, will retry", "error", err, "attempt", attempt)
	}
	return nil, lastErr
}

// doOnce performs one HTTP round trip under the per-request timeout.
func (c *Client) doOnce(ctx context.Context, op, method, u string, payload []byte, contentType string, ro *requestOptions) (*Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	for k, vs := range ro.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if !ro.skipAuth {
		if tok := c.session.Token(ctx); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	c.logger.Debug("HTTP request", "method", method, "url", u, "auth", req.Header.Get("Authorization") != "")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, reqCtx, op, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, c.transportError(ctx, reqCtx, op, fmt.Errorf("reading response: %w", err))
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
		IsJSON:     isJSON(httpResp.Header.Get("Content-Type")),
	}
	c.logger.Debug("HTTP response", "status", resp.StatusCode, "duration", time.Since(start).String(), "bytes", len(respBody))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	apiErr := ParseErrorBody(resp.StatusCode, respBody)
	if resp.StatusCode == http.StatusUnauthorized && !ro.noSessionReset {
		c.handleUnauthorized(ctx)
	}
	return nil, apiErr
}

// transportError maps a failed round trip to a TimeoutError when our own
// deadline fired, or to an *Error otherwise.
func (c *Client) transportError(parent, reqCtx context.Context, op string, err error) error {
	if parent.Err() == nil && errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		c.logger.Error("request timed out", "op", op, "timeout", c.config.Timeout)
		return &TimeoutError{Timeout: c.config.Timeout}
	}
	return &Error{Op: op, Err: err}
}

func (c *Client) handleUnauthorized(ctx context.Context) {
	if err := c.session.RemoveToken(ctx); err != nil {
		c.logger.Warn("could not clear token after 401", "error", err)
	}
	target := LoginTarget(c.config.Page)
	c.logger.Info("session rejected by backend", "login", target)
	if c.onUnauthorized != nil {
		c.onUnauthorized(target)
	}
}

func (c *Client) buildURL(endpoint string, q url.Values) (string, error) {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	u, err := url.Parse(c.config.BaseURL + endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if len(q) > 0 {
		merged := u.Query()
		for k, vs := range q {
			for _, v := range vs {
				merged.Add(k, v)
			}
		}
		u.RawQuery = merged.Encode()
	}
	return u.String(), nil
}

// Get performs a GET request and decodes the response into out.
func (c *Client) Get(ctx context.Context, endpoint string, out any, opts ...RequestOption) error {
	return c.call(ctx, http.MethodGet, endpoint, nil, out, opts...)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body, out any, opts ...RequestOption) error {
	return c.call(ctx, http.MethodPost, endpoint, body, out, opts...)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, body, out any, opts ...RequestOption) error {
	return c.call(ctx, http.MethodPut, endpoint, body, out, opts...)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string, out any, opts ...RequestOption) error {
	return c.call(ctx, http.MethodDelete, endpoint, nil, out, opts...)
}

func (c *Client) call(ctx context.Context, method, endpoint string, body, out any, opts ...RequestOption) error {
	resp, err := c.Request(ctx, method, endpoint, body, opts...)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// LoginTarget returns the login page for a page path: the admin login for
// admin pages, the user login otherwise.
func LoginTarget(page string) string {
	if strings.Contains(page, "admin-") {
		return "/admin-login.html"
	}
	return "/login.html"
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "json")
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// pageQuery builds the skip/limit query used by list endpoints.
func pageQuery(skip, limit int) url.Values {
	q := url.Values{}
	q.Set("skip", fmt.Sprint(skip))
	q.Set("limit", fmt.Sprint(limit))
	return q
}
