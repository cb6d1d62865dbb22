package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TokenSource supplies the bearer credential for outgoing requests and is
// told when the service rejects it.
type TokenSource interface {
	// Snapshot returns the current token and the epoch it belongs to,
	// read atomically.
	Snapshot() (token string, epoch uint64)
	// InvalidateEpoch clears the credential if it is still the one that
	// was current at epoch.
	InvalidateEpoch(epoch uint64) bool
}

// Client is a thin HTTP client for the todo REST service. It attaches the
// bearer token, decodes the {code, message, data} envelope and classifies
// failures. It never retries.
type Client struct {
	baseURL    string
	session    TokenSource
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the service rooted at baseURL
// (e.g. http://127.0.0.1:8000/api/v1).
func NewClient(baseURL string, session TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query holds URL query parameters. Nil values, nil pointers and empty
// strings are omitted when encoded.
type Query map[string]any

// Encode renders q as a URL query string without the leading '?'.
func (q Query) Encode() string {
	values := url.Values{}
	for key, raw := range q {
		value, ok := queryValue(raw)
		if !ok {
			continue
		}
		values.Set(key, value)
	}
	return values.Encode()
}

func queryValue(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		return v, v != ""
	case *string:
		if v == nil || *v == "" {
			return "", false
		}
		return *v, true
	case int:
		return strconv.Itoa(v), true
	case *int:
		if v == nil {
			return "", false
		}
		return strconv.Itoa(*v), true
	case bool:
		return strconv.FormatBool(v), true
	case fmt.Stringer:
		s := v.String()
		return s, s != ""
	default:
		s := fmt.Sprint(v)
		return s, s != ""
	}
}

// envelope is the wrapper every response uses. Code is a pointer so that
// a missing code can be told apart from success.
type envelope struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Detail  any             `json:"detail"`
	Data    json.RawMessage `json:"data"`
}

// Get performs a GET and decodes the envelope data into result.
func (c *Client) Get(ctx context.Context, path string, query Query, result any) error {
	return c.Call(ctx, http.MethodGet, path, nil, query, result)
}

// Post performs a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any, result any) error {
	return c.Call(ctx, http.MethodPost, path, body, nil, result)
}

// Put performs a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any, result any) error {
	return c.Call(ctx, http.MethodPut, path, body, nil, result)
}

// Patch performs a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any, result any) error {
	return c.Call(ctx, http.MethodPatch, path, body, nil, result)
}

// Delete performs a DELETE.
func (c *Client) Delete(ctx context.Context, path string, result any) error {
	return c.Call(ctx, http.MethodDelete, path, nil, nil, result)
}

// Call is the core request method. On success the envelope's data is
// decoded into result (when non-nil). On failure it returns an *Error.
// A rejected credential is cleared from the token source before Call
// returns.
func (c *Client) Call(
	ctx context.Context,
	method string,
	path string,
	body any,
	query Query,
	result any,
) error {
	token, epoch := c.session.Snapshot()

	target := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	fail := func(kind Kind, code int, message string, err error) *Error {
		return &Error{
			Kind:    kind,
			Code:    code,
			Message: message,
			Method:  method,
			Path:    path,
			Epoch:   epoch,
			Err:     err,
		}
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "error", err)
		return fail(KindTransport, 0, "backend unreachable", err)
	}
	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return fail(KindTransport, 0, "reading response body", readErr)
	}

	c.logger.Debug("request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(started),
	)

	var env envelope
	decodeErr := json.Unmarshal(respBody, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code := resp.StatusCode
		if decodeErr == nil && env.Code != nil && *env.Code != CodeOK {
			code = *env.Code
		}
		message := failureMessage(env, resp.StatusCode)

		if isAuthFailure(resp.StatusCode, code) {
			c.session.InvalidateEpoch(epoch)
			return fail(KindAuthExpired, code, message, nil)
		}
		if resp.StatusCode >= 500 && (decodeErr != nil || env.Code == nil) {
			return fail(KindTransport, code, "backend unreachable", nil)
		}
		return fail(KindBusiness, code, message, nil)
	}

	if decodeErr != nil || env.Code == nil {
		return fail(KindTransport, resp.StatusCode, "malformed response envelope", decodeErr)
	}
	if *env.Code != CodeOK {
		message := failureMessage(env, resp.StatusCode)
		if isAuthFailure(resp.StatusCode, *env.Code) {
			c.session.InvalidateEpoch(epoch)
			return fail(KindAuthExpired, *env.Code, message, nil)
		}
		return fail(KindBusiness, *env.Code, message, nil)
	}

	if result == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, result); err != nil {
		return fail(KindTransport, resp.StatusCode, "decoding response data", err)
	}
	return nil
}

// failureMessage picks the most specific message a failed response offers.
func failureMessage(env envelope, status int) string {
	if env.Message != "" {
		return env.Message
	}
	if detail, ok := env.Detail.(string); ok && detail != "" {
		return detail
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "request_failed"
}
