// Package backend is the HTTP client for the task/appointment storage service.
//
// Every call carries the caller identity query parameter, is bounded by a fixed
// timeout and yields either the decoded JSON body or a *Failure. The client
// never retries.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds each backend request.
	DefaultTimeout = 5 * time.Second
	// DefaultAPIPrefix is the versioned base path of the backend API.
	DefaultAPIPrefix = "/api/v1"
	// DefaultUserID is the single principal every call is made on behalf of.
	DefaultUserID = "default-user"
	// IdentityParam is the query parameter carrying the principal.
	IdentityParam = "user_id"
	// RequestIDHeader propagates the gateway invocation id to the backend.
	RequestIDHeader = "X-Request-ID"

	maxErrorBody = 4 << 10
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	APIPrefix  string
	UserID     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Observer   Observer
	Logger     *slog.Logger
}

// Request describes one backend call.
type Request struct {
	Method string
	// Path is relative to the API prefix, e.g. "tasks/" or "tasks/42/complete".
	Path  string
	Query url.Values
	// Body is JSON-encoded when non-nil.
	Body any
}

// Client issues requests against the backend REST API.
type Client struct {
	base     *url.URL
	userID   string
	timeout  time.Duration
	http     *http.Client
	observer Observer
	logger   *slog.Logger
}

// New creates a Client. BaseURL must be an absolute http(s) URL.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("backend: base URL is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("backend: parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend: base URL %q must use http or https", raw)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("backend: base URL %q has no host", raw)
	}

	prefix := strings.TrimSpace(cfg.APIPrefix)
	if prefix == "" {
		prefix = DefaultAPIPrefix
	}
	base.Path = strings.TrimRight(base.Path, "/") + "/" + strings.Trim(prefix, "/") + "/"

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	userID := strings.TrimSpace(cfg.UserID)
	if userID == "" {
		userID = DefaultUserID
	}
	client := cfg.HTTPClient
	if client == nil {
		client = NewHTTPClient(timeout)
	}
	observer := cfg.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:     base,
		userID:   userID,
		timeout:  timeout,
		http:     client,
		observer: observer,
		logger:   logger,
	}, nil
}

// BaseURL returns the resolved API root, including the version prefix.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Call performs one request. Inbound cancellation is not propagated: the call
// runs until it completes or the client timeout fires.
func (c *Client) Call(ctx context.Context, req Request) (any, *Failure) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	endpoint, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, NewFailure(KindInternal, fmt.Sprintf("invalid backend path %q", req.Path), err)
	}

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, NewFailure(KindInternal, "encode backend request", err)
		}
		body = bytes.NewReader(encoded)
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, method, endpoint, body)
	if err != nil {
		return nil, NewFailure(KindInternal, "build backend request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if id := RequestIDFromContext(ctx); id != "" {
		httpReq.Header.Set(RequestIDHeader, id)
	}

	start := time.Now()
	value, status, failure := c.do(httpReq)
	elapsed := time.Since(start)

	c.observer.ObserveCall(CallObservation{
		Method:     method,
		Route:      RouteTemplate(req.Path),
		StatusCode: status,
		Duration:   elapsed,
		Failure:    failureKind(failure),
	})
	c.logger.Debug("backend call",
		"method", method,
		"path", req.Path,
		"status", status,
		"duration", elapsed,
		"request_id", RequestIDFromContext(ctx),
	)
	return value, failure
}

func (c *Client) do(httpReq *http.Request) (any, int, *Failure) {
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, 0, NewFailure(KindTimeout,
				fmt.Sprintf("backend request timed out after %s: %v", c.timeout, err), err)
		}
		return nil, 0, NewFailure(KindNetwork, fmt.Sprintf("backend request failed: %v", err), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, resp.StatusCode, NewFailure(KindTimeout,
				fmt.Sprintf("backend response timed out after %s: %v", c.timeout, err), err)
		}
		return nil, resp.StatusCode, NewFailure(KindNetwork, fmt.Sprintf("read backend response: %v", err), err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, resp.StatusCode, statusFailure(resp.StatusCode, raw)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, resp.StatusCode, nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, resp.StatusCode, NewFailure(KindDecode, fmt.Sprintf("decode backend response: %v", err), err)
	}
	return value, resp.StatusCode, nil
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return "", err
	}
	if ref.IsAbs() || ref.Host != "" {
		return "", errors.New("path must be relative")
	}
	endpoint := c.base.ResolveReference(ref)

	values := url.Values{}
	for key, vals := range query {
		for _, v := range vals {
			values.Add(key, v)
		}
	}
	values.Set(IdentityParam, c.userID)
	endpoint.RawQuery = values.Encode()
	return endpoint.String(), nil
}

func statusFailure(status int, raw []byte) *Failure {
	body := strings.TrimSpace(string(raw))
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	message := fmt.Sprintf("backend returned %d %s", status, http.StatusText(status))
	if detail := upstreamDetail(raw); detail != "" {
		message += ": " + detail
	} else if body != "" {
		message += ": " + body
	}
	return &Failure{
		Kind:    KindUpstreamStatus,
		Message: message,
		Status:  status,
		Body:    body,
	}
}

// upstreamDetail extracts the "detail" (or "error"/"message") string from a
// JSON error body, if present.
func upstreamDetail(raw []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	for _, key := range []string{"detail", "error", "message"} {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func failureKind(f *Failure) FailureKind {
	if f == nil {
		return ""
	}
	return f.Kind
}
