// Package api talks to the booking REST API: a base fetcher that issues single
// requests with session cookies attached, and a gateway that refreshes the
// session once across concurrent 401s and replays the failed requests.
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

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/slotbook/slotbook-cli/internal/hostutil"
	"github.com/slotbook/slotbook-cli/internal/output"
	"github.com/slotbook/slotbook-cli/internal/version"
)

// DefaultTimeout bounds a single request when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Fetcher issues one request and maps the outcome to a response or an
// *output.Error. Both Client and Gateway implement it.
type Fetcher interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request is one outbound call.
type Request struct {
	Method string
	// Path is relative to the API prefix, or an absolute URL (pagination links).
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
}

// Response wraps an API response.
type Response struct {
	Data       json.RawMessage
	StatusCode int
	Headers    http.Header
}

// UnmarshalData unmarshals the response data into the given value.
func (r *Response) UnmarshalData(v any) error {
	if len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Prefix  string

	// HTTPClient overrides the default client. Jar and Timeout are ignored
	// when it is set.
	HTTPClient *http.Client
	Jar        http.CookieJar
	Timeout    time.Duration

	// Limiter throttles outbound requests; nil disables throttling.
	Limiter *rate.Limiter

	Logger *slog.Logger
	Hooks  Hooks
}

// Client is the base fetcher. It never retries.
type Client struct {
	verbs
	httpClient *http.Client
	baseURL    string
	prefix     string
	limiter    *rate.Limiter
	logger     *slog.Logger
	hooks      Hooks
}

// NewClient creates a new API client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Jar:     opts.Jar,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	hooks := opts.Hooks
	if hooks == nil {
		hooks = NoopHooks{}
	}

	c := &Client{
		httpClient: httpClient,
		baseURL:    hostutil.Normalize(opts.BaseURL),
		prefix:     opts.Prefix,
		limiter:    opts.Limiter,
		logger:     logger,
		hooks:      hooks,
	}
	c.verbs = verbs{c}
	return c
}

// BaseURL returns the normalized API origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL builds the absolute URL for path and query.
func (c *Client) URL(path string, query url.Values) string {
	u := hostutil.JoinPath(c.baseURL, c.prefix, path)
	if len(query) == 0 {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + query.Encode()
}

// Do performs a single request.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	target := c.URL(req.Path, req.Query)
	info := RequestInfo{
		Method:    req.Method,
		URL:       target,
		RequestID: uuid.NewString(),
		Attempt:   attemptFrom(ctx),
	}
	ctx = c.hooks.OnRequestStart(ctx, info)

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		c.hooks.OnRequestEnd(ctx, info, RequestResult{Error: err})
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("User-Agent", version.UserAgent())
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", info.RequestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("api request", "method", req.Method, "url", target, "request_id", info.RequestID, "attempt", info.Attempt)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		} else {
			err = output.ErrNetwork(err)
		}
		c.hooks.OnRequestEnd(ctx, info, RequestResult{Duration: time.Since(start), Error: err})
		c.logger.Debug("api transport error", "url", target, "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if err != nil {
		err = output.ErrNetwork(fmt.Errorf("failed to read response: %w", err))
		c.hooks.OnRequestEnd(ctx, info, RequestResult{StatusCode: resp.StatusCode, Duration: duration, Error: err})
		return nil, err
	}

	c.logger.Debug("api response", "status", resp.StatusCode, "url", target, "duration", duration)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.hooks.OnRequestEnd(ctx, info, RequestResult{StatusCode: resp.StatusCode, Duration: duration})
		return &Response{Data: data, StatusCode: resp.StatusCode, Headers: resp.Header}, nil
	}

	apiErr := errorFromResponse(resp.StatusCode, resp.Header, data, req.Path)
	c.hooks.OnRequestEnd(ctx, info, RequestResult{StatusCode: resp.StatusCode, Duration: duration, Error: apiErr})
	return nil, apiErr
}

// errorFromResponse maps a non-2xx response to an *output.Error.
func errorFromResponse(status int, header http.Header, body []byte, path string) *output.Error {
	detail := parseDetail(body)

	switch {
	case status == http.StatusBadRequest:
		if fields := parseFieldErrors(body); len(fields) > 0 {
			return output.ErrValidation(fields)
		}
		if detail == "" {
			detail = "Bad request"
		}
		e := output.ErrAPI(status, detail)
		e.Code = output.CodeValidation
		return e

	case status == http.StatusUnauthorized:
		return output.ErrUnauthorized(detail)

	case status == http.StatusForbidden:
		if detail == "" {
			detail = "Access denied"
		}
		return output.ErrForbidden(detail)

	case status == http.StatusNotFound:
		return output.ErrNotFound("Resource", path)

	case status == http.StatusConflict:
		if detail == "" {
			detail = "Conflict"
		}
		return output.ErrConflict(detail)

	case status == http.StatusTooManyRequests:
		return output.ErrRateLimit(parseRetryAfter(header.Get("Retry-After")))

	case status >= 500:
		if detail == "" {
			detail = fmt.Sprintf("Server error (%d)", status)
		}
		return output.ErrAPI(status, detail)

	default:
		if detail == "" {
			detail = fmt.Sprintf("Request failed (HTTP %d)", status)
		}
		return output.ErrAPI(status, detail)
	}
}

// parseDetail extracts a DRF {"detail": "..."} message.
func parseDetail(body []byte) string {
	var payload struct {
		Detail  string `json:"detail"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	switch {
	case payload.Detail != "":
		return payload.Detail
	case payload.Error != "":
		return payload.Error
	}
	return payload.Message
}

// parseFieldErrors flattens DRF validation errors: values may be a string,
// a list of strings, or a nested object of the same shape.
func parseFieldErrors(body []byte) map[string][]string {
	var raw map[string]json.RawMessage
	if json.Unmarshal(body, &raw) != nil {
		return nil
	}
	fields := make(map[string][]string)
	for key, val := range raw {
		collectFieldErrors(fields, key, val)
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func collectFieldErrors(fields map[string][]string, key string, val json.RawMessage) {
	var s string
	if json.Unmarshal(val, &s) == nil {
		fields[key] = append(fields[key], s)
		return
	}
	var list []json.RawMessage
	if json.Unmarshal(val, &list) == nil {
		for _, item := range list {
			collectFieldErrors(fields, key, item)
		}
		return
	}
	var nested map[string]json.RawMessage
	if json.Unmarshal(val, &nested) == nil {
		for k, v := range nested {
			collectFieldErrors(fields, key+"."+k, v)
		}
	}
}

// parseRetryAfter parses the Retry-After header value.
func parseRetryAfter(header string) int {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return seconds
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return int(d.Seconds() + 0.5)
		}
	}
	return 0
}

// verbs provides method shorthands over any Fetcher.
type verbs struct {
	f Fetcher
}

// Get performs a GET request.
func (v verbs) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return v.f.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post performs a POST request with a JSON body.
func (v verbs) Post(ctx context.Context, path string, body any) (*Response, error) {
	return v.f.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request with a JSON body.
func (v verbs) Put(ctx context.Context, path string, body any) (*Response, error) {
	return v.f.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch performs a PATCH request with a JSON body.
func (v verbs) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return v.f.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (v verbs) Delete(ctx context.Context, path string) (*Response, error) {
	return v.f.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}
