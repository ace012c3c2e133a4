// Package transport provides the HTTP capability every rmbridge component
// is built on. Components never construct sockets themselves; they receive
// a Client bound to a host and a set of default headers.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rmbridge/rmbridge/internal/logging"
	"github.com/rmbridge/rmbridge/internal/metrics"
)

// Response is a fully drained HTTP response. The body is read eagerly so
// callers never have to manage the underlying connection.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Text returns the response body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Client issues requests against one host. Paths are relative to the
// client's base URL and may carry a query string. Per-call headers are
// applied on top of the client's default headers.
//
// A Client reports an error only when no response was obtained at all;
// non-2xx statuses are returned in the Response for the caller to judge.
type Client interface {
	Get(ctx context.Context, path string, headers map[string]string) (*Response, error)
	Post(ctx context.Context, path string, body []byte, headers map[string]string) (*Response, error)
	Put(ctx context.Context, path string, body []byte, headers map[string]string) (*Response, error)
	Patch(ctx context.Context, path string, body []byte, headers map[string]string) (*Response, error)
	Delete(ctx context.Context, path string, headers map[string]string) (*Response, error)
}

// Config holds HTTP client configuration.
type Config struct {
	BaseURL    string
	Headers    map[string]string // applied to every request
	Timeout    time.Duration     // default 30s
	HTTPClient *http.Client      // optional; overrides Timeout when set
}

// HTTPClient is the production Client backed by net/http.
type HTTPClient struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
}

// New creates a client bound to cfg.BaseURL.
func New(cfg Config) *HTTPClient {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &HTTPClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		headers:    headers,
		httpClient: hc,
	}
}

// BaseURL returns the host this client is bound to.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

func (c *HTTPClient) Get(ctx context.Context, path string, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, headers)
}

func (c *HTTPClient) Post(ctx context.Context, path string, body []byte, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body, headers)
}

func (c *HTTPClient) Put(ctx context.Context, path string, body []byte, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodPut, path, body, headers)
}

func (c *HTTPClient) Patch(ctx context.Context, path string, body []byte, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodPatch, path, body, headers)
}

func (c *HTTPClient) Delete(ctx context.Context, path string, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil, headers)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, headers map[string]string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	metrics.RecordAPIRequest(method, resp.StatusCode)
	logging.Debug("api request",
		zap.String("method", method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// URLFetcher issues plain GET requests against absolute URLs. Signed
// download URLs are pre-authorized, so no default headers apply.
type URLFetcher struct {
	httpClient *http.Client
}

// NewURLFetcher creates a fetcher with the given timeout (default 30s).
func NewURLFetcher(timeout time.Duration) *URLFetcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &URLFetcher{httpClient: &http.Client{Timeout: timeout}}
}

// Get fetches an absolute URL and drains the response.
func (f *URLFetcher) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: read body: %w", url, err)
	}

	metrics.RecordAPIRequest(http.MethodGet, resp.StatusCode)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
