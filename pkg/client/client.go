// Package client is the Go SDK for the territory engine API.
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
	"time"
)

// Version of the SDK.
const Version = "0.1.0"

// DefaultTenantHeader matches the server's default tenant header.
const DefaultTenantHeader = "X-Tenant-ID"

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("territory: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
}

// IsConflict reports whether the request lost an allocation race or hit a
// state conflict.  Callers should re-preview and retry.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// IsNotFound reports whether the resource does not exist.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTenantHeader overrides the header name carrying the tenant ID.
func WithTenantHeader(name string) Option {
	return func(c *Client) { c.tenantHeader = name }
}

// Client talks to one tenant's slice of the API.
type Client struct {
	baseURL      string
	tenantID     string
	tenantHeader string
	httpClient   *http.Client
}

// New creates a client for the given API base URL and tenant.
func New(baseURL, tenantID string, opts ...Option) *Client {
	c := &Client{
		baseURL:      baseURL,
		tenantID:     tenantID,
		tenantHeader: DefaultTenantHeader,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body, out any) error {
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("territory: encode request: %w", err)
		}
		buf = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("territory: build request: %w", err)
	}
	req.Header.Set("User-Agent", "territory-client/"+Version)
	req.Header.Set(c.tenantHeader, c.tenantID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("territory: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("territory: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(raw, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
			apiErr.Message = string(raw)
		}
		return apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("territory: decode response: %w", err)
		}
	}
	return nil
}

func listQuery(page, pageSize int) string {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
