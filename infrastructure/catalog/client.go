// Package catalog implements the earthquake catalog boundary over the
// USGS FDSN event web service.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/seismiq/quakeagent/internal/domain"
	"github.com/seismiq/quakeagent/internal/ports"
)

// DefaultBaseURL is the public USGS FDSN event service endpoint.
const DefaultBaseURL = "https://earthquake.usgs.gov/fdsnws/event/1"

// DefaultTimeout bounds catalog requests; the service can be slow on
// large result sets.
const DefaultTimeout = 30 * time.Second

// maxErrorBodyLen caps how much of an error body is carried into the
// returned error.
const maxErrorBodyLen = 500

// Client fetches raw GeoJSON from the catalog service. It implements
// ports.CatalogSource.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the catalog endpoint, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// NewClient creates a catalog client against the public USGS endpoint
// unless overridden.
func NewClient(logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ ports.CatalogSource = (*Client)(nil)

// RequestURL builds the full request URL for a query type and parameter
// set. The same URL is surfaced to the user as provenance, so it must
// match what Fetch actually requests.
func (c *Client) RequestURL(queryType domain.QueryType, params url.Values) string {
	return fmt.Sprintf("%s%s?%s", c.baseURL, string(queryType), params.Encode())
}

// Fetch retrieves the raw response body. A 204 means the service found
// nothing and yields a nil body with no error; any other non-200 status
// becomes an ExecutionError carrying the status and a body excerpt.
func (c *Client) Fetch(ctx context.Context, queryType domain.QueryType, params url.Values) ([]byte, error) {
	requestURL := c.RequestURL(queryType, params)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("url", requestURL).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("catalog fetch")

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read catalog response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		excerpt := strings.TrimSpace(string(body))
		if len(excerpt) > maxErrorBodyLen {
			excerpt = excerpt[:maxErrorBodyLen]
		}
		return nil, domain.NewExecutionError(resp.StatusCode, excerpt)
	}

	return body, nil
}
