// Package httpclient fetches pages over plain HTTP for the static browser.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ClientType represents the type of HTTP client configuration
type ClientType string

const (
	// BrowserClient sends browser-like headers. Sites that reject unknown agents with 406
	// usually accept it.
	BrowserClient ClientType = "browser"

	// PlainClient sends curl-like headers, for sites whose bot filter blocks browser agents.
	PlainClient ClientType = "plain"
)

const defaultBrowserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ErrUnexpectedStatus is returned by Fetch for any non-200 response.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// Options tunes a client. Zero values select defaults.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Transport http.RoundTripper
}

// HTTPClient wraps an http.Client with configuration
type HTTPClient struct {
	client     *http.Client
	clientType ClientType
	userAgent  string
}

// NewClient creates a new HTTP client with the specified type
func NewClient(clientType ClientType, opts Options) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	client := &http.Client{
		Timeout:   opts.Timeout,
		Transport: opts.Transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Follow up to 10 redirects
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return &HTTPClient{
		client:     client,
		clientType: clientType,
		userAgent:  opts.UserAgent,
	}
}

// Do executes an HTTP request with the appropriate headers for the client type
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.setHeaders(req)
	return c.client.Do(req)
}

// Fetch GETs rawURL and returns the body as a string.
func (c *HTTPClient) Fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.Do(req)
	if err != nil {
		return "", err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// setHeaders sets the appropriate headers based on client type
func (c *HTTPClient) setHeaders(req *http.Request) {
	switch c.clientType {
	case BrowserClient:
		ua := c.userAgent
		if ua == "" {
			ua = defaultBrowserUserAgent
		}
		req.Header.Set("User-Agent", ua)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Connection", "keep-alive")
		req.Header.Set("Upgrade-Insecure-Requests", "1")

	case PlainClient:
		ua := c.userAgent
		if ua == "" {
			ua = "curl/8.7.1"
		}
		req.Header.Set("User-Agent", ua)

	default:
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
	}
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
