// Package fetch retrieves web pages and extracts article content, links and
// metadata from them.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single page fetch.
const DefaultTimeout = 8 * time.Second

// DefaultUserAgent identifies the crawler to origin servers.
const DefaultUserAgent = "Mozilla/5.0 (compatible; NewsroomBot/1.0; +https://github.com/newsroom)"

// maxBodyBytes caps how much of a response we read; article pages beyond
// this are truncated rather than ballooning memory.
const maxBodyBytes = 10 << 20

// Client fetches HTML documents with a bounded timeout.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a fetch client. A non-positive timeout falls back to
// DefaultTimeout and an empty userAgent falls back to DefaultUserAgent.
func NewClient(timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
	}
}

// FetchHTML GETs url following redirects and returns the response body.
// Any non-2xx status is an error.
func (c *Client) FetchHTML(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response body from %s: %w", url, err)
	}

	return string(body), nil
}
