// Package scrape extracts listing items and Telegram chat links from
// yarmarka.ge marketplace pages.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/html"
)

// Default fetcher configuration constants
const (
	// DefaultFetchTimeout bounds a single page download.
	DefaultFetchTimeout = 30 * time.Second
	// DefaultUserAgent is sent with every request. The marketplace serves a
	// reduced page to clients it does not recognize as browsers.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// PageFetcher retrieves and parses the HTML document at a URL.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*html.Node, error)
}

// FetchError indicates a page could not be retrieved. StatusCode is zero for
// transport-level failures.
type FetchError struct {
	URL        string
	StatusCode int
	Cause      error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Opts holds configuration options for the HTTP page fetcher.
type Opts struct {
	Timeout   time.Duration
	UserAgent string
	Client    *http.Client
}

// Option defines a configuration option for the HTTP page fetcher.
type Option func(*Opts)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *Opts) { o.UserAgent = ua }
}

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.Client = c }
}

// HTTPPageFetcher downloads pages with a browser User-Agent and a bounded
// timeout. One attempt per call; retrying is left to the next scheduled run.
type HTTPPageFetcher struct {
	client    *http.Client
	userAgent string
}

// Compile-time check that HTTPPageFetcher implements PageFetcher.
var _ PageFetcher = (*HTTPPageFetcher)(nil)

// NewHTTPPageFetcher creates a page fetcher based on the provided options.
func NewHTTPPageFetcher(opts ...Option) *HTTPPageFetcher {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPPageFetcher{client: client, userAgent: cfg.UserAgent}
}

// Fetch downloads url and parses the response body as HTML.
func (f *HTTPPageFetcher) Fetch(ctx context.Context, url string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Cause: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Cause: fmt.Errorf("parse HTML: %w", err)}
	}
	slog.Debug("page fetched", "url", url, "status", resp.StatusCode)
	return doc, nil
}
