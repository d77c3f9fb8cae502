// Package title resolves a display title for a posted URL by fetching
// the page and reading its <title> element.
package title

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRetries = 1
	maxBodyBytes   = 1 << 20
	userAgent      = "linklog/1.0"
)

// Option mutates fetcher construction configuration.
type Option func(*Fetcher)

// WithTimeout bounds one fetch attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.http.Timeout = timeout
		}
	}
}

// WithRetries configures additional attempts after the first failure.
func WithRetries(retries int) Option {
	return func(f *Fetcher) {
		if retries >= 0 {
			f.retries = retries
		}
	}
}

// Fetcher fetches pages and extracts titles.
type Fetcher struct {
	http    *http.Client
	retries int
}

// NewFetcher creates a fetcher with bounded timeouts.
func NewFetcher(options ...Option) *Fetcher {
	f := &Fetcher{
		http:    &http.Client{Timeout: defaultTimeout},
		retries: defaultRetries,
	}
	for _, option := range options {
		option(f)
	}

	return f
}

// Title fetches rawURL and returns the page title with its whitespace
// collapsed. It retries transient failures a configured number of times.
func (f *Fetcher) Title(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("resolve title: parse url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("resolve title: unsupported scheme %q", parsed.Scheme)
	}

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("resolve title %s: %w", rawURL, ctx.Err())
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		pageTitle, err := f.fetchTitle(ctx, rawURL)
		if err == nil {
			return pageTitle, nil
		}
		lastErr = err
	}

	return "", fmt.Errorf("resolve title %s: %w", rawURL, lastErr)
}

func (f *Fetcher) fetchTitle(ctx context.Context, rawURL string) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("User-Agent", userAgent)

	response, err := f.http.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", response.Status)
	}

	document, err := goquery.NewDocumentFromReader(io.LimitReader(response.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	pageTitle := collapseWhitespace(document.Find("title").First().Text())
	if pageTitle == "" {
		return "", fmt.Errorf("page has no title")
	}

	return pageTitle, nil
}

func collapseWhitespace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
