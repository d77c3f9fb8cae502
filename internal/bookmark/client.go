// Package bookmark talks to a del.icio.us-compatible bookmark service:
// posts/add with replace/shared flags and posts/delete, authenticated
// with HTTP basic credentials.
package bookmark

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"linklog/pkg/linklog"
)

const (
	defaultTimeout = 15 * time.Second
	userAgent      = "linklog/1.0"
	stampFormat    = "2006-01-02T15:04:05Z"
)

// Option mutates client construction configuration.
type Option func(*Client)

// WithTimeout bounds every service call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client. Intended for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// Client implements linklog.Bookmarker against one service endpoint.
type Client struct {
	http     *http.Client
	base     *url.URL
	username string
	password string
}

// NewClient creates a client for the service rooted at baseURL, for
// example "https://api.del.icio.us/v1".
func NewClient(baseURL string, username string, password string, options ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("new bookmark client: missing base url")
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("new bookmark client: parse base url: %w", err)
	}

	c := &Client{
		http:     &http.Client{Timeout: defaultTimeout},
		base:     base,
		username: username,
		password: password,
	}
	for _, option := range options {
		option(c)
	}

	return c, nil
}

// Create adds or overwrites one bookmark.
func (c *Client) Create(ctx context.Context, bookmark linklog.Bookmark) error {
	if err := bookmark.Validate(); err != nil {
		return fmt.Errorf("create bookmark: %w", err)
	}

	query := url.Values{}
	query.Set("url", bookmark.URL)
	query.Set("description", bookmark.Title)
	if bookmark.Extended != "" {
		query.Set("extended", bookmark.Extended)
	}
	if len(bookmark.Tags) > 0 {
		query.Set("tags", strings.Join(bookmark.Tags, " "))
	}
	if !bookmark.Stamp.IsZero() {
		query.Set("dt", bookmark.Stamp.UTC().Format(stampFormat))
	}
	query.Set("replace", yesNo(bookmark.Replace))
	query.Set("shared", yesNo(bookmark.Shared))

	if err := c.call(ctx, "posts/add", query); err != nil {
		return fmt.Errorf("create bookmark %s: %w", bookmark.URL, err)
	}

	return nil
}

// Delete removes the bookmark stored for rawURL. Deleting an unknown URL
// is not an error on the service side, matching the idempotency contract.
func (c *Client) Delete(ctx context.Context, rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("delete bookmark: %w", linklog.ErrEmptyURL)
	}

	query := url.Values{}
	query.Set("url", rawURL)
	if err := c.call(ctx, "posts/delete", query); err != nil {
		return fmt.Errorf("delete bookmark %s: %w", rawURL, err)
	}

	return nil
}

// serviceResult is the service's one-element XML response envelope.
type serviceResult struct {
	Code string `xml:"code,attr"`
}

func (c *Client) call(ctx context.Context, operation string, query url.Values) error {
	endpoint := *c.base
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + "/" + operation
	endpoint.RawQuery = query.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	request.SetBasicAuth(c.username, c.password)
	request.Header.Set("User-Agent", userAgent)

	response, err := c.http.Do(request)
	if err != nil {
		return fmt.Errorf("call %s: %w", operation, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read %s response: %w", operation, err)
	}
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("call %s: unexpected status %s", operation, response.Status)
	}

	var result serviceResult
	if err := xml.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parse %s response: %w", operation, err)
	}
	if result.Code != "done" {
		return fmt.Errorf("call %s: service answered %q", operation, result.Code)
	}

	return nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}

	return "no"
}
