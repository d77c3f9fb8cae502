// Package social posts entry announcements through Mastodon-compatible
// status APIs. Each provider is configured with a base URL and a bearer
// access token.
package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const defaultTimeout = 15 * time.Second

// Option mutates poster construction configuration.
type Option func(*Poster)

// WithTimeout bounds every post call.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Poster) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// Poster implements linklog.SocialPoster against one provider instance.
type Poster struct {
	name    string
	base    string
	token   string
	timeout time.Duration
	http    *http.Client
}

// NewPoster creates a poster named name for the instance at baseURL,
// authenticating with the given access token.
func NewPoster(name string, baseURL string, accessToken string, options ...Option) (*Poster, error) {
	if name == "" {
		return nil, fmt.Errorf("new social poster: missing name")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("new social poster %s: missing base url", name)
	}
	if accessToken == "" {
		return nil, fmt.Errorf("new social poster %s: missing access token", name)
	}

	p := &Poster{
		name:    name,
		base:    strings.TrimRight(baseURL, "/"),
		token:   accessToken,
		timeout: defaultTimeout,
	}
	for _, option := range options {
		option(p)
	}

	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: p.token})
	p.http = oauth2.NewClient(context.Background(), source)
	p.http.Timeout = p.timeout

	return p, nil
}

// Name returns the configured provider identifier.
func (p *Poster) Name() string {
	return p.name
}

// statusResponse is the subset of the provider's reply the log cares
// about.
type statusResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Post publishes text as a new status and returns the provider's post
// reference.
func (p *Poster) Post(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("post status via %s: empty text", p.name)
	}

	form := url.Values{}
	form.Set("status", text)

	request, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.base+"/api/v1/statuses",
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return "", fmt.Errorf("post status via %s: new request: %w", p.name, err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response, err := p.http.Do(request)
	if err != nil {
		return "", fmt.Errorf("post status via %s: %w", p.name, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, 256<<10))
	if err != nil {
		return "", fmt.Errorf("post status via %s: read response: %w", p.name, err)
	}
	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("post status via %s: unexpected status %s", p.name, response.Status)
	}

	var status statusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return "", fmt.Errorf("post status via %s: parse response: %w", p.name, err)
	}
	if status.ID == "" {
		return "", fmt.Errorf("post status via %s: response missing id", p.name)
	}

	return status.ID, nil
}
