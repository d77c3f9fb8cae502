package linklog

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Bookmark is one create/overwrite request against the external bookmark
// service.
type Bookmark struct {
	// URL is the bookmarked link.
	URL string
	// Title is the bookmark description line.
	Title string
	// Extended is the free-form attribution text.
	Extended string
	// Tags are the bookmark tags, author nick included.
	Tags []string
	// Stamp is the entry creation time forwarded for attribution.
	Stamp time.Time
	// Replace requests overwrite semantics for an existing URL.
	Replace bool
	// Shared marks the bookmark public.
	Shared bool
}

// Validate checks the request before dispatch.
func (b Bookmark) Validate() error {
	if b.URL == "" {
		return fmt.Errorf("validate bookmark: %w", ErrEmptyURL)
	}

	return nil
}

// Bookmarker is the external bookmark service boundary. All operations
// are idempotent from the log's point of view.
type Bookmarker interface {
	// Create adds or overwrites one bookmark.
	Create(ctx context.Context, bookmark Bookmark) error
	// Delete removes the bookmark stored for url.
	Delete(ctx context.Context, url string) error
}

// SocialPoster is one optional social posting provider.
type SocialPoster interface {
	// Name returns a stable provider identifier.
	Name() string
	// Post publishes text and returns a provider post reference.
	Post(ctx context.Context, text string) (ref string, err error)
}

// LogSync receives entry mutations for fan-out to external services.
// Implementations are fire-and-forget: callers never wait on the outcome.
type LogSync interface {
	// OnCreate mirrors a freshly appended entry.
	OnCreate(entry Entry)
	// OnUpdate mirrors a mutated entry. previousURL is the entry's URL
	// before the mutation; when it differs from the current URL the old
	// bookmark is removed first.
	OnUpdate(entry Entry, previousURL string)
	// OnDelete removes the external traces of a deleted entry.
	OnDelete(entry Entry)
}

// Attribution builds the fixed-format origin string stored alongside the
// bookmark.
func Attribution(entry Entry, server string) string {
	return fmt.Sprintf("posted by %s in %s on %s", entry.Nick, entry.Channel, server)
}

// BookmarkTags returns the entry's tags with the author nick appended,
// following the tag set rules.
func BookmarkTags(entry Entry) []string {
	tagged := CloneEntry(entry)
	tagged.AddTag(entry.Nick)

	return tagged.Tags
}

// FormatSocialPost renders one entry as the cross-posted status text. The
// tag matching the channel name is left out of the hashtag line because
// the channel is already named in the attribution.
func FormatSocialPost(entry Entry) string {
	var post strings.Builder
	post.WriteString(fmt.Sprintf("%s (via %s on %s)", entry.Title, entry.Nick, entry.Channel))

	channelTag := strings.TrimLeft(entry.Channel, "#&")
	hashtags := make([]string, 0, len(entry.Tags))
	for _, tag := range entry.Tags {
		if strings.EqualFold(tag, channelTag) {
			continue
		}
		hashtags = append(hashtags, "#"+tag)
	}
	if len(hashtags) > 0 {
		post.WriteString("\n\n")
		post.WriteString(strings.Join(hashtags, " "))
	}

	post.WriteString("\n\n")
	post.WriteString(entry.Link)

	return post.String()
}
