// Package links is the chat-facing surface of the link log: it
// turns posted URLs into entries, applies addressing directives to
// comment threads, and answers the view and tag commands.
package links

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"linklog/internal/router"
	"linklog/pkg/linklog"
)

// EntryLog is the store contract this module mutates. Satisfied by
// *store.Store.
type EntryLog interface {
	Append(entry linklog.Entry) int
	Get(displayIndex int) (linklog.Entry, bool)
	Replace(displayIndex int, entry linklog.Entry) error
	Remove(displayIndex int) error
	All() []linklog.Entry
	Len() int
}

// TitleResolver resolves a display title for a posted URL.
type TitleResolver interface {
	Title(ctx context.Context, url string) (string, error)
}

// Config carries the module's command vocabulary and paging window.
type Config struct {
	// LinkPrefix is the addressing directive prefix, for example "L".
	LinkPrefix string
	// ViewCommand triggers the paging view, for example "!links".
	ViewCommand string
	// TagsCommand lists or edits the keyword configuration.
	TagsCommand string
	// DeleteCommand removes one entry by display index.
	DeleteCommand string
	// EditCommand replaces one entry's URL and title by display index.
	EditCommand string
	// WindowSize is the number of entries shown per view page.
	WindowSize int
	// Keywords seeds the tag classifier keyword list.
	Keywords []string
}

// withDefaults fills unset fields with the stock vocabulary.
func (c Config) withDefaults() Config {
	if c.LinkPrefix == "" {
		c.LinkPrefix = "L"
	}
	if c.ViewCommand == "" {
		c.ViewCommand = "!links"
	}
	if c.TagsCommand == "" {
		c.TagsCommand = "!tags"
	}
	if c.DeleteCommand == "" {
		c.DeleteCommand = "!dellink"
	}
	if c.EditCommand == "" {
		c.EditCommand = "!editlink"
	}
	if c.WindowSize <= 0 {
		c.WindowSize = 5
	}

	return c
}

// Option mutates module construction configuration.
type Option func(*Module)

// WithLogger configures the module logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(clock func() time.Time) Option {
	return func(m *Module) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithTitleResolver configures page title resolution for URLs posted
// without an explicit title.
func WithTitleResolver(titles TitleResolver) Option {
	return func(m *Module) {
		m.titles = titles
	}
}

// Module wires the link log behavior into the dispatch router.
type Module struct {
	cfg       Config
	log       EntryLog
	sync      linklog.LogSync
	messenger linklog.Messenger
	titles    TitleResolver
	logger    *slog.Logger
	clock     func() time.Time

	keywordMu sync.RWMutex
	keywords  []string
}

// New creates the module around an entry log, a mutation fan-out, and
// the outbound messenger.
func New(cfg Config, log EntryLog, logSync linklog.LogSync, messenger linklog.Messenger, options ...Option) (*Module, error) {
	if log == nil {
		return nil, fmt.Errorf("new linklog module: nil entry log")
	}
	if logSync == nil {
		return nil, fmt.Errorf("new linklog module: nil log sync")
	}
	if messenger == nil {
		return nil, fmt.Errorf("new linklog module: nil messenger")
	}

	m := &Module{
		cfg:       cfg.withDefaults(),
		log:       log,
		sync:      logSync,
		messenger: messenger,
		logger:    slog.Default(),
		clock:     time.Now,
	}
	m.keywords = append([]string(nil), m.cfg.Keywords...)
	for _, option := range options {
		option(m)
	}

	return m, nil
}

// Register installs the module handlers. Directive handling is
// registered before URL detection so a directive line is never mistaken
// for a plain chat line.
func (m *Module) Register(r *router.Router) error {
	handlers := []router.Handler{
		{
			Name:        "link-directives",
			Description: fmt.Sprintf("%sN.M:<text> comment, %sN.M:- delete, %sN.M:?<nick> reassign", m.cfg.LinkPrefix, m.cfg.LinkPrefix, m.cfg.LinkPrefix),
			Match:       m.matchDirective,
			Handle:      m.handleDirective,
		},
		{
			Name:        "link-view",
			Description: fmt.Sprintf("%s [page] [query] shows the entry log", m.cfg.ViewCommand),
			Match:       m.matchCommand(m.cfg.ViewCommand),
			Handle:      m.handleView,
		},
		{
			Name:        "link-tags",
			Description: fmt.Sprintf("%s lists keywords, %s set <list> replaces them", m.cfg.TagsCommand, m.cfg.TagsCommand),
			Match:       m.matchCommand(m.cfg.TagsCommand),
			Handle:      m.handleTags,
		},
		{
			Name:        "link-delete",
			Description: fmt.Sprintf("%s <n> removes one entry", m.cfg.DeleteCommand),
			Match:       m.matchCommand(m.cfg.DeleteCommand),
			Handle:      m.handleDelete,
		},
		{
			Name:        "link-edit",
			Description: fmt.Sprintf("%s <n> <url> [title] replaces one entry", m.cfg.EditCommand),
			Match:       m.matchCommand(m.cfg.EditCommand),
			Handle:      m.handleEdit,
		},
		{
			Name:        "link-create",
			Description: "any line with an http(s) URL is logged",
			Match:       m.matchURL,
			Handle:      m.handleURL,
		},
	}

	for _, handler := range handlers {
		if err := r.Register(handler); err != nil {
			return fmt.Errorf("register linklog handlers: %w", err)
		}
	}

	return nil
}

// Keywords returns the active classifier keyword list.
func (m *Module) Keywords() []string {
	m.keywordMu.RLock()
	defer m.keywordMu.RUnlock()

	return append([]string(nil), m.keywords...)
}

// setKeywords replaces the classifier keyword list.
func (m *Module) setKeywords(keywords []string) {
	m.keywordMu.Lock()
	defer m.keywordMu.Unlock()

	m.keywords = append([]string(nil), keywords...)
}

// matchCommand matches a leading command word case-insensitively.
func (m *Module) matchCommand(command string) func(*linklog.Message) bool {
	return func(message *linklog.Message) bool {
		head, _ := splitCommand(message.Text)

		return strings.EqualFold(head, command)
	}
}

func splitCommand(text string) (head string, tail string) {
	trimmed := strings.TrimSpace(text)
	boundary := strings.IndexAny(trimmed, " \t")
	if boundary < 0 {
		return trimmed, ""
	}

	return trimmed[:boundary], strings.TrimSpace(trimmed[boundary+1:])
}

func (m *Module) deliver(ctx context.Context, message *linklog.Message, text string) {
	if err := m.messenger.Deliver(ctx, message.ReplyTarget(), text); err != nil {
		m.logger.Warn("deliver reply failed",
			"recipient", message.ReplyTarget(),
			"error", err,
		)
	}
}
