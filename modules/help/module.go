// Package help replies with the handler reference when it receives the
// help command.
package help

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"linklog/internal/router"
	"linklog/pkg/linklog"
)

const defaultCommand = "!help"

// Catalog lists the registered handlers the help text is built from.
type Catalog interface {
	Catalog() []router.HandlerInfo
}

// Option mutates module construction configuration.
type Option func(*Module)

// WithCommand overrides the trigger command word.
func WithCommand(command string) Option {
	return func(m *Module) {
		if command != "" {
			m.command = command
		}
	}
}

// WithLogger configures the module logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Module renders the handler catalog as chat text.
type Module struct {
	catalog   Catalog
	messenger linklog.Messenger
	command   string
	logger    *slog.Logger
}

// New creates a help module around a handler catalog and the outbound
// messenger.
func New(catalog Catalog, messenger linklog.Messenger, options ...Option) (*Module, error) {
	if catalog == nil {
		return nil, fmt.Errorf("new help module: nil catalog")
	}
	if messenger == nil {
		return nil, fmt.Errorf("new help module: nil messenger")
	}

	m := &Module{
		catalog:   catalog,
		messenger: messenger,
		command:   defaultCommand,
		logger:    slog.Default(),
	}
	for _, option := range options {
		option(m)
	}

	return m, nil
}

// Register installs the help handler.
func (m *Module) Register(r *router.Router) error {
	err := r.Register(router.Handler{
		Name:        "help",
		Description: fmt.Sprintf("%s shows this reference", m.command),
		Match:       m.match,
		Handle:      m.handle,
	})
	if err != nil {
		return fmt.Errorf("register help handler: %w", err)
	}

	return nil
}

func (m *Module) match(message *linklog.Message) bool {
	head := strings.TrimSpace(message.Text)
	if boundary := strings.IndexAny(head, " \t"); boundary >= 0 {
		head = head[:boundary]
	}

	return strings.EqualFold(head, m.command)
}

func (m *Module) handle(ctx context.Context, message *linklog.Message) error {
	body := renderHelp(m.catalog.Catalog())
	if err := m.messenger.Deliver(ctx, message.ReplyTarget(), body); err != nil {
		m.logger.Warn("deliver help failed",
			"recipient", message.ReplyTarget(),
			"error", err,
		)
	}

	return nil
}

// renderHelp formats the catalog in registration order, which is also
// dispatch precedence order.
func renderHelp(handlers []router.HandlerInfo) string {
	if len(handlers) == 0 {
		return "available commands:\n(none)"
	}

	var body strings.Builder
	body.WriteString("available commands:")
	for _, handler := range handlers {
		body.WriteString("\n  ")
		body.WriteString(handler.Name)
		if handler.Description != "" {
			body.WriteString(": ")
			body.WriteString(handler.Description)
		}
	}

	return body.String()
}
