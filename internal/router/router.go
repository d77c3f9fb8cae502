// Package router dispatches inbound chat messages to registered handlers
// on one sequential goroutine, so every accepted mutation is fully
// applied before the next message is considered.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"linklog/pkg/linklog"
)

const defaultQueueSize = 256

// Handler is one registered {predicate, handler} pair. Handlers are
// evaluated in registration order; the first matching handler consumes
// the message.
type Handler struct {
	// Name is a stable handler identifier used in logs and help output.
	Name string
	// Description describes the handler for help output. Optional.
	Description string
	// Match reports whether this handler wants the message.
	Match func(message *linklog.Message) bool
	// Handle processes the message.
	Handle func(ctx context.Context, message *linklog.Message) error
}

// Validate checks handler registration coherence.
func (h Handler) Validate() error {
	if h.Name == "" {
		return fmt.Errorf("validate handler: missing name")
	}
	if h.Match == nil {
		return fmt.Errorf("validate handler %s: missing match predicate", h.Name)
	}
	if h.Handle == nil {
		return fmt.Errorf("validate handler %s: missing handle func", h.Name)
	}

	return nil
}

// HandlerInfo is the read-only catalog view of one registered handler.
type HandlerInfo struct {
	// Name is the handler identifier.
	Name string
	// Description is the handler's help text.
	Description string
}

// Option mutates router construction configuration.
type Option func(*Router)

// WithLogger configures the dispatch logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithQueueSize configures the inbound queue depth.
func WithQueueSize(size int) Option {
	return func(r *Router) {
		if size > 0 {
			r.queueSize = size
		}
	}
}

// Router queues inbound messages and dispatches them sequentially.
//
// Accept is safe to call from any goroutine; dispatch happens on the
// single Run goroutine, which is what lets handlers mutate the entry log
// without further coordination.
type Router struct {
	mu        sync.RWMutex
	handlers  []Handler
	logger    *slog.Logger
	queueSize int
	queue     chan *linklog.Message
	started   bool
}

// New creates an empty router.
func New(options ...Option) *Router {
	r := &Router{
		logger:    slog.Default(),
		queueSize: defaultQueueSize,
	}
	for _, option := range options {
		option(r)
	}
	r.queue = make(chan *linklog.Message, r.queueSize)

	return r
}

// Register appends one handler. Registration order is dispatch order.
func (r *Router) Register(handler Handler) error {
	if err := handler.Validate(); err != nil {
		return fmt.Errorf("register handler: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("register handler %s: router already running", handler.Name)
	}
	for _, existing := range r.handlers {
		if existing.Name == handler.Name {
			return fmt.Errorf("register handler %s: duplicate name", handler.Name)
		}
	}
	r.handlers = append(r.handlers, handler)

	return nil
}

// Catalog returns registered handler metadata in registration order.
func (r *Router) Catalog() []HandlerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	catalog := make([]HandlerInfo, 0, len(r.handlers))
	for _, handler := range r.handlers {
		catalog = append(catalog, HandlerInfo{
			Name:        handler.Name,
			Description: handler.Description,
		})
	}

	return catalog
}

// Accept implements linklog.MessageSink. It enqueues the message for
// sequential dispatch and blocks only when the queue is full.
func (r *Router) Accept(ctx context.Context, message *linklog.Message) error {
	if message == nil {
		return fmt.Errorf("accept message: nil message")
	}

	select {
	case r.queue <- message:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("accept message: %w", ctx.Err())
	}
}

// Run dispatches queued messages until ctx is cancelled. It returns
// ctx.Err() on cancellation.
func (r *Router) Run(ctx context.Context) error {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case message := <-r.queue:
			r.dispatch(ctx, message)
		}
	}
}

// dispatch runs the first matching handler. Handler errors and panics are
// logged, never propagated: a broken line must not take the process down.
func (r *Router) dispatch(ctx context.Context, message *linklog.Message) {
	r.mu.RLock()
	handlers := r.handlers
	r.mu.RUnlock()

	for _, handler := range handlers {
		matched := false
		err := runSafely("match "+handler.Name, func() error {
			matched = handler.Match(message)
			return nil
		})
		if err != nil {
			r.logger.Error("handler match panicked", "handler", handler.Name, "error", err)
			continue
		}
		if !matched {
			continue
		}

		if err := runSafely("handle "+handler.Name, func() error {
			return handler.Handle(ctx, message)
		}); err != nil {
			r.logger.Error("handler failed",
				"handler", handler.Name,
				"nick", message.Nick,
				"channel", message.Channel,
				"error", err,
			)
		}

		return
	}
}
