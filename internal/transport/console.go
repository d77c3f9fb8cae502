// Package transport holds chat transport adapters. The console adapter
// speaks the neutral message contracts over stdin and stdout, which is
// enough to drive the full log locally and from integration tests.
package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"linklog/pkg/linklog"
)

// ConsoleConfig identifies the synthetic session a console run acts as.
type ConsoleConfig struct {
	// Nick is the nickname attributed to every typed line.
	Nick string
	// Channel is the channel attributed to every typed line.
	Channel string
}

// withDefaults fills unset fields.
func (c ConsoleConfig) withDefaults() ConsoleConfig {
	if c.Nick == "" {
		c.Nick = "console"
	}
	if c.Channel == "" {
		c.Channel = "#console"
	}

	return c
}

// ConsoleOption mutates console construction configuration.
type ConsoleOption func(*Console)

// WithInput overrides the input stream. Intended for tests.
func WithInput(input io.Reader) ConsoleOption {
	return func(c *Console) {
		if input != nil {
			c.input = input
		}
	}
}

// WithOutput overrides the output stream. Intended for tests.
func WithOutput(output io.Writer) ConsoleOption {
	return func(c *Console) {
		if output != nil {
			c.output = output
		}
	}
}

// WithLogger configures the console logger.
func WithLogger(logger *slog.Logger) ConsoleOption {
	return func(c *Console) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(clock func() time.Time) ConsoleOption {
	return func(c *Console) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// Console is a line-oriented chat transport over a reader and a writer.
// It is both the inbound Source and the outbound Messenger of a local
// session.
type Console struct {
	cfg    ConsoleConfig
	input  io.Reader
	logger *slog.Logger
	clock  func() time.Time

	writeMu sync.Mutex
	output  io.Writer
}

// NewConsole creates a console transport bound to stdin and stdout
// unless overridden.
func NewConsole(cfg ConsoleConfig, options ...ConsoleOption) *Console {
	c := &Console{
		cfg:    cfg.withDefaults(),
		input:  os.Stdin,
		output: os.Stdout,
		logger: slog.Default(),
		clock:  time.Now,
	}
	for _, option := range options {
		option(c)
	}

	return c
}

// Name returns the stable source identifier.
func (c *Console) Name() string {
	return "console"
}

// Start reads input lines and feeds them to sink until the input ends
// or ctx is cancelled. Blank lines are skipped.
func (c *Console) Start(ctx context.Context, sink linklog.MessageSink) error {
	if sink == nil {
		return fmt.Errorf("console start: nil sink")
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.input)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, open := <-lines:
			if !open {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("console read input: %w", err)
					}
				default:
				}
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			message := &linklog.Message{
				Nick:       c.cfg.Nick,
				Login:      c.cfg.Nick,
				Channel:    c.cfg.Channel,
				Text:       line,
				ReceivedAt: c.clock(),
			}
			if err := sink.Accept(ctx, message); err != nil {
				c.logger.Warn("console accept failed", "error", err)
			}
		}
	}
}

// Shutdown releases console resources. The console holds none beyond
// its streams, which it does not own.
func (c *Console) Shutdown(context.Context) error {
	return nil
}

// Deliver writes one outbound message to the output stream.
func (c *Console) Deliver(_ context.Context, recipient string, text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := fmt.Fprintf(c.output, "-> %s: %s\n", recipient, text); err != nil {
		return fmt.Errorf("console deliver to %s: %w", recipient, err)
	}

	return nil
}
