package linklog

import (
	"context"
	"time"
)

// Message is one inbound chat line in neutral form.
type Message struct {
	// Nick is the sender's chat nickname.
	Nick string
	// Login is the transport-level login of the sender when known.
	Login string
	// Channel is the conversation the line was sent to; empty for
	// direct messages.
	Channel string
	// Text is the raw message text.
	Text string
	// ReceivedAt is when the transport observed the line.
	ReceivedAt time.Time
}

// ReplyTarget returns where responses to this message should go: the
// channel when present, otherwise the sender directly.
func (m *Message) ReplyTarget() string {
	if m.Channel != "" {
		return m.Channel
	}

	return m.Nick
}

// Messenger is the single outbound primitive the log core uses to reach
// the chat transport.
type Messenger interface {
	// Deliver sends text to one recipient (a channel or a nick).
	Deliver(ctx context.Context, recipient string, text string) error
}

// MessageSink accepts inbound messages for dispatching.
type MessageSink interface {
	// Accept submits one message for sequential dispatch.
	Accept(ctx context.Context, message *Message) error
}

// Source adapts an external chat transport into inbound messages.
//
// Sources own connection and session concerns and must publish only
// Message values.
type Source interface {
	// Name returns a stable source identifier.
	Name() string
	// Start consumes transport input and feeds sink until ctx is
	// cancelled or a fatal error occurs.
	Start(ctx context.Context, sink MessageSink) error
	// Shutdown releases resources not tied to the Start context alone.
	Shutdown(ctx context.Context) error
}
