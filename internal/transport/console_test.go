package transport

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"linklog/pkg/linklog"
)

type captureSink struct {
	mu       sync.Mutex
	messages []*linklog.Message
}

func (s *captureSink) Accept(_ context.Context, message *linklog.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)

	return nil
}

func (s *captureSink) snapshot() []*linklog.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*linklog.Message(nil), s.messages...)
}

func TestStartFeedsLinesToSink(t *testing.T) {
	t.Parallel()

	input := strings.NewReader("https://example.com/a\n\n   \n!links\n")
	console := NewConsole(
		ConsoleConfig{Nick: "alice", Channel: "#chan"},
		WithInput(input),
		WithClock(func() time.Time { return time.Unix(5000, 0).UTC() }),
	)
	sink := &captureSink{}

	if err := console.Start(context.Background(), sink); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	messages := sink.snapshot()
	if len(messages) != 2 {
		t.Fatalf("message count = %d, want 2 (blank lines skipped)", len(messages))
	}
	first := messages[0]
	if first.Nick != "alice" || first.Channel != "#chan" {
		t.Fatalf("attribution = %q/%q", first.Nick, first.Channel)
	}
	if first.Text != "https://example.com/a" {
		t.Fatalf("text = %q", first.Text)
	}
	if !first.ReceivedAt.Equal(time.Unix(5000, 0).UTC()) {
		t.Fatalf("receivedAt = %v", first.ReceivedAt)
	}
	if messages[1].Text != "!links" {
		t.Fatalf("second text = %q", messages[1].Text)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	t.Parallel()

	// An input that never ends; cancellation must still stop Start.
	blocked, unblock := newBlockedReader()
	t.Cleanup(unblock)
	console := NewConsole(ConsoleConfig{}, WithInput(blocked))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- console.Start(ctx, &captureSink{})
	}()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Start returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancellation")
	}
}

func TestDeliverFormatsOutput(t *testing.T) {
	t.Parallel()

	var output strings.Builder
	console := NewConsole(ConsoleConfig{}, WithOutput(&output))

	if err := console.Deliver(context.Background(), "#chan", "logged 1. No Title"); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if output.String() != "-> #chan: logged 1. No Title\n" {
		t.Fatalf("output = %q", output.String())
	}
}

// blockedReader blocks Read until closed.
type blockedReader struct {
	unblock chan struct{}
}

func newBlockedReader() (*blockedReader, func()) {
	r := &blockedReader{unblock: make(chan struct{})}

	return r, func() { close(r.unblock) }
}

func (r *blockedReader) Read([]byte) (int, error) {
	<-r.unblock

	return 0, nil
}
