// Package store owns the ordered entry log for the active day, its
// durable on-disk form, and the day rotation that archives finished days
// behind an append-only backlog manifest.
package store

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"linklog/pkg/linklog"
)

// Option mutates store construction configuration.
type Option func(*Store)

// WithLogger configures the logger used for persistence diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// Store is the in-memory ordered entry collection for the active day.
//
// Mutations are serialized by a mutex; reads hand out deep-copied
// snapshots so background workers never observe in-place edits.
// Persistence is best-effort: I/O failures are logged and the in-memory
// state stays authoritative for the rest of the process lifetime.
type Store struct {
	mu      sync.RWMutex
	dir     string
	logger  *slog.Logger
	clock   func() time.Time
	day     time.Time
	entries []linklog.Entry
	backlog []BacklogRecord
}

// New creates a store rooted at dir. Call Open before use.
func New(dir string, options ...Option) *Store {
	s := &Store{
		dir:    dir,
		logger: slog.Default(),
		clock:  time.Now,
	}
	for _, option := range options {
		option(s)
	}

	return s
}

// Open loads the current day's persisted entries and the backlog
// manifest. A missing current document starts an empty log for today.
func (s *Store) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, entries, err := s.loadCurrent()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if day.IsZero() {
		day = dateOf(s.clock())
	}
	backlog, err := s.loadBacklog()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	s.day = day
	s.entries = entries
	s.backlog = backlog

	return nil
}

// Close persists the current state one final time.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveCurrent(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	return nil
}

// Append adds entry at the end of the current log and returns its
// 1-based display index. Append always succeeds; the follow-up persist is
// best-effort.
func (s *Store) Append(entry linklog.Entry) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, linklog.CloneEntry(entry))
	s.persistLocked("append")

	return len(s.entries)
}

// Get returns the entry at the 1-based display index. found is false
// outside [1, Len].
func (s *Store) Get(displayIndex int) (entry linklog.Entry, found bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if displayIndex < 1 || displayIndex > len(s.entries) {
		return linklog.Entry{}, false
	}

	return linklog.CloneEntry(s.entries[displayIndex-1]), true
}

// Replace overwrites the entry at the 1-based display index.
func (s *Store) Replace(displayIndex int, entry linklog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if displayIndex < 1 || displayIndex > len(s.entries) {
		return fmt.Errorf("replace entry %d of %d: %w", displayIndex, len(s.entries), linklog.ErrIndexOutOfRange)
	}

	s.entries[displayIndex-1] = linklog.CloneEntry(entry)
	s.persistLocked("replace")

	return nil
}

// Remove deletes the entry at the 1-based display index. Entries after it
// shift down one display position.
func (s *Store) Remove(displayIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if displayIndex < 1 || displayIndex > len(s.entries) {
		return fmt.Errorf("remove entry %d of %d: %w", displayIndex, len(s.entries), linklog.ErrIndexOutOfRange)
	}

	s.entries = append(s.entries[:displayIndex-1], s.entries[displayIndex:]...)
	s.persistLocked("remove")

	return nil
}

// All returns a deep-copied snapshot of the current log in display order.
func (s *Store) All() []linklog.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]linklog.Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		snapshot = append(snapshot, linklog.CloneEntry(entry))
	}

	return snapshot
}

// Len returns the number of entries in the current log.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Backlog returns the archived-day manifest records in append order.
func (s *Store) Backlog() []BacklogRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]BacklogRecord(nil), s.backlog...)
}

// Rotate archives the current log and starts an empty one when now falls
// on a later date than the stored day. It is driven by the housekeeping
// tick, not by individual commands.
func (s *Store) Rotate(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := dateOf(now)
	if !today.After(dateOf(s.day)) {
		return nil
	}

	if len(s.entries) > 0 {
		record, err := s.archiveLocked()
		if err != nil {
			return fmt.Errorf("rotate store: %w", err)
		}
		s.backlog = append(s.backlog, record)
	}

	s.day = today
	s.entries = nil
	if err := s.saveCurrent(); err != nil {
		return fmt.Errorf("rotate store: %w", err)
	}

	return nil
}

// persistLocked saves the current document after a mutation. Failures are
// logged and swallowed; chat-facing callers never see them.
func (s *Store) persistLocked(operation string) {
	if err := s.saveCurrent(); err != nil {
		s.logger.Error("persist entry log failed",
			"operation", operation,
			"dir", s.dir,
			"error", err,
		)
	}
}

func dateOf(t time.Time) time.Time {
	year, month, day := t.Date()

	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
