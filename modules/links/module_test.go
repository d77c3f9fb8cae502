package links

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"linklog/pkg/linklog"
)

// fakeLog is a minimal in-memory EntryLog for handler tests.
type fakeLog struct {
	entries []linklog.Entry
}

func (l *fakeLog) Append(entry linklog.Entry) int {
	l.entries = append(l.entries, linklog.CloneEntry(entry))

	return len(l.entries)
}

func (l *fakeLog) Get(displayIndex int) (linklog.Entry, bool) {
	if displayIndex < 1 || displayIndex > len(l.entries) {
		return linklog.Entry{}, false
	}

	return linklog.CloneEntry(l.entries[displayIndex-1]), true
}

func (l *fakeLog) Replace(displayIndex int, entry linklog.Entry) error {
	if displayIndex < 1 || displayIndex > len(l.entries) {
		return linklog.ErrIndexOutOfRange
	}
	l.entries[displayIndex-1] = linklog.CloneEntry(entry)

	return nil
}

func (l *fakeLog) Remove(displayIndex int) error {
	if displayIndex < 1 || displayIndex > len(l.entries) {
		return linklog.ErrIndexOutOfRange
	}
	l.entries = append(l.entries[:displayIndex-1], l.entries[displayIndex:]...)

	return nil
}

func (l *fakeLog) All() []linklog.Entry {
	snapshot := make([]linklog.Entry, 0, len(l.entries))
	for _, entry := range l.entries {
		snapshot = append(snapshot, linklog.CloneEntry(entry))
	}

	return snapshot
}

func (l *fakeLog) Len() int {
	return len(l.entries)
}

type syncCall struct {
	operation   string
	entry       linklog.Entry
	previousURL string
}

type captureSync struct {
	calls []syncCall
}

func (s *captureSync) OnCreate(entry linklog.Entry) {
	s.calls = append(s.calls, syncCall{operation: "create", entry: entry})
}

func (s *captureSync) OnUpdate(entry linklog.Entry, previousURL string) {
	s.calls = append(s.calls, syncCall{operation: "update", entry: entry, previousURL: previousURL})
}

func (s *captureSync) OnDelete(entry linklog.Entry) {
	s.calls = append(s.calls, syncCall{operation: "delete", entry: entry})
}

type captureMessenger struct {
	recipients []string
	texts      []string
}

func (m *captureMessenger) Deliver(_ context.Context, recipient string, text string) error {
	m.recipients = append(m.recipients, recipient)
	m.texts = append(m.texts, text)

	return nil
}

type stubTitles struct {
	title string
	err   error
}

func (s stubTitles) Title(context.Context, string) (string, error) {
	return s.title, s.err
}

type fixture struct {
	module    *Module
	log       *fakeLog
	sync      *captureSync
	messenger *captureMessenger
}

func newFixture(t *testing.T, cfg Config, options ...Option) *fixture {
	t.Helper()

	f := &fixture{
		log:       &fakeLog{},
		sync:      &captureSync{},
		messenger: &captureMessenger{},
	}
	options = append([]Option{WithClock(func() time.Time {
		return time.Unix(5000, 0).UTC()
	})}, options...)

	module, err := New(cfg, f.log, f.sync, f.messenger, options...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	f.module = module

	return f
}

func (f *fixture) send(t *testing.T, text string) {
	t.Helper()

	message := &linklog.Message{
		Nick:       "alice",
		Login:      "alice@example",
		Channel:    "#chan",
		Text:       text,
		ReceivedAt: time.Unix(5000, 0).UTC(),
	}

	var err error
	switch {
	case f.module.matchDirective(message):
		err = f.module.handleDirective(context.Background(), message)
	case f.module.matchCommand(f.module.cfg.ViewCommand)(message):
		err = f.module.handleView(context.Background(), message)
	case f.module.matchCommand(f.module.cfg.TagsCommand)(message):
		err = f.module.handleTags(context.Background(), message)
	case f.module.matchCommand(f.module.cfg.DeleteCommand)(message):
		err = f.module.handleDelete(context.Background(), message)
	case f.module.matchCommand(f.module.cfg.EditCommand)(message):
		err = f.module.handleEdit(context.Background(), message)
	case f.module.matchURL(message):
		err = f.module.handleURL(context.Background(), message)
	}
	if err != nil {
		t.Fatalf("handling %q failed: %v", text, err)
	}
}

func TestPostingURLCreatesEntry(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.send(t, "https://example.com/a")

	if f.log.Len() != 1 {
		t.Fatalf("entry count = %d, want 1", f.log.Len())
	}
	entry, _ := f.log.Get(1)
	if entry.Link != "https://example.com/a" {
		t.Fatalf("link = %q", entry.Link)
	}
	if entry.Title != linklog.NoTitle {
		t.Fatalf("title = %q, want %q", entry.Title, linklog.NoTitle)
	}
	if entry.Nick != "alice" || entry.Channel != "#chan" {
		t.Fatalf("attribution = %q/%q", entry.Nick, entry.Channel)
	}

	if len(f.sync.calls) != 1 || f.sync.calls[0].operation != "create" {
		t.Fatalf("sync calls = %+v, want one create", f.sync.calls)
	}
	if f.sync.calls[0].entry.Link != "https://example.com/a" {
		t.Fatalf("synced url = %q", f.sync.calls[0].entry.Link)
	}
	if len(f.messenger.texts) != 1 || !strings.HasPrefix(f.messenger.texts[0], "logged 1.") {
		t.Fatalf("reply = %v", f.messenger.texts)
	}
}

func TestPostingURLWithTitleAndTags(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{Keywords: []string{"Go"}})
	f.send(t, "check https://example.com/a Go modules explained #tooling")

	entry, _ := f.log.Get(1)
	if entry.Title != "Go modules explained" {
		t.Fatalf("title = %q", entry.Title)
	}
	wantTags := []string{"tooling", "Go"}
	if len(entry.Tags) != len(wantTags) {
		t.Fatalf("tags = %v, want %v", entry.Tags, wantTags)
	}
	for position, tag := range wantTags {
		if entry.Tags[position] != tag {
			t.Fatalf("tags = %v, want %v", entry.Tags, wantTags)
		}
	}
}

func TestTitleResolution(t *testing.T) {
	t.Parallel()

	resolved := newFixture(t, Config{}, WithTitleResolver(stubTitles{title: "Fetched Title"}))
	resolved.send(t, "https://example.com/a")
	entry, _ := resolved.log.Get(1)
	if entry.Title != "Fetched Title" {
		t.Fatalf("title = %q, want Fetched Title", entry.Title)
	}

	failed := newFixture(t, Config{}, WithTitleResolver(stubTitles{err: errors.New("timeout")}))
	failed.send(t, "https://example.com/a")
	entry, _ = failed.log.Get(1)
	if entry.Title != linklog.NoTitle {
		t.Fatalf("title = %q, want %q", entry.Title, linklog.NoTitle)
	}

	explicit := newFixture(t, Config{}, WithTitleResolver(stubTitles{title: "Fetched Title"}))
	explicit.send(t, "https://example.com/a My Own Title")
	entry, _ = explicit.log.Get(1)
	if entry.Title != "My Own Title" {
		t.Fatalf("title = %q, want the explicit title", entry.Title)
	}
}

func TestCommentUpsertAppendsAndReplaces(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.send(t, "https://example.com/a")

	f.send(t, "L1.1:nice link")
	entry, _ := f.log.Get(1)
	if len(entry.Comments) != 1 || entry.Comments[0].Text != "nice link" {
		t.Fatalf("comments = %+v", entry.Comments)
	}
	if entry.Comments[0].Nick != "alice" {
		t.Fatalf("comment nick = %q", entry.Comments[0].Nick)
	}
	if len(f.sync.calls) != 2 || f.sync.calls[1].operation != "update" {
		t.Fatalf("sync calls = %+v, want create then update", f.sync.calls)
	}

	f.send(t, "L1.1:even better")
	entry, _ = f.log.Get(1)
	if len(entry.Comments) != 1 || entry.Comments[0].Text != "even better" {
		t.Fatalf("comments after replace = %+v", entry.Comments)
	}

	f.send(t, "L1.2:second thread entry")
	entry, _ = f.log.Get(1)
	if len(entry.Comments) != 2 {
		t.Fatalf("comment count = %d, want 2", len(entry.Comments))
	}
}

func TestCommentGapIsNoOp(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.send(t, "https://example.com/a")
	f.send(t, "L1.1:first")
	syncCalls := len(f.sync.calls)

	f.send(t, "L1.5:hello")
	entry, _ := f.log.Get(1)
	if len(entry.Comments) != 1 {
		t.Fatalf("comment count = %d, want 1 (gap must not create)", len(entry.Comments))
	}
	if len(f.sync.calls) != syncCalls {
		t.Fatal("no-op directive must not trigger sync")
	}
}

func TestCommentDelete(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.send(t, "https://example.com/a")
	f.send(t, "L1.1:first")
	f.send(t, "L1.2:second")

	f.send(t, "L1.1:-")
	entry, _ := f.log.Get(1)
	if len(entry.Comments) != 1 || entry.Comments[0].Text != "second" {
		t.Fatalf("comments = %+v, want only the second", entry.Comments)
	}

	// Deleting past the end is silent.
	f.send(t, "L1.9:-")
	entry, _ = f.log.Get(1)
	if len(entry.Comments) != 1 {
		t.Fatalf("comment count = %d, want 1", len(entry.Comments))
	}
}

func TestCommentAuthorReassignment(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.send(t, "https://example.com/a")
	f.send(t, "L1.1:first")

	f.send(t, "L1.1:?bob")
	entry, _ := f.log.Get(1)
	if entry.Comments[0].Nick != "bob" {
		t.Fatalf("nick = %q, want bob", entry.Comments[0].Nick)
	}
	if entry.Comments[0].Text != "first" {
		t.Fatalf("text = %q, reassignment must preserve text", entry.Comments[0].Text)
	}

	// Reassigning one past the end creates an empty comment.
	f.send(t, "L1.2:?carol")
	entry, _ = f.log.Get(1)
	if len(entry.Comments) != 2 || entry.Comments[1].Nick != "carol" || entry.Comments[1].Text != "" {
		t.Fatalf("comments = %+v", entry.Comments)
	}

	// Reassigning with a gap is silent.
	f.send(t, "L1.9:?dave")
	entry, _ = f.log.Get(1)
	if len(entry.Comments) != 2 {
		t.Fatalf("comment count = %d, want 2", len(entry.Comments))
	}
}

func TestOutOfRangeEntryIsSilent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.send(t, "https://example.com/a")
	syncCalls := len(f.sync.calls)
	replies := len(f.messenger.texts)

	f.send(t, "L7.1:hello")
	if len(f.sync.calls) != syncCalls || len(f.messenger.texts) != replies {
		t.Fatal("out-of-range entry address must be fully silent")
	}
}

func TestViewCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{WindowSize: 2})
	for index := 1; index <= 3; index++ {
		f.send(t, fmt.Sprintf("https://example.com/%d entry number %d", index, index))
	}
	f.send(t, "L1.1:a remark")
	f.messenger.texts = nil

	f.send(t, "!links")
	if len(f.messenger.texts) != 1 {
		t.Fatalf("reply count = %d, want 1", len(f.messenger.texts))
	}
	view := f.messenger.texts[0]
	if !strings.Contains(view, "2. entry number 2") || !strings.Contains(view, "3. entry number 3") {
		t.Fatalf("default view missing latest entries:\n%s", view)
	}
	if strings.Contains(view, "1. entry number 1") {
		t.Fatalf("default view must show only the last window:\n%s", view)
	}

	f.messenger.texts = nil
	f.send(t, "!links 1")
	view = f.messenger.texts[0]
	if !strings.Contains(view, "1. entry number 1") {
		t.Fatalf("page 1 missing first entry:\n%s", view)
	}
	if !strings.Contains(view, "1.1 <alice> a remark") {
		t.Fatalf("view missing comment thread:\n%s", view)
	}
	if !strings.Contains(view, "(1 more, 3 total)") {
		t.Fatalf("view missing footer:\n%s", view)
	}

	f.messenger.texts = nil
	f.send(t, "!links 2 NUMBER 3")
	view = f.messenger.texts[0]
	if !strings.Contains(view, "entry number 3") || strings.Contains(view, "entry number 2") {
		t.Fatalf("filtered view wrong:\n%s", view)
	}

	f.messenger.texts = nil
	f.send(t, "!links nosuchthing")
	if !strings.Contains(f.messenger.texts[0], "no entries matching") {
		t.Fatalf("miss reply = %q", f.messenger.texts[0])
	}
}

func TestViewCommandEmptyLog(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.send(t, "!links")
	if f.messenger.texts[0] != "no entries logged yet" {
		t.Fatalf("reply = %q", f.messenger.texts[0])
	}
}

func TestTagsCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{Keywords: []string{"go", "python"}})

	f.send(t, "!tags")
	if f.messenger.texts[0] != "tag keywords: go, python" {
		t.Fatalf("reply = %q", f.messenger.texts[0])
	}

	f.send(t, "!tags set rust, zig")
	keywords := f.module.Keywords()
	if len(keywords) != 2 || keywords[0] != "rust" || keywords[1] != "zig" {
		t.Fatalf("keywords = %v", keywords)
	}

	// New keyword list drives classification of later entries.
	f.send(t, "https://example.com/a rust in production")
	entry, _ := f.log.Get(1)
	if !entry.HasTag("rust") {
		t.Fatalf("tags = %v, want rust", entry.Tags)
	}
}

func TestDeleteCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.send(t, "https://example.com/a")
	f.send(t, "https://example.com/b")

	f.send(t, "!dellink 1")
	if f.log.Len() != 1 {
		t.Fatalf("entry count = %d, want 1", f.log.Len())
	}
	last := f.sync.calls[len(f.sync.calls)-1]
	if last.operation != "delete" || last.entry.Link != "https://example.com/a" {
		t.Fatalf("last sync call = %+v, want delete of first url", last)
	}

	// Remaining entry shifted into display position 1.
	entry, _ := f.log.Get(1)
	if entry.Link != "https://example.com/b" {
		t.Fatalf("entry 1 link = %q", entry.Link)
	}

	// Out-of-range delete is silent.
	syncCalls := len(f.sync.calls)
	f.send(t, "!dellink 9")
	if len(f.sync.calls) != syncCalls {
		t.Fatal("out-of-range delete must not sync")
	}
}

func TestEditCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.send(t, "https://example.com/a Old Title")

	f.send(t, "!editlink 1 https://example.com/b New Title")
	entry, _ := f.log.Get(1)
	if entry.Link != "https://example.com/b" || entry.Title != "New Title" {
		t.Fatalf("entry = %+v", entry)
	}

	last := f.sync.calls[len(f.sync.calls)-1]
	if last.operation != "update" || last.previousURL != "https://example.com/a" {
		t.Fatalf("last sync call = %+v, want update with previous url", last)
	}
}
