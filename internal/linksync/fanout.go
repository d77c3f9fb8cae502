// Package linksync mirrors entry log mutations to the external bookmark
// service and optional social posting providers.
//
// Every mutation becomes a fire-and-forget job on a bounded worker pool:
// the chat-facing caller never waits, failures are logged once and never
// retried, and the entry mutation itself is already committed before the
// job runs.
package linksync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"linklog/pkg/linklog"
)

const (
	defaultWorkers     = 2
	defaultQueueSize   = 64
	defaultCallTimeout = 15 * time.Second
)

type jobKind string

const (
	jobCreate jobKind = "create"
	jobUpdate jobKind = "update"
	jobDelete jobKind = "delete"
)

type job struct {
	kind        jobKind
	entry       linklog.Entry
	previousURL string
}

// Option mutates fan-out construction configuration.
type Option func(*Fanout)

// WithLogger configures the fan-out logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fanout) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithWorkers configures the worker pool size.
func WithWorkers(workers int) Option {
	return func(f *Fanout) {
		if workers > 0 {
			f.workers = workers
		}
	}
}

// WithQueueSize configures the bounded job queue depth.
func WithQueueSize(size int) Option {
	return func(f *Fanout) {
		if size > 0 {
			f.queueSize = size
		}
	}
}

// WithCallTimeout bounds each external service call.
func WithCallTimeout(timeout time.Duration) Option {
	return func(f *Fanout) {
		if timeout > 0 {
			f.callTimeout = timeout
		}
	}
}

// Fanout propagates entry mutations to the bookmark service and social
// posters. It implements linklog.LogSync.
type Fanout struct {
	bookmarker  linklog.Bookmarker
	posters     []linklog.SocialPoster
	server      string
	logger      *slog.Logger
	workers     int
	queueSize   int
	callTimeout time.Duration

	jobs      chan job
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu       sync.Mutex
	postRefs map[string]map[string]string
}

// New creates a fan-out for one bookmark service and zero or more social
// posters. server names the chat origin used in bookmark attribution.
// Call Start before submitting mutations and Close on shutdown.
func New(bookmarker linklog.Bookmarker, posters []linklog.SocialPoster, server string, options ...Option) *Fanout {
	f := &Fanout{
		bookmarker:  bookmarker,
		posters:     posters,
		server:      server,
		logger:      slog.Default(),
		workers:     defaultWorkers,
		queueSize:   defaultQueueSize,
		callTimeout: defaultCallTimeout,
		postRefs:    make(map[string]map[string]string),
	}
	for _, option := range options {
		option(f)
	}
	f.jobs = make(chan job, f.queueSize)

	return f
}

// Start launches the worker pool.
func (f *Fanout) Start() {
	for worker := 0; worker < f.workers; worker++ {
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			for queued := range f.jobs {
				f.process(queued)
			}
		}()
	}
}

// Close stops accepting jobs and drains the in-flight ones. Close is
// idempotent.
func (f *Fanout) Close() {
	f.closeOnce.Do(func() {
		close(f.jobs)
	})
	f.wg.Wait()
}

// OnCreate implements linklog.LogSync.
func (f *Fanout) OnCreate(entry linklog.Entry) {
	f.enqueue(job{kind: jobCreate, entry: linklog.CloneEntry(entry)})
}

// OnUpdate implements linklog.LogSync.
func (f *Fanout) OnUpdate(entry linklog.Entry, previousURL string) {
	f.enqueue(job{kind: jobUpdate, entry: linklog.CloneEntry(entry), previousURL: previousURL})
}

// OnDelete implements linklog.LogSync.
func (f *Fanout) OnDelete(entry linklog.Entry) {
	f.enqueue(job{kind: jobDelete, entry: linklog.CloneEntry(entry)})
}

// enqueue submits one job without blocking. When the queue is full the
// job is dropped with a warning: the log itself is already consistent and
// sync is best-effort.
func (f *Fanout) enqueue(queued job) {
	select {
	case f.jobs <- queued:
	default:
		f.logger.Warn("sync queue full, dropping job",
			"kind", queued.kind,
			"url", queued.entry.Link,
		)
	}
}

func (f *Fanout) process(queued job) {
	ctx, cancel := context.WithTimeout(context.Background(), f.callTimeout)
	defer cancel()

	switch queued.kind {
	case jobCreate:
		f.processCreate(ctx, queued.entry)
	case jobUpdate:
		f.processUpdate(ctx, queued.entry, queued.previousURL)
	case jobDelete:
		f.processDelete(ctx, queued.entry)
	}
}

func (f *Fanout) processCreate(ctx context.Context, entry linklog.Entry) {
	f.createBookmark(ctx, entry, false)
	f.crossPost(ctx, entry)
}

func (f *Fanout) processUpdate(ctx context.Context, entry linklog.Entry, previousURL string) {
	if previousURL != "" && previousURL != entry.Link {
		if f.bookmarker != nil {
			if err := f.bookmarker.Delete(ctx, previousURL); err != nil {
				f.logger.Warn("bookmark delete failed", "url", previousURL, "error", err)
			}
		}
		f.rekeyPostRefs(previousURL, entry.Link)
	}
	f.createBookmark(ctx, entry, true)
	f.crossPost(ctx, entry)
}

func (f *Fanout) processDelete(ctx context.Context, entry linklog.Entry) {
	if f.bookmarker != nil {
		if err := f.bookmarker.Delete(ctx, entry.Link); err != nil {
			f.logger.Warn("bookmark delete failed", "url", entry.Link, "error", err)
		}
	}

	// Drop the auto-post association so a later entry for the same URL
	// is not mistaken for one that was already cross-posted.
	f.mu.Lock()
	delete(f.postRefs, entry.Link)
	f.mu.Unlock()
}

func (f *Fanout) createBookmark(ctx context.Context, entry linklog.Entry, replace bool) {
	if f.bookmarker == nil {
		return
	}
	bookmark := linklog.Bookmark{
		URL:      entry.Link,
		Title:    entry.Title,
		Extended: linklog.Attribution(entry, f.server),
		Tags:     linklog.BookmarkTags(entry),
		Stamp:    entry.CreatedAt,
		Replace:  replace,
		Shared:   true,
	}
	if err := f.bookmarker.Create(ctx, bookmark); err != nil {
		f.logger.Warn("bookmark create failed", "url", entry.Link, "error", err)
	}
}

// crossPost publishes the entry through every poster that has not posted
// this URL yet. A poster that failed on create gets another chance on the
// next mutation of the same entry.
func (f *Fanout) crossPost(ctx context.Context, entry linklog.Entry) {
	if len(f.posters) == 0 {
		return
	}
	text := linklog.FormatSocialPost(entry)

	for _, poster := range f.posters {
		if _, posted := f.postRef(entry.Link, poster.Name()); posted {
			continue
		}
		ref, err := poster.Post(ctx, text)
		if err != nil {
			f.logger.Warn("social post failed",
				"provider", poster.Name(),
				"url", entry.Link,
				"error", err,
			)
			continue
		}
		f.storePostRef(entry.Link, poster.Name(), ref)
	}
}

// PostRef returns the recorded post reference for one URL and provider.
func (f *Fanout) PostRef(url string, provider string) (string, bool) {
	return f.postRef(url, provider)
}

func (f *Fanout) postRef(url string, provider string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	refs, exists := f.postRefs[url]
	if !exists {
		return "", false
	}
	ref, exists := refs[provider]

	return ref, exists
}

func (f *Fanout) storePostRef(url string, provider string, ref string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	refs, exists := f.postRefs[url]
	if !exists {
		refs = make(map[string]string)
		f.postRefs[url] = refs
	}
	refs[provider] = ref
}

func (f *Fanout) rekeyPostRefs(previousURL string, url string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	refs, exists := f.postRefs[previousURL]
	if !exists {
		return
	}
	delete(f.postRefs, previousURL)
	f.postRefs[url] = refs
}
