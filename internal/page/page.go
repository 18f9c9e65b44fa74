// Package page composes one album view: snapshot, live updates, gallery and
// uploads.
package page

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"momentify/internal/apiclient"
	"momentify/internal/clock"
	"momentify/internal/gallery"
	"momentify/internal/models"
	"momentify/internal/notify"
	"momentify/internal/reconcile"
	"momentify/internal/socket"
	"momentify/internal/upload"
)

// DefaultPageSize is the number of media items fetched with the snapshot.
const DefaultPageSize = 50

// Page copy.
const (
	NotFoundTitle = "Memory Not Found"
	NotFoundHint  = "The memory you're looking for doesn't exist or has been removed."
	LiveBadge     = "Live Updates Active - New memories appear instantly!"
)

// ErrNotOpen is returned by operations that need an open album.
var ErrNotOpen = errors.New("no memory open")

// API is the REST surface a page needs. *apiclient.Client satisfies it.
type API interface {
	GetMemoryBySlug(ctx context.Context, slug string, page, limit int) (*models.MemoryWithMedia, error)
	GetMediaItems(ctx context.Context, slug string, page, limit int) (*models.MediaPage, error)
	upload.Uploader
}

// Live is the push session a page drives. *socket.Session satisfies it.
type Live interface {
	Connect(albumID string)
	Disconnect()
	IsConnected() bool
	OnNewMedia(h socket.MediaHandler)
	OffNewMedia()
}

// Options wires a Page.
type Options struct {
	API       API
	Live      Live
	Notifier  notify.Notifier
	Clock     clock.Clock
	Keys      gallery.KeySource
	SessionID string
	PageSize  int
	MaxBytes  int64
	// Inspector overrides upload previews and metadata reads.
	Inspector upload.Inspector
	Logger    *slog.Logger
}

// Page is the state of one open album. Opening another slug discards the
// cache and tracking set of the previous one.
type Page struct {
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	slug    string
	memory  *models.Memory
	loaded  int
	pages   int
	cache   *reconcile.Cache
	rec     *reconcile.Reconciler
	gallery *gallery.Gallery
	uploads *upload.Tracker
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(opts Options) *Page {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Page{opts: opts, log: logger.With("component", "page")}
}

// Open loads slug and starts live updates for it. A missing album surfaces
// one error notification and returns an error matching apiclient.ErrNotFound.
func (p *Page) Open(ctx context.Context, slug string) error {
	p.mu.Lock()
	same := p.slug == slug && p.memory != nil
	p.mu.Unlock()
	if same {
		return nil
	}
	p.Close()

	snap, err := p.opts.API.GetMemoryBySlug(ctx, slug, 1, p.opts.PageSize)
	if err != nil {
		if errors.Is(err, apiclient.ErrNotFound) {
			p.notifyError(NotFoundTitle)
			return fmt.Errorf("open %s: %w", slug, err)
		}
		p.notifyError(fmt.Sprintf("Failed to load memory: %v", err))
		return fmt.Errorf("open %s: %w", slug, err)
	}

	cache := reconcile.NewCache()
	gal := gallery.New(gallery.Options{Clock: p.opts.Clock, Keys: p.opts.Keys, Logger: p.opts.Logger})
	cache.OnChange(gal.SetItems)
	rec := reconcile.New(reconcile.Options{
		Cache:     cache,
		Tracking:  reconcile.NewTrackingSet(p.opts.Clock, 0),
		Notifier:  p.opts.Notifier,
		SessionID: p.opts.SessionID,
		Logger:    p.opts.Logger,
	})
	pageCtx, cancel := context.WithCancel(context.Background())
	tracker := upload.NewTracker(upload.Options{
		Slug:         slug,
		Uploader:     p.opts.API,
		Notifier:     p.opts.Notifier,
		Inspector:    p.opts.Inspector,
		Clock:        p.opts.Clock,
		MaxBytes:     p.opts.MaxBytes,
		OnSelfUpload: rec.MarkSelfUpload,
		OnInvalidate: func() {
			if err := p.Refresh(pageCtx); err != nil && pageCtx.Err() == nil {
				p.log.Warn("refresh after upload", "slug", slug, "err", err)
			}
		},
		Logger: p.opts.Logger,
	})
	rec.SetUploads(tracker)

	memory := snap.Memory
	p.mu.Lock()
	p.slug = slug
	p.memory = &memory
	p.loaded, p.pages = 1, snap.Pagination.TotalPages
	p.cache = cache
	p.rec = rec
	p.gallery = gal
	p.uploads = tracker
	p.ctx, p.cancel = pageCtx, cancel
	p.mu.Unlock()

	cache.Replace(snap.MediaItems)
	p.log.Info("memory opened", "slug", slug, "album_id", memory.ID, "media", len(snap.MediaItems))

	if p.opts.Live != nil {
		p.opts.Live.OnNewMedia(func(item models.MediaItem) { rec.HandleNewMedia(item) })
		p.opts.Live.Connect(memory.ID)
	}
	return nil
}

// Refresh refetches the snapshot and replaces the cache.
func (p *Page) Refresh(ctx context.Context) error {
	p.mu.Lock()
	slug, cache := p.slug, p.cache
	p.mu.Unlock()
	if cache == nil {
		return ErrNotOpen
	}
	snap, err := p.opts.API.GetMemoryBySlug(ctx, slug, 1, p.opts.PageSize)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", slug, err)
	}
	p.mu.Lock()
	current := p.cache == cache
	if current {
		memory := snap.Memory
		p.memory = &memory
		p.loaded, p.pages = 1, snap.Pagination.TotalPages
	}
	p.mu.Unlock()
	if current {
		cache.Replace(snap.MediaItems)
	}
	return nil
}

// HasMore reports whether older media pages remain to be loaded.
func (p *Page) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache != nil && p.loaded < p.pages
}

// LoadMore fetches the next page of older media and appends it to the
// gallery. It returns the number of items added.
func (p *Page) LoadMore(ctx context.Context) (int, error) {
	p.mu.Lock()
	slug, cache, next, pages := p.slug, p.cache, p.loaded+1, p.pages
	p.mu.Unlock()
	if cache == nil {
		return 0, ErrNotOpen
	}
	if next > pages {
		return 0, nil
	}
	resp, err := p.opts.API.GetMediaItems(ctx, slug, next, p.opts.PageSize)
	if err != nil {
		return 0, fmt.Errorf("load page %d of %s: %w", next, slug, err)
	}
	p.mu.Lock()
	if p.cache != cache {
		p.mu.Unlock()
		return 0, nil
	}
	p.loaded, p.pages = next, resp.Pagination.TotalPages
	p.mu.Unlock()
	return cache.AppendAbsent(resp.MediaItems), nil
}

// Upload opens and enqueues local files. Files that cannot be read produce
// one error notification each.
func (p *Page) Upload(paths ...string) ([]string, error) {
	p.mu.Lock()
	tracker, ctx := p.uploads, p.ctx
	p.mu.Unlock()
	if tracker == nil {
		return nil, ErrNotOpen
	}
	files := make([]upload.File, 0, len(paths))
	for _, path := range paths {
		f, err := upload.Open(path)
		if err != nil {
			p.log.Warn("cannot read file", "file", path, "err", err)
			p.notifyError(fmt.Sprintf("Cannot read %s", path))
			continue
		}
		files = append(files, f)
	}
	return tracker.Add(ctx, files...), nil
}

// Close removes the media subscription, disconnects the socket, cancels
// uploads and timers, and discards the album state.
func (p *Page) Close() {
	p.mu.Lock()
	gal, tracker, rec, cache, cancel := p.gallery, p.uploads, p.rec, p.cache, p.cancel
	wasOpen := p.memory != nil
	p.slug, p.memory = "", nil
	p.loaded, p.pages = 0, 0
	p.gallery, p.uploads, p.rec, p.cache = nil, nil, nil, nil
	p.ctx, p.cancel = nil, nil
	p.mu.Unlock()
	if !wasOpen {
		return
	}

	if p.opts.Live != nil {
		p.opts.Live.OffNewMedia()
		p.opts.Live.Disconnect()
	}
	cancel()
	tracker.Close()
	_ = tracker.Wait()
	gal.Teardown()
	rec.Tracking().Clear()
	cache.Reset()
}

// IsLive reports whether live updates are flowing.
func (p *Page) IsLive() bool {
	return p.opts.Live != nil && p.opts.Live.IsConnected()
}

func (p *Page) Memory() *models.Memory {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.memory
}

func (p *Page) Gallery() *gallery.Gallery {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gallery
}

func (p *Page) Uploads() *upload.Tracker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uploads
}

func (p *Page) Reconciler() *reconcile.Reconciler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rec
}

// Render writes the header, live badge and gallery.
func (p *Page) Render(w io.Writer) error {
	p.mu.Lock()
	memory, gal := p.memory, p.gallery
	p.mu.Unlock()
	if memory == nil {
		_, err := fmt.Fprintf(w, "%s\n%s\n", NotFoundTitle, NotFoundHint)
		return err
	}
	fmt.Fprintf(w, "%s\n", memory.Title)
	if memory.Description != "" {
		fmt.Fprintf(w, "%s\n", memory.Description)
	}
	fmt.Fprintf(w, "%s\n", memory.EventDate.Format("Monday, January 2, 2006"))
	if p.IsLive() {
		fmt.Fprintf(w, "● %s\n", LiveBadge)
	}
	fmt.Fprintln(w)
	return gal.Render(w)
}

func (p *Page) notifyError(msg string) {
	if p.opts.Notifier != nil {
		p.opts.Notifier.Error(msg)
	}
}
