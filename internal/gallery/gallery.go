// Package gallery renders an album's media grid and drives the lightbox.
package gallery

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"text/tabwriter"
	"time"

	"momentify/internal/clock"
	"momentify/internal/models"
)

// Empty state copy.
const (
	EmptyTitle = "No photos or videos yet"
	EmptyHint  = "Be the first to share a memory!"
)

// Entry is a media item with its variant resolved at ingestion.
type Entry struct {
	Item    models.MediaItem
	Variant models.Variant
}

// Tile describes one grid cell.
type Tile struct {
	ID       string
	URL      string
	Filename string
	Kind     models.MediaKind
	// Caption is the upload date overlay on image tiles.
	Caption   string
	Lazy      bool
	Muted     bool
	PlayBadge bool
}

// EmptyState is shown instead of the grid when there is no media.
type EmptyState struct {
	Title string
	Hint  string
}

// Lightbox describes the open viewer.
type Lightbox struct {
	Entry     Entry
	Index     int
	Count     int
	ShowNav   bool
	Fit       string
	PinchZoom bool
	Controls  bool
	Autoplay  bool
	Inline    bool
	Caption   string
	Direction Direction
	Opacity   float64
}

// Options configures a Gallery.
type Options struct {
	Clock  clock.Clock
	Keys   KeySource
	Logger *slog.Logger
}

// Gallery holds the rendered entries and the lightbox navigator.
type Gallery struct {
	nav *Navigator
	log *slog.Logger

	mu      sync.RWMutex
	entries []Entry
}

func New(opts Options) *Gallery {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gallery{
		nav: NewNavigator(opts.Clock, opts.Keys),
		log: logger.With("component", "gallery"),
	}
}

// Navigator exposes the lightbox state machine.
func (g *Gallery) Navigator() *Navigator { return g.nav }

// SetItems re-ingests the media list. Items with unsupported MIME types are
// skipped.
func (g *Gallery) SetItems(items []models.MediaItem) {
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		v, err := models.Classify(item)
		if err != nil {
			if errors.Is(err, models.ErrUnsupportedMedia) {
				g.log.Warn("skipping media item", "media_id", item.ID, "err", err)
				continue
			}
			g.log.Error("classify media item", "media_id", item.ID, "err", err)
			continue
		}
		entries = append(entries, Entry{Item: item, Variant: v})
	}
	g.mu.Lock()
	g.entries = entries
	g.mu.Unlock()
	g.nav.SetCount(len(entries))
}

// Entries returns a copy of the ingested entries.
func (g *Gallery) Entries() []Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Entry(nil), g.entries...)
}

// Tiles returns the grid cells in display order.
func (g *Gallery) Tiles() []Tile {
	g.mu.RLock()
	defer g.mu.RUnlock()
	tiles := make([]Tile, 0, len(g.entries))
	for _, e := range g.entries {
		t := Tile{ID: e.Item.ID, URL: e.Item.URL, Filename: e.Item.Filename, Kind: e.Variant.Kind()}
		switch e.Variant.(type) {
		case models.ImageVariant:
			t.Lazy = true
			t.Caption = e.Item.UploadedAt.Local().Format("1/2/2006")
		case models.VideoVariant:
			t.Muted = true
			t.PlayBadge = true
		}
		tiles = append(tiles, t)
	}
	return tiles
}

// EmptyState returns the placeholder, or nil when there is media.
func (g *Gallery) EmptyState() *EmptyState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.entries) > 0 {
		return nil
	}
	return &EmptyState{Title: EmptyTitle, Hint: EmptyHint}
}

// Lightbox returns the open viewer, or nil when closed.
func (g *Gallery) Lightbox() *Lightbox {
	v := g.nav.View()
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !v.Open || v.Index >= len(g.entries) {
		return nil
	}
	e := g.entries[v.Index]
	lb := &Lightbox{
		Entry:     e,
		Index:     v.Index,
		Count:     len(g.entries),
		ShowNav:   len(g.entries) > 1,
		Caption:   fmt.Sprintf("%s · %s", e.Item.Filename, e.Item.UploadedAt.Local().Format(time.DateTime)),
		Direction: v.Direction,
		Opacity:   v.Opacity,
	}
	switch e.Variant.(type) {
	case models.ImageVariant:
		lb.Fit = "contain"
		lb.PinchZoom = true
	case models.VideoVariant:
		lb.Fit = "contain"
		lb.Controls = true
		lb.Autoplay = true
		lb.Inline = true
	}
	return lb
}

// OpenID opens the lightbox on the item with id.
func (g *Gallery) OpenID(id string) bool {
	g.mu.RLock()
	idx := -1
	for i, e := range g.entries {
		if e.Item.ID == id {
			idx = i
			break
		}
	}
	g.mu.RUnlock()
	if idx < 0 {
		return false
	}
	return g.nav.Open(idx)
}

// Render writes the grid and, when open, the lightbox as text.
func (g *Gallery) Render(w io.Writer) error {
	if empty := g.EmptyState(); empty != nil {
		_, err := fmt.Fprintf(w, "%s\n%s\n", empty.Title, empty.Hint)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tKIND\tFILE\tUPLOADED\tURL")
	for i, t := range g.Tiles() {
		kind := t.Kind.String()
		if t.PlayBadge {
			kind += " ▶"
		}
		caption := t.Caption
		if caption == "" {
			caption = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, kind, t.Filename, caption, t.URL)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if lb := g.Lightbox(); lb != nil {
		nav := ""
		if lb.ShowNav {
			nav = "  ◀ ▶"
		}
		if _, err := fmt.Fprintf(w, "\n[%d/%d] %s%s\n", lb.Index+1, lb.Count, lb.Caption, nav); err != nil {
			return err
		}
	}
	return nil
}

// Teardown releases the navigator.
func (g *Gallery) Teardown() { g.nav.Teardown() }
