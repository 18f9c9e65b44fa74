package gallery

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"momentify/internal/clock"
	"momentify/internal/logging"
	"momentify/internal/models"
)

func testItems() []models.MediaItem {
	at := time.Date(2026, 6, 20, 18, 30, 0, 0, time.UTC)
	dur := 12.5
	return []models.MediaItem{
		{ID: "p1", Filename: "first-dance.jpg", URL: "https://cdn.example.com/p1.jpg", MimeType: "image/jpeg", UploadedAt: at},
		{ID: "v1", Filename: "toast.mp4", URL: "https://cdn.example.com/v1.mp4", MimeType: "video/mp4", Duration: &dur, UploadedAt: at},
		{ID: "d1", Filename: "menu.pdf", URL: "https://cdn.example.com/d1.pdf", MimeType: "application/pdf", UploadedAt: at},
	}
}

func newTestGallery() (*Gallery, *clock.Fake) {
	fc := clock.NewFake(time.Unix(0, 0))
	return New(Options{Clock: fc, Keys: NewKeys(), Logger: logging.Discard()}), fc
}

func TestEmptyState(t *testing.T) {
	g, _ := newTestGallery()
	g.SetItems(nil)
	empty := g.EmptyState()
	if empty == nil || empty.Title != EmptyTitle {
		t.Fatalf("expected empty state, got %+v", empty)
	}
	var buf bytes.Buffer
	if err := g.Render(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), EmptyTitle) {
		t.Fatalf("render missing empty title: %q", buf.String())
	}
}

func TestTilesPerVariant(t *testing.T) {
	g, _ := newTestGallery()
	g.SetItems(testItems())

	tiles := g.Tiles()
	if len(tiles) != 2 {
		t.Fatalf("expected unsupported item skipped, got %d tiles", len(tiles))
	}
	if img := tiles[0]; img.Kind != models.KindImage || !img.Lazy || img.Caption == "" || img.PlayBadge {
		t.Fatalf("unexpected image tile %+v", img)
	}
	if vid := tiles[1]; vid.Kind != models.KindVideo || !vid.Muted || !vid.PlayBadge || vid.Lazy {
		t.Fatalf("unexpected video tile %+v", vid)
	}
	if v, ok := g.Entries()[1].Variant.(models.VideoVariant); !ok || v.Duration != 12500*time.Millisecond {
		t.Fatalf("unexpected video variant %+v", g.Entries()[1].Variant)
	}
}

func TestLightboxPerVariant(t *testing.T) {
	g, fc := newTestGallery()
	g.SetItems(testItems())
	if g.Lightbox() != nil {
		t.Fatalf("lightbox should start closed")
	}

	if !g.OpenID("p1") {
		t.Fatalf("open p1")
	}
	lb := g.Lightbox()
	if lb == nil || !lb.PinchZoom || lb.Controls || !lb.ShowNav || lb.Count != 2 {
		t.Fatalf("unexpected image lightbox %+v", lb)
	}

	g.Navigator().Next()
	fc.Advance(SlideDuration + SettleDuration)
	lb = g.Lightbox()
	if lb == nil || lb.Entry.Item.ID != "v1" || !lb.Controls || !lb.Autoplay || !lb.Inline {
		t.Fatalf("unexpected video lightbox %+v", lb)
	}

	var buf bytes.Buffer
	if err := g.Render(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "first-dance.jpg") || !strings.Contains(out, "[2/2] toast.mp4") {
		t.Fatalf("unexpected render output:\n%s", out)
	}
}

func TestSingleItemHidesNavigation(t *testing.T) {
	g, _ := newTestGallery()
	g.SetItems(testItems()[:1])
	g.OpenID("p1")
	if lb := g.Lightbox(); lb == nil || lb.ShowNav {
		t.Fatalf("expected nav hidden, got %+v", lb)
	}
}

func TestSetItemsEmptiedClosesViewer(t *testing.T) {
	g, _ := newTestGallery()
	g.SetItems(testItems())
	g.OpenID("v1")
	g.SetItems(nil)
	if g.Navigator().IsOpen() || g.Lightbox() != nil {
		t.Fatalf("viewer should close when the list empties")
	}
	if g.OpenID("unknown") {
		t.Fatalf("opened unknown id")
	}
}
