package page

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"momentify/internal/apiclient"
	"momentify/internal/credentials"
	"momentify/internal/logging"
	"momentify/internal/models"
	"momentify/internal/notify"
	"momentify/internal/socket"
	"momentify/internal/upload"
)

// fakeServer serves one album over REST and pushes arrivals over websocket.
type fakeServer struct {
	t   *testing.T
	srv *httptest.Server

	mu    sync.Mutex
	media []models.MediaItem
	conns []*websocket.Conn
	joins chan string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{t: t, joins: make(chan string, 8)}
	upgrader := websocket.Upgrader{}

	r := mux.NewRouter()
	r.HandleFunc("/memories/{slug}", func(w http.ResponseWriter, req *http.Request) {
		if mux.Vars(req)["slug"] != "anna-ben" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Memory not found"})
			return
		}
		fs.mu.Lock()
		snap := models.MemoryWithMedia{
			Memory:     models.Memory{ID: "album-1", Slug: "anna-ben", Title: "Anna & Ben", EventDate: time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC)},
			MediaItems: append([]models.MediaItem(nil), fs.media...),
		}
		fs.mu.Unlock()
		_ = json.NewEncoder(w).Encode(snap)
	}).Methods(http.MethodGet)
	r.HandleFunc("/memories/{slug}/uploads/request", func(w http.ResponseWriter, req *http.Request) {
		var in models.RequestUploadRequest
		_ = json.NewDecoder(req.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(models.RequestUploadResponse{
			SignedURL: fs.srv.URL + "/storage/" + in.Filename,
			Path:      "album-1/" + in.Filename,
		})
	}).Methods(http.MethodPost)
	r.HandleFunc("/storage/{name}", func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.Copy(io.Discard, req.Body)
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodPut)
	r.HandleFunc("/memories/{slug}/uploads/complete", func(w http.ResponseWriter, req *http.Request) {
		var in models.CompleteUploadRequest
		_ = json.NewDecoder(req.Body).Decode(&in)
		item := models.MediaItem{ID: "media-" + in.Filename, MemoryID: "album-1", Filename: in.Filename, MimeType: in.MimeType, URL: "https://cdn.example.com/" + in.Filename}
		fs.add(item)
		fs.push(item)
		_ = json.NewEncoder(w).Encode(item)
	}).Methods(http.MethodPost)
	r.HandleFunc("/memory", func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		fs.mu.Lock()
		fs.conns = append(fs.conns, conn)
		fs.mu.Unlock()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg socket.Message
			if json.Unmarshal(data, &msg) == nil && msg.Event == socket.EventJoin {
				var id string
				_ = json.Unmarshal(msg.Data, &id)
				fs.joins <- id
			}
		}
	})
	fs.srv = httptest.NewServer(r)
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) add(item models.MediaItem) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.media = append([]models.MediaItem{item}, fs.media...)
}

func (fs *fakeServer) push(item models.MediaItem) {
	data, _ := json.Marshal(item)
	frame, _ := json.Marshal(socket.Message{Event: socket.EventNewMedia, Data: data})
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, c := range fs.conns {
		if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
			fs.t.Logf("push: %v", err)
		}
	}
}

func (fs *fakeServer) waitJoin(t *testing.T) string {
	t.Helper()
	select {
	case id := <-fs.joins:
		return id
	case <-time.After(2 * time.Second):
		t.Fatalf("no join received")
		return ""
	}
}

type noInspector struct{}

func (noInspector) Preview(context.Context, upload.File) (*upload.Preview, error) { return nil, nil }
func (noInspector) Dimensions(context.Context, upload.File) upload.Dimensions     { return upload.Dimensions{} }

func newTestPage(t *testing.T, fs *fakeServer) (*Page, *notify.Recorder, *socket.Session) {
	t.Helper()
	logger := logging.Discard()
	session := credentials.NewSession("session_test")
	api := apiclient.New(apiclient.Options{BaseURL: fs.srv.URL, Session: session, Logger: logger})
	live := socket.NewSession(socket.Options{URL: fs.srv.URL, Delay: 10 * time.Millisecond, Logger: logger})
	rec := &notify.Recorder{}
	p := New(Options{
		API:       api,
		Live:      live,
		Notifier:  rec,
		SessionID: session.ID(),
		Inspector: noInspector{},
		Logger:    logger,
	})
	t.Cleanup(p.Close)
	return p, rec, live
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLiveArrivalRendersOneTile(t *testing.T) {
	fs := newFakeServer(t)
	p, rec, live := newTestPage(t, fs)

	if err := p.Open(context.Background(), "anna-ben"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if p.Gallery().EmptyState() == nil {
		t.Fatalf("expected empty state for an empty album")
	}
	if id := fs.waitJoin(t); id != "album-1" {
		t.Fatalf("joined %q, want album-1", id)
	}
	waitFor(t, "live", live.IsConnected)

	item := models.MediaItem{ID: "guest-1", MemoryID: "album-1", MimeType: "image/jpeg", URL: "https://cdn.example.com/g1.jpg", Filename: "g1.jpg"}
	fs.push(item)
	fs.push(item)
	waitFor(t, "tile", func() bool { return len(p.Gallery().Tiles()) == 1 })
	waitFor(t, "live update", func() bool { return rec.Count(notify.LevelLive) == 1 })

	time.Sleep(50 * time.Millisecond)
	if n := len(p.Gallery().Tiles()); n != 1 {
		t.Fatalf("duplicate event added a tile: %d", n)
	}
	if n := rec.Count(notify.LevelLive); n != 1 {
		t.Fatalf("expected exactly one live update, got %d", n)
	}

	var buf bytes.Buffer
	if err := p.Render(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "Anna & Ben") || !strings.Contains(buf.String(), LiveBadge) || !strings.Contains(buf.String(), "g1.jpg") {
		t.Fatalf("unexpected render:\n%s", buf.String())
	}
}

func TestOwnUploadIsNotAnnounced(t *testing.T) {
	fs := newFakeServer(t)
	p, rec, live := newTestPage(t, fs)
	if err := p.Open(context.Background(), "anna-ben"); err != nil {
		t.Fatalf("open: %v", err)
	}
	fs.waitJoin(t)
	waitFor(t, "live", live.IsConnected)

	path := filepath.Join(t.TempDir(), "vows.jpg")
	if err := os.WriteFile(path, []byte("not really a jpeg"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ids, err := p.Upload(path)
	if err != nil || len(ids) != 1 {
		t.Fatalf("upload: %v %v", ids, err)
	}
	if err := p.Uploads().Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	waitFor(t, "tile", func() bool { return len(p.Gallery().Tiles()) == 1 })
	time.Sleep(50 * time.Millisecond)
	if n := rec.Count(notify.LevelLive); n != 0 {
		t.Fatalf("own upload announced %d times", n)
	}
	if n := rec.Count(notify.LevelSuccess); n != 1 {
		t.Fatalf("expected one success notification, got %d", n)
	}
	if n := len(p.Gallery().Tiles()); n != 1 {
		t.Fatalf("own upload merged %d times", n)
	}
}

func TestOpenMissingMemory(t *testing.T) {
	fs := newFakeServer(t)
	p, rec, _ := newTestPage(t, fs)

	err := p.Open(context.Background(), "nobody")
	if !errors.Is(err, apiclient.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if n := rec.Count(notify.LevelError); n != 1 {
		t.Fatalf("expected one error notification, got %d", n)
	}
	var buf bytes.Buffer
	_ = p.Render(&buf)
	if !strings.Contains(buf.String(), NotFoundTitle) {
		t.Fatalf("expected not found render, got %q", buf.String())
	}
	if _, err := p.Upload("x.jpg"); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}

// fakeAPI serves two albums from memory.
type fakeAPI struct {
	upload.Uploader
}

func (fakeAPI) GetMemoryBySlug(_ context.Context, slug string, _, _ int) (*models.MemoryWithMedia, error) {
	return &models.MemoryWithMedia{
		Memory:     models.Memory{ID: "id-" + slug, Slug: slug, Title: slug},
		MediaItems: []models.MediaItem{{ID: slug + "-1", MimeType: "image/png"}},
		Pagination: models.Pagination{Page: 1, TotalPages: 2},
	}, nil
}

func (fakeAPI) GetMediaItems(_ context.Context, slug string, page, _ int) (*models.MediaPage, error) {
	return &models.MediaPage{
		MediaItems: []models.MediaItem{{ID: slug + "-1", MimeType: "image/png"}, {ID: fmt.Sprintf("%s-p%d", slug, page), MimeType: "video/mp4"}},
		Pagination: models.Pagination{Page: page, TotalPages: 2},
	}, nil
}

type fakeLive struct {
	mu       sync.Mutex
	album    string
	handler  socket.MediaHandler
	connects []string
	offs     int
}

func (l *fakeLive) Connect(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.album = id
	l.connects = append(l.connects, id)
}

func (l *fakeLive) Disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.album = ""
}

func (l *fakeLive) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.album != ""
}

func (l *fakeLive) OnNewMedia(h socket.MediaHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = h
}

func (l *fakeLive) OffNewMedia() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = nil
	l.offs++
}

func TestSwitchingAlbumsDiscardsState(t *testing.T) {
	live := &fakeLive{}
	p := New(Options{API: fakeAPI{}, Live: live, Notifier: &notify.Recorder{}, Logger: logging.Discard()})

	if err := p.Open(context.Background(), "a"); err != nil {
		t.Fatalf("open a: %v", err)
	}
	first := p.Reconciler()
	first.MarkSelfUpload("pending-self")
	if err := p.Open(context.Background(), "a"); err != nil || p.Reconciler() != first {
		t.Fatalf("reopening the same slug should be a no-op")
	}

	if err := p.Open(context.Background(), "b"); err != nil {
		t.Fatalf("open b: %v", err)
	}
	if first.Tracking().Len() != 0 || first.Cache().Initialized() {
		t.Fatalf("previous album state not discarded")
	}
	if p.Reconciler().Cache().Items()[0].ID != "b-1" {
		t.Fatalf("unexpected cache for b: %+v", p.Reconciler().Cache().Items())
	}
	if len(live.connects) != 2 || live.connects[1] != "id-b" || live.offs != 1 {
		t.Fatalf("unexpected live calls connects=%v offs=%d", live.connects, live.offs)
	}

	live.handler(models.MediaItem{ID: "b-2", MimeType: "image/jpeg"})
	if n := len(p.Gallery().Tiles()); n != 2 {
		t.Fatalf("expected 2 tiles, got %d", n)
	}

	p.Close()
	if live.IsConnected() || live.handler != nil || p.Memory() != nil {
		t.Fatalf("close did not tear down")
	}
}

func TestLoadMoreAppendsOlderPages(t *testing.T) {
	p := New(Options{API: fakeAPI{}, Notifier: &notify.Recorder{}, Logger: logging.Discard()})
	if _, err := p.LoadMore(context.Background()); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
	if err := p.Open(context.Background(), "a"); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer p.Close()

	if !p.HasMore() {
		t.Fatalf("expected a second page")
	}
	n, err := p.LoadMore(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("LoadMore = %d, %v; want 1 new item", n, err)
	}
	tiles := p.Gallery().Tiles()
	if len(tiles) != 2 || tiles[1].ID != "a-p2" {
		t.Fatalf("unexpected tiles %+v", tiles)
	}
	if p.HasMore() {
		t.Fatalf("no pages should remain")
	}
	if n, err := p.LoadMore(context.Background()); n != 0 || err != nil {
		t.Fatalf("LoadMore past the end = %d, %v", n, err)
	}
}
