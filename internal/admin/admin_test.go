package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"momentify/internal/apiclient"
	"momentify/internal/credentials"
	"momentify/internal/logging"
	"momentify/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestService(t *testing.T, r *mux.Router) (*Service, credentials.Store) {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	store := credentials.NewMemoryStore()
	_ = store.Save(models.AuthTokens{AccessToken: "access"})
	c := apiclient.New(apiclient.Options{
		BaseURL:     srv.URL,
		Credentials: store,
		Session:     credentials.NewSession("session_admin"),
		Logger:      logging.Discard(),
	})
	return NewService(c, logging.Discard()), store
}

var eventDate = time.Date(2026, 6, 20, 15, 0, 0, 0, time.UTC)

func TestListMapsSlugToID(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/admin/memories", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("page") != "2" || req.URL.Query().Get("limit") != "10" {
			t.Errorf("unexpected query %q", req.URL.RawQuery)
		}
		var s models.MemorySummary
		s.ID, s.Slug, s.Title = "uuid-1", "anna-ben", "Anna & Ben"
		s.Count.MediaItems = 7
		writeJSON(w, http.StatusOK, models.MemoryListResponse{
			Memories:   []models.MemorySummary{s},
			Pagination: models.Pagination{Page: 2, Limit: 10, TotalCount: 11, TotalPages: 2},
		})
	}).Methods(http.MethodGet)
	s, _ := newTestService(t, r)

	records, total, err := s.List(context.Background(), 2, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 11 || len(records) != 1 {
		t.Fatalf("unexpected page: %d records, total %d", len(records), total)
	}
	got := records[0]
	if got.ID != "anna-ben" || got.UUID != "uuid-1" || got.MediaCount != 7 {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestGetIncludesMedia(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/admin/memories/{slug}", func(w http.ResponseWriter, req *http.Request) {
		if mux.Vars(req)["slug"] != "anna-ben" {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Memory not found"})
			return
		}
		writeJSON(w, http.StatusOK, models.MemoryWithMedia{
			Memory: models.Memory{ID: "uuid-1", Slug: "anna-ben", Title: "Anna & Ben"},
			MediaItems: []models.MediaItem{
				{ID: "m1", Filename: "a.jpg", MimeType: "image/jpeg"},
				{ID: "m2", Filename: "b.mp4", MimeType: "video/mp4"},
			},
			Pagination: models.Pagination{Page: 1, Limit: 50, TotalCount: 2, TotalPages: 1},
		})
	}).Methods(http.MethodGet)
	s, _ := newTestService(t, r)

	rec, err := s.Get(context.Background(), "anna-ben")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.ID != "anna-ben" || rec.UUID != "uuid-1" || len(rec.MediaItems) != 2 || rec.MediaCount != 2 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, apiclient.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateValidatesBeforeSending(t *testing.T) {
	calls := 0
	r := mux.NewRouter()
	r.HandleFunc("/admin/memories", func(w http.ResponseWriter, req *http.Request) {
		calls++
		if err := req.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		writeJSON(w, http.StatusCreated, models.Memory{ID: "uuid-9", Slug: "new-album", Title: req.FormValue("title")})
	}).Methods(http.MethodPost)
	s, _ := newTestService(t, r)

	tests := []struct {
		in   models.MemoryInput
		want error
	}{
		{models.MemoryInput{Title: "  ", EventDate: eventDate}, ErrTitleRequired},
		{models.MemoryInput{Title: "Party"}, ErrEventDateRequired},
	}
	for _, tt := range tests {
		if _, err := s.Create(context.Background(), tt.in); !errors.Is(err, tt.want) {
			t.Fatalf("Create(%+v) = %v, want %v", tt.in, err, tt.want)
		}
	}
	if calls != 0 {
		t.Fatalf("invalid input reached the server")
	}

	rec, err := s.Create(context.Background(), models.MemoryInput{Title: "Party", EventDate: eventDate})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID != "new-album" || rec.UUID != "uuid-9" || rec.Title != "Party" || calls != 1 {
		t.Fatalf("unexpected record %+v after %d calls", rec, calls)
	}
}

func TestForbiddenClearsCredentials(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/admin/memories/{slug}", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Forbidden"})
	}).Methods(http.MethodDelete)
	s, store := newTestService(t, r)

	if err := s.Delete(context.Background(), "anna-ben"); !errors.Is(err, apiclient.ErrSessionExpired) {
		t.Fatalf("expected session expired, got %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, credentials.ErrNoCredentials) {
		t.Fatalf("expected credentials cleared, got %v", err)
	}
}

func TestDeleteMedia(t *testing.T) {
	var deleted string
	r := mux.NewRouter()
	r.HandleFunc("/memories/media/{id}", func(w http.ResponseWriter, req *http.Request) {
		deleted = mux.Vars(req)["id"]
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)
	s, _ := newTestService(t, r)

	if err := s.DeleteMedia(context.Background(), "m1"); err != nil {
		t.Fatalf("delete media: %v", err)
	}
	if deleted != "m1" {
		t.Fatalf("server saw %q", deleted)
	}
}

func TestLoginRejected(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/admin/auth/login", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
	}).Methods(http.MethodPost)
	s, _ := newTestService(t, r)

	if err := s.Login(context.Background(), "admin@example.com", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestDownloadWritesArchiveAtomically(t *testing.T) {
	fail := false
	r := mux.NewRouter()
	r.HandleFunc("/admin/memories/{slug}/download", func(w http.ResponseWriter, req *http.Request) {
		if fail {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "zip failed"})
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte("PK\x03\x04archive"))
	}).Methods(http.MethodGet)
	s, _ := newTestService(t, r)

	dest := filepath.Join(t.TempDir(), "anna-ben.zip")
	n, err := s.Download(context.Background(), "anna-ben", dest)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || int64(len(data)) != n || string(data[:2]) != "PK" {
		t.Fatalf("unexpected archive %q (%d bytes): %v", data, n, err)
	}

	fail = true
	other := filepath.Join(filepath.Dir(dest), "other.zip")
	if _, err := s.Download(context.Background(), "anna-ben", other); err == nil {
		t.Fatalf("expected download failure")
	}
	if _, err := os.Stat(other); !os.IsNotExist(err) {
		t.Fatalf("partial archive left behind: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 1 {
		t.Fatalf("expected only the first archive, found %d entries", len(entries))
	}
}
