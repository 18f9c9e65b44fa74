// Package admin maps the admin REST endpoints onto slug-keyed records.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"momentify/internal/apiclient"
	"momentify/internal/models"
)

var (
	// ErrInvalidCredentials is returned by Login for rejected credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTitleRequired      = errors.New("title is required")
	ErrEventDateRequired  = errors.New("event date is required")
)

// API is the admin REST surface. *apiclient.Client satisfies it.
type API interface {
	Login(ctx context.Context, email, password string) (models.AuthTokens, error)
	Logout() error
	Identity() (models.Identity, error)
	ListMemories(ctx context.Context, page, limit int) (*models.MemoryListResponse, error)
	GetMemoryBySlugAdmin(ctx context.Context, slug string, page, limit int) (*models.MemoryWithMedia, error)
	CreateMemory(ctx context.Context, in models.MemoryInput) (*models.Memory, error)
	UpdateMemory(ctx context.Context, slug string, in models.MemoryInput) (*models.Memory, error)
	DeleteMemory(ctx context.Context, slug string) error
	DeleteMediaItem(ctx context.Context, mediaID string) error
	BulkDownload(ctx context.Context, slug string, w io.Writer) (int64, error)
}

// Record is an album keyed by slug. UUID keeps the server id.
type Record struct {
	ID          string             `json:"id"`
	UUID        string             `json:"uuid"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	CoverURL    string             `json:"coverUrl,omitempty"`
	QRCodeURL   string             `json:"qrCodeUrl,omitempty"`
	EventDate   time.Time          `json:"eventDate"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	MediaCount  int                `json:"mediaCount"`
	MediaItems  []models.MediaItem `json:"mediaItems,omitempty"`
}

func recordOf(m models.Memory) Record {
	return Record{
		ID:          m.Slug,
		UUID:        m.ID,
		Title:       m.Title,
		Description: m.Description,
		CoverURL:    m.CoverURL,
		QRCodeURL:   m.QRCodeURL,
		EventDate:   m.EventDate,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// Service is the admin back office.
type Service struct {
	api API
	log *slog.Logger
}

func NewService(api API, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{api: api, log: logger.With("component", "admin")}
}

// Login authenticates the admin.
func (s *Service) Login(ctx context.Context, email, password string) error {
	if _, err := s.api.Login(ctx, email, password); err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("login: %w", err)
	}
	s.log.Info("admin logged in", "email", email)
	return nil
}

func (s *Service) Logout() error {
	return s.api.Logout()
}

// Identity returns the logged in admin.
func (s *Service) Identity() (models.Identity, error) {
	return s.api.Identity()
}

// CheckError forces a logout when err is an authorization failure.
func (s *Service) CheckError(err error) error {
	if errors.Is(err, apiclient.ErrUnauthorized) {
		if clearErr := s.api.Logout(); clearErr != nil {
			s.log.Warn("clear credentials", "err", clearErr)
		}
		return apiclient.ErrSessionExpired
	}
	return err
}

// List returns one page of albums and the total count.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Record, int, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	resp, err := s.api.ListMemories(ctx, page, perPage)
	if err != nil {
		return nil, 0, s.CheckError(fmt.Errorf("list memories: %w", err))
	}
	out := make([]Record, 0, len(resp.Memories))
	for _, m := range resp.Memories {
		r := recordOf(m.Memory)
		r.MediaCount = m.Count.MediaItems
		out = append(out, r)
	}
	return out, resp.Pagination.TotalCount, nil
}

// Get returns the album with its first page of media.
func (s *Service) Get(ctx context.Context, slug string) (Record, error) {
	resp, err := s.api.GetMemoryBySlugAdmin(ctx, slug, 1, 50)
	if err != nil {
		return Record{}, s.CheckError(fmt.Errorf("get memory %s: %w", slug, err))
	}
	r := recordOf(resp.Memory)
	r.MediaItems = resp.MediaItems
	r.MediaCount = len(resp.MediaItems)
	if resp.Pagination.TotalCount > r.MediaCount {
		r.MediaCount = resp.Pagination.TotalCount
	}
	return r, nil
}

// Create validates in and creates the album.
func (s *Service) Create(ctx context.Context, in models.MemoryInput) (Record, error) {
	if err := Validate(in); err != nil {
		return Record{}, err
	}
	m, err := s.api.CreateMemory(ctx, in)
	if err != nil {
		return Record{}, s.CheckError(fmt.Errorf("create memory: %w", err))
	}
	s.log.Info("memory created", "slug", m.Slug)
	return recordOf(*m), nil
}

// Update validates in and replaces the album fields. The cover changes only
// when in.CoverPath is set.
func (s *Service) Update(ctx context.Context, slug string, in models.MemoryInput) (Record, error) {
	if err := Validate(in); err != nil {
		return Record{}, err
	}
	m, err := s.api.UpdateMemory(ctx, slug, in)
	if err != nil {
		return Record{}, s.CheckError(fmt.Errorf("update memory %s: %w", slug, err))
	}
	return recordOf(*m), nil
}

func (s *Service) Delete(ctx context.Context, slug string) error {
	if err := s.api.DeleteMemory(ctx, slug); err != nil {
		return s.CheckError(fmt.Errorf("delete memory %s: %w", slug, err))
	}
	s.log.Info("memory deleted", "slug", slug)
	return nil
}

func (s *Service) DeleteMedia(ctx context.Context, mediaID string) error {
	if err := s.api.DeleteMediaItem(ctx, mediaID); err != nil {
		return s.CheckError(fmt.Errorf("delete media %s: %w", mediaID, err))
	}
	s.log.Info("media deleted", "media_id", mediaID)
	return nil
}

// Download writes the album archive to dest. The file only appears once the
// archive is complete.
func (s *Service) Download(ctx context.Context, slug, dest string) (int64, error) {
	if dest == "" {
		dest = slug + ".zip"
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := s.api.BulkDownload(ctx, slug, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, s.CheckError(fmt.Errorf("download %s: %w", slug, err))
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return n, fmt.Errorf("save archive: %w", err)
	}
	s.log.Info("archive downloaded", "slug", slug, "bytes", n, "path", dest)
	return n, nil
}

// Validate checks the required album fields.
func Validate(in models.MemoryInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return ErrTitleRequired
	}
	if in.EventDate.IsZero() {
		return ErrEventDateRequired
	}
	if in.CoverPath != "" {
		if _, err := os.Stat(in.CoverPath); err != nil {
			return fmt.Errorf("cover: %w", err)
		}
	}
	return nil
}
