package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"momentify/internal/models"
)

// Login exchanges admin credentials for a token pair and stores it.
func (c *Client) Login(ctx context.Context, email, password string) (models.AuthTokens, error) {
	req, err := jsonRequest(http.MethodPost, "/admin/auth/login", models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return models.AuthTokens{}, err
	}
	var tokens models.AuthTokens
	if err := c.doJSON(ctx, req, &tokens); err != nil {
		return models.AuthTokens{}, err
	}
	if err := c.creds.Save(tokens); err != nil {
		return models.AuthTokens{}, fmt.Errorf("store tokens: %w", err)
	}
	return tokens, nil
}

// Logout forgets the stored token pair.
func (c *Client) Logout() error {
	return c.creds.Clear()
}

// Identity decodes the admin identity from the stored access token. The
// signature is not verified; the server remains the authority.
func (c *Client) Identity() (models.Identity, error) {
	tokens, err := c.creds.Load()
	if err != nil {
		return models.Identity{}, err
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokens.AccessToken, claims); err != nil {
		return models.Identity{}, fmt.Errorf("decode access token: %w", err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return models.Identity{}, fmt.Errorf("decode access token: missing subject")
	}
	email, _ := claims["email"].(string)
	return models.Identity{ID: sub, Email: email}, nil
}

// GetMemoryBySlug fetches the public album snapshot.
func (c *Client) GetMemoryBySlug(ctx context.Context, slug string, page, limit int) (*models.MemoryWithMedia, error) {
	var out models.MemoryWithMedia
	req := request{method: http.MethodGet, path: "/memories/" + url.PathEscape(slug), query: pageQuery(page, limit)}
	if err := c.doJSON(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMediaItems fetches one page of an album's media.
func (c *Client) GetMediaItems(ctx context.Context, slug string, page, limit int) (*models.MediaPage, error) {
	var out models.MediaPage
	req := request{method: http.MethodGet, path: "/memories/" + url.PathEscape(slug) + "/media", query: pageQuery(page, limit)}
	if err := c.doJSON(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestUpload asks for a signed upload slot.
func (c *Client) RequestUpload(ctx context.Context, slug string, in models.RequestUploadRequest) (*models.RequestUploadResponse, error) {
	req, err := jsonRequest(http.MethodPost, "/memories/"+url.PathEscape(slug)+"/uploads/request", in)
	if err != nil {
		return nil, err
	}
	var out models.RequestUploadResponse
	if err := c.doJSON(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteUpload finalizes a transferred object into a media item.
func (c *Client) CompleteUpload(ctx context.Context, slug string, in models.CompleteUploadRequest) (*models.MediaItem, error) {
	req, err := jsonRequest(http.MethodPost, "/memories/"+url.PathEscape(slug)+"/uploads/complete", in)
	if err != nil {
		return nil, err
	}
	var out models.MediaItem
	if err := c.doJSON(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadToSignedURL streams body to the signed URL. onProgress receives
// percentages in [0, 100] as bytes are sent.
func (c *Client) UploadToSignedURL(ctx context.Context, signedURL string, body io.Reader, size int64, mimeType string, onProgress func(float64)) error {
	reader := &progressReader{r: body, total: size, onProgress: onProgress}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, reader)
	if err != nil {
		return fmt.Errorf("build transfer request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("x-upsert", "false")
	resp, err := c.transfer.Do(req)
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// ListMemories lists albums for the admin.
func (c *Client) ListMemories(ctx context.Context, page, limit int) (*models.MemoryListResponse, error) {
	var out models.MemoryListResponse
	req := request{method: http.MethodGet, path: "/admin/memories", query: pageQuery(page, limit)}
	if err := c.doJSON(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMemoryBySlugAdmin fetches an album snapshot with admin privileges.
func (c *Client) GetMemoryBySlugAdmin(ctx context.Context, slug string, page, limit int) (*models.MemoryWithMedia, error) {
	var out models.MemoryWithMedia
	req := request{method: http.MethodGet, path: "/admin/memories/" + url.PathEscape(slug), query: pageQuery(page, limit)}
	if err := c.doJSON(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateMemory creates an album, uploading the cover when one is given.
func (c *Client) CreateMemory(ctx context.Context, in models.MemoryInput) (*models.Memory, error) {
	req, err := memoryForm(http.MethodPost, "/admin/memories", in)
	if err != nil {
		return nil, err
	}
	var out models.Memory
	if err := c.doJSON(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMemory replaces an album's editable fields. The cover is only sent
// when a new one is given.
func (c *Client) UpdateMemory(ctx context.Context, slug string, in models.MemoryInput) (*models.Memory, error) {
	req, err := memoryForm(http.MethodPut, "/admin/memories/"+url.PathEscape(slug), in)
	if err != nil {
		return nil, err
	}
	var out models.Memory
	if err := c.doJSON(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteMemory deletes an album.
func (c *Client) DeleteMemory(ctx context.Context, slug string) error {
	return c.doJSON(ctx, request{method: http.MethodDelete, path: "/admin/memories/" + url.PathEscape(slug)}, nil)
}

// DeleteMediaItem deletes one media item.
func (c *Client) DeleteMediaItem(ctx context.Context, mediaID string) error {
	return c.doJSON(ctx, request{method: http.MethodDelete, path: "/memories/media/" + url.PathEscape(mediaID)}, nil)
}

// BulkDownload streams the album archive into w and returns the byte count.
func (c *Client) BulkDownload(ctx context.Context, slug string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/admin/memories/" + url.PathEscape(slug) + "/download"})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download archive: %w", err)
	}
	return n, nil
}

func memoryForm(method, path string, in models.MemoryInput) (request, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("title", in.Title)
	if in.Description != "" {
		_ = mw.WriteField("description", in.Description)
	}
	_ = mw.WriteField("eventDate", in.EventDate.UTC().Format(time.RFC3339))
	if in.CoverPath != "" {
		f, err := os.Open(in.CoverPath)
		if err != nil {
			return request{}, fmt.Errorf("open cover: %w", err)
		}
		defer f.Close()
		part, err := mw.CreateFormFile("cover", filepath.Base(in.CoverPath))
		if err != nil {
			return request{}, fmt.Errorf("create cover part: %w", err)
		}
		if _, err := io.Copy(part, f); err != nil {
			return request{}, fmt.Errorf("copy cover: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return request{}, fmt.Errorf("close form: %w", err)
	}
	return request{method: method, path: path, contentType: mw.FormDataContentType(), body: buf.Bytes()}, nil
}

type progressReader struct {
	r          io.Reader
	total      int64
	sent       int64
	onProgress func(float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.onProgress != nil && p.total > 0 {
			pct := float64(p.sent) / float64(p.total) * 100
			if pct > 100 {
				pct = 100
			}
			p.onProgress(pct)
		}
	}
	return n, err
}
