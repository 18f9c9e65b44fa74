package models

import "time"

// Memory is a slug-addressed album tied to one event.
type Memory struct {
	ID               string    `json:"id"`
	Slug             string    `json:"slug"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	CoverURL         string    `json:"coverUrl,omitempty"`
	EventDate        time.Time `json:"eventDate"`
	QRCodeURL        string    `json:"qrCodeUrl,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	CreatedByAdminID string    `json:"createdByAdminId,omitempty"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalCount int `json:"totalCount"`
	TotalPages int `json:"totalPages"`
}

// MemoryWithMedia is the album snapshot returned for a slug.
type MemoryWithMedia struct {
	Memory     Memory      `json:"memory"`
	MediaItems []MediaItem `json:"mediaItems"`
	Pagination Pagination  `json:"pagination"`
}

// MediaPage is a page of media items without the album header.
type MediaPage struct {
	MediaItems []MediaItem `json:"mediaItems"`
	Pagination Pagination  `json:"pagination"`
}

// MemorySummary is a listed album with its media count.
type MemorySummary struct {
	Memory
	Count struct {
		MediaItems int `json:"mediaItems"`
	} `json:"_count"`
}

// MemoryListResponse is the admin album listing.
type MemoryListResponse struct {
	Memories   []MemorySummary `json:"memories"`
	Pagination Pagination      `json:"pagination"`
}

// MemoryInput carries the editable album fields for create and update.
type MemoryInput struct {
	Title       string
	Description string
	EventDate   time.Time
	// CoverPath is a local file uploaded as the cover image when set.
	CoverPath string
}
