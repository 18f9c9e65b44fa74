package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnsupportedMedia is returned when a MIME type is neither image nor video.
var ErrUnsupportedMedia = errors.New("unsupported media type")

// MediaItem is one uploaded photo or video.
type MediaItem struct {
	ID         string    `json:"id"`
	MemoryID   string    `json:"memoryId"`
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	MimeType   string    `json:"mimeType"`
	Size       int64     `json:"size"`
	Width      *int      `json:"width,omitempty"`
	Height     *int      `json:"height,omitempty"`
	Duration   *float64  `json:"duration,omitempty"`
	UploadedBy string    `json:"uploadedBy,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// MediaKind distinguishes the two media variants.
type MediaKind int

const (
	KindImage MediaKind = iota + 1
	KindVideo
)

func (k MediaKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// KindOf resolves the variant from a MIME type prefix.
func KindOf(mimeType string) (MediaKind, error) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mt, "image/"):
		return KindImage, nil
	case strings.HasPrefix(mt, "video/"):
		return KindVideo, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedMedia, mimeType)
	}
}

// Variant carries the fields relevant to one media kind.
type Variant interface {
	Kind() MediaKind
}

// ImageVariant is a still photo.
type ImageVariant struct {
	Width  int
	Height int
}

func (ImageVariant) Kind() MediaKind { return KindImage }

// VideoVariant is a video clip.
type VideoVariant struct {
	Width    int
	Height   int
	Duration time.Duration
}

func (VideoVariant) Kind() MediaKind { return KindVideo }

// Classify resolves the item's variant once, at ingestion.
func Classify(item MediaItem) (Variant, error) {
	kind, err := KindOf(item.MimeType)
	if err != nil {
		return nil, err
	}
	if kind == KindImage {
		return ImageVariant{Width: deref(item.Width), Height: deref(item.Height)}, nil
	}
	v := VideoVariant{Width: deref(item.Width), Height: deref(item.Height)}
	if item.Duration != nil {
		v.Duration = time.Duration(*item.Duration * float64(time.Second))
	}
	return v, nil
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
