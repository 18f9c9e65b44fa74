// Package upload validates, transfers and tracks guest uploads.
package upload

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxBytes is the per-file size ceiling.
const DefaultMaxBytes int64 = 50 * 1024 * 1024

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
)

// AllowedTypes is the MIME whitelist.
var AllowedTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"image/heic":      true,
	"image/heif":      true,
	"video/mp4":       true,
	"video/quicktime": true,
	"video/webm":      true,
}

// extension fallbacks for types mime.TypeByExtension may not know.
var extTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

// File is a local file selected for upload.
type File struct {
	Path     string
	Name     string
	MimeType string
	Size     int64
}

// Open stats path and resolves its MIME type.
func Open(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	mt, err := DetectMIME(path)
	if err != nil {
		return File{}, err
	}
	return File{Path: path, Name: filepath.Base(path), MimeType: mt, Size: info.Size()}, nil
}

// DetectMIME resolves a MIME type from the extension and falls back to
// sniffing the first 512 bytes.
func DetectMIME(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if mt, ok := extTypes[ext]; ok {
		return mt, nil
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return strings.TrimSpace(strings.SplitN(mt, ";", 2)[0]), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	head := make([]byte, 512)
	n, _ := f.Read(head)
	return strings.SplitN(http.DetectContentType(head[:n]), ";", 2)[0], nil
}

// Validate checks a file against the whitelist and the size ceiling. A
// non-positive max means DefaultMaxBytes.
func Validate(f File, max int64) error {
	if max <= 0 {
		max = DefaultMaxBytes
	}
	if !AllowedTypes[strings.ToLower(f.MimeType)] {
		return fmt.Errorf("%s: %w (%s)", f.Name, ErrUnsupportedType, f.MimeType)
	}
	if f.Size > max {
		return fmt.Errorf("%s: %w (max %dMB)", f.Name, ErrTooLarge, max/(1024*1024))
	}
	return nil
}

// RejectionMessage is the notification text for a file Validate rejected.
func RejectionMessage(f File, err error, max int64) string {
	if max <= 0 {
		max = DefaultMaxBytes
	}
	switch {
	case errors.Is(err, ErrTooLarge):
		return fmt.Sprintf("%s is too large. Maximum size is %dMB", f.Name, max/(1024*1024))
	case errors.Is(err, ErrUnsupportedType):
		return fmt.Sprintf("%s is not a supported file type", f.Name)
	default:
		return fmt.Sprintf("%s could not be added: %v", f.Name, err)
	}
}
