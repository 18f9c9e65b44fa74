package upload

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"

	"momentify/internal/apiclient"
)

// Category groups upload failures for the user facing message.
type Category string

const (
	CategoryNetwork  Category = "network"
	CategoryTimeout  Category = "timeout"
	CategoryAuth     Category = "auth"
	CategoryNotFound Category = "not-found"
	CategoryTooLarge Category = "too-large"
	CategoryGeneric  Category = "generic"
)

var categoryMessages = map[Category]string{
	CategoryNetwork:  "Network error. Please check your connection and try again.",
	CategoryTimeout:  "Upload timed out. Please try again.",
	CategoryAuth:     "Upload authorization failed. Please refresh the page and try again.",
	CategoryNotFound: "This memory no longer exists.",
	CategoryTooLarge: "File is too large to upload.",
	CategoryGeneric:  "Upload failed. Please try again.",
}

// Classify maps an upload error to a category and its message.
func Classify(err error) (Category, string) {
	c := classify(err)
	return c, categoryMessages[c]
}

func classify(err error) Category {
	var apiErr *apiclient.APIError
	var netErr net.Error
	switch {
	case err == nil:
		return CategoryGeneric
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return CategoryTimeout
	case errors.Is(err, ErrTooLarge):
		return CategoryTooLarge
	case errors.Is(err, apiclient.ErrUnauthorized), errors.Is(err, apiclient.ErrSessionExpired):
		return CategoryAuth
	case errors.Is(err, apiclient.ErrNotFound):
		return CategoryNotFound
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusRequestEntityTooLarge:
		return CategoryTooLarge
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return CategoryTimeout
		}
		return CategoryNetwork
	}
	return CategoryGeneric
}
